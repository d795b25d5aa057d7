// Package assets is the asset transfer collaborator: authenticity checks
// for singular assets, holder verification, and single-unit transfers.
//
// Registry keeps asset and holding records in the same ledger record space
// as trade loops. Constructed over an invocation's ledger.Batch, its
// transfers commit or roll back together with the loop's status changes.
package assets
