// Package state holds the persisted trade-loop and program-config records,
// their binary encodings, and the pure checks the engine runs over them:
// construction limits, cycle verification, readiness and expiry.
//
// Nothing here touches storage. The engine loads a record, mutates it
// through these types, and writes it back inside one ledger batch.
package state
