// Package engine processes loopswap invocations: it decodes the instruction,
// consults the pause gate, runs the command handler against a ledger batch
// and commits the batch, or discards it on the first failure.
//
// ARCHITECTURE:
//
// Single Writer:
// Process is serialized by a mutex, so two invocations never interleave
// their record mutations. Run offers the same guarantee as a queue drained
// by one goroutine, for callers that submit from many goroutines (the gRPC
// server).
//
// Invocation Flow:
//  1. Stamp the invocation with a seq from the Sequencer and a UUIDv7 id
//  2. Decode the instruction (legacy or versioned)
//  3. Participant commands: fail if the program is paused
//  4. Run the handler over a ledger.Batch; asset transfers share the batch
//  5. Commit the batch in one SQL transaction, or discard it
//  6. Append the outcome to the journal
//
// CRITICAL PATTERNS:
//
// All-or-nothing: no handler writes to the store directly. A failing check
// anywhere in an invocation leaves no trace except its journal entry.
//
// Logical Clock: journal entries are ordered by seq, never by wall time. The
// wall Clock is only consulted for loop creation and expiry.
package engine
