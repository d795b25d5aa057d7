// Package ledger provides the SQLite-backed record store that trade loops,
// the program config and asset holdings live in, plus the invocation journal.
//
// # Records
//
// A record is an opaque byte slice of fixed allocated size at a
// content-derived Address (CIDv1, raw codec, sha2-256). Handlers never write
// to the Store directly: every invocation stages its effects in a Batch and
// the Batch is committed in a single SQL transaction, or discarded. No
// partial invocation is ever observable.
//
// # Journal
//
// Every processed invocation, successful or not, is appended to the
// invocations table outside the record batch.
//   - Ordering uses seq INTEGER (logical clock), never timestamps
//   - All journal queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package ledger
