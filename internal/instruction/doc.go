// Package instruction encodes and decodes loopswap protocol messages.
//
// Two wire formats share one decode entry point (Unpack), selected by the
// first byte:
//
//   - Legacy: tag byte 0..8 followed by fixed-offset little-endian fields.
//     Every read is bounds-checked; truncated or over-long input is an
//     InvalidInstructionData error, never a panic.
//   - Versioned: 0xFF, a version byte, then a canonical JSON envelope
//     {"command":{...},"version":N}. The envelope is validated against an
//     embedded CUE schema before it is decoded.
//
// Decoders support both formats indefinitely. Pack emits the versioned form;
// PackLegacy exists for older clients.
package instruction
