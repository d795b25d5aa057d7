// Package server exposes an engine over gRPC.
//
// The Ledger service uses protobuf wrapper messages instead of generated
// types. Submit takes a submission frame, a fixed binary header naming the
// caller, the target loop and extra accounts, followed by the raw
// instruction bytes in either wire format. Domain rejections travel as gRPC
// status errors whose message starts with the error code name, so Client can
// rebuild a swaperr.Error on the other side.
package server
