package server

import (
	"fmt"

	"github.com/roach88/loopswap/internal/engine"
	"github.com/roach88/loopswap/internal/ir"
)

// frameHeaderSize covers caller, loop and the account count.
const frameHeaderSize = 2*ir.KeySize + 1

// MaxFrameAccounts bounds the account list of one frame.
const MaxFrameAccounts = 255

// EncodeFrame serializes inv as a submission frame.
func EncodeFrame(inv engine.Invocation) ([]byte, error) {
	if len(inv.Accounts) > MaxFrameAccounts {
		return nil, fmt.Errorf("frame carries %d accounts, maximum is %d", len(inv.Accounts), MaxFrameAccounts)
	}
	out := make([]byte, 0, frameHeaderSize+len(inv.Accounts)*ir.KeySize+len(inv.Data))
	out = append(out, inv.Caller[:]...)
	out = append(out, inv.Loop[:]...)
	out = append(out, byte(len(inv.Accounts)))
	for _, a := range inv.Accounts {
		out = append(out, a[:]...)
	}
	return append(out, inv.Data...), nil
}

// DecodeFrame parses a submission frame. The instruction bytes are not
// interpreted here.
func DecodeFrame(frame []byte) (engine.Invocation, error) {
	var inv engine.Invocation
	if len(frame) < frameHeaderSize {
		return inv, fmt.Errorf("frame is %d bytes, header needs %d", len(frame), frameHeaderSize)
	}
	copy(inv.Caller[:], frame[:ir.KeySize])
	copy(inv.Loop[:], frame[ir.KeySize:2*ir.KeySize])
	n := int(frame[2*ir.KeySize])
	rest := frame[frameHeaderSize:]
	if len(rest) < n*ir.KeySize {
		return inv, fmt.Errorf("frame declares %d accounts but carries %d bytes", n, len(rest))
	}
	if n > 0 {
		inv.Accounts = make([]ir.Key, n)
		for i := range inv.Accounts {
			copy(inv.Accounts[i][:], rest[i*ir.KeySize:])
		}
	}
	inv.Data = append([]byte(nil), rest[n*ir.KeySize:]...)
	return inv, nil
}
