package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Domain prefixes for derived identifiers.
// Version suffix enables future algorithm migration.
const (
	DomainRecord     = "loopswap/record/v1"
	DomainInvocation = "loopswap/invocation/v1"
)

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + len(part0) + part0 + len(part1) + part1 ...)
// Each part is prefixed with its uint32 big-endian length so that
// ("ab","c") and ("a","bc") never collide.
func HashWithDomain(domain string, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	var lenBuf [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HexHashWithDomain is HashWithDomain rendered as lowercase hex.
func HexHashWithDomain(domain string, parts ...[]byte) string {
	sum := HashWithDomain(domain, parts...)
	return hex.EncodeToString(sum[:])
}
