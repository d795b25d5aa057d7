package ir

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// KeySize is the byte length of every identifier on the ledger.
const KeySize = 32

// Key is an opaque 32-byte identifier. Participants, assets and trade loops
// are all addressed by keys; the protocol never interprets their contents.
type Key [KeySize]byte

// ParseKey decodes a 64-character hex string into a Key.
func ParseKey(s string) (Key, error) {
	var k Key
	if len(s) != hex.EncodedLen(KeySize) {
		return k, fmt.Errorf("key must be %d hex characters, got %d", hex.EncodedLen(KeySize), len(s))
	}
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return k, fmt.Errorf("invalid key hex: %w", err)
	}
	return k, nil
}

// MustParseKey is like ParseKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// KeyFromBytes copies b into a Key. b must be exactly KeySize bytes.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// String returns the lowercase hex form.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Short returns the first 8 hex characters, for log lines.
func (k Key) Short() string {
	return hex.EncodeToString(k[:4])
}

// IsZero reports whether every byte of the key is zero.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Compare orders keys bytewise.
func (k Key) Compare(other Key) int {
	return bytes.Compare(k[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
