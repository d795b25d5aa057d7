package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/loopswap/internal/ir"
)

const keyDomain = "loopswap/test-key/v1"

// Key derives a stable participant or asset key from a name, so tests and
// scenario files can say "alice" instead of 64 hex digits.
func Key(name string) ir.Key {
	return ir.Key(ir.HashWithDomain(keyDomain, []byte(name)))
}

// Fill returns a key with every byte set to b.
func Fill(b byte) ir.Key {
	var k ir.Key
	for i := range k {
		k[i] = b
	}
	return k
}

// SequentialIDs generates "inv-0001", "inv-0002", ... It implements
// engine.IDGenerator and never runs out.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix means "inv".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "inv"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
