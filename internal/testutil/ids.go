package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates prefix0001, prefix0002, ... for tests that need
// predictable record ids and working directory names.
//
// Unlike ir.FixedGenerator it never runs out.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. Prefixes should be plain identifiers
// so the ids can name storage tables.
func NewSequenceIDs(prefix string) *SequenceIDs {
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%04d", g.prefix, g.n)
}
