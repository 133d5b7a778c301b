package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialIDs generates predictable run ids: "<prefix>-000001",
// "<prefix>-000002", ...
//
// This enables golden snapshot comparison of anything that records run ids.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDs creates a generator. An empty prefix becomes "run".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	return fmt.Sprintf("%s-%06d", g.prefix, g.n.Add(1))
}
