package ingest

import (
	"sync"

	"fieldload/domain/fieldvalue"
)

// DedupGate admits each RequestKey at most once per run
type DedupGate struct {
	mu   sync.Mutex
	seen map[fieldvalue.RequestKey]struct{}
}

func NewDedupGate() *DedupGate {
	return &DedupGate{seen: make(map[fieldvalue.RequestKey]struct{})}
}

// Admit records key and reports whether it was new. The lock is held only
// for the check-and-insert.
func (g *DedupGate) Admit(key fieldvalue.RequestKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = struct{}{}
	return true
}

// Len returns the number of admitted keys
func (g *DedupGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
