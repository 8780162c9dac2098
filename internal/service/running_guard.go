package service

import (
	"context"
	"sync"
)

// ExportedInflightGuard is an exported alias so _test packages can test the guard.
type ExportedInflightGuard = inflightGuard

// ─────────────────────────────────────────────────────────────
// inflightGuard: one request per key at a time
// ─────────────────────────────────────────────────────────────

// inflightGuard ensures only one operation per key (page ID, "save")
// is in flight, and lets shutdown wait for the ones that are.
type inflightGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	idle    chan struct{} // closed when running drains to empty
}

// TryLock marks key as in flight. Returns false if it already is.
func (g *inflightGuard) TryLock(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[key]; ok {
		return false
	}
	g.running[key] = struct{}{}
	return true
}

// Unlock releases key. Must be called after TryLock returns true.
func (g *inflightGuard) Unlock(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, key)
	if len(g.running) == 0 && g.idle != nil {
		close(g.idle)
		g.idle = nil
	}
}

// Running reports whether key is in flight.
func (g *inflightGuard) Running(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[key]
	return ok
}

// WaitAll blocks until nothing is in flight or ctx is done.
func (g *inflightGuard) WaitAll(ctx context.Context) error {
	g.mu.Lock()
	if len(g.running) == 0 {
		g.mu.Unlock()
		return nil
	}
	if g.idle == nil {
		g.idle = make(chan struct{})
	}
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
