package scheduler

import (
	"fmt"
	"sync"
)

// MarkerStore persists the token of the last window a reminder was sent for.
type MarkerStore interface {
	GetLastAlertToken() (string, error)
	SetLastAlertToken(token string) error
}

// DedupGuard ensures at most one reminder per window token. It is the only
// writer of the marker.
type DedupGuard struct {
	mu    sync.Mutex
	store MarkerStore
}

func NewDedupGuard(store MarkerStore) *DedupGuard {
	return &DedupGuard{store: store}
}

// ShouldFire reports whether token differs from the last recorded token.
func (g *DedupGuard) ShouldFire(token string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shouldFire(token)
}

// RecordFired overwrites the marker with token.
func (g *DedupGuard) RecordFired(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.SetLastAlertToken(token)
}

// Fire runs dispatch if token has not fired yet and records token when
// dispatch reports that it sent a reminder. Check, dispatch and record happen
// under one lock, so concurrent or repeated calls for the same token dispatch
// at most once.
func (g *DedupGuard) Fire(token string, dispatch func() bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ok, err := g.shouldFire(token)
	if err != nil || !ok {
		return false, err
	}

	if !dispatch() {
		return false, nil
	}

	if err := g.store.SetLastAlertToken(token); err != nil {
		return true, fmt.Errorf("recording alert marker %s: %w", token, err)
	}

	return true, nil
}

func (g *DedupGuard) shouldFire(token string) (bool, error) {
	last, err := g.store.GetLastAlertToken()
	if err != nil {
		return false, fmt.Errorf("reading alert marker: %w", err)
	}
	return last != token, nil
}
