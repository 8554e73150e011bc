// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import "sync"

// reentrancyGuard admits one mutating call at a time. A call arriving while
// another is in flight, including one made from a custody callback of the
// first, is rejected rather than queued.
type reentrancyGuard struct {
	mu     sync.Mutex
	locked bool
}

// enter acquires the guard. The returned release must be deferred.
func (g *reentrancyGuard) enter() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked {
		return nil, ErrReentrant
	}
	g.locked = true
	return func() {
		g.mu.Lock()
		g.locked = false
		g.mu.Unlock()
	}, nil
}
