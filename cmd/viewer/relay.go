package main

import (
	"sync"

	"github.com/pthm-cable/flap/game"
)

// relay hands the newest snapshot from the simulation goroutine to the render
// loop. Older snapshots are dropped.
type relay struct {
	mu     sync.Mutex
	latest game.Snapshot
	seq    uint64
}

// OnTick implements game.Observer.
func (r *relay) OnTick(s game.Snapshot) {
	r.mu.Lock()
	r.latest = s
	r.seq++
	r.mu.Unlock()
}

// Latest returns the newest snapshot and a sequence number that changes with
// every tick.
func (r *relay) Latest() (game.Snapshot, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.seq
}
