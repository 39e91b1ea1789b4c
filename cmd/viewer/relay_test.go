package main

import (
	"sync"
	"testing"

	"github.com/pthm-cable/flap/game"
)

func TestRelayKeepsNewest(t *testing.T) {
	var r relay
	if _, seq := r.Latest(); seq != 0 {
		t.Fatalf("seq = %d before any tick", seq)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for tick := 1; tick <= 100; tick++ {
			r.OnTick(game.Snapshot{Tick: tick})
		}
	}()
	wg.Wait()

	s, seq := r.Latest()
	if s.Tick != 100 || seq != 100 {
		t.Errorf("latest = tick %d seq %d, want 100 and 100", s.Tick, seq)
	}
}
