package game

import (
	"sort"
	"time"
)

// Phase names recorded by the runner.
const (
	PhaseField    = "field"
	PhaseAgents   = "agents"
	PhaseObserver = "observer"
)

// window is a fixed-size ring of samples with a running sum.
type window struct {
	buf  []time.Duration
	next int
	full bool
	sum  time.Duration
}

func (w *window) add(d time.Duration) {
	if w.full {
		w.sum -= w.buf[w.next]
	}
	w.buf[w.next] = d
	w.sum += d
	w.next++
	if w.next == len(w.buf) {
		w.next = 0
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.buf)
	}
	return w.next
}

func (w *window) mean() time.Duration {
	n := w.len()
	if n == 0 {
		return 0
	}
	return w.sum / time.Duration(n)
}

// PerfStats tracks tick phase timings and the number of agents simulated per
// tick over the last size ticks.
type PerfStats struct {
	size   int
	phases map[string]*window
	alive  *window // agent counts stored as durations of 1ns per agent
}

// NewPerfStats creates a tracker keeping the last size samples per phase.
func NewPerfStats(size int) *PerfStats {
	if size <= 0 {
		size = 120
	}
	return &PerfStats{
		size:   size,
		phases: make(map[string]*window),
		alive:  &window{buf: make([]time.Duration, size)},
	}
}

// Record adds a duration sample for the named phase.
func (p *PerfStats) Record(name string, d time.Duration) {
	w, ok := p.phases[name]
	if !ok {
		w = &window{buf: make([]time.Duration, p.size)}
		p.phases[name] = w
	}
	w.add(d)
}

// RecordAlive adds the number of agents simulated in one tick.
func (p *PerfStats) RecordAlive(n int) {
	p.alive.add(time.Duration(n))
}

// Avg returns the average duration for the named phase.
func (p *PerfStats) Avg(name string) time.Duration {
	if w, ok := p.phases[name]; ok {
		return w.mean()
	}
	return 0
}

// AvgAlive returns the mean number of agents simulated per tick.
func (p *PerfStats) AvgAlive() float64 {
	n := p.alive.len()
	if n == 0 {
		return 0
	}
	return float64(p.alive.sum) / float64(n)
}

// PerAgent returns the mean agent phase cost divided by the mean number of
// agents simulated, or zero before any agent has been recorded.
func (p *PerfStats) PerAgent() time.Duration {
	alive := p.AvgAlive()
	if alive == 0 {
		return 0
	}
	return time.Duration(float64(p.Avg(PhaseAgents)) / alive)
}

// Total returns the sum of all phase averages, i.e. the mean tick cost.
func (p *PerfStats) Total() time.Duration {
	var total time.Duration
	for _, w := range p.phases {
		total += w.mean()
	}
	return total
}

// SortedNames returns phase names sorted by average duration, slowest first.
// Equal averages sort by name so output is stable.
func (p *PerfStats) SortedNames() []string {
	names := make([]string, 0, len(p.phases))
	for name := range p.phases {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ai, aj := p.Avg(names[i]), p.Avg(names[j])
		if ai != aj {
			return ai > aj
		}
		return names[i] < names[j]
	})
	return names
}
