package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/flap/game"
)

// PerfRecord is one row of perf.csv: average tick phase timings over the
// runner's sliding window at the end of a generation.
type PerfRecord struct {
	Generation     int     `csv:"generation"`
	AvgTickUs      int64   `csv:"avg_tick_us"`
	FieldUs        int64   `csv:"field_us"`
	AgentsUs       int64   `csv:"agents_us"`
	ObserverUs     int64   `csv:"observer_us"`
	AvgAlive       float64 `csv:"avg_alive"`
	PerAgentNs     int64   `csv:"per_agent_ns"`
	TicksPerSecond float64 `csv:"ticks_per_sec"`
}

// PerfRecordFromStats snapshots the runner's phase timings.
func PerfRecordFromStats(generation int, p *game.PerfStats) PerfRecord {
	rec := PerfRecord{Generation: generation}
	if p == nil {
		return rec
	}
	total := p.Total()
	rec.AvgTickUs = total.Microseconds()
	rec.FieldUs = p.Avg(game.PhaseField).Microseconds()
	rec.AgentsUs = p.Avg(game.PhaseAgents).Microseconds()
	rec.ObserverUs = p.Avg(game.PhaseObserver).Microseconds()
	rec.AvgAlive = p.AvgAlive()
	rec.PerAgentNs = p.PerAgent().Nanoseconds()
	if total > 0 {
		rec.TicksPerSecond = float64(time.Second) / float64(total)
	}
	return rec
}

// LogPerf logs the slowest phases first.
func LogPerf(logger *slog.Logger, p *game.PerfStats) {
	if p == nil {
		return
	}
	attrs := []any{"avg_tick_us", p.Total().Microseconds(), "per_agent_ns", p.PerAgent().Nanoseconds()}
	for _, name := range p.SortedNames() {
		attrs = append(attrs, name+"_us", p.Avg(name).Microseconds())
	}
	logger.Info("perf", attrs...)
}
