package main

import (
	"log/slog"

	"github.com/pthm-cable/flap/game"
)

// logObserver presents a generation through the logger: a progress line every
// `every` ticks and one line per agent death.
type logObserver struct {
	logger *slog.Logger
	every  int
	labels []string
	alive  []bool
}

func newLogObserver(logger *slog.Logger, every int, labels []string) *logObserver {
	alive := make([]bool, len(labels))
	for i := range alive {
		alive[i] = true
	}
	return &logObserver{logger: logger, every: every, labels: labels, alive: alive}
}

func (o *logObserver) OnTick(s game.Snapshot) {
	for _, a := range s.Agents {
		if a.Index >= len(o.alive) || a.Alive || !o.alive[a.Index] {
			continue
		}
		o.alive[a.Index] = false
		o.logger.Info("agent died",
			"tick", s.Tick,
			"agent", o.labels[a.Index],
			"fitness", a.Fitness,
			"y", a.Rect.Y,
		)
	}

	if o.every > 0 && s.Tick%o.every == 0 {
		o.logger.Info("tick",
			"tick", s.Tick,
			"alive", s.Alive,
			"obstacles", len(s.Obstacles),
			"max_fitness", s.MaxFitness,
		)
	}
}
