package game

import (
	"context"
	"time"
)

// Pacer blocks between ticks to hold a target tick rate. Headless runs leave
// the pacer nil and never block.
type Pacer interface {
	Wait(ctx context.Context) error
	Stop()
}

// TickerPacer paces ticks with a time.Ticker.
type TickerPacer struct {
	ticker *time.Ticker
}

// NewTickerPacer creates a pacer firing fps times per second.
func NewTickerPacer(fps int) *TickerPacer {
	if fps <= 0 {
		fps = 60
	}
	return &TickerPacer{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// Wait blocks until the next tick or until ctx is done.
func (p *TickerPacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (p *TickerPacer) Stop() {
	p.ticker.Stop()
}
