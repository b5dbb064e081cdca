package viewport

import (
	"context"
	"time"
)

// Clock paces the render loop. Wait blocks until the next frame is due
// and returns an error to end the loop. It must return promptly once ctx
// is done.
type Clock interface {
	Wait(ctx context.Context) error
}

// TickerClock paces frames at a fixed rate.
type TickerClock struct {
	ticker *time.Ticker
}

// NewTickerClock creates a clock firing fps times per second.
// A non-positive fps means 60.
func NewTickerClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = 60
	}
	return &TickerClock{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// Wait blocks until the next tick.
func (c *TickerClock) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (c *TickerClock) Stop() {
	c.ticker.Stop()
}
