package app

import (
	"context"
	"time"
)

// pumpClock paces the render loop on the main thread. Each Wait presents
// the previous frame, sleeps off the rest of the frame budget, then pumps
// SDL events.
type pumpClock struct {
	app       *App
	frame     time.Duration
	last      time.Time
	presented bool
}

func newPumpClock(a *App, fps int) *pumpClock {
	c := &pumpClock{app: a}
	if fps > 0 {
		c.frame = time.Second / time.Duration(fps)
	}
	return c
}

// Wait implements viewport.Clock.
func (c *pumpClock) Wait(ctx context.Context) error {
	if c.presented {
		c.app.present()
	}
	c.presented = true

	if err := sleepUntil(ctx, c.last.Add(c.frame)); err != nil {
		return err
	}
	c.last = time.Now()
	return c.app.pump()
}

// sleepUntil blocks until t or until ctx is done.
func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
