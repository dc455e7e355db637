package session

import (
	"context"
	"time"

	applogger "OptiBase/pkg/logger"
)

// NextBoundary returns the next whole-minute boundary after now, in now's
// location.
func NextBoundary(now time.Time) time.Time {
	return now.Truncate(time.Minute).Add(time.Minute)
}

// Scheduler invokes a callback at every minute boundary of the market clock.
// The first tick is aligned: it waits for the upcoming boundary rather than
// firing immediately.
type Scheduler struct {
	loc   *time.Location
	l     *applogger.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a minute scheduler for the given market timezone.
func NewScheduler(loc *time.Location) *Scheduler {
	return &Scheduler{loc: loc, now: time.Now, sleep: sleepCtx}
}

// SetLogger injects a structured logger.
func (s *Scheduler) SetLogger(l *applogger.Logger) { s.l = l }

// Run calls onTick once per minute boundary until shouldContinue reports
// false or ctx is cancelled. A failing tick is logged and the loop keeps
// going; only cancellation stops it with an error.
func (s *Scheduler) Run(ctx context.Context, shouldContinue func(time.Time) bool, onTick func(time.Time) error) error {
	for {
		now := s.now().In(s.loc)
		boundary := NextBoundary(now)
		if err := s.sleep(ctx, boundary.Sub(now)); err != nil {
			return err
		}
		wake := s.now().In(s.loc)
		if !shouldContinue(wake) {
			return nil
		}
		if err := onTick(boundary); err != nil {
			if s.l != nil {
				s.l.Warn("minute tick failed",
					applogger.String("boundary", boundary.Format("15:04")),
					applogger.Error(err),
				)
			}
		}
	}
}

// sleepCtx blocks for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
