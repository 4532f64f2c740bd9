package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler fires a submission at a precise wall-clock time.
type Scheduler struct {
	// SpinDuration is how long before the target to stop sleeping and
	// busy-wait instead. Default: 5ms
	SpinDuration time.Duration
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		SpinDuration: 5 * time.Millisecond,
	}
}

// SleepUntil blocks until target, sleeping for the bulk of the wait and
// spinning for the last SpinDuration. It returns the drift (wake - target),
// or ctx.Err() if the context ends during the coarse sleep.
func (s *Scheduler) SleepUntil(ctx context.Context, target time.Time) (time.Duration, error) {
	now := time.Now()
	if !now.Before(target) {
		return now.Sub(target), nil
	}

	if remaining := target.Sub(now); remaining > s.SpinDuration {
		timer := time.NewTimer(remaining - s.SpinDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	for {
		now = time.Now()
		if !now.Before(target) {
			break
		}
	}
	return now.Sub(target), nil
}

// LogDrift logs the wake drift; anything over 1ms is a warning.
func (s *Scheduler) LogDrift(log zerolog.Logger, drift time.Duration) {
	ev := log.Info()
	if drift > time.Millisecond {
		ev = log.Warn()
	}
	ev.Int64("drift_us", drift.Microseconds()).Msg("precision wake")
}
