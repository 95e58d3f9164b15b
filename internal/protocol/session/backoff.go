package session

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Delay returns the wait before dial attempt N (1-based).
func (b BackoffConfig) Delay(attempt int) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	mult := max(b.Multiplier, 1.0)
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(max(attempt, 1)-1))
	if b.MaxDelay > 0 {
		delay = min(delay, float64(b.MaxDelay))
	}
	if b.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
