package worker

import (
	"context"
	"time"

	"github.com/noahxzhu/medtracker/internal/safety"
)

// WatchElapsed calls fn with the hours since last right away and then on
// every tick until ctx is done. Each value is read from now, which defaults
// to time.Now when nil. The caller owns the goroutine.
func WatchElapsed(ctx context.Context, now func() time.Time, last time.Time, every time.Duration, fn func(hours float64)) {
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	fn(safety.Elapsed(now(), last))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(safety.Elapsed(now(), last))
		}
	}
}
