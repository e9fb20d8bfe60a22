package broadcast

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ReapCadence is the fixed sweep interval spec.md §4.4 fixes.
const ReapCadence = 5 * time.Second

// Reaper periodically removes finished sessions from a Broadcaster's
// registry.
type Reaper struct {
	b      *Broadcaster
	logger *logrus.Logger
}

// NewReaper builds a Reaper over b.
func NewReaper(b *Broadcaster, logger *logrus.Logger) *Reaper {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reaper{b: b, logger: logger}
}

// Sweep removes every currently-finished session from the registry. The
// scan happens under the registry mutex inside Broadcaster.reap; a session
// only sets its finished flag after its Run goroutine has already closed
// the connection and returned (deferred in Session.Run), so by the time
// reap() observes the flag there is nothing left to join outside the
// lock — the original pthread_join step this mirrors existed to reclaim a
// thread stack, which a Go goroutine doesn't need.
func (r *Reaper) Sweep() int {
	finished := r.b.reap()
	return len(finished)
}

// Run drives Sweep on ReapCadence until ctx is done. Most callers want
// RunInterval with the deployment's configured cadence instead.
func (r *Reaper) Run(ctx context.Context) {
	r.RunInterval(ctx, ReapCadence)
}

// RunInterval drives Sweep on the given interval until ctx is done.
func (r *Reaper) RunInterval(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.WithField("count", n).Debug("reaped finished subscriber sessions")
			}
		}
	}
}

// DrainAll repeatedly sweeps until the registry is empty, for use during
// shutdown (spec.md §4.4).
func (r *Reaper) DrainAll(ctx context.Context) {
	for r.b.Len() > 0 {
		r.Sweep()
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}
