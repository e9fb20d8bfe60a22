// Package scavenger extracts the most recent notification sample from the
// BLE module's free-running UART output, keyed by a sentinel byte.
package scavenger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/hrbridge/internal/engine"
)

// DrainWindow is the bounded drain size spec.md §4.2 fixes.
const DrainWindow = 512

// Sentinel marks the byte preceding a fresh notification payload in the
// module's free-running output stream.
const Sentinel = 0x16

// Cadence is the fixed interval the Supervisor drives the scavenger on.
const Cadence = 2 * time.Second

// Sink receives a freshly scavenged sample. Implemented by the Broadcaster.
type Sink interface {
	Publish(sample byte)
}

// Scavenger periodically drains the transport and republishes the freshest
// notification it finds.
type Scavenger struct {
	eng    *engine.Engine
	sink   Sink
	logger *logrus.Logger
}

// New builds a Scavenger. eng's transport-exclusivity lock is taken for
// the duration of each drain, since the engine's command exchanges and the
// scavenger's drain share the same physical transport (spec.md §3's "exactly
// one logical requester" invariant).
func New(eng *engine.Engine, sink Sink, logger *logrus.Logger) *Scavenger {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scavenger{eng: eng, sink: sink, logger: logger}
}

// Cycle performs one bounded drain and, if a sample is found, publishes it.
// It reports whether a sample was found, mostly for test observability.
func (sc *Scavenger) Cycle(ctx context.Context) (bool, error) {
	sc.eng.Lock()
	window, err := engine.CollectBounded(ctx, sc.eng.Transport(), DrainWindow, engine.DefaultPerByteTimeout)
	sc.eng.Unlock()
	if err != nil {
		return false, err
	}

	sample, found := extractLatest(window)
	if !found {
		return false, nil
	}
	sc.sink.Publish(sample)
	return true, nil
}

// Run drives Cycle on Cadence until ctx is done. Most callers want
// RunInterval with the deployment's configured cadence instead.
func (sc *Scavenger) Run(ctx context.Context) {
	sc.RunInterval(ctx, Cadence)
}

// RunInterval drives Cycle on the given interval until ctx is done.
func (sc *Scavenger) RunInterval(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sc.Cycle(ctx); err != nil {
				sc.logger.WithError(err).Warn("scavenger cycle failed")
			}
		}
	}
}

// extractLatest scans window from index n-2 downward for Sentinel. The
// byte immediately after the last (i.e. rightmost) sentinel found is the
// freshest sample.
func extractLatest(window []byte) (byte, bool) {
	n := len(window)
	if n < 2 {
		return 0, false
	}
	for i := n - 2; i >= 0; i-- {
		if window[i] == Sentinel {
			return window[i+1], true
		}
	}
	return 0, false
}
