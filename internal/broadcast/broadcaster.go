// Package broadcast implements the Sample Broadcaster, Subscriber Sessions,
// Reaper, and Acceptor: fan-out of the latest notified sample to TCP
// subscribers with drop-on-slow-consumer semantics.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Broadcaster owns the latest-sample slot and the live session registry. A
// publish increments every live session's readiness signal without
// blocking; it never waits for a session to consume (spec.md §4.3).
type Broadcaster struct {
	logger *logrus.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}

	sampleSet atomic.Bool
	sample    atomic.Uint32 // stores the single sample byte, 0-255
}

// New builds an empty Broadcaster.
func New(logger *logrus.Logger) *Broadcaster {
	if logger == nil {
		logger = logrus.New()
	}
	return &Broadcaster{logger: logger, sessions: make(map[*Session]struct{})}
}

// Register inserts s under the registry mutex (held only for the insert,
// never across I/O, per spec.md §5).
func (b *Broadcaster) Register(s *Session) {
	b.mu.Lock()
	b.sessions[s] = struct{}{}
	b.mu.Unlock()
}

// Publish is the Scavenger's Sink: it snapshots the sample into the slot
// and signals every live session exactly once, without blocking on any of
// them.
func (b *Broadcaster) Publish(sample byte) {
	b.sample.Store(uint32(sample))
	b.sampleSet.Store(true)

	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		s.signal()
	}
}

// Sample returns the current sample slot. found is false until the first
// Publish. Readers take a lock-free snapshot; torn reads are benign since
// the slot is a single byte (spec.md §5).
func (b *Broadcaster) Sample() (byte, bool) {
	if !b.sampleSet.Load() {
		return 0, false
	}
	return byte(b.sample.Load()), true
}

// SampleSource adapts Sample to engine.SampleSource's signature.
func (b *Broadcaster) SampleSource() (byte, bool) { return b.Sample() }

// reap removes every finished session under the registry mutex (held only
// for the scan) and returns the removed sessions to the caller.
func (b *Broadcaster) reap() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	var finished []*Session
	for s := range b.sessions {
		if s.isFinished() {
			finished = append(finished, s)
			delete(b.sessions, s)
		}
	}
	return finished
}

// Len reports the number of currently registered sessions (active or
// awaiting reap). Used by the Supervisor's shutdown drain loop.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
