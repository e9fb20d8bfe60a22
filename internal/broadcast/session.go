package broadcast

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// peekTimeout bounds the non-blocking disconnect probe. It must be short
// enough that the session loop stays responsive to new readiness signals.
const peekTimeout = 1 * time.Millisecond

// Session is one connected TCP subscriber: it waits for readiness signals,
// transmits the current sample, and detects client disconnect via a
// non-blocking peek (spec.md §4.3).
type Session struct {
	logger *logrus.Logger
	conn   net.Conn
	addr   string

	ready    chan struct{}
	finished atomic.Bool
}

// NewSession wraps an accepted connection. The caller still must call Run
// (typically in its own goroutine) and Register the session with a
// Broadcaster.
func NewSession(conn net.Conn, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		logger: logger,
		conn:   conn,
		addr:   conn.RemoteAddr().String(),
		ready:  make(chan struct{}, 1),
	}
}

// signal increments the readiness signal without blocking; a second signal
// before the first is consumed is a no-op, which is exactly the
// collapse-to-latest semantics spec.md §4.3 describes.
func (s *Session) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Session) isFinished() bool { return s.finished.Load() }

// finish marks the session done. Per spec.md §3's invariant, a finished
// session never touches the signal slot again.
func (s *Session) finish() {
	s.finished.Store(true)
}

// Run drives the session loop until the client disconnects, a send fails,
// or ctx is cancelled. It always closes the underlying connection and
// marks the session finished before returning.
func (s *Session) Run(ctx context.Context, sample func() (byte, bool)) {
	defer s.finish()
	defer s.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.clientGone() {
			return
		}

		select {
		case <-s.ready:
		case <-ctx.Done():
			return
		case <-time.After(peekTimeout * 50):
			// Periodically re-probe for disconnect even with no fresh
			// sample, so a silent client is still reaped promptly.
			continue
		}

		b, ok := sample()
		if !ok {
			continue
		}
		if err := s.sendByte(b); err != nil {
			s.logger.WithError(err).WithField("client", s.addr).Debug("subscriber send failed")
			return
		}
	}
}

// sendByte retries until the single byte is fully written.
func (s *Session) sendByte(b byte) error {
	buf := [1]byte{b}
	for written := 0; written < 1; {
		n, err := s.conn.Write(buf[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// clientGone probes the connection with a one-byte read bounded by a
// peekTimeout deadline; a byte it reads is discarded, not put back. io.EOF
// or a graceful-close error means the client
// hung up; a timeout error means the client is still there with nothing to
// say (expected, since this protocol never reads payload bytes from
// clients).
func (s *Session) clientGone() bool {
	if err := s.conn.SetReadDeadline(time.Now().Add(peekTimeout)); err != nil {
		return true
	}
	defer s.conn.SetReadDeadline(time.Time{})

	var buf [1]byte
	n, err := s.conn.Read(buf[:])
	if n > 0 {
		// Clients never send payload bytes in this protocol; any data is
		// ignored, not treated as a disconnect signal.
		return false
	}
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	return true
}
