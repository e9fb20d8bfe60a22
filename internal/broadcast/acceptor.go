package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/srg/hrbridge/internal/groutine"
)

func fdToFile(fd int, name string) *os.File {
	return os.NewFile(uintptr(fd), name)
}

// ListenBacklog is the exact backlog spec.md §4.4 requires. net.Listen does
// not expose a backlog parameter, so the Acceptor builds the listening
// socket itself via golang.org/x/sys/unix and hands the resulting fd to
// net.FileListener.
const ListenBacklog = 10

// Acceptor listens on a TCP port, creating a Subscriber Session per
// accepted connection and registering it with a Broadcaster.
type Acceptor struct {
	logger *logrus.Logger
	b      *Broadcaster
	wg     sync.WaitGroup
}

// NewAcceptor builds an Acceptor over b.
func NewAcceptor(b *Broadcaster, logger *logrus.Logger) *Acceptor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Acceptor{logger: logger, b: b}
}

// listenTCP opens a TCP listener on port with an exact backlog, bypassing
// net.Listen's inability to express one.
func listenTCP(port int) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	addr := unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, &addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	f := fdToFile(fd, fmt.Sprintf("hrbridge-listener-%d", port))
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("FileListener: %w", err)
	}
	return ln, nil
}

// Run accepts connections on port until ctx is done, wiring each into a new
// Session registered with the Broadcaster. sample is passed through to
// each session for its send loop.
func (a *Acceptor) Run(ctx context.Context, port int, sample func() (byte, bool)) error {
	ln, err := listenTCP(port)
	if err != nil {
		return fmt.Errorf("acceptor: %w", err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			a.logger.WithError(err).Warn("acceptor: accept failed, stopping")
			return fmt.Errorf("acceptor: accept: %w", err)
		}

		session := NewSession(conn, a.logger)
		a.b.Register(session)
		a.wg.Add(1)
		groutine.Go(ctx, "subscriber-session", func(ctx context.Context) {
			defer a.wg.Done()
			session.Run(ctx, sample)
		})
	}
}

// Wait blocks until every session goroutine the Acceptor ever started has
// returned. The Supervisor calls this after cancelling ctx, before the
// final shutdown drain.
func (a *Acceptor) Wait() {
	a.wg.Wait()
}
