package uart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"golang.org/x/sys/unix"

	"github.com/srg/hrbridge/internal/groutine"
)

// DefaultPollTimeoutMs bounds how long a background reader waits on poll(2)
// before re-checking for cancellation. It is not a protocol timeout; the
// protocol-level timeouts (RecvByteTimeout) are layered on top of it.
const DefaultPollTimeoutMs = 50

// fdTransport is the shared poll-driven byte pump behind both the real
// serial transport and the pty-backed test double: a background goroutine
// drains the file descriptor into a ring buffer so RecvByte/RecvByteTimeout
// never race the kernel's read(2), and Send writes synchronously so the
// caller observes transmission completion the way the protocol engine needs
// to (one command written and confirmed before the next begins).
type fdTransport struct {
	logger *logrus.Logger
	file   *os.File
	name   string

	recvBuf *ringbuffer.RingBuffer
	notify  chan struct{}

	pollTimeoutMs int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	droppedRead atomic.Uint64
	readBytes   atomic.Uint64
	writeBytes  atomic.Uint64
}

func newFdTransport(file *os.File, recvCap, pollTimeoutMs int, logger *logrus.Logger, name string) *fdTransport {
	if logger == nil {
		logger = logrus.New()
	}
	if pollTimeoutMs <= 0 {
		pollTimeoutMs = DefaultPollTimeoutMs
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &fdTransport{
		logger:        logger,
		file:          file,
		name:          name,
		recvBuf:       ringbuffer.New(recvCap),
		notify:        make(chan struct{}, 1),
		pollTimeoutMs: pollTimeoutMs,
		ctx:           ctx,
		cancel:        cancel,
	}
	t.wg.Add(1)
	groutine.Go(ctx, name+"-read-loop", func(ctx context.Context) { t.readLoop() })
	return t
}

func (t *fdTransport) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorf("%s read loop panicked (recovered): %v", t.name, r)
		}
		t.wg.Done()
	}()

	f := t.file
	fd := int(f.Fd())
	pollFd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	buf := make([]byte, 4096)

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		nReady, err := unix.Poll(pollFd, t.pollTimeoutMs)
		if err != nil && !errors.Is(err, syscall.EINTR) {
			t.logger.Warnf("%s poll error: %v", t.name, err)
		}
		if nReady == 0 {
			continue
		}

		n, err := f.Read(buf)
		if n > 0 {
			written, wErr := t.recvBuf.Write(buf[:n])
			if wErr != nil {
				t.logger.Warnf("%s recv buffer write error: %v", t.name, wErr)
			}
			if written < n {
				t.droppedRead.Add(uint64(n - written))
			}
			t.readBytes.Add(uint64(n))
			select {
			case t.notify <- struct{}{}:
			default:
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, syscall.EINTR), errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EWOULDBLOCK):
				continue
			case errors.Is(err, syscall.EBADF), errors.Is(err, os.ErrClosed):
				t.logger.Debugf("%s exiting: fd closed", t.name)
				return
			default:
				t.logger.Warnf("%s exiting on read error: %v", t.name, err)
				return
			}
		}
	}
}

func (t *fdTransport) Send(p []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	fd := int(t.file.Fd())
	pollFd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	offset := 0
	for offset < len(p) {
		n, err := t.file.Write(p[offset:])
		if n > 0 {
			offset += n
			t.writeBytes.Add(uint64(n))
		}
		if err != nil {
			switch {
			case errors.Is(err, syscall.EINTR):
				continue
			case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EWOULDBLOCK):
				if _, pollErr := unix.Poll(pollFd, t.pollTimeoutMs); pollErr != nil && !errors.Is(pollErr, syscall.EINTR) {
					t.logger.Warnf("%s send poll error: %v", t.name, pollErr)
				}
				continue
			default:
				return fmt.Errorf("uart: send: %w", err)
			}
		}
	}
	return nil
}

func (t *fdTransport) RecvByte(ctx context.Context) (byte, error) {
	buf := make([]byte, 1)
	for {
		if t.closed.Load() {
			return 0, ErrClosed
		}
		n, err := t.recvBuf.TryRead(buf)
		if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
			return 0, fmt.Errorf("uart: recv: %w", err)
		}
		if n == 1 {
			return buf[0], nil
		}
		select {
		case <-t.notify:
			continue
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.ctx.Done():
			return 0, ErrClosed
		}
	}
}

func (t *fdTransport) RecvByteTimeout(ctx context.Context, timeout time.Duration) (byte, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	buf := make([]byte, 1)
	for {
		if t.closed.Load() {
			return 0, false, ErrClosed
		}
		n, err := t.recvBuf.TryRead(buf)
		if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
			return 0, false, fmt.Errorf("uart: recv: %w", err)
		}
		if n == 1 {
			return buf[0], true, nil
		}
		select {
		case <-t.notify:
			continue
		case <-timer.C:
			return 0, false, nil
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-t.ctx.Done():
			return 0, false, ErrClosed
		}
	}
}

func (t *fdTransport) Flush() error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.recvBuf.Reset()
	return unix.IoctlSetInt(int(t.file.Fd()), unix.TCFLSH, unix.TCIOFLUSH)
}

func (t *fdTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.cancel()
	closeErr := t.file.Close()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	timeout := time.Duration(3*t.pollTimeoutMs)*time.Millisecond + time.Second
	if timeout < 5*time.Second {
		timeout = 5 * time.Second
	}
	select {
	case <-done:
	case <-time.After(timeout):
		t.logger.Errorf("%s: read loop did not exit within %s, abandoning", t.name, timeout)
	}
	return closeErr
}
