package uart

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// DefaultRecvBufferCap is large enough to absorb a full notification drain
// window (spec.md §4.2's 512-byte scavenger budget) plus headroom for a
// command response in flight.
const DefaultRecvBufferCap = 4096

// SerialOptions configures OpenSerial. Zero values take the package
// defaults.
type SerialOptions struct {
	BaudRate      uint32
	RecvBufferCap int
	PollTimeoutMs int
	Logger        *logrus.Logger
}

// OpenSerial opens path (e.g. /dev/hm11) as a raw, non-canonical serial
// line and returns a Transport backed by a background reader goroutine.
func OpenSerial(path string, opts SerialOptions) (Transport, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("uart: open %s: %w", path, err)
	}

	baud := opts.BaudRate
	if baud == 0 {
		baud = 9600
	}
	if err := configureRaw(int(f.Fd()), baud); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("uart: configure %s: %w", path, err)
	}
	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("uart: set nonblocking %s: %w", path, err)
	}

	recvCap := opts.RecvBufferCap
	if recvCap <= 0 {
		recvCap = DefaultRecvBufferCap
	}

	return newFdTransport(f, recvCap, opts.PollTimeoutMs, opts.Logger, "uart-serial"), nil
}

// configureRaw puts fd into raw, non-canonical mode: no echo, no signal
// generation, no line editing, 8N1, at the given baud rate. This mirrors
// the HM-11's expected line discipline: every byte the module sends is
// protocol data, never terminal control characters.
func configureRaw(fd int, baud uint32) error {
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD

	speed, ok := baudConstant(baud)
	if !ok {
		return fmt.Errorf("unsupported baud rate %d", baud)
	}
	t.Ispeed = speed
	t.Ospeed = speed

	// VMIN=0, VTIME=0: the fd itself is non-blocking and poll-driven, so the
	// line discipline should never block on its own.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	return unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}
