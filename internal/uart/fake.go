package uart

import (
	"fmt"
	"os"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// FakeEndpoint is the test-side handle to a fake Transport: writes to it
// arrive as bytes the Transport receives, and bytes the Transport sends can
// be read back from it. It stands in for the physical HM-11 module.
type FakeEndpoint struct {
	master *os.File
}

// Feed writes p to the fake module side so the Transport under test
// receives it as if the HM-11 had sent it.
func (e *FakeEndpoint) Feed(p []byte) (int, error) {
	return e.master.Write(p)
}

// ReadSent blocks (up to a short deadline) for bytes the Transport under
// test has sent, as the HM-11 would have received them.
func (e *FakeEndpoint) ReadSent(buf []byte, timeout time.Duration) (int, error) {
	if err := e.master.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, err := e.master.Read(buf)
	_ = e.master.SetReadDeadline(time.Time{})
	return n, err
}

func (e *FakeEndpoint) Close() error {
	return e.master.Close()
}

// NewFake returns a Transport backed by a pty pair instead of a real serial
// device, plus the FakeEndpoint tests drive the simulated module through.
// Grounded on internal/ptyio/ptyio.go's createPTY: open a pty, put the
// slave side into raw mode so line-discipline processing never mangles
// protocol bytes the way a cooked tty would.
func NewFake(opts SerialOptions) (Transport, *FakeEndpoint, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("uart: open pty: %w", err)
	}
	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, nil, fmt.Errorf("uart: raw mode: %w", err)
	}
	if err := unix.SetNonblock(int(slave.Fd()), true); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, nil, fmt.Errorf("uart: set nonblocking: %w", err)
	}

	recvCap := opts.RecvBufferCap
	if recvCap <= 0 {
		recvCap = DefaultRecvBufferCap
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	tr := newFdTransport(slave, recvCap, opts.PollTimeoutMs, logger, "uart-fake")
	return tr, &FakeEndpoint{master: master}, nil
}
