package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srg/hrbridge/internal/config"
	"github.com/srg/hrbridge/internal/engine"
	"github.com/srg/hrbridge/internal/uart"
)

// scriptedReply feeds b to ep whenever the engine sends a request, driving
// the fixed startup/shutdown orchestration (spec.md §4.5) one exchange at a
// time without needing a real HM-11 module.
func scriptedReply(t *testing.T, ep *uart.FakeEndpoint, replies ...[]byte) {
	t.Helper()
	go func() {
		for _, r := range replies {
			buf := make([]byte, 64)
			for {
				n, err := ep.ReadSent(buf, 2*time.Second)
				if n > 0 || err != nil {
					break
				}
			}
			_, _ = ep.Feed(r)
		}
	}()
}

func newTestSupervisor(t *testing.T) (*Supervisor, *uart.FakeEndpoint) {
	t.Helper()
	tr, ep, err := uart.NewFake(uart.SerialOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })

	s := New(tr, config.Default(), nil)
	s.eng.SetPerByteTimeoutForTest(20 * time.Millisecond)
	return s, ep
}

func TestStartupRunsOrchestrationScript(t *testing.T) {
	s, ep := newTestSupervisor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Echo, Reset, SetRole(Master), SetPassive, ConnectMac, NotifyOn, in order.
	scriptedReply(t, ep,
		[]byte("OK"),
		[]byte("OK+RESET"),
		[]byte("OK+Set:1"),
		[]byte("OK+Set:1"),
		[]byte("OK+CONN??"),
		append([]byte("OK+SEND-OK"), 0, 0),
	)

	require.NoError(t, s.startup(ctx))
}

func TestStartupFailsWhenPeerUnreachable(t *testing.T) {
	s, ep := newTestSupervisor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	scriptedReply(t, ep,
		[]byte("OK"),
		[]byte("OK+RESET"),
		[]byte("OK+Set:1"),
		[]byte("OK+Set:1"),
		[]byte("OK+CONNE??"),
	)

	err := s.startup(ctx)
	require.Error(t, err)
}

func TestShutdownRunsNotifyOffThenFinalEcho(t *testing.T) {
	s, ep := newTestSupervisor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	scriptedReply(t, ep,
		append([]byte("OK+SEND-OK"), 0, 0),
		[]byte("OK"),
	)

	s.shutdown(ctx)
	_, err := s.eng.Do(context.Background(), engine.Echo, "")
	require.Error(t, err) // transport closed by shutdown
}
