package uart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeTransportRoundTrip(t *testing.T) {
	tr, ep, err := NewFake(SerialOptions{})
	require.NoError(t, err)
	defer tr.Close()
	defer ep.Close()

	_, err = ep.Feed([]byte("OK"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	b1, err := tr.RecvByte(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('O'), b1)

	b2, err := tr.RecvByte(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('K'), b2)
}

func TestFakeTransportRecvTimeout(t *testing.T) {
	tr, ep, err := NewFake(SerialOptions{})
	require.NoError(t, err)
	defer tr.Close()
	defer ep.Close()

	ctx := context.Background()
	_, ok, err := tr.RecvByteTimeout(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFakeTransportSend(t *testing.T) {
	tr, ep, err := NewFake(SerialOptions{})
	require.NoError(t, err)
	defer tr.Close()
	defer ep.Close()

	require.NoError(t, tr.Send([]byte("AT")))

	buf := make([]byte, 2)
	n, err := ep.ReadSent(buf, time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "AT", string(buf))
}

func TestFakeTransportFlush(t *testing.T) {
	tr, ep, err := NewFake(SerialOptions{})
	require.NoError(t, err)
	defer tr.Close()
	defer ep.Close()

	_, err = ep.Feed([]byte("garbage"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = tr.RecvByte(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFakeTransportCloseUnblocksRecvByte(t *testing.T) {
	tr, ep, err := NewFake(SerialOptions{})
	require.NoError(t, err)
	defer ep.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.RecvByte(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("RecvByte did not unblock after Close")
	}
}
