package engine

import (
	"context"
	"time"

	"github.com/srg/hrbridge/internal/uart"
)

// DefaultPerByteTimeout is the per-byte timeout spec.md §4.1 fixes for both
// bounded-wait usages: the echo/connect bounded extension and the
// notification scavenger's drain.
const DefaultPerByteTimeout = 1000 * time.Millisecond

// CollectFixed repeatedly calls RecvByte until n bytes accumulate. This is
// spec.md §4.1's "fixed-length blocking" primitive.
func CollectFixed(ctx context.Context, tr uart.Transport, n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		b, err := tr.RecvByte(ctx)
		if err != nil {
			return buf, err
		}
		buf = append(buf, b)
	}
	return buf, nil
}

// CollectBounded calls RecvByteTimeout in a loop, stopping as soon as a
// timeout occurs (returning what was gathered so far) or max bytes have
// accumulated. This is spec.md §4.1's "bounded wait" primitive, reused
// verbatim by the notification scavenger's 512-byte drain.
func CollectBounded(ctx context.Context, tr uart.Transport, max int, perByteTimeout time.Duration) ([]byte, error) {
	buf := make([]byte, 0, max)
	for len(buf) < max {
		b, ok, err := tr.RecvByteTimeout(ctx, perByteTimeout)
		if err != nil {
			return buf, err
		}
		if !ok {
			return buf, nil
		}
		buf = append(buf, b)
	}
	return buf, nil
}

// CollectBoundedMin collects an unconditional min-byte prefix via
// CollectFixed, then extends up to max bytes via CollectBounded. This is
// spec.md §4.1 usage (a): "an unconditional fixed-length prefix followed by
// a bounded extension", used by Echo and ConnectMac.
func CollectBoundedMin(ctx context.Context, tr uart.Transport, min, max int, perByteTimeout time.Duration) ([]byte, error) {
	prefix, err := CollectFixed(ctx, tr, min)
	if err != nil {
		return prefix, err
	}
	if max <= min {
		return prefix, nil
	}
	rest, err := CollectBounded(ctx, tr, max-min, perByteTimeout)
	out := append(prefix, rest...)
	if err != nil {
		return out, err
	}
	return out, nil
}
