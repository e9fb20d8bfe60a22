// Package engine implements the AT command protocol engine: request
// framing, bounded response collection, response classification, and the
// delimiter-framed bulk-response parser with its probe/fetch split.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/hrbridge/internal/uart"
)

// SampleSource is consulted by ReadLatestNotified, which never touches the
// transport — it reads the Broadcaster's sample slot instead.
type SampleSource func() (byte, bool)

// Engine transforms typed Commands into wire bytes and classifies the
// reply. It owns exclusive access to the Transport: only one Do call (or
// the notification scavenger's CollectBounded, driven through the same
// mutex via Lock/Unlock below) may be in flight at a time.
type Engine struct {
	logger *logrus.Logger
	tr     uart.Transport

	mu sync.Mutex

	sample SampleSource

	// perByteTimeout is spec.md §4.1's 1000ms per-byte bounded-wait
	// timeout. It is a protocol constant in production; tests override it
	// via SetPerByteTimeoutForTest to avoid waiting out real timeouts
	// against a fake transport that never sends trailing pad bytes.
	perByteTimeout time.Duration

	enumMu       sync.Mutex
	serviceBuf   []byte
	characterBuf []byte
}

// New builds an Engine over tr. sample may be nil until the Broadcaster is
// wired up; ReadLatestNotified fails with InvalidState until then.
func New(tr uart.Transport, sample SampleSource, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{tr: tr, sample: sample, logger: logger, perByteTimeout: DefaultPerByteTimeout}
}

// SetPerByteTimeoutForTest overrides the bounded-wait per-byte timeout.
// Production code never calls this; it exists so tests against a fake
// transport aren't forced to wait out the real 1000ms protocol timeout on
// every bounded-extension read.
func (e *Engine) SetPerByteTimeoutForTest(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.perByteTimeout = d
}

// SetSampleSource wires the Broadcaster's sample slot in after construction
// (the Supervisor builds the Engine before the Broadcaster exists).
func (e *Engine) SetSampleSource(src SampleSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sample = src
}

// Lock/Unlock expose the Engine's transport-exclusivity mutex so the
// notification scavenger — the other logical requester spec.md §3 names —
// can serialize its drain against command exchanges without the Engine
// needing to know anything about scavenging.
func (e *Engine) Lock()   { e.mu.Lock() }
func (e *Engine) Unlock() { e.mu.Unlock() }

// Transport exposes the underlying Transport for the scavenger's drain,
// which must run under Lock/Unlock above.
func (e *Engine) Transport() uart.Transport { return e.tr }

// Do executes a single command/response exchange (or, for ReadLatestNotified,
// a non-wire sample read) and returns a kind-specific result as `any`:
//
//	Echo                -> EchoResult
//	ConnectMac           -> ConnectResult
//	Passive/Reset/SetRole/NotifyOn/NotifyOff/SetName/MacRead/MacWrite/
//	  Discover/ConnectLast/Sleep -> nil (success is the absence of error;
//	  spec.md §1 treats their exact response framing as peripheral)
//	ServiceProbe/CharacteristicProbe -> int (effective_length + 1)
//	ServiceFetch/CharacteristicFetch -> []byte (exactly effective_length bytes)
//	ReadLatestNotified   -> byte
func (e *Engine) Do(ctx context.Context, kind CommandKind, arg string) (any, error) {
	switch kind {
	case ServiceFetch:
		return e.fetch(kind, arg)
	case CharacteristicFetch:
		return e.fetch(kind, arg)
	case ReadLatestNotified:
		return e.readLatest()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	req, err := buildRequest(kind, arg)
	if err != nil {
		return nil, err
	}
	if err := e.tr.Send(req); err != nil {
		return nil, transportErr(kind, err)
	}

	switch kind {
	case Echo:
		window, err := CollectBoundedMin(ctx, e.tr, 2, 9, e.perByteTimeout)
		if err != nil {
			return nil, transportErr(kind, err)
		}
		res, cerr := classifyEcho(window)
		return res, cerr
	case ConnectMac:
		window, err := CollectBoundedMin(ctx, e.tr, 7, 10, e.perByteTimeout)
		if err != nil {
			return nil, transportErr(kind, err)
		}
		res, cerr := classifyConnect(window)
		return res, cerr
	case Passive:
		window, err := CollectFixed(ctx, e.tr, 8)
		if err != nil {
			return nil, transportErr(kind, err)
		}
		return nil, classifyPassive(window)
	case Reset:
		window, err := CollectFixed(ctx, e.tr, 8)
		if err != nil {
			return nil, transportErr(kind, err)
		}
		return nil, classifyReset(window)
	case SetRole:
		window, err := CollectFixed(ctx, e.tr, 8)
		if err != nil {
			return nil, transportErr(kind, err)
		}
		return nil, classifySetRole(window, arg[0])
	case NotifyOn, NotifyOff:
		window, err := CollectFixed(ctx, e.tr, 12)
		if err != nil {
			return nil, transportErr(kind, err)
		}
		return nil, classifyNotify(kind, window)
	case ServiceProbe:
		return e.probe(ctx, kind, serviceUnitLen)
	case CharacteristicProbe:
		return e.probe(ctx, kind, characteristicUnitLen)
	case MacRead, MacWrite, ConnectLast, Discover, SetName, Sleep:
		// No documented classifier in spec.md §4.1's table; these commands
		// succeed as soon as the request is transmitted (spec.md §1 treats
		// their orchestration as peripheral). Whatever the module sends
		// back is left unread in the transport's receive buffer; neither
		// the Engine nor the Command Surface drains it.
		return nil, nil
	default:
		return nil, invalidStateErr(kind, "unknown command")
	}
}
