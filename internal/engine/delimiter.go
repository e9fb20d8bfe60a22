package engine

import (
	"context"
	"fmt"
)

// Delimiter-framed responses are bracketed by this many '*' bytes on each
// side (spec.md §4.1).
const bracketLen = 56

// Per-record unit lengths used only to size the accumulating buffer's
// initial capacity (unitLen+1); later growth is left to append. The records
// themselves are variable-length ASCII.
const (
	serviceUnitLen        = 26
	characteristicUnitLen = 36
)

// maxEnumBufferLen bounds the accumulating output against a module that
// never sends the closing bracket (or sends a malformed one without CR-LF
// framing), so a wedged link can't grow the buffer without limit.
const maxEnumBufferLen = 4096

// probe runs the delimiter-framed parse (spec.md §4.1) and stashes the
// joined record string for the paired *Fetch. It returns effective_length
// + 1, matching the probe/fetch size-plus-one convention carried over from
// the original interface.
func (e *Engine) probe(ctx context.Context, kind CommandKind, unitLen int) (int, error) {
	for i := 0; i < bracketLen; i++ {
		if _, err := e.tr.RecvByte(ctx); err != nil {
			return 0, transportErr(kind, err)
		}
	}

	out := make([]byte, 0, unitLen+1)
	for {
		b, err := e.tr.RecvByte(ctx)
		if err != nil {
			return 0, transportErr(kind, err)
		}
		if b == '\r' {
			if _, err := e.tr.RecvByte(ctx); err != nil { // discard expected '\n'
				return 0, transportErr(kind, err)
			}
			c, err := e.tr.RecvByte(ctx)
			if err != nil {
				return 0, transportErr(kind, err)
			}
			if c == '*' {
				break
			}
			// The separator is suppressed only when it would precede the
			// very first record (an empty accumulator so far); every
			// subsequent record boundary gets a ",".
			if len(out) > 0 {
				out = append(out, ',')
			}
			out = append(out, c)
			if len(out) > maxEnumBufferLen {
				return 0, resourceErr(kind, fmt.Errorf("enumeration buffer exceeded %d bytes without a closing bracket", maxEnumBufferLen))
			}
			continue
		}
		out = append(out, b)

		if len(out) > maxEnumBufferLen {
			return 0, resourceErr(kind, fmt.Errorf("enumeration buffer exceeded %d bytes without a closing bracket", maxEnumBufferLen))
		}
	}

	for i := 0; i < bracketLen-1; i++ {
		if _, err := e.tr.RecvByte(ctx); err != nil {
			return 0, transportErr(kind, err)
		}
	}

	e.enumMu.Lock()
	defer e.enumMu.Unlock()
	switch kind {
	case ServiceProbe:
		e.serviceBuf = out
	case CharacteristicProbe:
		e.characterBuf = out
	}
	return len(out) + 1, nil
}

// fetch copies the stashed probe buffer into a caller-sized slice. arg
// carries the caller's requested buffer length as a decimal string (the
// Command Surface is the only caller and passes it directly); it must
// equal effective_length + 1 exactly, matching the size-plus-one
// convention's strict-buffer-size contract.
func (e *Engine) fetch(kind CommandKind, dstLen string) ([]byte, error) {
	e.enumMu.Lock()
	defer e.enumMu.Unlock()

	var pending *[]byte
	switch kind {
	case ServiceFetch:
		pending = &e.serviceBuf
	case CharacteristicFetch:
		pending = &e.characterBuf
	default:
		return nil, invalidStateErr(kind, "unknown fetch command")
	}
	if *pending == nil {
		return nil, invalidStateErr(kind, "fetch without prior probe")
	}

	wantLen, err := parseBufLen(dstLen)
	if err != nil {
		return nil, invalidStateErr(kind, "invalid buffer length argument")
	}
	if wantLen != len(*pending)+1 {
		return nil, invalidStateErr(kind, "fetch buffer length must equal probe length")
	}

	out := make([]byte, len(*pending))
	copy(out, *pending)
	*pending = nil
	return out, nil
}

func (e *Engine) readLatest() (byte, error) {
	e.mu.Lock()
	src := e.sample
	e.mu.Unlock()
	if src == nil {
		return 0, invalidStateErr(ReadLatestNotified, "no sample source configured")
	}
	b, ok := src()
	if !ok {
		return 0, invalidStateErr(ReadLatestNotified, "no sample yet")
	}
	return b, nil
}

func parseBufLen(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, invalidStateErr(ServiceFetch, "empty buffer length")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, invalidStateErr(ServiceFetch, "non-numeric buffer length")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
