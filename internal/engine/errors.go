package engine

import "fmt"

// FailureKind is the closed taxonomy of exchange-level failures an Engine
// surfaces. It deliberately excludes client-gone and setup-failure, which
// belong to the broadcaster and supervisor respectively.
type FailureKind string

const (
	// TransportFailure covers send/recv errors other than interrupted-by-
	// signal; the triggering transport error is wrapped underneath.
	TransportFailure FailureKind = "transport_failure"
	// ProtocolMismatch covers byte counts or prefixes outside a
	// classifier's known variants. Never retried at this layer.
	ProtocolMismatch FailureKind = "protocol_mismatch"
	// InvalidState covers fetch-without-probe, wrong fetch buffer size,
	// unknown command, and argument length violations.
	InvalidState FailureKind = "invalid_state"
	// ResourceExhaustion covers allocation failure for response/enum
	// buffers.
	ResourceExhaustion FailureKind = "resource_exhaustion"
)

// Error is the Engine's single error type; errors.Is compares by Kind so
// callers can branch on failure category without caring about the
// underlying transport error's concrete type.
type Error struct {
	Kind FailureKind
	Cmd  CommandKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("engine: %s: %s", e.Cmd, e.Kind)
	}
	return fmt.Sprintf("engine: %s: %s: %s", e.Cmd, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &Error{Kind: ProtocolMismatch}) to match any
// Error of that Kind regardless of command or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Cmd != 0 && t.Cmd != e.Cmd {
		return false
	}
	return true
}

func transportErr(cmd CommandKind, err error) error {
	return &Error{Kind: TransportFailure, Cmd: cmd, Err: err}
}

func protocolErr(cmd CommandKind, window []byte) error {
	return &Error{Kind: ProtocolMismatch, Cmd: cmd, Msg: fmt.Sprintf("unrecognized response %q", window)}
}

func invalidStateErr(cmd CommandKind, msg string) error {
	return &Error{Kind: InvalidState, Cmd: cmd, Msg: msg}
}

func resourceErr(cmd CommandKind, err error) error {
	return &Error{Kind: ResourceExhaustion, Cmd: cmd, Err: err}
}

// Sentinel Kind-only values for errors.Is comparisons from callers.
var (
	ErrTransportFailure   = &Error{Kind: TransportFailure}
	ErrProtocolMismatch   = &Error{Kind: ProtocolMismatch}
	ErrInvalidState       = &Error{Kind: InvalidState}
	ErrResourceExhaustion = &Error{Kind: ResourceExhaustion}
)
