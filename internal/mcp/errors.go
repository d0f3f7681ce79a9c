// ABOUTME: Error taxonomy for transport sessions
// ABOUTME: Keeps TransportClosed distinct from RemoteError so callers can decide to reconnect

package mcp

import (
	"errors"
	"fmt"
)

// ErrTransportClosed means the subprocess pipe broke or hit end-of-stream.
// A session that ever returned it is dead and must not be reused.
var ErrTransportClosed = errors.New("transport closed")

// ErrTimeout means a single call exceeded its deadline. The session stays
// usable; the pending call is abandoned.
var ErrTimeout = errors.New("call timed out")

// ConnectKind classifies why a connect attempt failed.
type ConnectKind string

const (
	ConnectSpawn            ConnectKind = "spawn-failure"
	ConnectHandshakeTimeout ConnectKind = "handshake-timeout"
	ConnectProtocolMismatch ConnectKind = "protocol-mismatch"
)

// ConnectError is fatal for one connect attempt.
type ConnectError struct {
	Kind ConnectKind
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// RemoteError is the provider's own semantic error for a call. Never retried.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}
