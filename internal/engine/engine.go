// ABOUTME: Execution engine: runs one routed command against its session
// ABOUTME: with a hard deadline and a bounded, single-reconnect retry.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/toolmux/internal/mcp"
	"github.com/2389/toolmux/internal/pool"
)

// ErrorKind classifies every failure the engine can surface. Callers
// switch on the kind, never on error strings.
type ErrorKind string

const (
	// KindTimeout: the deadline elapsed. Never retried.
	KindTimeout ErrorKind = "timeout"
	// KindRemote: the provider answered with an error. Never retried.
	KindRemote ErrorKind = "remote_error"
	// KindUnavailable: no session could serve the call, including after
	// the single reconnect attempt.
	KindUnavailable ErrorKind = "unavailable"
)

// ExecutionError is the engine's only error type.
type ExecutionError struct {
	Kind  ErrorKind
	Alias string
	Tool  string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s.%s: %v", e.Kind, e.Alias, e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// deadTimeouts is how many consecutive timeouts on one alias mark its
// session dead so the next call reconnects fresh.
const deadTimeouts = 3

// Engine executes routed commands against the session pool.
type Engine struct {
	pool    *pool.Pool
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	timeouts map[string]int
}

// New builds an engine over the pool. timeout <= 0 uses the transport
// default.
func New(p *pool.Pool, timeout time.Duration, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = mcp.DefaultTimeout
	}
	return &Engine{
		pool:     p,
		timeout:  timeout,
		logger:   logger,
		timeouts: make(map[string]int),
	}
}

// Execute runs one tool call. On a closed transport it marks the
// session dead and retries exactly once against a fresh connection;
// timeouts and remote errors are returned as-is, never retried.
func (e *Engine) Execute(ctx context.Context, alias, tool string, args map[string]any) (*mcp.Result, error) {
	requestID := uuid.NewString()
	start := time.Now()

	res, err := e.executeOnce(ctx, alias, tool, args)
	if err != nil && errors.Is(err, mcp.ErrTransportClosed) {
		e.logger.Warn("session transport closed, reconnecting once",
			"request_id", requestID, "alias", alias, "tool", tool)
		e.pool.MarkDead(alias)
		res, err = e.executeOnce(ctx, alias, tool, args)
		if err != nil && errors.Is(err, mcp.ErrTransportClosed) {
			err = &ExecutionError{Kind: KindUnavailable, Alias: alias, Tool: tool, Err: err}
		}
	}

	outcome := e.classify(alias, tool, &err)
	e.logger.Info("tool call finished",
		"request_id", requestID,
		"alias", alias,
		"tool", tool,
		"latency_ms", time.Since(start).Milliseconds(),
		"outcome", outcome)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) executeOnce(ctx context.Context, alias, tool string, args map[string]any) (*mcp.Result, error) {
	sess, err := e.pool.GetOrConnect(ctx, alias)
	if err != nil {
		return nil, &ExecutionError{Kind: KindUnavailable, Alias: alias, Tool: tool, Err: err}
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return sess.Invoke(callCtx, tool, args)
}

// classify wraps raw transport errors into ExecutionError, updates the
// consecutive-timeout counter, and returns the outcome label for the
// log line. err is rewritten in place.
func (e *Engine) classify(alias, tool string, err *error) string {
	if *err == nil {
		e.resetTimeouts(alias)
		return "success"
	}

	var execErr *ExecutionError
	if errors.As(*err, &execErr) {
		return string(execErr.Kind)
	}

	switch {
	// context.DeadlineExceeded covers the engine's own per-call deadline
	// firing inside Invoke before the transport's internal timer.
	case errors.Is(*err, mcp.ErrTimeout), errors.Is(*err, context.DeadlineExceeded):
		if e.bumpTimeouts(alias) >= deadTimeouts {
			e.logger.Warn("too many consecutive timeouts, marking session dead", "alias", alias)
			e.pool.MarkDead(alias)
			e.resetTimeouts(alias)
		}
		*err = &ExecutionError{Kind: KindTimeout, Alias: alias, Tool: tool, Err: *err}
		return string(KindTimeout)
	case errors.Is(*err, mcp.ErrTransportClosed):
		// Reached only when the retry path was skipped by a canceled ctx.
		*err = &ExecutionError{Kind: KindUnavailable, Alias: alias, Tool: tool, Err: *err}
		return string(KindUnavailable)
	}

	var remote *mcp.RemoteError
	if errors.As(*err, &remote) {
		e.resetTimeouts(alias)
		*err = &ExecutionError{Kind: KindRemote, Alias: alias, Tool: tool, Err: *err}
		return string(KindRemote)
	}

	*err = &ExecutionError{Kind: KindUnavailable, Alias: alias, Tool: tool, Err: *err}
	return string(KindUnavailable)
}

func (e *Engine) bumpTimeouts(alias string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeouts[alias]++
	return e.timeouts[alias]
}

func (e *Engine) resetTimeouts(alias string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.timeouts, alias)
}
