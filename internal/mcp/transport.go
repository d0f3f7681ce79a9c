// ABOUTME: Line-framed JSON-RPC transport over a subprocess's stdin/stdout
// ABOUTME: Correlates pipelined requests by id; maps pipe breakage to ErrTransportClosed

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// stdioTransport speaks line-framed JSON-RPC 2.0 with one subprocess.
// Calls may be pipelined: each request carries a unique id and the read
// loop routes responses back to the waiting caller.
type stdioTransport struct {
	spec   LaunchSpec
	logger *slog.Logger

	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Scanner
	stderr  io.ReadCloser
	writeMu sync.Mutex

	pending   map[int64]chan *jsonrpcResponse
	pendingMu sync.Mutex
	nextID    atomic.Int64

	closed   atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newStdioTransport(alias string, spec LaunchSpec, logger *slog.Logger) *stdioTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &stdioTransport{
		spec:     spec,
		logger:   logger.With("provider", alias, "transport", "stdio"),
		pending:  make(map[int64]chan *jsonrpcResponse),
		stopChan: make(chan struct{}),
	}
}

// connect spawns the subprocess and starts the read loop.
func (t *stdioTransport) connect(ctx context.Context) error {
	if t.spec.Command == "" {
		return &ConnectError{Kind: ConnectSpawn, Err: errors.New("command is required")}
	}

	t.process = exec.CommandContext(ctx, t.spec.Command, t.spec.Args...)
	t.process.Env = os.Environ()
	for k, v := range t.spec.Env {
		t.process.Env = append(t.process.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if t.spec.WorkDir != "" {
		t.process.Dir = t.spec.WorkDir
	}

	stdin, err := t.process.StdinPipe()
	if err != nil {
		return &ConnectError{Kind: ConnectSpawn, Err: fmt.Errorf("stdin pipe: %w", err)}
	}
	stdout, err := t.process.StdoutPipe()
	if err != nil {
		return &ConnectError{Kind: ConnectSpawn, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	t.stderr, _ = t.process.StderrPipe()

	if err := t.process.Start(); err != nil {
		return &ConnectError{Kind: ConnectSpawn, Err: err}
	}

	t.start(stdin, stdout)
	t.logger.Info("started provider process",
		"command", t.spec.Command,
		"pid", t.process.Process.Pid)

	if t.stderr != nil {
		t.wg.Add(1)
		go t.logStderr()
	}
	return nil
}

// start wires the pipes and launches the read loop. Split from connect so
// tests can drive frames through in-memory pipes without a subprocess.
func (t *stdioTransport) start(stdin io.WriteCloser, stdout io.Reader) {
	t.stdin = stdin
	t.stdout = bufio.NewScanner(stdout)
	t.stdout.Buffer(make([]byte, 1024*1024), 1024*1024)

	t.wg.Add(1)
	go t.readLoop()
}

// close tears the transport down. Safe to call more than once; every exit
// path of a session funnels through here exactly once per subprocess.
func (t *stdioTransport) close() error {
	t.closed.Store(true)
	t.stopOnce.Do(func() { close(t.stopChan) })

	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.process != nil && t.process.Process != nil {
		t.process.Process.Kill()
	}
	// Wait must not run until the pipe readers are done: it closes the
	// pipes out from under them otherwise. It also reaps the child.
	t.wg.Wait()
	if t.process != nil {
		t.process.Wait()
	}
	return nil
}

// call sends one request and waits for its response. Timeouts abandon the
// pending call without killing the process; a broken pipe or end-of-stream
// surfaces as ErrTransportClosed.
func (t *stdioTransport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	id := t.nextID.Add(1)
	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respChan := make(chan *jsonrpcResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	if err := t.write(req); err != nil {
		return nil, ErrTransportClosed
	}

	timeout := t.spec.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, &RemoteError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s after %v: %w", method, timeout, ErrTimeout)
	case <-ctx.Done():
		// A caller-imposed deadline is still a timeout; only a plain
		// cancellation passes through untyped.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", method, ErrTimeout)
		}
		return nil, ctx.Err()
	case <-t.stopChan:
		return nil, ErrTransportClosed
	}
}

// notify sends a request that expects no response.
func (t *stdioTransport) notify(method string, params any) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	notif := jsonrpcNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}
	if err := t.write(notif); err != nil {
		return ErrTransportClosed
	}
	return nil
}

func (t *stdioTransport) write(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.stdin.Write(append(data, '\n'))
	return err
}

func (t *stdioTransport) alive() bool {
	return !t.closed.Load()
}

// readLoop routes response frames to their pending callers until the
// stream ends. End-of-stream fails every in-flight call with a closed
// channel read via stopChan.
func (t *stdioTransport) readLoop() {
	defer t.wg.Done()
	defer func() {
		t.closed.Store(true)
		t.stopOnce.Do(func() { close(t.stopChan) })
	}()

	for t.stdout.Scan() {
		select {
		case <-t.stopChan:
			return
		default:
		}

		line := t.stdout.Bytes()
		if len(line) == 0 {
			continue
		}
		t.dispatch(line)
	}

	if err := t.stdout.Err(); err != nil {
		t.logger.Error("stdout read failed", "error", err)
	}
}

// dispatch hands one frame to its waiting caller. Frames without a known
// id (provider notifications, stray responses) are dropped with a debug log.
func (t *stdioTransport) dispatch(line []byte) {
	var resp jsonrpcResponse
	if err := json.Unmarshal(line, &resp); err != nil || resp.ID == nil {
		t.logger.Debug("ignoring unsolicited frame", "size", len(line))
		return
	}

	t.pendingMu.Lock()
	ch, ok := t.pending[*resp.ID]
	if ok {
		delete(t.pending, *resp.ID)
	}
	t.pendingMu.Unlock()

	if !ok {
		// Caller already timed out and abandoned this id.
		t.logger.Debug("dropping late response", "id", *resp.ID)
		return
	}
	ch <- &resp
}

func (t *stdioTransport) logStderr() {
	defer t.wg.Done()

	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		select {
		case <-t.stopChan:
			return
		default:
		}
		if line := scanner.Text(); line != "" {
			t.logger.Debug("provider stderr", "message", line)
		}
	}
}
