// ABOUTME: Session pairs one launch spec with a live subprocess and protocol client
// ABOUTME: Connect performs the capability handshake and pulls the tool list once

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Session is the live runtime pairing of a launch spec with its subprocess.
// Exactly one Session exists per connected alias; the pool owns that invariant.
type Session struct {
	alias     string
	transport *stdioTransport
	logger    *slog.Logger

	serverInfo ServerInfo
	tools      []*Tool
}

// Connect spawns the provider, performs the handshake, and pulls the tool
// list. Every successful Connect must be paired with exactly one Close.
func Connect(ctx context.Context, alias string, spec LaunchSpec, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", alias)

	t := newStdioTransport(alias, spec, logger)
	if err := t.connect(ctx); err != nil {
		var ce *ConnectError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &ConnectError{Kind: ConnectSpawn, Err: err}
	}

	s := &Session{alias: alias, transport: t, logger: logger}
	if err := s.handshake(ctx); err != nil {
		t.close()
		return nil, err
	}
	if err := s.pullTools(ctx); err != nil {
		t.close()
		return nil, err
	}

	logger.Info("provider connected",
		"name", s.serverInfo.Name,
		"version", s.serverInfo.Version,
		"tools", len(s.tools))
	return s, nil
}

func (s *Session) handshake(ctx context.Context) error {
	result, err := s.transport.call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "toolmux",
			"version": "1.0.0",
		},
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return &ConnectError{Kind: ConnectHandshakeTimeout, Err: err}
		}
		return &ConnectError{Kind: ConnectSpawn, Err: fmt.Errorf("initialize: %w", err)}
	}

	var init InitializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		return &ConnectError{Kind: ConnectProtocolMismatch, Err: fmt.Errorf("parse initialize result: %w", err)}
	}
	if init.ProtocolVersion != ProtocolVersion {
		return &ConnectError{
			Kind: ConnectProtocolMismatch,
			Err:  fmt.Errorf("provider speaks %q, client speaks %q", init.ProtocolVersion, ProtocolVersion),
		}
	}
	s.serverInfo = init.ServerInfo

	if err := s.transport.notify("notifications/initialized", nil); err != nil {
		s.logger.Warn("initialized notification failed", "error", err)
	}
	return nil
}

func (s *Session) pullTools(ctx context.Context) error {
	result, err := s.transport.call(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	var list ListToolsResult
	if err := json.Unmarshal(result, &list); err != nil {
		return fmt.Errorf("parse tools/list result: %w", err)
	}
	s.tools = list.Tools
	return nil
}

// Alias returns the alias this session was connected under.
func (s *Session) Alias() string { return s.alias }

// ServerInfo returns the provider's self-reported identity.
func (s *Session) ServerInfo() ServerInfo { return s.serverInfo }

// ListTools returns the tool list captured at connect time. Idempotent;
// catalog changes require a reconnect, which replaces the registry's view
// wholesale.
func (s *Session) ListTools() []*Tool {
	return s.tools
}

// Invoke calls one tool. Errors are ErrTimeout, *RemoteError, or
// ErrTransportClosed; the caller decides whether a reconnect is warranted.
func (s *Session) Invoke(ctx context.Context, tool string, args map[string]any) (*Result, error) {
	params := CallToolParams{Name: tool}
	if args != nil {
		argsJSON, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
		params.Arguments = argsJSON
	}

	raw, err := s.transport.call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}
	return &result, nil
}

// Alive reports whether the transport has not yet broken. A dead session
// must not be reused.
func (s *Session) Alive() bool {
	return s.transport.alive()
}

// Close tears down the subprocess. Safe on all exit paths, including after
// abnormal subprocess termination.
func (s *Session) Close() error {
	return s.transport.close()
}
