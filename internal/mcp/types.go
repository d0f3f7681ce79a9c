// ABOUTME: Wire types for the JSON-RPC 2.0 framing and tool-provider methods
// ABOUTME: Covers initialize handshake, tools/list, and tools/call payloads

package mcp

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is the handshake version this client speaks.
const ProtocolVersion = "2024-11-05"

// LaunchSpec describes how to start a tool-provider subprocess.
type LaunchSpec struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args" json:"args,omitempty"`
	WorkDir string            `yaml:"workdir" json:"workdir,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`

	// Timeout bounds the handshake and each individual call.
	// Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"-" json:"-"`
}

// DefaultTimeout bounds a single request/response round trip.
const DefaultTimeout = 30 * time.Second

// Tool describes one callable operation exposed by a provider.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Result is the outcome of a successful tools/call round trip.
type Result struct {
	Content []ResultContent `json:"content"`
	IsError bool            `json:"isError,omitempty"`
}

// ResultContent is one piece of content in a tool result.
type ResultContent struct {
	Type     string `json:"type"` // text | image | resource
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Text joins the textual content pieces of a result.
func (r *Result) Text() string {
	var out string
	for _, c := range r.Content {
		if c.Type != "text" || c.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += c.Text
	}
	return out
}

// ServerInfo identifies the provider on the far side of the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the provider's half of the capability handshake.
type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// ListToolsResult is the payload of a tools/list response.
type ListToolsResult struct {
	Tools []*Tool `json:"tools"`
}

// CallToolParams is the payload of a tools/call request.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JSON-RPC 2.0 envelope types.

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}
