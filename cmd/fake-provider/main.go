// ABOUTME: Minimal fake tool provider for E2E testing, speaking JSON-RPC over stdio.
// ABOUTME: Usage: fake-provider [-name "Fake Provider"] [-delay 0s]

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

var tools = []map[string]any{
	{
		"name":        "get_price",
		"description": "Current price for a trading pair",
		"inputSchema": map[string]any{
			"type":       "object",
			"properties": map[string]any{"symbol": map[string]any{"type": "string"}},
			"required":   []string{"symbol"},
		},
	},
	{
		"name":        "web_search",
		"description": "Search the web",
		"inputSchema": map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
	},
	{
		"name":        "chat",
		"description": "Free-form conversation",
		"inputSchema": map[string]any{
			"type":       "object",
			"properties": map[string]any{"message": map[string]any{"type": "string"}},
			"required":   []string{"message"},
		},
	},
	{
		"name":        "echo",
		"description": "Echo the arguments back",
		"inputSchema": map[string]any{"type": "object"},
	},
}

func main() {
	name := flag.String("name", "Fake Provider", "provider display name")
	delay := flag.Duration("delay", 0, "artificial delay before every reply")
	flag.Parse()

	log.SetOutput(os.Stderr)
	log.SetPrefix("fake-provider: ")

	out := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("bad frame: %v", err)
			continue
		}
		if req.ID == nil {
			// Notification, nothing to answer.
			continue
		}
		if *delay > 0 {
			time.Sleep(*delay)
		}
		if err := out.Encode(handle(&req, *name)); err != nil {
			log.Fatalf("writing response: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("reading stdin: %v", err)
	}
}

func handle(req *request, name string) *response {
	resp := &response{JSONRPC: "2.0", ID: *req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": name, "version": "dev"},
		}
	case "tools/list":
		resp.Result = map[string]any{"tools": tools}
	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &rpcError{Code: -32602, Message: "invalid params"}
			return resp
		}
		text, err := callTool(params)
		if err != nil {
			resp.Error = err
			return resp
		}
		resp.Result = map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		}
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}
	return resp
}

func callTool(params callParams) (string, *rpcError) {
	switch params.Name {
	case "get_price":
		symbol, _ := params.Arguments["symbol"].(string)
		if symbol == "" {
			return "", &rpcError{Code: -32602, Message: "symbol is required"}
		}
		// Deterministic fake price so tests can assert on it.
		price := 1000 + len(symbol)*137
		return fmt.Sprintf(`{"symbol": %q, "price": %d.00, "source": "fake"}`, symbol, price), nil
	case "web_search":
		query, _ := params.Arguments["query"].(string)
		return fmt.Sprintf("Results for %q:\n1. Example result one\n2. Example result two", query), nil
	case "chat":
		message, _ := params.Arguments["message"].(string)
		return "You said: " + message, nil
	case "echo":
		parts := make([]string, 0, len(params.Arguments))
		for k, v := range params.Arguments {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		return strings.Join(parts, " "), nil
	default:
		return "", &rpcError{Code: -32601, Message: "unknown tool: " + params.Name}
	}
}
