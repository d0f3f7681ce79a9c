// ABOUTME: Result formatting: an LLM polish pass with a hard timeout,
// ABOUTME: falling back to deterministic rule-based rendering on any failure.

package format

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultTimeout bounds the polish call; the fallback renderer answers
// instantly so a slow model never delays delivery past this.
const DefaultTimeout = 8 * time.Second

// maxFallbackLen caps rule-based output before delivery chunking.
const maxFallbackLen = 1800

const systemPrompt = `You format raw tool output for a chat channel.
Rewrite the data as a short, readable message. Keep every number and
fact exactly as given. No preamble, no markdown tables.`

// ChatCompleter is the slice of the OpenAI client the polisher uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Polisher renders tool results for delivery. A nil client skips the
// model entirely and always uses the rule-based renderer.
type Polisher struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func New(client ChatCompleter, model string, timeout time.Duration, logger *slog.Logger) *Polisher {
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Polisher{client: client, model: model, timeout: timeout, logger: logger}
}

// Format returns the polished rendering of raw, or the rule-based
// rendering when the model is unavailable, errors, times out, or
// returns nothing. Format never fails.
func (p *Polisher) Format(ctx context.Context, tool, raw string) string {
	if p.client == nil {
		return Fallback(tool, raw)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Tool %s returned:\n%s", tool, raw)},
		},
		Temperature: 0,
	})
	if err != nil {
		p.logger.Warn("polish call failed, using fallback renderer", "tool", tool, "error", err)
		return Fallback(tool, raw)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		p.logger.Warn("polish call returned nothing, using fallback renderer", "tool", tool)
		return Fallback(tool, raw)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// Fallback renders raw deterministically: JSON objects become sorted
// key/value lines, JSON arrays become bullets, anything else passes
// through trimmed. Output is capped at maxFallbackLen.
func Fallback(tool, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Sprintf("%s returned no data.", tool)
	}

	var rendered string
	switch trimmed[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			rendered = renderObject(obj)
		}
	case '[':
		var arr []any
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			rendered = renderArray(arr)
		}
	}
	if rendered == "" {
		rendered = trimmed
	}
	return truncate(rendered, maxFallbackLen)
}

func renderObject(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "**%s**: %s\n", prettifyKey(k), renderValue(obj[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderArray(arr []any) string {
	var b strings.Builder
	for _, v := range arr {
		fmt.Fprintf(&b, "• %s\n", renderValue(v))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; print integers without the
		// trailing .000000.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.4f", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case map[string]any, []any:
		compact, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(compact)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// prettifyKey turns snake_case keys into readable labels.
func prettifyKey(k string) string {
	return strings.ReplaceAll(k, "_", " ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	cut := s[:end]
	if i := strings.LastIndexByte(cut, '\n'); i > limit/2 {
		cut = cut[:i]
	}
	return cut + "\n…"
}
