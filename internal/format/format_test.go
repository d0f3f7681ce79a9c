// ABOUTME: Formatter tests: fallback rendering rules and the polish
// ABOUTME: path's degradation on model errors and timeouts.

package format

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply string
	err   error
	delay time.Duration
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		}
	}
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatUsesModelReply(t *testing.T) {
	p := New(&fakeCompleter{reply: "BTC is at $97,412."}, "", 0, discard())
	out := p.Format(context.Background(), "get_price", `{"price": 97412}`)
	assert.Equal(t, "BTC is at $97,412.", out)
}

func TestFormatFallsBackOnModelError(t *testing.T) {
	p := New(&fakeCompleter{err: errors.New("rate limited")}, "", 0, discard())
	out := p.Format(context.Background(), "get_price", `{"price": 97412, "symbol": "BTC/USD"}`)
	assert.Contains(t, out, "**price**: 97412")
	assert.Contains(t, out, "**symbol**: BTC/USD")
}

func TestFormatFallsBackOnTimeout(t *testing.T) {
	p := New(&fakeCompleter{reply: "slow", delay: time.Second}, "", 20*time.Millisecond, discard())
	out := p.Format(context.Background(), "get_price", "raw text")
	assert.Equal(t, "raw text", out)
}

func TestFormatFallsBackOnEmptyReply(t *testing.T) {
	p := New(&fakeCompleter{reply: "   "}, "", 0, discard())
	out := p.Format(context.Background(), "get_price", "raw text")
	assert.Equal(t, "raw text", out)
}

func TestNilClientSkipsModel(t *testing.T) {
	p := New(nil, "", 0, discard())
	out := p.Format(context.Background(), "echo", "hello")
	assert.Equal(t, "hello", out)
}

func TestFallbackRendersObjectSorted(t *testing.T) {
	out := Fallback("get_price", `{"volume_24h": 123.5, "price": 97412, "symbol": "BTC/USD"}`)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "**price**: 97412", lines[0])
	assert.Equal(t, "**symbol**: BTC/USD", lines[1])
	assert.Equal(t, "**volume 24h**: 123.5000", lines[2])
}

func TestFallbackRendersArrayAsBullets(t *testing.T) {
	out := Fallback("web_search", `["first result", "second result"]`)
	assert.Equal(t, "• first result\n• second result", out)
}

func TestFallbackEmptyResult(t *testing.T) {
	out := Fallback("get_news", "   ")
	assert.Equal(t, "get_news returned no data.", out)
}

func TestFallbackTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("line of output\n", 500)
	out := Fallback("get_ohlcv", long)
	assert.LessOrEqual(t, len(out), maxFallbackLen+4)
	assert.True(t, strings.HasSuffix(out, "…"))
}

func TestFallbackPassesPlainTextThrough(t *testing.T) {
	out := Fallback("chat", "  just words  ")
	assert.Equal(t, "just words", out)
}

func TestTruncateCutsOnRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 50) // 100 bytes, no newlines
	out := truncate(s, 75)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "…"))
	assert.LessOrEqual(t, len(out), 75+len("\n…"))
}
