// ABOUTME: Tests for the routing chain: explicit commands, playback
// ABOUTME: shortcuts, pattern rules, intent fallback, and repair bounds.

package router

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolmux/internal/convo"
	"github.com/2389/toolmux/internal/music"
)

func newTestRouter(t *testing.T) (*Router, *convo.Context) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := convo.New(5)
	player := music.New([]string{"midnight city", "blue monday"}, logger)
	r, err := NewRouter(DefaultRules("jarvis"), nil, ctx, player, logger)
	require.NoError(t, err)
	return r, ctx
}

func TestExplicitPriceCommand(t *testing.T) {
	r, _ := newTestRouter(t)

	dec := r.Route(Request{UserID: "u1", Text: "/price BTC"})
	require.Equal(t, KindRouted, dec.Kind)
	assert.Equal(t, "trading", dec.Routed.Alias)
	assert.Equal(t, "get_price", dec.Routed.Tool)
	assert.Equal(t, "BTC/USD", dec.Routed.Args["symbol"])
	assert.Equal(t, StrategyCommand, dec.Routed.Strategy)
}

func TestExplicitPairPassesThrough(t *testing.T) {
	r, _ := newTestRouter(t)

	dec := r.Route(Request{UserID: "u1", Text: "/price ETH/USDT"})
	require.Equal(t, KindRouted, dec.Kind)
	assert.Equal(t, "ETH/USDT", dec.Routed.Args["symbol"])
}

func TestPriceWithoutSymbolReprompts(t *testing.T) {
	r, _ := newTestRouter(t)

	dec := r.Route(Request{UserID: "u1", Text: "/price"})
	require.Equal(t, KindReprompt, dec.Kind)
	assert.Contains(t, dec.Reply, "symbol")
}

func TestPriceFillsSymbolFromContext(t *testing.T) {
	r, ctx := newTestRouter(t)
	ctx.Append(convo.Turn{
		UserID:    "u1",
		Input:     "what about SOL/USD today",
		Timestamp: time.Now(),
	})

	dec := r.Route(Request{UserID: "u1", Text: "/price"})
	require.Equal(t, KindRouted, dec.Kind)
	assert.Equal(t, "SOL/USD", dec.Routed.Args["symbol"])
}

func TestOHLCVWithTimeframe(t *testing.T) {
	r, _ := newTestRouter(t)

	dec := r.Route(Request{UserID: "u1", Text: "/ohlcv btc 1H"})
	require.Equal(t, KindRouted, dec.Kind)
	assert.Equal(t, "get_ohlcv", dec.Routed.Tool)
	assert.Equal(t, "BTC/USD", dec.Routed.Args["symbol"])
	assert.Equal(t, "1h", dec.Routed.Args["timeframe"])
}

func TestLocalShortcutNeverRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	dec := r.Route(Request{UserID: "u1", Text: "/pause"})
	require.Equal(t, KindLocal, dec.Kind)
	assert.Nil(t, dec.Routed)
	assert.NotEmpty(t, dec.Reply)
}

func TestPatternRouteForNaturalLanguagePrice(t *testing.T) {
	r, _ := newTestRouter(t)

	dec := r.Route(Request{UserID: "u1", Text: "what is the price of bitcoin"})
	require.Equal(t, KindRouted, dec.Kind)
	assert.Equal(t, "trading", dec.Routed.Alias)
	assert.Equal(t, "BTC/USD", dec.Routed.Args["symbol"])
	assert.Equal(t, StrategyPattern, dec.Routed.Strategy)
}

func TestIntentFallsThroughToChat(t *testing.T) {
	r, _ := newTestRouter(t)

	dec := r.Route(Request{UserID: "u1", Text: "good morning everyone"})
	require.Equal(t, KindRouted, dec.Kind)
	assert.Equal(t, "jarvis", dec.Routed.Alias)
	assert.Equal(t, "chat", dec.Routed.Tool)
	assert.Equal(t, "good morning everyone", dec.Routed.Args["message"])
	assert.InDelta(t, 0.3, dec.Routed.Confidence, 0.001)
}

func TestRoutingIsDeterministic(t *testing.T) {
	r, _ := newTestRouter(t)

	req := Request{UserID: "u1", Text: "latest solana news headlines"}
	first := r.Route(req)
	second := r.Route(req)
	require.Equal(t, KindRouted, first.Kind)
	assert.Equal(t, first.Routed.Alias, second.Routed.Alias)
	assert.Equal(t, first.Routed.Tool, second.Routed.Tool)
	assert.Equal(t, first.Routed.Args, second.Routed.Args)
}

func TestRepairFiresOnceForBadResult(t *testing.T) {
	r, _ := newTestRouter(t)

	req := Request{UserID: "u1", Text: "/price OBSCURECOIN"}
	original := &RoutedCommand{
		Alias: "trading", Tool: "get_price",
		Args: map[string]any{"symbol": "OBSCURECOIN/USD"}, Strategy: StrategyCommand,
	}

	repaired := r.Repair(req, original, "Error: unknown symbol")
	require.NotNil(t, repaired)
	assert.Equal(t, "search", repaired.Alias)
	assert.Equal(t, StrategyRepair, repaired.Strategy)

	// A repaired route never repairs again.
	assert.Nil(t, r.Repair(req, repaired, "no results"))
}

func TestRepairSkipsGoodResults(t *testing.T) {
	r, _ := newTestRouter(t)

	original := &RoutedCommand{Alias: "trading", Tool: "get_price", Strategy: StrategyCommand}
	assert.Nil(t, r.Repair(Request{Text: "/price BTC"}, original, "BTC/USD: 97,412.55"))
}

func TestRepairSkipsChatRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	original := &RoutedCommand{Alias: "jarvis", Tool: "chat", Strategy: StrategyIntent}
	assert.Nil(t, r.Repair(Request{Text: "hello"}, original, ""))
}

func TestResultLooksBad(t *testing.T) {
	assert.True(t, ResultLooksBad(""))
	assert.True(t, ResultLooksBad("  \n "))
	assert.True(t, ResultLooksBad("Error: upstream exploded"))
	assert.True(t, ResultLooksBad("No results found for that query"))
	assert.False(t, ResultLooksBad("BTC/USD is trading at 97,412.55"))
}
