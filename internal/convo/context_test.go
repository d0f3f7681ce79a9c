// ABOUTME: Conversation context tests: ring eviction, per-user
// ABOUTME: isolation, and symbol recall from past turns.

package convo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendEvictsOldest(t *testing.T) {
	c := New(3)
	for i := 1; i <= 5; i++ {
		c.Append(Turn{UserID: "u1", Input: fmt.Sprintf("message %d", i), Timestamp: time.Now()})
	}

	turns := c.Recent("u1", 10)
	require.Len(t, turns, 3)
	assert.Equal(t, "message 3", turns[0].Input)
	assert.Equal(t, "message 5", turns[2].Input)
}

func TestUsersAreIsolated(t *testing.T) {
	c := New(5)
	c.Append(Turn{UserID: "u1", Input: "u1 says BTC"})
	c.Append(Turn{UserID: "u2", Input: "u2 says ETH"})

	require.Len(t, c.Recent("u1", 10), 1)
	require.Len(t, c.Recent("u2", 10), 1)
	assert.Empty(t, c.Recent("u3", 10))
	assert.Equal(t, "ETH", c.LastSymbol("u2"))
}

func TestRecentLimitsCount(t *testing.T) {
	c := New(5)
	for i := 0; i < 5; i++ {
		c.Append(Turn{UserID: "u1", Input: fmt.Sprintf("m%d", i)})
	}
	turns := c.Recent("u1", 2)
	require.Len(t, turns, 2)
	assert.Equal(t, "m3", turns[0].Input)
	assert.Equal(t, "m4", turns[1].Input)
}

func TestLastSymbolScansBackwards(t *testing.T) {
	c := New(5)
	c.Append(Turn{UserID: "u1", Input: "what about BTC today"})
	c.Append(Turn{UserID: "u1", Input: "now check ETH/USDT please"})
	c.Append(Turn{UserID: "u1", Input: "thanks"})

	assert.Equal(t, "ETH/USDT", c.LastSymbol("u1"))
}

func TestLastSymbolIgnoresCommonWords(t *testing.T) {
	c := New(5)
	c.Append(Turn{UserID: "u1", Input: "WHAT IS THE PRICE NOW"})
	assert.Equal(t, "", c.LastSymbol("u1"))
}

func TestLastSymbolEmptyHistory(t *testing.T) {
	c := New(5)
	assert.Equal(t, "", c.LastSymbol("nobody"))
}
