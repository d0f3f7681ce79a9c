// ABOUTME: Bounded per-user conversation history for router disambiguation
// ABOUTME: Fixed-size ring per user id, oldest turn evicted first

package convo

import (
	"strings"
	"sync"
	"time"
)

// DefaultWindow is how many turns are kept per user.
const DefaultWindow = 5

// Turn is one completed request/response exchange. Turns are appended in
// completion order of their tasks, which can differ from send order when
// a user's messages are processed concurrently.
type Turn struct {
	UserID    string
	ChannelID string
	Input     string
	Tool      string // fully-qualified routed tool, "" for local/chat handling
	Summary   string
	Timestamp time.Time
}

// Context holds a bounded ring of recent turns per user. It exists only to
// feed heuristic disambiguation; it is not durable conversation state.
type Context struct {
	mu     sync.Mutex
	window int
	turns  map[string][]Turn
}

// New creates a context keeping window turns per user. Zero or negative
// window falls back to DefaultWindow.
func New(window int) *Context {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Context{
		window: window,
		turns:  make(map[string][]Turn),
	}
}

// Append records a completed turn, evicting the oldest past the window.
func (c *Context) Append(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := append(c.turns[turn.UserID], turn)
	if len(buf) > c.window {
		buf = buf[len(buf)-c.window:]
	}
	c.turns[turn.UserID] = buf
}

// Recent returns up to n most recent turns for a user, oldest first.
func (c *Context) Recent(userID string, n int) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.turns[userID]
	if n > 0 && len(buf) > n {
		buf = buf[len(buf)-n:]
	}
	out := make([]Turn, len(buf))
	copy(out, buf)
	return out
}

// LastSymbol scans backwards for the most recently mentioned market symbol
// (a BASE or BASE/QUOTE token in the input text) so follow-up questions
// like "and the price now?" can reuse it.
func (c *Context) LastSymbol(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.turns[userID]
	for i := len(buf) - 1; i >= 0; i-- {
		if sym := extractSymbol(buf[i].Input); sym != "" {
			return sym
		}
	}
	return ""
}

// commonWords are uppercase tokens that look like symbols but are not.
var commonWords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "WHAT": true, "HOW": true,
	"WHEN": true, "WHY": true, "WHO": true, "WITH": true, "FROM": true,
	"THIS": true, "THAT": true, "PRICE": true, "GET": true, "SHOW": true,
	"CHECK": true, "FIND": true, "LOOK": true, "NOW": true,
}

// extractSymbol picks the first token that looks like a market symbol.
func extractSymbol(text string) string {
	for _, field := range strings.Fields(text) {
		token := strings.Trim(field, ".,!?")
		if strings.Contains(token, "/") {
			base, quote, _ := strings.Cut(token, "/")
			if isSymbolToken(base) && isSymbolToken(quote) {
				return strings.ToUpper(token)
			}
			continue
		}
		if len(token) >= 3 && len(token) <= 5 && token == strings.ToUpper(token) &&
			isSymbolToken(token) && !commonWords[token] {
			return token
		}
	}
	return ""
}

func isSymbolToken(s string) bool {
	if len(s) < 2 || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			if r < 'a' || r > 'z' {
				return false
			}
		}
	}
	return true
}
