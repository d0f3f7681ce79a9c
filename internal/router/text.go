// ABOUTME: Text helpers shared by the strategies: command splitting,
// ABOUTME: symbol extraction and normalization, search-query refinement.

package router

import (
	"regexp"
	"strings"
)

// splitCommand separates a leading /command or !command token from the
// remainder. head is empty when the text does not start with one.
func splitCommand(text string) (head, rest string) {
	if len(text) == 0 || (text[0] != '/' && text[0] != '!') {
		return "", text
	}
	if i := strings.IndexByte(text, ' '); i >= 0 {
		return strings.ToLower(text[:i]), strings.TrimSpace(text[i+1:])
	}
	return strings.ToLower(text), ""
}

func matchesPrefix(prefixes []string, head string) bool {
	for _, p := range prefixes {
		if head == p {
			return true
		}
	}
	return false
}

var (
	pairRe   = regexp.MustCompile(`\b[A-Za-z]{2,6}/[A-Za-z]{2,6}\b`)
	tickerRe = regexp.MustCompile(`\b[A-Z]{3,5}\b`)
)

// tickerStopWords are uppercase-looking words that are never symbols.
var tickerStopWords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "WHAT": true, "HOW": true,
	"WHEN": true, "WHY": true, "WHO": true, "WITH": true, "FROM": true,
	"THIS": true, "THAT": true, "PRICE": true, "GET": true, "SHOW": true,
	"CHECK": true, "FIND": true, "LOOK": true, "NOW": true, "USD": true,
}

// coinNames maps spelled-out coin names to their tickers so natural
// language like "price of bitcoin" still resolves.
var coinNames = map[string]string{
	"bitcoin": "BTC", "ethereum": "ETH", "solana": "SOL",
	"dogecoin": "DOGE", "cardano": "ADA", "ripple": "XRP",
	"litecoin": "LTC", "polkadot": "DOT",
}

// findSymbol pulls the most plausible trading symbol out of free text:
// an explicit BASE/QUOTE pair wins, then a spelled-out coin name, then
// a bare uppercase ticker.
func findSymbol(text string) string {
	if m := pairRe.FindString(text); m != "" {
		return m
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:")
		if t, ok := coinNames[w]; ok {
			return t
		}
	}
	for _, m := range tickerRe.FindAllString(text, -1) {
		if !tickerStopWords[m] {
			return m
		}
	}
	// A short lone token is taken at face value: "/price btc".
	fields := strings.Fields(text)
	if len(fields) == 1 && len(fields[0]) >= 2 && len(fields[0]) <= 6 {
		return fields[0]
	}
	return ""
}

// normalizeSymbol upper-cases and appends the default quote currency
// when the input is a bare base symbol.
func normalizeSymbol(sym, defaultQuote string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" {
		return ""
	}
	if !strings.Contains(sym, "/") {
		sym += "/" + defaultQuote
	}
	return sym
}

// refineQuery nudges vague search text toward a query that ranks and
// dates well without changing its meaning.
func refineQuery(q string) string {
	q = strings.TrimSpace(q)
	lower := strings.ToLower(q)
	switch {
	case strings.Contains(lower, "top ") || strings.Contains(lower, "best "):
		return q + " ranked list"
	case strings.Contains(lower, "news") || strings.Contains(lower, "latest") || strings.Contains(lower, "announcement"):
		return q + " recent"
	default:
		return q
	}
}
