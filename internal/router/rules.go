// ABOUTME: The default rule table: explicit commands, playback shortcuts,
// ABOUTME: domain pattern regexes, and the intent scorer's keyword weights.

package router

// DefaultRules returns the stock routing table. defaultAlias names the
// provider that receives bare chat fallthrough.
func DefaultRules(defaultAlias string) RuleSet {
	return RuleSet{
		DefaultQuote: "USD",
		Commands: []CommandRule{
			{
				Prefixes:      []string{"/price", "!price"},
				Alias:         "trading",
				Tool:          "get_price",
				Extract:       ExtractSymbol,
				MissingPrompt: "Which symbol? Try `/price BTC` or `/price ETH/USDT`.",
			},
			{
				Prefixes:      []string{"/ohlcv", "!ohlcv", "/chart", "!chart"},
				Alias:         "trading",
				Tool:          "get_ohlcv",
				Extract:       ExtractSymbolTimeframe,
				MissingPrompt: "Which symbol? Try `/ohlcv BTC 1h`.",
			},
			{
				Prefixes: []string{"/balance", "!balance"},
				Alias:    "trading",
				Tool:     "get_balance",
				Extract:  ExtractNone,
			},
			{
				Prefixes: []string{"/portfolio", "!portfolio"},
				Alias:    "trading",
				Tool:     "get_portfolio",
				Extract:  ExtractNone,
			},
			{
				Prefixes:      []string{"/news", "!news"},
				Alias:         "search",
				Tool:          "web_search",
				Extract:       ExtractQuery,
				FixedArgs:     map[string]any{"category": "news"},
				MissingPrompt: "News about what? Try `/news bitcoin etf`.",
			},
			{
				Prefixes:      []string{"/search", "!search"},
				Alias:         "search",
				Tool:          "web_search",
				Extract:       ExtractQuery,
				MissingPrompt: "Search for what? Try `/search solana outage`.",
			},
			{
				Prefixes: []string{"/quests", "!quests"},
				Alias:    defaultAlias,
				Tool:     "list_quests",
				Extract:  ExtractNone,
			},
			{
				Prefixes: []string{"/chat", "!chat"},
				Alias:    defaultAlias,
				Tool:     "chat",
				Extract:  ExtractMessage,
			},
		},
		Local: []LocalRule{
			{Prefixes: []string{"/play", "!play"}, Action: LocalPlay},
			{Prefixes: []string{"/pause", "!pause"}, Action: LocalPause},
			{Prefixes: []string{"/resume", "!resume"}, Action: LocalResume},
			{Prefixes: []string{"/stop", "!stop"}, Action: LocalStop},
			{Prefixes: []string{"/skip", "!skip", "/next", "!next"}, Action: LocalSkip},
			{Prefixes: []string{"/queue", "!queue"}, Action: LocalQueue},
			{Prefixes: []string{"/add", "!add"}, Action: LocalEnqueue},
			{Prefixes: []string{"/clearqueue", "!clearqueue"}, Action: LocalClearQueue},
			{Prefixes: []string{"/remove", "!remove"}, Action: LocalRemove},
			{Prefixes: []string{"/np", "!np", "/nowplaying", "!nowplaying"}, Action: LocalNowPlaying},
			{Prefixes: []string{"/songs", "!songs"}, Action: LocalListSongs},
			{Prefixes: []string{"/findsong", "!findsong"}, Action: LocalSearchSongs},
			{Prefixes: []string{"/random", "!random", "/shuffle", "!shuffle"}, Action: LocalRandom},
		},
		Patterns: []PatternRule{
			{
				Domain: "trading",
				Patterns: []string{
					`(?i)\b(price|worth|value|cost)\b.*\b(of|for)\b`,
					`(?i)\bhow much\b.*\b(is|are|does)\b`,
					`(?i)\b[A-Z]{3,5}/[A-Z]{3,5}\b`,
				},
				Alias:      "trading",
				Tool:       "get_price",
				Extract:    ExtractSymbol,
				Confidence: 0.6,
			},
			{
				Domain: "news",
				Patterns: []string{
					`(?i)\b(news|headline|headlines|announcement|announced)\b`,
					`(?i)\bwhat('s| is) (happening|going on)\b`,
				},
				Alias:      "search",
				Tool:       "web_search",
				Extract:    ExtractQuery,
				Confidence: 0.6,
			},
			{
				Domain: "search",
				Patterns: []string{
					`(?i)\b(search|look up|lookup|find out|google)\b`,
					`(?i)\bwho (is|was|are)\b`,
				},
				Alias:      "search",
				Tool:       "web_search",
				Extract:    ExtractQuery,
				Confidence: 0.6,
			},
		},
		Intent: IntentConfig{
			Threshold: 0.5,
			ChatAlias: defaultAlias,
			ChatTool:  "chat",
		},
		SearchAlias: "search",
		SearchTool:  "web_search",
	}
}

// intentKeywords weight individual words for the fallback scorer. The
// scorer sums weights of matching words and normalizes by a small cap so
// a couple of strong hits clear the threshold.
var intentKeywords = map[string]map[string]float64{
	"trading": {
		"price": 0.4, "worth": 0.3, "value": 0.25, "chart": 0.35,
		"candle": 0.3, "candles": 0.3, "ohlcv": 0.5, "balance": 0.4,
		"portfolio": 0.45, "holdings": 0.4, "buy": 0.2, "sell": 0.2,
		"pump": 0.2, "dump": 0.2, "bitcoin": 0.3, "ethereum": 0.3,
		"crypto": 0.3, "coin": 0.2, "token": 0.2,
	},
	"search": {
		"search": 0.45, "find": 0.25, "lookup": 0.4, "google": 0.45,
		"news": 0.4, "latest": 0.25, "headline": 0.4, "headlines": 0.4,
		"article": 0.3, "happened": 0.25, "happening": 0.25,
	},
}

// intentTools maps a scored domain to its routed target.
var intentTools = map[string]struct {
	Alias, Tool string
	Extract     ExtractKind
}{
	"trading": {Alias: "trading", Tool: "get_price", Extract: ExtractSymbol},
	"search":  {Alias: "search", Tool: "web_search", Extract: ExtractQuery},
}
