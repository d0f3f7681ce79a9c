// ABOUTME: The routing chain itself: explicit commands, local shortcuts,
// ABOUTME: pattern rules, and the rule-based intent fallback, in that order.

package router

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/2389/toolmux/internal/convo"
	"github.com/2389/toolmux/internal/music"
	"github.com/2389/toolmux/internal/registry"
)

// Catalog is the slice of the tool registry the router needs for
// argument validation.
type Catalog interface {
	Find(name string) (registry.ToolDescriptor, bool)
}

// Request is one inbound message with its addressing.
type Request struct {
	UserID    string
	ChannelID string
	Text      string
}

// Router runs the strategy chain over a fixed RuleSet.
type Router struct {
	rules    RuleSet
	catalog  Catalog
	convo    *convo.Context
	player   *music.Player
	patterns []compiledPattern
	logger   *slog.Logger
}

type compiledPattern struct {
	rule PatternRule
	res  []*regexp.Regexp
}

// NewRouter compiles the rule set's patterns up front so Route never
// pays compilation cost per message.
func NewRouter(rules RuleSet, catalog Catalog, convoCtx *convo.Context, player *music.Player, logger *slog.Logger) (*Router, error) {
	r := &Router{
		rules:   rules,
		catalog: catalog,
		convo:   convoCtx,
		player:  player,
		logger:  logger,
	}
	for _, pr := range rules.Patterns {
		cp := compiledPattern{rule: pr}
		for _, pat := range pr.Patterns {
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, fmt.Errorf("compile pattern for domain %q: %w", pr.Domain, err)
			}
			cp.res = append(cp.res, re)
		}
		r.patterns = append(r.patterns, cp)
	}
	return r, nil
}

// Route classifies one message. The chain is deterministic: the same
// text and the same conversation context always yield the same decision.
func (r *Router) Route(req Request) Decision {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Decision{Kind: KindReprompt, Reply: "Say something and I'll route it."}
	}

	if dec, ok := r.routeCommand(req, text); ok {
		return dec
	}
	if dec, ok := r.routeLocal(text); ok {
		return dec
	}
	if dec, ok := r.routePattern(req, text); ok {
		return dec
	}
	return r.routeIntent(req, text)
}

// routeCommand handles explicit leading-command syntax.
func (r *Router) routeCommand(req Request, text string) (Decision, bool) {
	head, rest := splitCommand(text)
	if head == "" {
		return Decision{}, false
	}
	for _, rule := range r.rules.Commands {
		if !matchesPrefix(rule.Prefixes, head) {
			continue
		}
		routed := &RoutedCommand{
			Alias:      rule.Alias,
			Tool:       rule.Tool,
			Args:       map[string]any{},
			Strategy:   StrategyCommand,
			Confidence: 1.0,
		}
		for k, v := range rule.FixedArgs {
			routed.Args[k] = v
		}
		if dec, ok := r.extract(req, rule, rest, routed); !ok {
			return dec, true
		}
		return r.finish(req, routed)
	}
	return Decision{}, false
}

// routeLocal answers playback shortcuts without touching any session.
func (r *Router) routeLocal(text string) (Decision, bool) {
	head, rest := splitCommand(text)
	if head == "" || r.player == nil {
		return Decision{}, false
	}
	for _, rule := range r.rules.Local {
		if !matchesPrefix(rule.Prefixes, head) {
			continue
		}
		return Decision{Kind: KindLocal, Reply: r.runLocal(rule.Action, rest)}, true
	}
	return Decision{}, false
}

func (r *Router) runLocal(action LocalAction, rest string) string {
	switch action {
	case LocalPlay:
		return r.player.Play(rest)
	case LocalPause:
		return r.player.Pause()
	case LocalResume:
		return r.player.Resume()
	case LocalStop:
		return r.player.Stop()
	case LocalSkip:
		return r.player.Skip()
	case LocalQueue:
		return r.player.Queue()
	case LocalEnqueue:
		return r.player.Enqueue(rest)
	case LocalClearQueue:
		return r.player.ClearQueue()
	case LocalRemove:
		pos, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return "Which position? Try `/remove 2`."
		}
		return r.player.Remove(pos)
	case LocalNowPlaying:
		return r.player.NowPlaying()
	case LocalListSongs:
		return r.player.ListSongs()
	case LocalSearchSongs:
		return r.player.Search(rest)
	case LocalRandom:
		return r.player.Random()
	}
	return ""
}

// routePattern matches domain keyword regexes in rule order; the first
// matching rule wins.
func (r *Router) routePattern(req Request, text string) (Decision, bool) {
	for _, cp := range r.patterns {
		for _, re := range cp.res {
			if !re.MatchString(text) {
				continue
			}
			routed := &RoutedCommand{
				Alias:      cp.rule.Alias,
				Tool:       cp.rule.Tool,
				Args:       map[string]any{},
				Strategy:   StrategyPattern,
				Confidence: cp.rule.Confidence,
			}
			stub := CommandRule{Extract: cp.rule.Extract}
			if dec, ok := r.extract(req, stub, text, routed); !ok {
				return dec, true
			}
			dec, _ := r.finish(req, routed)
			return dec, true
		}
	}
	return Decision{}, false
}

// routeIntent scores the message against the keyword weights and either
// routes to the best domain or falls through to the chat tool.
func (r *Router) routeIntent(req Request, text string) Decision {
	domain, score := scoreIntent(text)
	if score >= r.rules.Intent.Threshold {
		target, ok := intentTools[domain]
		if ok {
			routed := &RoutedCommand{
				Alias:      target.Alias,
				Tool:       target.Tool,
				Args:       map[string]any{},
				Strategy:   StrategyIntent,
				Confidence: score,
			}
			stub := CommandRule{Extract: target.Extract}
			if dec, ok := r.extract(req, stub, text, routed); !ok {
				return dec
			}
			dec, _ := r.finish(req, routed)
			return dec
		}
	}
	routed := &RoutedCommand{
		Alias:      r.rules.Intent.ChatAlias,
		Tool:       r.rules.Intent.ChatTool,
		Args:       map[string]any{"message": text},
		Strategy:   StrategyIntent,
		Confidence: 0.3,
	}
	dec, _ := r.finish(req, routed)
	return dec
}

// scoreIntent sums keyword weights per domain, capped at 1.0, and
// returns the best domain. Ties break alphabetically so routing stays
// deterministic.
func scoreIntent(text string) (string, float64) {
	words := strings.Fields(strings.ToLower(text))
	bestDomain, bestScore := "", 0.0
	for _, domain := range []string{"search", "trading"} {
		weights := intentKeywords[domain]
		score := 0.0
		for _, w := range words {
			w = strings.Trim(w, ".,!?;:")
			score += weights[w]
		}
		if score > 1.0 {
			score = 1.0
		}
		if score > bestScore {
			bestDomain, bestScore = domain, score
		}
	}
	return bestDomain, bestScore
}

// extract fills routed.Args per the rule's extraction kind. Returns
// ok=false with a reprompt decision when a required argument is missing
// and the conversation context cannot supply it.
func (r *Router) extract(req Request, rule CommandRule, rest string, routed *RoutedCommand) (Decision, bool) {
	rest = strings.TrimSpace(rest)
	switch rule.Extract {
	case ExtractNone:
		return Decision{}, true
	case ExtractSymbol:
		sym := findSymbol(rest)
		if sym == "" && r.convo != nil {
			sym = r.convo.LastSymbol(req.UserID)
		}
		if sym == "" {
			return Decision{Kind: KindReprompt, Reply: missingPrompt(rule, "Which symbol?")}, false
		}
		routed.Args["symbol"] = normalizeSymbol(sym, r.rules.DefaultQuote)
		return Decision{}, true
	case ExtractSymbolTimeframe:
		symTok, tf := rest, ""
		if i := strings.IndexByte(rest, ' '); i >= 0 {
			symTok, tf = rest[:i], strings.TrimSpace(rest[i+1:])
		}
		sym := findSymbol(symTok)
		if sym == "" && r.convo != nil {
			sym = r.convo.LastSymbol(req.UserID)
		}
		if sym == "" {
			return Decision{Kind: KindReprompt, Reply: missingPrompt(rule, "Which symbol?")}, false
		}
		routed.Args["symbol"] = normalizeSymbol(sym, r.rules.DefaultQuote)
		if tf != "" {
			routed.Args["timeframe"] = strings.ToLower(tf)
		}
		return Decision{}, true
	case ExtractQuery:
		if rest == "" {
			return Decision{Kind: KindReprompt, Reply: missingPrompt(rule, "Search for what?")}, false
		}
		routed.Args["query"] = refineQuery(rest)
		return Decision{}, true
	case ExtractMessage:
		if rest == "" {
			return Decision{Kind: KindReprompt, Reply: missingPrompt(rule, "Say something.")}, false
		}
		routed.Args["message"] = rest
		return Decision{}, true
	}
	return Decision{}, true
}

func missingPrompt(rule CommandRule, fallback string) string {
	if rule.MissingPrompt != "" {
		return rule.MissingPrompt
	}
	return fallback
}

// finish validates the routed args against the registered schema when
// the tool is known. Unknown tools pass through untouched; the engine
// connects lazily and the provider enforces its own contract.
func (r *Router) finish(req Request, routed *RoutedCommand) (Decision, bool) {
	if r.catalog != nil {
		fq := routed.Alias + registry.Separator + routed.Tool
		if desc, ok := r.catalog.Find(fq); ok {
			if reply, valid := r.validate(req, desc, routed); !valid {
				return Decision{Kind: KindReprompt, Reply: reply}, true
			}
		}
	}
	return Decision{Kind: KindRouted, Routed: routed}, true
}
