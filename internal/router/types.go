// ABOUTME: Decision and rule types for the routing chain.
// ABOUTME: RuleSet is a closed description of every strategy the router runs.

package router

// Strategy identifies which stage of the chain produced a decision.
type Strategy string

const (
	StrategyCommand Strategy = "command"
	StrategyLocal   Strategy = "local"
	StrategyPattern Strategy = "pattern"
	StrategyIntent  Strategy = "intent"
	StrategyRepair  Strategy = "repair"
)

// RoutedCommand is the router's output for the execution engine.
type RoutedCommand struct {
	Alias      string
	Tool       string
	Args       map[string]any
	Strategy   Strategy
	Confidence float64
}

// DecisionKind discriminates the three possible routing outcomes.
type DecisionKind int

const (
	// KindRouted means Routed carries a command for the engine.
	KindRouted DecisionKind = iota
	// KindLocal means the message was handled in-process; Reply has the text.
	KindLocal
	// KindReprompt means a required argument is missing; Reply asks for it.
	KindReprompt
)

// Decision is the result of routing one message.
type Decision struct {
	Kind   DecisionKind
	Routed *RoutedCommand
	Reply  string
}

// ExtractKind selects how a command rule derives arguments from the
// remainder of the message. The set is closed.
type ExtractKind int

const (
	ExtractNone ExtractKind = iota
	// ExtractSymbol upper-cases the remainder and appends the default
	// quote currency when no pair separator is present.
	ExtractSymbol
	// ExtractQuery passes the remainder through search-query refinement.
	ExtractQuery
	// ExtractMessage passes the full remainder as a chat message.
	ExtractMessage
	// ExtractSymbolTimeframe splits the remainder into a symbol and an
	// optional timeframe token.
	ExtractSymbolTimeframe
)

// CommandRule maps an explicit leading command to a tool.
type CommandRule struct {
	Prefixes  []string
	Alias     string
	Tool      string
	Extract   ExtractKind
	FixedArgs map[string]any
	// MissingPrompt is the reprompt text when extraction yields nothing
	// and the context cannot fill the gap.
	MissingPrompt string
}

// LocalAction names an in-process playback operation.
type LocalAction int

const (
	LocalPlay LocalAction = iota
	LocalPause
	LocalResume
	LocalStop
	LocalSkip
	LocalQueue
	LocalEnqueue
	LocalClearQueue
	LocalRemove
	LocalNowPlaying
	LocalListSongs
	LocalSearchSongs
	LocalRandom
)

// LocalRule maps a leading command to a playback action.
type LocalRule struct {
	Prefixes []string
	Action   LocalAction
}

// PatternRule matches domain keyword regexes against the whole message.
type PatternRule struct {
	Domain     string
	Patterns   []string
	Alias      string
	Tool       string
	Extract    ExtractKind
	Confidence float64
}

// IntentConfig tunes the rule-based fallback scorer.
type IntentConfig struct {
	// Threshold below which the chat tool is used instead of the best
	// scoring domain.
	Threshold float64
	ChatAlias string
	ChatTool  string
}

// RuleSet is the complete, closed configuration of the chain.
type RuleSet struct {
	DefaultQuote string
	Commands     []CommandRule
	Local        []LocalRule
	Patterns     []PatternRule
	Intent       IntentConfig
	// SearchAlias/SearchTool name the broad search tool used by Repair.
	SearchAlias string
	SearchTool  string
}
