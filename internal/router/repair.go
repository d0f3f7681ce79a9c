// ABOUTME: Post-hoc repair: judge a result's quality and offer at most
// ABOUTME: one broader re-route when the first answer came back useless.

package router

import "strings"

// errorMarkers are phrases that flag a tool result as an error dressed
// up as text.
var errorMarkers = []string{
	"error", "exception", "traceback", "not found", "no results",
	"unknown symbol", "invalid", "unavailable",
}

// ResultLooksBad reports whether a tool result is empty or error-shaped
// and therefore a candidate for repair.
func ResultLooksBad(result string) bool {
	trimmed := strings.TrimSpace(result)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Repair proposes one alternate route for a request whose first result
// looked bad. It returns nil when no repair applies: repairs never
// chain, never repeat the same tool, and never fire for locally handled
// or chat-routed messages. The caller invokes this at most once per
// original request.
func (r *Router) Repair(req Request, original *RoutedCommand, result string) *RoutedCommand {
	if original == nil || original.Strategy == StrategyRepair {
		return nil
	}
	if original.Alias == r.rules.SearchAlias && original.Tool == r.rules.SearchTool {
		return nil
	}
	if original.Tool == r.rules.Intent.ChatTool && original.Alias == r.rules.Intent.ChatAlias {
		return nil
	}
	if !ResultLooksBad(result) {
		return nil
	}
	query := strings.TrimSpace(req.Text)
	if head, rest := splitCommand(query); head != "" && rest != "" {
		query = rest
	}
	r.logger.Info("repairing failed route",
		"alias", original.Alias, "tool", original.Tool, "user", req.UserID)
	return &RoutedCommand{
		Alias:      r.rules.SearchAlias,
		Tool:       r.rules.SearchTool,
		Args:       map[string]any{"query": refineQuery(query)},
		Strategy:   StrategyRepair,
		Confidence: 0.4,
	}
}
