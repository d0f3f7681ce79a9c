// ABOUTME: The per-message pipeline: route, execute, repair once,
// ABOUTME: format, remember. Every inbound message flows through Handle.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/2389/toolmux/internal/convo"
	"github.com/2389/toolmux/internal/engine"
	"github.com/2389/toolmux/internal/router"
)

// summaryLen caps what one turn remembers of a result.
const summaryLen = 200

// Handle runs one message through the full pipeline and returns the
// reply text. It never returns an empty string for a non-empty input:
// failures come back as user-facing sentences.
func (g *Gateway) Handle(ctx context.Context, userID, channelID, text string) string {
	req := router.Request{UserID: userID, ChannelID: channelID, Text: text}

	dec := g.router.Route(req)
	switch dec.Kind {
	case router.KindLocal, router.KindReprompt:
		return dec.Reply
	}
	routed := dec.Routed

	resultText, failed := g.execute(ctx, userID, routed)

	// One repair attempt per message: a bad first answer gets re-routed
	// to the broader search tool, and that result stands either way.
	// Engine failures are not repaired; their typed outcome is final.
	if !failed {
		if repaired := g.router.Repair(req, routed, resultText); repaired != nil {
			if retryText, retryFailed := g.execute(ctx, userID, repaired); !retryFailed {
				routed, resultText = repaired, retryText
			}
		}
	}

	reply := resultText
	if !failed {
		reply = g.polisher.Format(ctx, routed.Tool, resultText)
	}

	g.convo.Append(convo.Turn{
		UserID:    userID,
		ChannelID: channelID,
		Input:     text,
		Tool:      routed.Alias + "." + routed.Tool,
		Summary:   summarize(resultText),
		Timestamp: time.Now(),
	})
	return reply
}

// execute runs one routed command, answering quest commands from the
// local store and everything else through the engine. failed is true
// when resultText is a user-facing error sentence rather than data.
func (g *Gateway) execute(ctx context.Context, userID string, routed *router.RoutedCommand) (resultText string, failed bool) {
	if routed.Tool == "list_quests" && routed.Alias == g.pool.DefaultAlias() {
		return g.listQuests(ctx, userID)
	}

	res, err := g.engine.Execute(ctx, routed.Alias, routed.Tool, routed.Args)
	if err != nil {
		return userFacing(routed, err), true
	}
	if res.IsError {
		return res.Text(), false
	}
	return res.Text(), false
}

// listQuests renders the caller's quest list from the store.
func (g *Gateway) listQuests(ctx context.Context, userID string) (string, bool) {
	quests, err := g.store.ListQuests(ctx, userID)
	if err != nil {
		g.logger.Error("listing quests failed", "error", err)
		return "Couldn't read your quests right now.", true
	}
	if len(quests) == 0 {
		return "No quests yet.", false
	}
	var b strings.Builder
	for _, q := range quests {
		mark := "▫"
		if q.Completed {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, q.Title)
	}
	return strings.TrimRight(b.String(), "\n"), false
}

// userFacing translates a typed engine failure into a reply sentence.
func userFacing(routed *router.RoutedCommand, err error) string {
	var execErr *engine.ExecutionError
	if !errors.As(err, &execErr) {
		return "Something went wrong handling that."
	}
	switch execErr.Kind {
	case engine.KindTimeout:
		return fmt.Sprintf("The %s provider took too long to answer. Try again in a moment.", routed.Alias)
	case engine.KindRemote:
		return fmt.Sprintf("The %s provider rejected that: %v", routed.Alias, execErr.Err)
	default:
		return fmt.Sprintf("The %s provider is unavailable right now.", routed.Alias)
	}
}

func summarize(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > summaryLen {
		cut := summaryLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
