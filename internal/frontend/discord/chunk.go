// ABOUTME: Message chunking for delivery: respects the platform length
// ABOUTME: cap without ever splitting inside a code fence or a word.

package discord

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit is Discord's hard cap per message.
const MessageLimit = 2000

// Split breaks text into delivery-sized chunks. Breaks land on paragraph
// boundaries when possible, then line boundaries, then spaces. A chunk
// never ends inside an open ``` fence: the fence is closed at the break
// and reopened (with its language tag) at the start of the next chunk.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	text = strings.TrimRight(text, "\n ")
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	// Reserve room for a closing fence on every chunk so the fence
	// repair below can never overflow the limit.
	budget := limit - len("\n```")

	var chunks []string
	var cur strings.Builder
	fence := "" // open fence header ("```" or "```json"), empty when closed

	flush := func() {
		out := strings.TrimRight(cur.String(), "\n")
		cur.Reset()
		if out == "" {
			return
		}
		if fence != "" {
			out += "\n```"
		}
		chunks = append(chunks, out)
	}

	appendLine := func(line string) {
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}

	for _, line := range strings.Split(text, "\n") {
		for _, piece := range splitLine(line, budget) {
			need := len(piece)
			if cur.Len() > 0 {
				need++
			}
			if cur.Len()+need > budget {
				flush()
				if fence != "" {
					cur.WriteString(fence)
				}
			}
			appendLine(piece)
			if isFenceLine(piece) {
				if fence == "" {
					fence = strings.TrimSpace(piece)
				} else {
					fence = ""
				}
			}
		}
	}
	flush()
	return chunks
}

// splitLine cuts one overlong line at space boundaries; a single word
// longer than the budget is hard-cut.
func splitLine(line string, budget int) []string {
	if len(line) <= budget {
		return []string{line}
	}
	var pieces []string
	for len(line) > budget {
		cut := strings.LastIndexByte(line[:budget], ' ')
		if cut <= 0 {
			cut = runeBoundary(line, budget)
		}
		pieces = append(pieces, strings.TrimRight(line[:cut], " "))
		line = strings.TrimLeft(line[cut:], " ")
	}
	if line != "" {
		pieces = append(pieces, line)
	}
	return pieces
}

// runeBoundary backs a byte index up to the nearest rune start so a
// hard cut never splits a multi-byte character.
func runeBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	if i == 0 {
		return len(s) // degenerate budget smaller than one rune
	}
	return i
}

func isFenceLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}
