// ABOUTME: In-process playback queue handled by the router's local shortcuts
// ABOUTME: Purely local state; no tool-provider invocation ever happens here

package music

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

// Player holds the per-process playback state. Commands against it are
// resolved by the router's local-shortcut strategy and never touch a
// provider session.
type Player struct {
	mu      sync.Mutex
	library []string
	queue   []string
	current string
	paused  bool
	logger  *slog.Logger
	rng     *rand.Rand
}

// New creates a player over a fixed song library.
func New(library []string, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	sorted := make([]string, len(library))
	copy(sorted, library)
	sort.Strings(sorted)
	return &Player{
		library: sorted,
		logger:  logger.With("component", "music"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Play starts a named song, or resumes/shuffles when name is empty.
func (p *Player) Play(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if name == "" {
		if p.paused && p.current != "" {
			p.paused = false
			return fmt.Sprintf("Resumed %q.", p.current)
		}
		return p.playRandomLocked(5)
	}

	match := p.findLocked(name)
	if match == "" {
		return fmt.Sprintf("No song matching %q in the library.", name)
	}
	p.current = match
	p.paused = false
	return fmt.Sprintf("Now playing %q.", match)
}

// Pause pauses playback.
func (p *Player) Pause() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return "Nothing is playing."
	}
	if p.paused {
		return "Already paused."
	}
	p.paused = true
	return fmt.Sprintf("Paused %q.", p.current)
}

// Resume resumes paused playback.
func (p *Player) Resume() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return "Nothing is playing."
	}
	if !p.paused {
		return fmt.Sprintf("%q is already playing.", p.current)
	}
	p.paused = false
	return fmt.Sprintf("Resumed %q.", p.current)
}

// Stop stops playback and clears the queue.
func (p *Player) Stop() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" && len(p.queue) == 0 {
		return "Nothing to stop."
	}
	p.current = ""
	p.paused = false
	p.queue = nil
	return "Stopped playback and cleared the queue."
}

// Skip advances to the next queued song.
func (p *Player) Skip() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		p.current = ""
		p.paused = false
		return "Queue is empty; stopped playback."
	}
	p.current = p.queue[0]
	p.queue = p.queue[1:]
	p.paused = false
	return fmt.Sprintf("Skipped. Now playing %q.", p.current)
}

// Enqueue appends a song to the queue.
func (p *Player) Enqueue(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	match := p.findLocked(name)
	if match == "" {
		return fmt.Sprintf("No song matching %q in the library.", name)
	}
	p.queue = append(p.queue, match)
	return fmt.Sprintf("Queued %q at position %d.", match, len(p.queue))
}

// Queue renders the current queue.
func (p *Player) Queue() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return "The queue is empty."
	}
	var b strings.Builder
	b.WriteString("Up next:\n")
	for i, song := range p.queue {
		fmt.Fprintf(&b, "%d. %s\n", i+1, song)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ClearQueue empties the queue without touching playback.
func (p *Player) ClearQueue() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	p.queue = nil
	return fmt.Sprintf("Cleared %d queued songs.", n)
}

// Remove deletes the song at a 1-based queue position.
func (p *Player) Remove(position int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if position < 1 || position > len(p.queue) {
		return fmt.Sprintf("No song at position %d.", position)
	}
	removed := p.queue[position-1]
	p.queue = append(p.queue[:position-1], p.queue[position:]...)
	return fmt.Sprintf("Removed %q from the queue.", removed)
}

// NowPlaying reports the current song.
func (p *Player) NowPlaying() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return "Nothing is playing."
	}
	if p.paused {
		return fmt.Sprintf("Paused on %q.", p.current)
	}
	return fmt.Sprintf("Now playing %q.", p.current)
}

// ListSongs renders the library.
func (p *Player) ListSongs() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.library) == 0 {
		return "The library is empty."
	}
	return "Available songs:\n" + strings.Join(p.library, "\n")
}

// Search lists library songs containing the keyword.
func (p *Player) Search(keyword string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var hits []string
	needle := strings.ToLower(keyword)
	for _, song := range p.library {
		if strings.Contains(strings.ToLower(song), needle) {
			hits = append(hits, song)
		}
	}
	if len(hits) == 0 {
		return fmt.Sprintf("No songs matching %q.", keyword)
	}
	return "Matches:\n" + strings.Join(hits, "\n")
}

// Random shuffles a handful of library songs into the queue and starts.
func (p *Player) Random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playRandomLocked(5)
}

func (p *Player) playRandomLocked(count int) string {
	if len(p.library) == 0 {
		return "The library is empty."
	}
	picks := p.rng.Perm(len(p.library))
	if count > len(picks) {
		count = len(picks)
	}
	p.queue = nil
	for _, idx := range picks[1:count] {
		p.queue = append(p.queue, p.library[idx])
	}
	p.current = p.library[picks[0]]
	p.paused = false
	return fmt.Sprintf("Shuffling the library. Now playing %q with %d songs queued.", p.current, len(p.queue))
}

// findLocked does a case-insensitive substring match over the library.
func (p *Player) findLocked(name string) string {
	needle := strings.ToLower(name)
	for _, song := range p.library {
		if strings.EqualFold(song, name) {
			return song
		}
	}
	for _, song := range p.library {
		if strings.Contains(strings.ToLower(song), needle) {
			return song
		}
	}
	return ""
}
