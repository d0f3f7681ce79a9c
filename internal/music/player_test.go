// ABOUTME: Player tests: playback state transitions, queue management,
// ABOUTME: and library search, all purely in-process.

package music

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlayer() *Player {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New([]string{"midnight city", "blue monday", "blue in green"}, logger)
}

func TestPlayExactTitle(t *testing.T) {
	p := newTestPlayer()
	reply := p.Play("midnight city")
	assert.Contains(t, reply, "midnight city")
	assert.Contains(t, p.NowPlaying(), "midnight city")
}

func TestPlayCaseInsensitiveSubstring(t *testing.T) {
	p := newTestPlayer()
	reply := p.Play("MIDNIGHT")
	assert.Contains(t, reply, "midnight city")
}

func TestPlayUnknownSong(t *testing.T) {
	p := newTestPlayer()
	reply := p.Play("does not exist")
	assert.Contains(t, reply, "No song matching")
}

func TestPlayEmptyResumesWhenPaused(t *testing.T) {
	p := newTestPlayer()
	p.Play("blue monday")
	p.Pause()

	reply := p.Play("")
	assert.Contains(t, reply, "blue monday")
	assert.Contains(t, p.NowPlaying(), "blue monday")
}

func TestPauseResumeStop(t *testing.T) {
	p := newTestPlayer()
	p.Play("blue monday")

	assert.Contains(t, p.Pause(), "Paused")
	assert.Contains(t, p.Resume(), "blue monday")
	assert.Contains(t, p.Stop(), "Stopped")
	assert.Contains(t, strings.ToLower(p.NowPlaying()), "nothing")
}

func TestPauseWithNothingPlaying(t *testing.T) {
	p := newTestPlayer()
	assert.Contains(t, strings.ToLower(p.Pause()), "nothing")
}

func TestQueueAndSkip(t *testing.T) {
	p := newTestPlayer()
	p.Play("midnight city")
	p.Enqueue("blue monday")
	p.Enqueue("blue in green")

	queue := p.Queue()
	assert.Contains(t, queue, "blue monday")
	assert.Contains(t, queue, "blue in green")

	reply := p.Skip()
	assert.Contains(t, reply, "blue monday")
	assert.Contains(t, p.NowPlaying(), "blue monday")
}

func TestRemoveFromQueue(t *testing.T) {
	p := newTestPlayer()
	p.Play("midnight city")
	p.Enqueue("blue monday")
	p.Enqueue("blue in green")

	reply := p.Remove(1)
	assert.Contains(t, reply, "blue monday")
	assert.NotContains(t, p.Queue(), "blue monday")
}

func TestRemoveOutOfRange(t *testing.T) {
	p := newTestPlayer()
	p.Enqueue("blue monday")
	reply := p.Remove(9)
	assert.Contains(t, strings.ToLower(reply), "position")
}

func TestClearQueue(t *testing.T) {
	p := newTestPlayer()
	p.Enqueue("blue monday")
	p.ClearQueue()
	assert.Contains(t, strings.ToLower(p.Queue()), "empty")
}

func TestSearchLibrary(t *testing.T) {
	p := newTestPlayer()
	reply := p.Search("blue")
	assert.Contains(t, reply, "blue monday")
	assert.Contains(t, reply, "blue in green")
	assert.NotContains(t, reply, "midnight city")
}

func TestListSongsSorted(t *testing.T) {
	p := newTestPlayer()
	reply := p.ListSongs()
	require.Contains(t, reply, "blue in green")
	assert.Less(t,
		strings.Index(reply, "blue in green"),
		strings.Index(reply, "midnight city"))
}

func TestRandomPlaysFromLibrary(t *testing.T) {
	p := newTestPlayer()
	reply := p.Random()
	found := false
	for _, song := range []string{"midnight city", "blue monday", "blue in green"} {
		if strings.Contains(reply, song) {
			found = true
		}
	}
	assert.True(t, found, "random should pick a library song, got: %s", reply)
}
