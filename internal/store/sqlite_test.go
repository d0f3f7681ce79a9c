// ABOUTME: SQLite store tests: launch-spec round trips, default flag,
// ABOUTME: deletion, and quest create/list/complete.

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolmux/internal/mcp"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "toolmux.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndListServers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	spec := mcp.LaunchSpec{
		Command: "python3",
		Args:    []string{"-m", "provider", "--mode", "trading"},
		WorkDir: "/opt/providers",
		Env:     map[string]string{"API_KEY": "k"},
	}
	require.NoError(t, s.SaveServer(ctx, "trading", spec, false))
	require.NoError(t, s.SaveServer(ctx, "jarvis", mcp.LaunchSpec{Command: "jarvis-provider"}, true))

	servers, err := s.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)

	got := servers["trading"]
	assert.Equal(t, spec.Command, got.Spec.Command)
	assert.Equal(t, spec.Args, got.Spec.Args)
	assert.Equal(t, spec.WorkDir, got.Spec.WorkDir)
	assert.Equal(t, spec.Env, got.Spec.Env)
	assert.False(t, got.Default)
	assert.True(t, servers["jarvis"].Default)
}

func TestSaveServerUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveServer(ctx, "trading", mcp.LaunchSpec{Command: "old"}, false))
	require.NoError(t, s.SaveServer(ctx, "trading", mcp.LaunchSpec{Command: "new"}, true))

	servers, err := s.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "new", servers["trading"].Spec.Command)
	assert.True(t, servers["trading"].Default)
}

func TestDeleteServer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveServer(ctx, "trading", mcp.LaunchSpec{Command: "x"}, false))
	require.NoError(t, s.DeleteServer(ctx, "trading"))
	require.NoError(t, s.DeleteServer(ctx, "never-existed"))

	servers, err := s.ListServers(ctx)
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestQuestLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	q1, err := s.CreateQuest(ctx, "u1", "check BTC price")
	require.NoError(t, err)
	_, err = s.CreateQuest(ctx, "u1", "read the news")
	require.NoError(t, err)
	_, err = s.CreateQuest(ctx, "u2", "someone else's quest")
	require.NoError(t, err)

	quests, err := s.ListQuests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, quests, 2)
	assert.Equal(t, "check BTC price", quests[0].Title)
	assert.False(t, quests[0].Completed)
	assert.Nil(t, quests[0].CompletedAt)

	require.NoError(t, s.CompleteQuest(ctx, q1.ID))
	quests, err = s.ListQuests(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, quests[0].Completed)
	require.NotNil(t, quests[0].CompletedAt)
}

func TestCompleteUnknownQuestFails(t *testing.T) {
	s := newTestStore(t)
	err := s.CompleteQuest(context.Background(), "nope")
	assert.Error(t, err)
}
