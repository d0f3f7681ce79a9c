// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Launch-spec and quest persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/2389/toolmux/internal/mcp"
	"github.com/2389/toolmux/internal/pool"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS servers (
			alias TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			args TEXT NOT NULL DEFAULT '[]',
			workdir TEXT NOT NULL DEFAULT '',
			env TEXT NOT NULL DEFAULT '{}',
			is_default INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS quests (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_quests_user
			ON quests(user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveServer upserts one launch spec under its alias.
func (s *SQLiteStore) SaveServer(ctx context.Context, alias string, spec mcp.LaunchSpec, isDefault bool) error {
	args, err := json.Marshal(spec.Args)
	if err != nil {
		return fmt.Errorf("encoding args: %w", err)
	}
	env, err := json.Marshal(spec.Env)
	if err != nil {
		return fmt.Errorf("encoding env: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO servers (alias, command, args, workdir, env, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alias) DO UPDATE SET
			command = excluded.command,
			args = excluded.args,
			workdir = excluded.workdir,
			env = excluded.env,
			is_default = excluded.is_default,
			updated_at = excluded.updated_at
	`, alias, spec.Command, string(args), spec.WorkDir, string(env), boolToInt(isDefault), now, now)
	if err != nil {
		return fmt.Errorf("saving server %s: %w", alias, err)
	}
	return nil
}

// DeleteServer removes a persisted launch spec. Deleting an unknown
// alias is not an error.
func (s *SQLiteStore) DeleteServer(ctx context.Context, alias string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE alias = ?`, alias); err != nil {
		return fmt.Errorf("deleting server %s: %w", alias, err)
	}
	return nil
}

// ListServers reads back every persisted launch spec keyed by alias.
func (s *SQLiteStore) ListServers(ctx context.Context) (map[string]pool.PersistedServer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alias, command, args, workdir, env, is_default FROM servers
	`)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}
	defer rows.Close()

	servers := make(map[string]pool.PersistedServer)
	for rows.Next() {
		var alias, command, argsJSON, workdir, envJSON string
		var isDefault int
		if err := rows.Scan(&alias, &command, &argsJSON, &workdir, &envJSON, &isDefault); err != nil {
			return nil, fmt.Errorf("scanning server row: %w", err)
		}
		spec := mcp.LaunchSpec{Command: command, WorkDir: workdir}
		if err := json.Unmarshal([]byte(argsJSON), &spec.Args); err != nil {
			return nil, fmt.Errorf("decoding args for %s: %w", alias, err)
		}
		if err := json.Unmarshal([]byte(envJSON), &spec.Env); err != nil {
			return nil, fmt.Errorf("decoding env for %s: %w", alias, err)
		}
		servers[alias] = pool.PersistedServer{Spec: spec, Default: isDefault != 0}
	}
	return servers, rows.Err()
}

// CreateQuest records a new incomplete quest for the user.
func (s *SQLiteStore) CreateQuest(ctx context.Context, userID, title string) (*Quest, error) {
	q := &Quest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quests (id, user_id, title, completed, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, q.ID, q.UserID, q.Title, q.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating quest: %w", err)
	}
	return q, nil
}

// ListQuests returns the user's quests, oldest first.
func (s *SQLiteStore) ListQuests(ctx context.Context, userID string) ([]*Quest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, completed, created_at, completed_at
		FROM quests WHERE user_id = ? ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing quests: %w", err)
	}
	defer rows.Close()

	var quests []*Quest
	for rows.Next() {
		var q Quest
		var completed int
		var completedAt sql.NullTime
		if err := rows.Scan(&q.ID, &q.UserID, &q.Title, &completed, &q.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning quest row: %w", err)
		}
		q.Completed = completed != 0
		if completedAt.Valid {
			t := completedAt.Time
			q.CompletedAt = &t
		}
		quests = append(quests, &q)
	}
	return quests, rows.Err()
}

// CompleteQuest marks a quest done. Completing an unknown quest fails.
func (s *SQLiteStore) CompleteQuest(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE quests SET completed = 1, completed_at = ? WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("completing quest %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("quest %s not found", id)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
