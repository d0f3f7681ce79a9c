// ABOUTME: Persistence interface: launch specs for registered providers
// ABOUTME: and the lightweight quest activity records.

package store

import (
	"context"
	"time"

	"github.com/2389/toolmux/internal/pool"
)

// Quest is one activity record a user can complete.
type Quest struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store is the persistence surface. It embeds the pool's spec store so
// one sqlite handle serves both concerns.
type Store interface {
	pool.SpecStore

	CreateQuest(ctx context.Context, userID, title string) (*Quest, error)
	ListQuests(ctx context.Context, userID string) ([]*Quest, error)
	CompleteQuest(ctx context.Context, id string) error

	Close() error
}
