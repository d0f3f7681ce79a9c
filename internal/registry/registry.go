// ABOUTME: Aggregated, namespaced tool catalog across all provider sessions
// ABOUTME: Alias-prefixed names guarantee no two entries ever collide

package registry

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/2389/toolmux/internal/mcp"
)

// Separator joins an alias and a tool name into a fully-qualified name.
const Separator = "."

// ToolDescriptor is one catalog entry. Name is always fully qualified.
type ToolDescriptor struct {
	Name        string
	Alias       string
	BareName    string
	Description string
	InputSchema []byte
}

// Registry aggregates every session's tool catalog into one flat,
// collision-free list. Entries contributed by an alias are replaced
// wholesale on every refresh, never partially patched.
type Registry struct {
	mu           sync.RWMutex
	byAlias      map[string][]ToolDescriptor
	defaultAlias string
	logger       *slog.Logger
}

// New creates a registry. Tools of defaultAlias are additionally exposed
// under their bare names for convenience; the prefixed form stays valid.
func New(defaultAlias string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byAlias:      make(map[string][]ToolDescriptor),
		defaultAlias: defaultAlias,
		logger:       logger.With("component", "registry"),
	}
}

// Refresh replaces every entry previously contributed by alias with the
// fresh tool list. Invoked right after each (re)connect.
func (r *Registry) Refresh(alias string, tools []*mcp.Tool) {
	entries := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, ToolDescriptor{
			Name:        alias + Separator + t.Name,
			Alias:       alias,
			BareName:    t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	r.mu.Lock()
	r.byAlias[alias] = entries
	r.mu.Unlock()

	r.logger.Info("catalog refreshed", "alias", alias, "tools", len(entries))
}

// Drop removes every entry contributed by alias.
func (r *Registry) Drop(alias string) {
	r.mu.Lock()
	delete(r.byAlias, alias)
	r.mu.Unlock()
}

// AllTools returns the catalog ordered by fully-qualified name.
func (r *Registry) AllTools() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ToolDescriptor
	for _, entries := range r.byAlias {
		out = append(out, entries...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find looks a tool up by exact name: either fully qualified, or bare when
// it belongs to the default alias. Fuzzy resolution belongs to the router.
func (r *Registry) Find(name string) (ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if alias, bare, ok := strings.Cut(name, Separator); ok {
		for _, t := range r.byAlias[alias] {
			if t.BareName == bare {
				return t, true
			}
		}
	}
	for _, t := range r.byAlias[r.defaultAlias] {
		if t.BareName == name {
			return t, true
		}
	}
	return ToolDescriptor{}, false
}
