// ABOUTME: Gateway orchestrator that wires the pool, registry, router,
// ABOUTME: engine, formatter, and front-ends, and owns their lifecycle.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/2389/toolmux/internal/config"
	"github.com/2389/toolmux/internal/convo"
	"github.com/2389/toolmux/internal/engine"
	"github.com/2389/toolmux/internal/format"
	"github.com/2389/toolmux/internal/frontend/discord"
	"github.com/2389/toolmux/internal/mcp"
	"github.com/2389/toolmux/internal/music"
	"github.com/2389/toolmux/internal/pool"
	"github.com/2389/toolmux/internal/registry"
	"github.com/2389/toolmux/internal/router"
	"github.com/2389/toolmux/internal/store"
)

// Gateway owns every long-lived component and the admin HTTP server.
type Gateway struct {
	config     *config.Config
	store      store.Store
	pool       *pool.Pool
	registry   *registry.Registry
	router     *router.Router
	engine     *engine.Engine
	polisher   *format.Polisher
	convo      *convo.Context
	player     *music.Player
	bot        *discord.Bot
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the sqlite store, honoring the TOOLMUX_DB_PATH
// override used by tests and one-off runs.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("TOOLMUX_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New wires a gateway from config. Nothing is connected yet: provider
// sessions spawn lazily on first use, the Discord socket opens in Run.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	defaultAlias := cfg.DefaultAlias()
	reg := registry.New(defaultAlias, logger)

	p := pool.New(nil, st, logger)
	p.OnRefresh = reg.Refresh

	g := &Gateway{
		config:   cfg,
		store:    st,
		pool:     p,
		registry: reg,
		engine:   engine.New(p, cfg.Engine.CallTimeout, logger),
		convo:    convo.New(convo.DefaultWindow),
		player:   music.New(cfg.Music.Library, logger),
		logger:   logger.With("component", "gateway"),
	}

	g.router, err = router.NewRouter(router.DefaultRules(defaultAlias), reg, g.convo, g.player, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building router: %w", err)
	}

	var completer format.ChatCompleter
	if cfg.Formatter.Enabled {
		completer = openai.NewClient(cfg.Formatter.APIKey)
	}
	g.polisher = format.New(completer, cfg.Formatter.Model, cfg.Formatter.Timeout, logger)

	// Configured providers are registered up front; previously persisted
	// ones (added via the admin API) come back from the store.
	ctx := context.Background()
	for alias, pc := range cfg.Providers {
		desc := pool.ServerDescriptor{
			Alias: alias,
			Spec: mcp.LaunchSpec{
				Command: pc.Command,
				Args:    pc.Args,
				WorkDir: pc.WorkDir,
				Env:     pc.Env,
			},
			Default: pc.Default,
		}
		if err := p.Register(ctx, desc, true); err != nil {
			st.Close()
			return nil, fmt.Errorf("registering provider %s: %w", alias, err)
		}
	}
	if err := p.LoadPersisted(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("loading persisted providers: %w", err)
	}

	if cfg.Discord.Enabled {
		g.bot, err = discord.New(cfg.Discord.Token, g.Handle, cfg.Discord.Prefix, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("building discord bot: %w", err)
		}
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g, nil
}

// Run starts the admin HTTP server and the Discord front-end, then
// blocks until the context is canceled or a component fails.
func (g *Gateway) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("admin API listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if g.bot != nil {
		eg.Go(func() error {
			if err := g.bot.Start(); err != nil {
				return fmt.Errorf("discord: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		return g.Shutdown(context.Background())
	})

	return eg.Wait()
}

// Shutdown stops the front-ends, drains the HTTP server, disconnects
// every session, and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down")

	if g.bot != nil {
		if err := g.bot.Stop(); err != nil {
			g.logger.Warn("discord close failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Warn("http shutdown failed", "error", err)
	}

	for _, s := range g.pool.ListServers() {
		if !s.Connected {
			continue
		}
		if err := g.pool.Disconnect(shutdownCtx, s.Alias, false); err != nil {
			g.logger.Warn("disconnect failed", "alias", s.Alias, "error", err)
		}
	}

	if err := g.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	g.logger.Info("shutdown complete")
	return nil
}
