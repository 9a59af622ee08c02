// Package app wires all SpeakSmart subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run feeds platform events to the conversation machine until
// the context ends, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithPlatform, etc.). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrWong99/speaksmart/internal/bot"
	"github.com/MrWong99/speaksmart/internal/chat"
	"github.com/MrWong99/speaksmart/internal/config"
	"github.com/MrWong99/speaksmart/internal/discord"
	"github.com/MrWong99/speaksmart/internal/faq"
	"github.com/MrWong99/speaksmart/internal/health"
	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/relay"
	"github.com/MrWong99/speaksmart/internal/resilience"
	"github.com/MrWong99/speaksmart/internal/session"
	"github.com/MrWong99/speaksmart/internal/store"
	"github.com/MrWong99/speaksmart/internal/voice"
	"github.com/MrWong99/speaksmart/pkg/audio"
	"github.com/MrWong99/speaksmart/pkg/provider/stt"
)

// Platform is a chat platform the bot can run on. *discord.Bot implements it.
type Platform interface {
	chat.Transport

	// Run delivers events to h until ctx is cancelled.
	Run(ctx context.Context, h discord.Handler) error
	Close() error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	store    store.Store
	sessions session.Store
	platform Platform
	stt      stt.Provider
	guard    *resilience.STT
	metrics  *observe.Metrics
	scrape   http.Handler

	relay   *relay.Relay
	machine *bot.Machine
	health  *health.Handler

	checkers []health.Checker

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a relational store instead of opening one from config.
// The caller keeps ownership; Shutdown does not close it.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSessionStore injects a mode store instead of opening one from config.
func WithSessionStore(s session.Store) Option {
	return func(a *App) { a.sessions = s }
}

// WithPlatform injects a chat platform instead of connecting to Discord.
func WithPlatform(p Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithSTT injects a recogniser instead of building one from the registry.
func WithSTT(p stt.Provider) Option {
	return func(a *App) { a.stt = p }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h under GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Everything the
// options did not provide is created from cfg. On error, whatever New
// already opened is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.init(ctx); err != nil {
		a.runClosers()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	// ── 1. Relational store ──────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Session store ─────────────────────────────────────────────────
	if err := a.initSessions(ctx); err != nil {
		return fmt.Errorf("app: init sessions: %w", err)
	}

	// ── 3. Speech recognition ────────────────────────────────────────────
	a.initSTT()

	// ── 4. Chat platform ─────────────────────────────────────────────────
	if err := a.initPlatform(); err != nil {
		return fmt.Errorf("app: init platform: %w", err)
	}

	// ── 5. Conversation machine ──────────────────────────────────────────
	if err := a.initMachine(); err != nil {
		return fmt.Errorf("app: init machine: %w", err)
	}

	a.health = health.New(a.checkers...)
	return nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		s, err := OpenStore(ctx, a.cfg.Storage, true)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	}
	a.checkers = append(a.checkers, health.Checker{Name: "store", Check: a.store.Ping})
	return nil
}

func (a *App) initSessions(ctx context.Context) error {
	if a.sessions != nil {
		return nil
	}
	s, err := OpenSessions(ctx, a.cfg.Sessions)
	if err != nil {
		return err
	}
	a.sessions = s.Store
	if s.Ping != nil {
		a.checkers = append(a.checkers, health.Checker{Name: "sessions", Check: s.Ping})
	}
	if s.Close != nil {
		a.closers = append(a.closers, s.Close)
	}
	return nil
}

func (a *App) initSTT() {
	if a.stt != nil {
		return
	}
	reg := config.NewRegistry()
	RegisterBuiltinProviders(reg)
	built := BuildSTT(reg, a.cfg.Providers)
	a.stt = built.Provider
	a.guard = built.Guard
	if built.Closer != nil {
		a.closers = append(a.closers, built.Closer.Close)
	}
	if a.guard != nil {
		breaker := a.guard.Breaker()
		a.checkers = append(a.checkers, health.Checker{
			Name: "stt",
			Check: func(context.Context) error {
				if breaker.State() == resilience.StateOpen {
					return errors.New("circuit breaker open")
				}
				return nil
			},
		})
	}
}

func (a *App) initPlatform() error {
	if a.platform != nil {
		return nil
	}
	b, err := discord.New(discord.Config{
		Token:   a.cfg.Discord.Token,
		GuildID: a.cfg.Discord.GuildID,
	})
	if err != nil {
		return err
	}
	a.platform = b
	a.closers = append(a.closers, b.Close)
	return nil
}

func (a *App) initMachine() error {
	r, err := relay.New(relay.Config{
		OperatorID: a.cfg.Discord.OperatorID,
		Store:      a.store,
		Transport:  a.platform,
		Metrics:    a.metrics,
	})
	if err != nil {
		return err
	}
	a.relay = r

	pipeline, err := voice.New(voice.Config{
		Fetcher:    a.platform,
		Transcoder: audio.NewFFmpeg(a.cfg.Audio.FFmpegPath),
		STT:        a.stt,
		Log:        a.store,
		WorkDir:    a.cfg.Audio.WorkDir,
		Metrics:    a.metrics,
	})
	if err != nil {
		return err
	}

	m, err := bot.New(bot.Config{
		Store:        a.store,
		Sessions:     a.sessions,
		Transport:    a.platform,
		Relay:        r,
		Voice:        pipeline,
		FAQ:          faq.NewMatcher(a.cfg.Corpus.FAQPath),
		PracticePath: a.cfg.Corpus.PracticePath,
		Metrics:      a.metrics,
	})
	if err != nil {
		return err
	}
	a.machine = m
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run feeds platform events to the conversation machine and blocks until
// ctx is cancelled, returning context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	slog.Info("app running",
		"operator_id", a.relay.OperatorID(),
		"faq", a.cfg.Corpus.FAQPath,
		"practice", a.cfg.Corpus.PracticePath,
	)
	return a.platform.Run(ctx, a.machine)
}

// Handler returns the operational HTTP surface: /healthz, /readyz and,
// when a scrape handler was configured, /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	if a.scrape != nil {
		mux.Handle("GET /metrics", a.scrape)
	}
	return observe.Middleware(a.metrics)(mux)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases everything New opened, in order. It is safe to call
// more than once; later calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// runClosers undoes a partial New.
func (a *App) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
}
