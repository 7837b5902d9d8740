// Package app wires all voxpal subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the provider backends
// and their guards, the audio cache, the character store, the speech engine
// and the HTTP router; Run serves until the context is cancelled; Shutdown
// releases everything in order.
//
// For testing, inject test doubles via functional options (WithBackends,
// WithCharacterStore, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxpal/internal/api"
	"github.com/MrWong99/voxpal/internal/audiocache"
	"github.com/MrWong99/voxpal/internal/auth"
	"github.com/MrWong99/voxpal/internal/character"
	"github.com/MrWong99/voxpal/internal/config"
	"github.com/MrWong99/voxpal/internal/edge"
	"github.com/MrWong99/voxpal/internal/health"
	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/resilience"
	"github.com/MrWong99/voxpal/internal/ttsengine"
	"github.com/MrWong99/voxpal/internal/voicecall"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
)

// shutdownGrace bounds how long in-flight requests may finish on shutdown.
const shutdownGrace = 15 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	standardBackend tts.Provider
	premiumBackend  tts.Provider
	standard        *edge.Guard
	premium         *edge.Guard
	cache           audiocache.Cache
	chars           character.Store
	engine          *ttsengine.Engine
	sessions        *ttsengine.Pool
	calls           *voicecall.Handler
	handler         http.Handler

	logLevel *slog.LevelVar
	watcher  *config.Watcher
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBackends injects the upstream backends instead of building the Google
// and ElevenLabs clients. premium may be nil.
func WithBackends(standard, premium tts.Provider) Option {
	return func(a *App) {
		a.standardBackend = standard
		a.premiumBackend = premium
	}
}

// WithCharacterStore injects a character store instead of creating one from
// config.
func WithCharacterStore(s character.Store) Option {
	return func(a *App) { a.chars = s }
}

// WithCache injects an audio cache instead of creating one from config.
func WithCache(c audiocache.Cache) Option {
	return func(a *App) { a.cache = c }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets config reloads change the level of the given variable.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithWatcher makes Run poll w and apply hot-reloadable changes.
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// WithListener serves on l instead of listening on cfg.Server.ListenAddr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates all subsystems. On error, everything created so far is
// released.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	steps := []func(context.Context) error{
		a.initBackends,
		a.initCache,
		a.initGuards,
		a.initCharacters,
		a.initEngine,
		a.initRouter,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			_ = a.Shutdown(context.Background())
			return nil, err
		}
	}
	return a, nil
}

// Handler returns the HTTP handler. Useful for tests.
func (a *App) Handler() http.Handler { return a.handler }

func (a *App) initBackends(ctx context.Context) error {
	if a.standardBackend == nil {
		g, err := edge.NewGoogleBackend(ctx, edge.GoogleConfig{
			CredentialsFile: a.cfg.Providers.Google.CredentialsFile,
			Endpoint:        a.cfg.Providers.Google.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("app: google backend: %w", err)
		}
		a.standardBackend = g
		a.closers = append(a.closers, g.Close)
	}

	el := a.cfg.Providers.ElevenLabs
	if a.premiumBackend == nil && el.APIKey != "" {
		var opts []edge.ElevenLabsOption
		if el.BaseURL != "" {
			opts = append(opts, edge.WithElevenLabsURL(el.BaseURL))
		}
		if el.Model != "" {
			opts = append(opts, edge.WithElevenLabsModel(el.Model))
		}
		b, err := edge.NewElevenLabsBackend(el.APIKey, opts...)
		if err != nil {
			return fmt.Errorf("app: elevenlabs backend: %w", err)
		}
		a.premiumBackend = b
	}
	return nil
}

func (a *App) initCache(ctx context.Context) error {
	if a.cache != nil {
		return nil
	}
	cc := a.cfg.Edge.Cache
	switch cc.Backend {
	case config.CacheNone:
		slog.Info("audio cache disabled")
	case config.CacheRedis:
		rc, err := audiocache.NewRedisCache(ctx, cc.RedisAddr, cc.RedisPassword, cc.RedisDB)
		if err != nil {
			return fmt.Errorf("app: redis cache: %w", err)
		}
		a.cache = rc
		a.closers = append(a.closers, rc.Close)
	default:
		a.cache = audiocache.NewMemoryCache(cc.MaxEntries)
	}
	return nil
}

func (a *App) initGuards(_ context.Context) error {
	newGuard := func(b tts.Provider) (*edge.Guard, error) {
		return edge.NewGuard(edge.GuardConfig{
			Backend: b,
			Breaker: resilience.CircuitBreakerConfig{
				MaxFailures:  a.cfg.Edge.Breaker.MaxFailures,
				ResetTimeout: a.cfg.Edge.Breaker.ResetTimeout,
			},
			Cache:    a.cache,
			CacheTTL: a.cfg.Edge.Cache.TTLOrDefault(),
			Timeout:  a.cfg.Edge.Timeout,
			Metrics:  a.metrics,
		})
	}
	var err error
	if a.standard, err = newGuard(a.standardBackend); err != nil {
		return fmt.Errorf("app: standard guard: %w", err)
	}
	if a.premiumBackend != nil {
		if a.premium, err = newGuard(a.premiumBackend); err != nil {
			return fmt.Errorf("app: premium guard: %w", err)
		}
	}
	return nil
}

func (a *App) initCharacters(ctx context.Context) error {
	if a.chars == nil {
		if dsn := a.cfg.Database.PostgresDSN; dsn != "" {
			pool, err := character.Connect(ctx, dsn)
			if err != nil {
				return fmt.Errorf("app: %w", err)
			}
			a.closers = append(a.closers, func() error { pool.Close(); return nil })
			store := character.NewPostgresStore(pool)
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("app: %w", err)
			}
			a.chars = store
		} else {
			store, err := character.NewMemStore()
			if err != nil {
				return fmt.Errorf("app: %w", err)
			}
			a.chars = store
		}
	}
	return a.seedCharacters(ctx, a.cfg.Characters)
}

// seedCharacters upserts the configured characters into the store.
func (a *App) seedCharacters(ctx context.Context, chars []character.Character) error {
	for i := range chars {
		if err := a.chars.Upsert(ctx, &chars[i]); err != nil {
			return fmt.Errorf("app: seed character %q: %w", chars[i].ID, err)
		}
	}
	if len(chars) > 0 {
		slog.Info("characters seeded", "count", len(chars))
	}
	return nil
}

func (a *App) initEngine(_ context.Context) error {
	opts := []ttsengine.Option{
		ttsengine.WithAttemptTimeout(a.cfg.Engine.AttemptTimeout),
		ttsengine.WithMetrics(a.metrics),
	}
	if a.cfg.Engine.MaxChars > 0 {
		opts = append(opts, ttsengine.WithMaxChars(a.cfg.Engine.MaxChars))
	}
	var premium tts.Provider
	if a.premium != nil {
		premium = a.premium
	}
	eng, err := ttsengine.New(a.standard, premium, opts...)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.engine = eng
	a.sessions = ttsengine.NewPool(eng, a.cfg.Engine.SessionIdle)
	return nil
}

func (a *App) initRouter(_ context.Context) error {
	calls, err := voicecall.NewHandler(voicecall.Config{
		Engine:         a.engine,
		Characters:     a.chars,
		Delays:         a.cfg.Autoplay.Delays(),
		OriginPatterns: a.cfg.Server.AllowedOrigins,
		Metrics:        a.metrics,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.calls = calls

	var verifier *auth.Verifier
	if a.cfg.Auth.Enabled() {
		if verifier, err = auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	rc := api.Config{
		Standard:     a.standard,
		EdgeMaxChars: a.cfg.Edge.MaxChars,
		Sessions:     a.sessions,
		Characters:   a.chars,
		Calls:        calls,
		Health:       health.New(a.checkers()...),
		Verifier:     verifier,
		HTTPMetrics:  a.metrics,
	}
	if a.premium != nil {
		rc.Premium = a.premium
	}
	if a.handler, err = api.NewRouter(rc); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// checkers returns the readiness checks for the configured subsystems.
func (a *App) checkers() []health.Checker {
	checks := []health.Checker{
		health.Breaker("breaker_"+a.standard.Name(), func() string { return a.standard.BreakerState().String() }),
	}
	if a.premium != nil {
		checks = append(checks, health.Breaker("breaker_"+a.premium.Name(), func() string { return a.premium.BreakerState().String() }))
	}
	if p, ok := a.cache.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, health.Ping("cache", p.Ping))
	}
	if p, ok := a.chars.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, health.Ping("database", p.Ping))
	}
	return checks
}

// Run serves HTTP, sweeps idle sessions and, when a watcher is configured,
// applies config reloads. It blocks until ctx is cancelled or the server
// fails, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr); err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
	}
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tls := a.cfg.Server.TLS

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls.Enabled() {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		a.sweepSessions(gctx)
		return nil
	})
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	slog.Info("server listening", "addr", ln.Addr().String(), "tls", tls.Enabled())
	return g.Wait()
}

// sweepSessions drops idle pooled sessions until ctx is done.
func (a *App) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sessions.Sweep()
		}
	}
}

// Reload applies the hot-reloadable differences between old and new. It is
// the callback passed to [config.NewWatcher].
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	ctx := context.Background()

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AutoplayChanged {
		a.calls.SetDelays(new.Autoplay.Delays())
		slog.Info("autoplay delays changed", "delays", new.Autoplay.Delays())
	}
	if d.CharactersChanged {
		var changed []character.Character
		for _, cd := range d.CharacterChanges {
			if cd.Removed {
				slog.Warn("removed character stays available until restart", "character", cd.ID)
				continue
			}
			for _, c := range new.Characters {
				if c.ID == cd.ID {
					changed = append(changed, c)
				}
			}
		}
		if err := a.seedCharacters(ctx, changed); err != nil {
			slog.Error("apply character changes", "err", err)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
	a.cfg = new
}

// SlogLevel converts a config log level to a slog level. Unknown values map
// to info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
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
