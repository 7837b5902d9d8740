// Package edge implements the server side of the provider edge functions:
// the upstream speech backends, the guard that protects them, and the HTTP
// handlers the client provider clients call.
//
// A backend is any [tts.Provider]. [GoogleBackend] and [ElevenLabsBackend]
// talk to the real services; [Guard] wraps either one with a circuit
// breaker, an audio cache, and request coalescing so that identical
// concurrent requests reach upstream once.
package edge

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/voxpal/internal/audiocache"
	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/resilience"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/voice"
)

// DefaultUpstreamTimeout bounds one upstream call made by a [Guard].
const DefaultUpstreamTimeout = 20 * time.Second

// GuardConfig configures a [Guard].
type GuardConfig struct {
	// Backend is the guarded upstream. Required.
	Backend tts.Provider

	// Breaker tunes the circuit breaker. Name defaults to the backend name;
	// credential failures always trip it at once.
	Breaker resilience.CircuitBreakerConfig

	// Cache stores successful audio. Nil disables caching.
	Cache audiocache.Cache

	// CacheTTL is the lifetime of cached audio. <= 0 keeps entries until
	// evicted.
	CacheTTL time.Duration

	// Timeout bounds one upstream call. Default: DefaultUpstreamTimeout.
	Timeout time.Duration

	// Metrics records cache lookups and breaker trips.
	// Default: observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Guard protects a backend. It implements [tts.Provider].
type Guard struct {
	backend tts.Provider
	breaker *resilience.CircuitBreaker
	cache   audiocache.Cache
	ttl     time.Duration
	timeout time.Duration
	metrics *observe.Metrics
	group   singleflight.Group
}

// NewGuard creates a Guard.
func NewGuard(cfg GuardConfig) (*Guard, error) {
	if cfg.Backend == nil {
		return nil, errors.New("edge: guard: backend must not be nil")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultUpstreamTimeout
	}
	bc := cfg.Breaker
	if bc.Name == "" {
		bc.Name = cfg.Backend.Name()
	}
	bc.TripImmediately = tts.IsCredential
	metrics := cfg.Metrics
	hook := bc.OnStateChange
	bc.OnStateChange = func(name string, from, to resilience.State) {
		if to == resilience.StateOpen {
			metrics.RecordBreakerTrip(context.Background(), name)
		}
		if hook != nil {
			hook(name, from, to)
		}
	}
	return &Guard{
		backend: cfg.Backend,
		breaker: resilience.NewCircuitBreaker(bc),
		cache:   cfg.Cache,
		ttl:     cfg.CacheTTL,
		timeout: cfg.Timeout,
		metrics: metrics,
	}, nil
}

// Name returns the backend name.
func (g *Guard) Name() string { return g.backend.Name() }

// BreakerState returns the state of the guard's circuit breaker.
func (g *Guard) BreakerState() resilience.State { return g.breaker.State() }

// Synthesize serves text from the cache, or from the backend through the
// breaker. Concurrent identical requests share one upstream call. When the
// breaker is open the error wraps [resilience.ErrCircuitOpen].
func (g *Guard) Synthesize(ctx context.Context, text string, v voice.Descriptor) (*tts.Audio, error) {
	key := audiocache.Key(g.Name(), v.ID, text)
	if g.cache != nil {
		audio, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			observe.Logger(ctx).Warn("audio cache get failed", "backend", g.Name(), "err", err)
		}
		g.metrics.RecordCacheLookup(ctx, ok)
		if ok {
			return audio, nil
		}
	}

	// The shared call must not die with the first caller.
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		uctx, cancel := context.WithTimeout(shared, g.timeout)
		defer cancel()
		var audio *tts.Audio
		err := g.breaker.Execute(uctx, func(ctx context.Context) error {
			var err error
			audio, err = g.backend.Synthesize(ctx, text, v)
			return err
		})
		if err != nil {
			return nil, err
		}
		if g.cache != nil {
			if err := g.cache.Set(shared, key, audio, g.ttl); err != nil {
				observe.Logger(shared).Warn("audio cache set failed", "backend", g.Name(), "err", err)
			}
		}
		return audio, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		a := *res.Val.(*tts.Audio)
		return &a, nil
	case <-ctx.Done():
		return nil, tts.ClassifyTransport(g.Name(), ctx.Err())
	}
}

var _ tts.Provider = (*Guard)(nil)
