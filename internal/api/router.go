// Package api mounts every voxpal HTTP route on one chi router: the two
// provider edge functions, the server-side speech endpoint, the voice and
// character catalogs, voice calls, health probes and metrics.
//
// Everything under /functions and /v1 requires a bearer token when a
// verifier is configured.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxpal/internal/auth"
	"github.com/MrWong99/voxpal/internal/character"
	"github.com/MrWong99/voxpal/internal/edge"
	"github.com/MrWong99/voxpal/internal/health"
	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/ttsengine"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/voxpal/pkg/provider/tts/google"
)

// Config holds the route dependencies.
type Config struct {
	// Standard serves the google-tts edge function. Required.
	Standard tts.Provider

	// Premium serves the elevenlabs-tts edge function. When nil the route
	// answers every request with a credential failure.
	Premium tts.Provider

	// EdgeMaxChars caps edge function text. <= 0 uses the edge default.
	EdgeMaxChars int

	// Sessions hands out per-user engine sessions. Required.
	Sessions *ttsengine.Pool

	// Characters backs the character routes. Required.
	Characters character.Store

	// Calls serves voice call websockets. Optional.
	Calls http.Handler

	// Health serves the probes. Optional.
	Health *health.Handler

	// Verifier authenticates requests. When nil, routes are public.
	Verifier *auth.Verifier

	// Metrics is the scrape handler. Default: promhttp.Handler().
	Metrics http.Handler

	// HTTPMetrics records request durations. Default:
	// observe.DefaultMetrics().
	HTTPMetrics *observe.Metrics
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) (http.Handler, error) {
	if cfg.Standard == nil {
		return nil, errors.New("api: standard provider must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("api: session pool must not be nil")
	}
	if cfg.Characters == nil {
		return nil, errors.New("api: character store must not be nil")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	if cfg.HTTPMetrics == nil {
		cfg.HTTPMetrics = observe.DefaultMetrics()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(observe.Middleware(cfg.HTTPMetrics))
	r.Use(chimiddleware.Recoverer)

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", cfg.Metrics)

	var premium http.Handler = http.HandlerFunc(premiumUnconfigured)
	if cfg.Premium != nil {
		premium = edge.NewHandler(cfg.Premium, cfg.EdgeMaxChars)
	}
	speech := &speechHandler{sessions: cfg.Sessions, chars: cfg.Characters}
	cat := &catalogHandler{chars: cfg.Characters}

	r.Group(func(r chi.Router) {
		if cfg.Verifier != nil {
			r.Use(cfg.Verifier.Middleware)
		}
		r.Method(http.MethodPost, google.Path, edge.NewHandler(cfg.Standard, cfg.EdgeMaxChars))
		r.Method(http.MethodPost, elevenlabs.Path, premium)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/voices", cat.Voices)
			r.Get("/characters", cat.Characters)
			r.Get("/characters/{id}", cat.Character)
			r.Post("/characters/{id}/speech", speech.ServeHTTP)
			if cfg.Calls != nil {
				r.Method(http.MethodGet, "/calls/{characterID}", cfg.Calls)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		edge.WriteError(w, http.StatusNotFound, codeNotFound, "not found")
	})
	return r, nil
}

// premiumUnconfigured answers like an upstream that rejected its key, so
// clients fall back to standard voices for the rest of their session.
func premiumUnconfigured(w http.ResponseWriter, _ *http.Request) {
	edge.WriteError(w, http.StatusUnauthorized, tts.CredentialSignature, "premium provider is not configured")
}
