package voicecall

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/voxpal/internal/autoplay"
	"github.com/MrWong99/voxpal/internal/character"
	"github.com/MrWong99/voxpal/internal/edge"
	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/ttsengine"
)

// DefaultStartTimeout bounds the wait for a client to start a clip.
const DefaultStartTimeout = 10 * time.Second

// Config configures a [Handler].
type Config struct {
	// Engine synthesizes speech. Required.
	Engine *ttsengine.Engine

	// Characters resolves the {characterID} route parameter. Required.
	Characters character.Store

	// Delays are the autoplay delays for new calls. Default:
	// autoplay.DefaultDelays().
	Delays autoplay.Delays

	// OriginPatterns lists extra allowed Origin hosts for cross-origin
	// clients.
	OriginPatterns []string

	// StartTimeout default: DefaultStartTimeout.
	StartTimeout time.Duration

	// Metrics default: observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Handler accepts voice calls on GET .../{characterID}.
type Handler struct {
	engine       *ttsengine.Engine
	chars        character.Store
	origins      []string
	startTimeout time.Duration
	metrics      *observe.Metrics

	mu     sync.Mutex
	delays autoplay.Delays
	calls  map[*Call]struct{}
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("voicecall: engine must not be nil")
	}
	if cfg.Characters == nil {
		return nil, errors.New("voicecall: character store must not be nil")
	}
	if cfg.Delays == (autoplay.Delays{}) {
		cfg.Delays = autoplay.DefaultDelays()
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultStartTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Handler{
		engine:       cfg.Engine,
		chars:        cfg.Characters,
		origins:      cfg.OriginPatterns,
		startTimeout: cfg.StartTimeout,
		metrics:      cfg.Metrics,
		delays:       cfg.Delays,
		calls:        make(map[*Call]struct{}),
	}, nil
}

// SetDelays changes the autoplay delays of live and future calls.
func (h *Handler) SetDelays(d autoplay.Delays) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delays = d
	for c := range h.calls {
		c.SetDelays(d)
	}
}

// ActiveCalls returns the number of live calls.
func (h *Handler) ActiveCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// ServeHTTP upgrades the request and runs the call until it ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "characterID")
	char, err := h.chars.Get(ctx, id)
	if errors.Is(err, character.ErrNotFound) {
		edge.WriteError(w, http.StatusNotFound, "not_found", "character not found")
		return
	}
	if err != nil {
		observe.Logger(ctx).Error("voicecall: load character", "character", id, "err", err)
		edge.WriteError(w, http.StatusInternalServerError, "internal", "could not load character")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		observe.Logger(ctx).Warn("voicecall: websocket accept failed", "err", err)
		return
	}

	h.mu.Lock()
	delays := h.delays
	h.mu.Unlock()

	call, err := newCall(ctx, callConfig{
		conn:         conn,
		char:         *char,
		session:      h.engine.NewSession(),
		delays:       delays,
		startTimeout: h.startTimeout,
		metrics:      h.metrics,
	})
	if err != nil {
		observe.Logger(ctx).Error("voicecall: start call", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "call setup failed")
		return
	}

	h.mu.Lock()
	if h.delays != delays {
		call.SetDelays(h.delays)
	}
	h.calls[call] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.calls, call)
		h.mu.Unlock()
	}()

	_ = call.Run()
}
