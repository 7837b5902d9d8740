// Package ttsengine turns a character message into audio by choosing a
// provider and voice, calling it, and falling back once to the standard
// provider when the first attempt fails.
//
// An [Engine] is shared and immutable. Each conversation surface (a browser
// tab, a voice call, a CLI invocation) opens its own [Session], which owns the
// sticky "premium disabled" flag: after the premium provider rejects its
// credential, that session stops asking it for the rest of its lifetime.
// Sessions never influence each other.
//
// Each request runs through a small explicit state machine (see [State] and
// [Transition]) so that the attempt budget is structural rather than a
// counter.
package ttsengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/resilience"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/speechtext"
	"github.com/MrWong99/voxpal/pkg/voice"
)

// DefaultAttemptTimeout bounds a single provider call.
const DefaultAttemptTimeout = 15 * time.Second

// ErrAllProvidersFailed is returned when every permitted attempt failed. The
// returned error also wraps each attempt's error, so [tts.KindOf] and
// [errors.As] still work on it.
var ErrAllProvidersFailed = errors.New("ttsengine: all providers failed")

// Option is a functional option for [New].
type Option func(*Engine)

// WithAttemptTimeout sets the per-attempt timeout. Values <= 0 keep the
// default.
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxChars sets the rune cap applied to normalized text. Values <= 0
// disable the cap.
func WithMaxChars(n int) Option {
	return func(e *Engine) {
		e.maxChars = n
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine holds the two providers and the request policy.
type Engine struct {
	standard tts.Provider
	premium  tts.Provider
	timeout  time.Duration
	maxChars int
	metrics  *observe.Metrics
}

// New creates an Engine. standard is required; premium may be nil, in which
// case premium voices are always served by their standard fallback.
func New(standard, premium tts.Provider, opts ...Option) (*Engine, error) {
	if standard == nil {
		return nil, errors.New("ttsengine: standard provider must not be nil")
	}
	e := &Engine{
		standard: standard,
		premium:  premium,
		timeout:  DefaultAttemptTimeout,
		maxChars: speechtext.MaxPlaybackChars,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e, nil
}

// NewSession opens a session with a fresh premium flag.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e, id: uuid.NewString()}
}

// Session is the per-surface view of an [Engine]. It is safe for concurrent
// use; the premium flag is the only shared state.
type Session struct {
	engine          *Engine
	id              string
	premiumDisabled resilience.Latch
}

// ID returns the session id used in logs.
func (s *Session) ID() string { return s.id }

// PremiumDisabled reports whether the premium provider has been disabled for
// this session.
func (s *Session) PremiumDisabled() bool { return s.premiumDisabled.Tripped() }

// Request describes one synthesis request.
type Request struct {
	RawText        string
	NormalizedText string
	Voice          voice.Descriptor

	// AttemptedProviders lists provider names in call order. It never holds
	// more than two entries.
	AttemptedProviders []string
}

// Attempt is the outcome of one provider call.
type Attempt struct {
	Provider string
	Voice    voice.Descriptor
	Err      error
	Duration time.Duration
}

// Result is the outcome of a request.
type Result struct {
	// Audio is nil when Skipped.
	Audio *tts.Audio

	// Provider and Voice identify who produced Audio.
	Provider string
	Voice    voice.Descriptor

	// Skipped is true when the text normalized to nothing. No provider was
	// called.
	Skipped bool

	// Fallback is true when Audio came from the second attempt.
	Fallback bool

	Request  Request
	Attempts []Attempt

	// Path lists every state the request went through.
	Path []State
}

// Speak normalizes rawText for speech and synthesizes it with voiceID.
func (s *Session) Speak(ctx context.Context, rawText, voiceID string) (*Result, error) {
	text := speechtext.Normalize(rawText, s.engine.maxChars)
	return s.synthesize(ctx, rawText, text, voiceID)
}

// Synthesize synthesizes already-normalized text with voiceID. Text is only
// trimmed and capped, not cleaned.
func (s *Session) Synthesize(ctx context.Context, text, voiceID string) (*Result, error) {
	normalized := speechtext.Truncate(strings.TrimSpace(text), s.engine.maxChars)
	return s.synthesize(ctx, text, normalized, voiceID)
}

type plan struct {
	provider tts.Provider
	voice    voice.Descriptor
}

func (s *Session) synthesize(ctx context.Context, raw, text, voiceID string) (*Result, error) {
	e := s.engine
	requested := voice.Resolve(voiceID)
	m := newMachine()
	res := &Result{
		Request: Request{RawText: raw, NormalizedText: text, Voice: requested},
	}
	finish := func() { res.Path = m.path }

	if text == "" {
		if err := m.fire(EventSkip); err != nil {
			return nil, err
		}
		res.Skipped = true
		finish()
		return res, nil
	}

	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "ttsengine.speak", trace.WithAttributes(
		attribute.String("session_id", s.id),
		attribute.String("voice", requested.ID),
	))
	defer func() {
		e.metrics.SpeakDuration.Record(ctx, time.Since(start).Seconds())
	}()

	fallback := plan{provider: e.standard, voice: voice.FallbackFor(requested.ID)}
	primary := fallback
	hasFallback := false
	if requested.IsPremium() && e.premium != nil && !s.premiumDisabled.Tripped() {
		primary = plan{provider: e.premium, voice: requested}
		hasFallback = true
	}

	if err := m.fire(EventStart); err != nil {
		observe.EndSpan(span, err)
		return nil, err
	}
	audio, err := s.attempt(ctx, res, primary, text)
	if err == nil {
		return s.succeed(res, m, span, primary, audio, false)
	}

	if !hasFallback {
		if ferr := m.fire(EventExhausted); ferr != nil {
			observe.EndSpan(span, ferr)
			return nil, ferr
		}
		finish()
		err = fmt.Errorf("%w: %w", ErrAllProvidersFailed, err)
		observe.EndSpan(span, err)
		return res, err
	}

	kind := tts.KindOf(err)
	if kind == tts.KindCredential && s.premiumDisabled.Trip(err.Error()) {
		e.metrics.RecordProviderDisabled(ctx, primary.provider.Name())
		observe.Logger(ctx).Warn("premium provider disabled for session",
			"session_id", s.id,
			"provider", primary.provider.Name(),
			"err", err,
		)
	}

	if ctx.Err() != nil {
		if ferr := m.fire(EventCancel); ferr != nil {
			observe.EndSpan(span, ferr)
			return nil, ferr
		}
		finish()
		cerr := fmt.Errorf("ttsengine: speak: %w", errors.Join(ctx.Err(), err))
		observe.EndSpan(span, cerr)
		return res, cerr
	}

	if ferr := m.fire(EventFailure); ferr != nil {
		observe.EndSpan(span, ferr)
		return nil, ferr
	}
	e.metrics.RecordFallback(ctx, string(kind))
	observe.Logger(ctx).Info("falling back to standard voice",
		"session_id", s.id,
		"from_voice", primary.voice.ID,
		"to_voice", fallback.voice.ID,
		"reason", string(kind),
	)

	audio, ferr := s.attempt(ctx, res, fallback, text)
	if ferr == nil {
		return s.succeed(res, m, span, fallback, audio, true)
	}
	if terr := m.fire(EventFailure); terr != nil {
		observe.EndSpan(span, terr)
		return nil, terr
	}
	finish()
	all := fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(err, ferr))
	observe.EndSpan(span, all)
	return res, all
}

func (s *Session) succeed(res *Result, m *machine, span trace.Span, p plan, audio *tts.Audio, fallback bool) (*Result, error) {
	if err := m.fire(EventSuccess); err != nil {
		observe.EndSpan(span, err)
		return nil, err
	}
	res.Audio = audio
	res.Provider = p.provider.Name()
	res.Voice = p.voice
	res.Fallback = fallback
	res.Path = m.path
	span.SetAttributes(
		attribute.String("provider", res.Provider),
		attribute.Bool("fallback", fallback),
	)
	observe.EndSpan(span, nil)
	return res, nil
}

// attempt makes exactly one provider call under the per-attempt timeout.
func (s *Session) attempt(ctx context.Context, res *Result, p plan, text string) (*tts.Audio, error) {
	e := s.engine
	name := p.provider.Name()
	res.Request.AttemptedProviders = append(res.Request.AttemptedProviders, name)

	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	actx, span := observe.StartSpan(actx, "ttsengine.attempt", trace.WithAttributes(
		attribute.String("provider", name),
		attribute.String("voice", p.voice.ID),
	))

	start := time.Now()
	audio, err := p.provider.Synthesize(actx, text, p.voice)
	if err == nil && (audio == nil || len(audio.Data) == 0) {
		err = &tts.Error{Provider: name, Kind: tts.KindTransient, Err: errors.New("empty audio")}
	}
	if err != nil {
		var te *tts.Error
		if !errors.As(err, &te) {
			// Providers outside this module may return bare errors.
			err = tts.ClassifyTransport(name, err)
		}
	}
	elapsed := time.Since(start)

	res.Attempts = append(res.Attempts, Attempt{Provider: name, Voice: p.voice, Err: err, Duration: elapsed})

	status := "ok"
	if err != nil {
		status = "error"
		e.metrics.RecordProviderError(ctx, name, string(tts.KindOf(err)))
		observe.Logger(actx).Warn("tts attempt failed",
			"session_id", s.id,
			"provider", name,
			"voice", p.voice.ID,
			"kind", string(tts.KindOf(err)),
			"duration", elapsed,
			"err", err,
		)
	} else {
		observe.Logger(actx).Debug("tts attempt succeeded",
			"session_id", s.id,
			"provider", name,
			"voice", p.voice.ID,
			slog.Int("bytes", len(audio.Data)),
			"duration", elapsed,
		)
	}
	e.metrics.RecordProviderRequest(ctx, name, status, elapsed.Seconds())
	observe.EndSpan(span, err)
	return audio, err
}
