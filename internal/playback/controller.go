// Package playback owns the lifecycle of synthesized audio on one surface:
// creating the transient URL, starting the platform handle, and tearing both
// down exactly once when playback ends, is stopped, or is superseded.
//
// A [Controller] holds at most one audio handle and one URL at a time.
// Starting new audio always releases the previous one first. Each play
// attempt runs under its own context; superseding or closing cancels it, so a
// late completion from an old attempt can never change the controller's
// state.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/ttsengine"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
)

// State is the playback state of a controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Mode selects how failures are reported.
type Mode int

const (
	// ModeManual surfaces synthesis and decode failures to the caller and
	// keeps the last one in [Status] so a retry affordance can be shown.
	ModeManual Mode = iota

	// ModeAutoplay swallows every failure.
	ModeAutoplay
)

// Speaker synthesizes text. *ttsengine.Session satisfies it.
type Speaker interface {
	Speak(ctx context.Context, rawText, voiceID string) (*ttsengine.Result, error)
}

// Status is a snapshot of a controller.
type Status struct {
	State State

	// Err is the last surfaced failure. Always nil in ModeAutoplay.
	Err error

	// Text is the raw text of the current or last request.
	Text string

	// Provider produced the current audio.
	Provider string
}

// Config configures a [Controller].
type Config struct {
	// Speaker synthesizes text for Play and Toggle. Required for those.
	Speaker Speaker

	// VoiceID is the voice used by Play and Toggle.
	VoiceID string

	// Player opens platform handles. Required.
	Player Player

	// URLs hands out transient URLs. Default: a fresh [MemoryURLs].
	URLs URLStore

	// Mode selects error reporting. Default: ModeManual.
	Mode Mode

	// Metrics records state transitions. Default: observe.DefaultMetrics().
	Metrics *observe.Metrics

	// OnChange, if set, is called with every new status outside the lock.
	OnChange func(Status)
}

// attempt is one play request. Its fields are guarded by Controller.mu.
type attempt struct {
	ctx    context.Context
	cancel context.CancelFunc
	text   string
	url    string
	handle Handle
	mode   Mode

	released bool
}

// Controller drives playback on one surface. Operations are serialized; a
// long synthesis or start runs without holding the lock so Stop and Toggle
// stay responsive.
type Controller struct {
	speaker  Speaker
	voiceID  string
	player   Player
	urls     URLStore
	mode     Mode
	metrics  *observe.Metrics
	onChange func(Status)

	mu       sync.Mutex
	state    State
	lastErr  error
	text     string
	provider string
	cur      *attempt
	closed   bool
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Player == nil {
		return nil, errors.New("playback: player must not be nil")
	}
	if cfg.URLs == nil {
		cfg.URLs = NewMemoryURLs()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Controller{
		speaker:  cfg.Speaker,
		voiceID:  cfg.VoiceID,
		player:   cfg.Player,
		urls:     cfg.URLs,
		mode:     cfg.Mode,
		metrics:  cfg.Metrics,
		onChange: cfg.OnChange,
	}, nil
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	return Status{State: c.state, Err: c.lastErr, Text: c.text, Provider: c.provider}
}

// Play synthesizes text with the controller's voice and plays it, replacing
// whatever is playing. Text that normalizes to nothing leaves the controller
// idle.
func (c *Controller) Play(ctx context.Context, text string) error {
	return c.play(ctx, text, c.mode)
}

// AutoPlay is Play in [ModeAutoplay] regardless of the controller's mode:
// every failure is swallowed. It lets one surface mix manual and automatic
// playback.
func (c *Controller) AutoPlay(ctx context.Context, text string) error {
	return c.play(ctx, text, ModeAutoplay)
}

func (c *Controller) play(ctx context.Context, text string, mode Mode) error {
	if c.speaker == nil {
		return errors.New("playback: play: no speaker configured")
	}
	a, notify, err := c.begin(ctx, text, mode)
	if err != nil {
		return err
	}
	notify()
	return c.synthesize(a, text)
}

// synthesize speaks text for attempt a and starts the resulting audio.
func (c *Controller) synthesize(a *attempt, text string) error {
	res, err := c.speaker.Speak(a.ctx, text, c.voiceID)
	if err != nil {
		return c.fail(a, fmt.Errorf("playback: synthesize: %w", err))
	}
	if res.Skipped {
		c.mu.Lock()
		if c.cur != a {
			c.mu.Unlock()
			return nil
		}
		notify := c.releaseLocked(a, StateIdle)
		c.mu.Unlock()
		notify()
		return nil
	}
	return c.start(a, res.Audio, res.Provider)
}

// PlayAudio plays already synthesized audio, replacing whatever is playing.
func (c *Controller) PlayAudio(ctx context.Context, audio *tts.Audio) error {
	if audio == nil {
		return errors.New("playback: play audio: nil audio")
	}
	a, notify, err := c.begin(ctx, "", c.mode)
	if err != nil {
		return err
	}
	notify()
	return c.start(a, audio, "")
}

// Toggle stops audio that is loading or playing; otherwise it plays text.
func (c *Controller) Toggle(ctx context.Context, text string) error {
	return c.BeginToggle(ctx, text)()
}

// BeginToggle takes the toggle decision before returning: it either stops
// the current audio or registers a new loading attempt for text. The
// returned function finishes the work (synthesis and playback start) and may
// block. Callers that must not block can run it in a goroutine while later
// toggles still see this one's decision.
func (c *Controller) BeginToggle(ctx context.Context, text string) func() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() error { return ErrClosed }
	}
	if c.state == StateLoading || c.state == StatePlaying {
		notify := c.stopLocked()
		c.mu.Unlock()
		notify()
		return func() error { return nil }
	}
	if c.speaker == nil {
		c.mu.Unlock()
		return func() error { return errors.New("playback: play: no speaker configured") }
	}
	a, notify := c.beginLocked(ctx, text, c.mode)
	c.mu.Unlock()
	notify()
	return func() error { return c.synthesize(a, text) }
}

// Stop pauses, rewinds and releases the current audio. Stopping an idle
// controller does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	notify := c.stopLocked()
	c.mu.Unlock()
	notify()
}

// Close stops playback and rejects further operations.
func (c *Controller) Close() error {
	c.mu.Lock()
	notify := c.stopLocked()
	c.closed = true
	c.mu.Unlock()
	notify()
	return nil
}

// begin supersedes the current attempt and registers a new one in the
// loading state.
func (c *Controller) begin(ctx context.Context, text string, mode Mode) (*attempt, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}
	a, notify := c.beginLocked(ctx, text, mode)
	return a, notify, nil
}

func (c *Controller) beginLocked(ctx context.Context, text string, mode Mode) (*attempt, func()) {
	stopNotify := c.stopLocked()

	actx, cancel := context.WithCancel(ctx)
	a := &attempt{ctx: actx, cancel: cancel, text: text, mode: mode}
	c.cur = a
	c.lastErr = nil
	c.text = text
	c.provider = ""
	loadNotify := c.setStateLocked(StateLoading)
	return a, func() { stopNotify(); loadNotify() }
}

// start creates the URL and handle for audio and starts playback.
func (c *Controller) start(a *attempt, audio *tts.Audio, provider string) error {
	blob := Blob{Data: audio.Data, ContentType: audio.ContentType}
	if !tts.IsAudioType(blob.ContentType) {
		blob.ContentType = tts.DefaultContentType
	}

	c.mu.Lock()
	if c.cur != a {
		c.mu.Unlock()
		return nil
	}
	url, err := c.urls.Create(blob)
	if err != nil {
		c.mu.Unlock()
		return c.fail(a, err)
	}
	a.url = url
	h, err := c.player.Open(url, blob)
	if err != nil {
		c.mu.Unlock()
		return c.fail(a, fmt.Errorf("playback: open: %w", err))
	}
	a.handle = h
	c.mu.Unlock()

	if err := h.Start(a.ctx); err != nil {
		return c.fail(a, err)
	}

	c.mu.Lock()
	if c.cur != a {
		c.mu.Unlock()
		return nil
	}
	c.provider = provider
	notify := c.setStateLocked(StatePlaying)
	c.mu.Unlock()
	notify()

	go c.watch(a)
	return nil
}

// watch waits for the natural end of a, or for a to be cancelled.
func (c *Controller) watch(a *attempt) {
	select {
	case err := <-a.handle.Done():
		c.mu.Lock()
		if c.cur != a {
			c.mu.Unlock()
			return
		}
		var notify func()
		if err != nil && a.mode == ModeManual && !errors.Is(err, ErrBlocked) {
			c.lastErr = err
			n1 := c.setStateLocked(StateError)
			n2 := c.releaseLocked(a, StateIdle)
			notify = func() { n1(); n2() }
		} else {
			notify = c.releaseLocked(a, StateIdle)
		}
		c.mu.Unlock()
		notify()
		if err != nil {
			slog.Debug("playback ended with error", "err", err)
		}
	case <-a.ctx.Done():
	}
}

// fail ends attempt a with err, reporting it according to the mode.
func (c *Controller) fail(a *attempt, err error) error {
	c.mu.Lock()
	if c.cur != a {
		c.mu.Unlock()
		return nil
	}
	surfaced := a.mode == ModeManual && !errors.Is(err, ErrBlocked) && !errors.Is(err, context.Canceled)
	var notify func()
	if surfaced {
		c.lastErr = err
		n1 := c.setStateLocked(StateError)
		n2 := c.releaseLocked(a, StateIdle)
		notify = func() { n1(); n2() }
	} else {
		notify = c.releaseLocked(a, StateIdle)
	}
	c.mu.Unlock()
	notify()

	if !surfaced {
		slog.Debug("playback failure swallowed", "err", err)
		return nil
	}
	return err
}

// stopLocked pauses, rewinds and releases the current attempt.
func (c *Controller) stopLocked() func() {
	a := c.cur
	if a == nil {
		return func() {}
	}
	if a.handle != nil {
		a.handle.Pause()
		a.handle.Rewind()
	}
	return c.releaseLocked(a, StateIdle)
}

// releaseLocked cancels a, closes its handle and revokes its URL exactly
// once, then moves to state.
func (c *Controller) releaseLocked(a *attempt, state State) func() {
	if !a.released {
		a.released = true
		a.cancel()
		if a.handle != nil {
			if err := a.handle.Close(); err != nil {
				slog.Debug("playback: close handle", "err", err)
			}
		}
		if a.url != "" {
			c.urls.Revoke(a.url)
		}
	}
	if c.cur == a {
		c.cur = nil
	}
	return c.setStateLocked(state)
}

// setStateLocked moves to s, records the transition, and returns the change
// notification to run once the lock is released.
func (c *Controller) setStateLocked(s State) func() {
	from := c.state
	if from == s {
		return func() {}
	}
	c.state = s
	c.metrics.RecordPlaybackTransition(context.Background(), from.String(), s.String())
	if c.onChange == nil {
		return func() {}
	}
	st := c.statusLocked()
	cb := c.onChange
	return func() { cb(st) }
}
