// Package autoplay decides when a rendered chat message speaks by itself.
//
// A [Coordinator] remembers, per message id, whether the message already
// autoplayed and whether its sound-effect cue already played. Both flags are
// one-shot, so re-rendering a message never speaks it twice. When the text
// carries an expressive cue ("*suspira*"), the cue plays first and speech
// starts after the cue's approximate length; otherwise speech starts after a
// short settle delay.
package autoplay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/voxpal/internal/observe"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a rendered chat message.
type Message struct {
	ID   string
	Role Role
	Text string
}

// Delays are the scheduling constants. They are tuned by ear, not derived.
type Delays struct {
	// CueLeadIn is the wait before the cue starts.
	CueLeadIn time.Duration

	// SpeechAfterCue is the wait between the cue starting and speech.
	SpeechAfterCue time.Duration

	// Settle is the wait before speech when there is no cue.
	Settle time.Duration
}

// DefaultDelays returns the stock delays.
func DefaultDelays() Delays {
	return Delays{
		CueLeadIn:      200 * time.Millisecond,
		SpeechAfterCue: 2500 * time.Millisecond,
		Settle:         500 * time.Millisecond,
	}
}

// Speech plays text. *playback.Controller satisfies it.
type Speech interface {
	Play(ctx context.Context, text string) error
}

// SpeechFunc adapts a function to [Speech].
type SpeechFunc func(ctx context.Context, text string) error

// Play calls f.
func (f SpeechFunc) Play(ctx context.Context, text string) error { return f(ctx, text) }

// SFX plays a cue.
type SFX interface {
	PlayCue(ctx context.Context, cue Cue) error
}

// Config configures a [Coordinator].
type Config struct {
	// Speech is required.
	Speech Speech

	// SFX is optional. Without it cues are not detected.
	SFX SFX

	// Delays default to [DefaultDelays] when zero.
	Delays Delays

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// Sleep replaces the timer wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

type flags struct {
	autoplayed bool
	sfxPlayed  bool
}

// Coordinator schedules autoplay for one surface.
type Coordinator struct {
	speech  Speech
	sfx     SFX
	metrics *observe.Metrics
	sleep   func(context.Context, time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	delays Delays
	seen   map[string]*flags
	closed bool
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Speech == nil {
		return nil, errors.New("autoplay: speech must not be nil")
	}
	if cfg.Delays == (Delays{}) {
		cfg.Delays = DefaultDelays()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		speech:  cfg.Speech,
		sfx:     cfg.SFX,
		metrics: cfg.Metrics,
		sleep:   cfg.Sleep,
		ctx:     ctx,
		cancel:  cancel,
		delays:  cfg.Delays,
		seen:    make(map[string]*flags),
	}, nil
}

// SetDelays replaces the delays for triggers scheduled from now on.
func (c *Coordinator) SetDelays(d Delays) {
	c.mu.Lock()
	c.delays = d
	c.mu.Unlock()
}

// Render is called every time msg is rendered. It schedules the cue and
// speech on the first render with autoPlay set and reports whether speech
// was scheduled by this call. User messages never autoplay.
func (c *Coordinator) Render(ctx context.Context, msg Message, autoPlay bool) bool {
	if msg.Role != RoleAssistant || !autoPlay || msg.ID == "" {
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	f := c.seen[msg.ID]
	if f == nil {
		f = &flags{}
		c.seen[msg.ID] = f
	}

	var cue Cue
	playCue := false
	if c.sfx != nil {
		if found, ok := DetectCue(msg.Text); ok && !f.sfxPlayed {
			f.sfxPlayed = true
			cue, playCue = found, true
		}
	}
	speak := !f.autoplayed
	f.autoplayed = true
	delays := c.delays
	if playCue || speak {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if !playCue && !speak {
		return false
	}

	go func() {
		defer c.wg.Done()
		jobCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(c.ctx, cancel)
		defer stop()
		c.run(jobCtx, msg, cue, playCue, speak, delays)
	}()
	return speak
}

func (c *Coordinator) run(ctx context.Context, msg Message, cue Cue, playCue, speak bool, d Delays) {
	log := observe.Logger(ctx)
	if playCue {
		if c.sleep(ctx, d.CueLeadIn) != nil {
			return
		}
		c.metrics.RecordAutoplayTrigger(ctx, "sfx")
		if err := c.sfx.PlayCue(ctx, cue); err != nil {
			log.Debug("autoplay cue failed", "message_id", msg.ID, "cue", string(cue), "err", err)
		}
		if !speak {
			return
		}
		if c.sleep(ctx, d.SpeechAfterCue) != nil {
			return
		}
	} else if c.sleep(ctx, d.Settle) != nil {
		return
	}

	c.metrics.RecordAutoplayTrigger(ctx, "speech")
	if err := c.speech.Play(ctx, msg.Text); err != nil {
		log.Debug("autoplay speech failed", "message_id", msg.ID, "err", err)
	}
}

// Forget drops the flags of a message that left the conversation.
func (c *Coordinator) Forget(id string) {
	c.mu.Lock()
	delete(c.seen, id)
	c.mu.Unlock()
}

// Wait blocks until every scheduled trigger has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels pending triggers and waits for them to return.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
