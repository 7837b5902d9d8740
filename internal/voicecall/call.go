// Package voicecall runs a live voice call with one character over a
// WebSocket.
//
// The client renders the conversation and owns the speaker; the server owns
// synthesis and the playback state machine. Control messages are JSON text
// frames (see [ClientMessage] and [ServerMessage]); each clip is a play
// header followed by one binary frame of audio. The client acknowledges every
// clip with started, then ended or error.
//
// A call owns one playback controller, one autoplay coordinator and one
// speech session. Every asynchronous completion checks the call's active
// flag, so nothing reaches the client once the call has been torn down.
package voicecall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voxpal/internal/autoplay"
	"github.com/MrWong99/voxpal/internal/character"
	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/playback"
	"github.com/MrWong99/voxpal/internal/ttsengine"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 64 << 10
)

// errInactive is returned by sends after teardown.
var errInactive = errors.New("voicecall: call is not active")

// Call is one live voice call.
type Call struct {
	id           string
	conn         *websocket.Conn
	char         character.Character
	session      *ttsengine.Session
	startTimeout time.Duration
	metrics      *observe.Metrics
	log          *slog.Logger

	ctrl  *playback.Controller
	coord *autoplay.Coordinator

	ctx    context.Context
	cancel context.CancelFunc
	active atomic.Bool

	writeMu sync.Mutex

	nextID  atomic.Uint64
	mu      sync.Mutex
	handles map[uint64]*remoteHandle
}

type callConfig struct {
	conn         *websocket.Conn
	char         character.Character
	session      *ttsengine.Session
	delays       autoplay.Delays
	startTimeout time.Duration
	metrics      *observe.Metrics
}

func newCall(ctx context.Context, cfg callConfig) (*Call, error) {
	cctx, cancel := context.WithCancel(ctx)
	c := &Call{
		id:           cfg.session.ID(),
		conn:         cfg.conn,
		char:         cfg.char,
		session:      cfg.session,
		startTimeout: cfg.startTimeout,
		metrics:      cfg.metrics,
		ctx:          cctx,
		cancel:       cancel,
		handles:      make(map[uint64]*remoteHandle),
	}
	c.log = observe.Logger(ctx).With("call_id", c.id, "character", cfg.char.ID)

	ctrl, err := playback.New(playback.Config{
		Speaker:  cfg.session,
		VoiceID:  cfg.char.ResolvedVoice().ID,
		Player:   remotePlayer{call: c},
		Mode:     playback.ModeManual,
		Metrics:  cfg.metrics,
		OnChange: c.onStateChange,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("voicecall: %w", err)
	}
	coord, err := autoplay.New(autoplay.Config{
		Speech:  autoplay.SpeechFunc(ctrl.AutoPlay),
		SFX:     c,
		Delays:  cfg.delays,
		Metrics: cfg.metrics,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("voicecall: %w", err)
	}
	c.ctrl, c.coord = ctrl, coord
	c.active.Store(true)
	return c, nil
}

// ID returns the call id.
func (c *Call) ID() string { return c.id }

// SetDelays changes the autoplay delays for future messages.
func (c *Call) SetDelays(d autoplay.Delays) { c.coord.SetDelays(d) }

// Run serves the call until the client disconnects or ctx is done.
func (c *Call) Run() error {
	defer c.teardown()

	c.metrics.ActiveCalls.Add(c.ctx, 1)
	defer c.metrics.ActiveCalls.Add(context.Background(), -1)
	c.log.Info("voice call started", "voice", c.char.ResolvedVoice().ID)

	if err := c.send(ServerMessage{
		Type:      TypeReady,
		Character: c.char.Name,
		Voice:     c.char.ResolvedVoice().ID,
	}); err != nil {
		return err
	}

	c.conn.SetReadLimit(readLimit)
	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				c.log.Info("voice call ended")
				return nil
			}
			c.log.Info("voice call ended", "err", err)
			return fmt.Errorf("voicecall: read: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("voicecall: bad client message", "err", err)
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch handles one client message. It never blocks on playback: clip
// starts wait for acknowledgements that only this read loop can deliver.
func (c *Call) dispatch(msg ClientMessage) {
	switch msg.Type {
	case TypeMessage:
		c.coord.Render(c.ctx, autoplay.Message{
			ID:   msg.ID,
			Role: autoplay.Role(msg.Role),
			Text: msg.Text,
		}, msg.Autoplay)
	case TypeForget:
		c.coord.Forget(msg.ID)
	case TypeSay:
		finish := c.ctrl.BeginToggle(c.ctx, msg.Text)
		go func() {
			if err := finish(); err != nil {
				c.log.Debug("voicecall: say failed", "err", err)
			}
		}()
	case TypeStop:
		c.ctrl.Stop()
	case TypeStarted, TypeEnded, TypeError:
		c.mu.Lock()
		h := c.handles[msg.Playback]
		c.mu.Unlock()
		if h != nil {
			h.ack(msg)
		}
	default:
		c.log.Debug("voicecall: unknown client message", "type", msg.Type)
	}
}

// teardown stops everything the call owns. Order matters: the active flag
// goes first so in-flight completions stay silent.
func (c *Call) teardown() {
	c.active.Store(false)
	c.cancel()
	_ = c.coord.Close()
	_ = c.ctrl.Close()
	_ = c.conn.Close(websocket.StatusNormalClosure, "call ended")
}

func (c *Call) onStateChange(st playback.Status) {
	msg := ServerMessage{Type: TypeState, State: st.State.String(), Provider: st.Provider}
	if st.Err != nil {
		msg.Error = st.Err.Error()
	}
	if err := c.send(msg); err != nil && !errors.Is(err, errInactive) {
		c.log.Debug("voicecall: send state", "err", err)
	}
}

// PlayCue implements autoplay.SFX.
func (c *Call) PlayCue(_ context.Context, cue autoplay.Cue) error {
	return c.send(ServerMessage{Type: TypeSFX, Cue: string(cue)})
}

func (c *Call) send(msg ServerMessage) error {
	if !c.active.Load() {
		return errInactive
	}
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, c.conn, msg)
}

// sendAudio writes the play header and the audio frame back to back.
func (c *Call) sendAudio(ctx context.Context, id uint64, url string, blob playback.Blob) error {
	if !c.active.Load() {
		return errInactive
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	header := ServerMessage{
		Type:        TypePlay,
		Playback:    id,
		URL:         url,
		ContentType: blob.ContentType,
		Bytes:       len(blob.Data),
	}
	if err := wsjson.Write(ctx, c.conn, header); err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageBinary, blob.Data)
}

func (c *Call) openHandle(url string, blob playback.Blob) *remoteHandle {
	id := c.nextID.Add(1)
	h := newRemoteHandle(c, id, url, blob)
	c.mu.Lock()
	c.handles[id] = h
	c.mu.Unlock()
	return h
}

func (c *Call) dropHandle(id uint64) {
	c.mu.Lock()
	delete(c.handles, id)
	c.mu.Unlock()
}

var _ autoplay.SFX = (*Call)(nil)
