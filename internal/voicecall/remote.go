package voicecall

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/voxpal/internal/playback"
)

// errStartTimeout is returned when the client never acknowledges a clip.
var errStartTimeout = errors.New("voicecall: client did not start playback")

// remotePlayer opens handles that play on the call's client.
type remotePlayer struct {
	call *Call
}

func (p remotePlayer) Open(url string, blob playback.Blob) (playback.Handle, error) {
	return p.call.openHandle(url, blob), nil
}

// remoteHandle is one clip sent to the client. The client drives it with
// started, ended and error acknowledgements.
type remoteHandle struct {
	call *Call
	id   uint64
	url  string
	blob playback.Blob

	started chan error
	done    chan error

	mu       sync.Mutex
	acked    bool
	finished bool
	closed   bool
}

func newRemoteHandle(c *Call, id uint64, url string, blob playback.Blob) *remoteHandle {
	return &remoteHandle{
		call:    c,
		id:      id,
		url:     url,
		blob:    blob,
		started: make(chan error, 1),
		done:    make(chan error, 1),
	}
}

// Start sends the clip and waits for the client to report that it plays.
func (h *remoteHandle) Start(ctx context.Context) error {
	if err := h.call.sendAudio(ctx, h.id, h.url, h.blob); err != nil {
		return fmt.Errorf("voicecall: send audio: %w", err)
	}
	t := time.NewTimer(h.call.startTimeout)
	defer t.Stop()
	select {
	case err := <-h.started:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return errStartTimeout
	}
}

func (h *remoteHandle) Done() <-chan error { return h.done }

// Pause tells the client to stop the clip.
func (h *remoteHandle) Pause() {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return
	}
	if err := h.call.send(ServerMessage{Type: TypeStop, Playback: h.id}); err != nil {
		h.call.log.Debug("voicecall: send stop", "playback", h.id, "err", err)
	}
}

// Rewind is a no-op. Clients discard a stopped clip.
func (h *remoteHandle) Rewind() {}

func (h *remoteHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.call.dropHandle(h.id)
	return nil
}

// ack applies a client acknowledgement.
func (h *remoteHandle) ack(msg ClientMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch msg.Type {
	case TypeStarted:
		if !h.acked {
			h.acked = true
			h.started <- nil
		}
	case TypeEnded:
		h.finishLocked(nil)
	case TypeError:
		err := clientError(msg.Error)
		if !h.acked {
			h.acked = true
			h.started <- err
			return
		}
		h.finishLocked(err)
	}
}

func (h *remoteHandle) finishLocked(err error) {
	if h.finished {
		return
	}
	h.finished = true
	if !h.acked {
		// Ended before the started ack arrived: treat as started.
		h.acked = true
		h.started <- nil
	}
	h.done <- err
}

// clientError maps a client error code to a playback error.
func clientError(code string) error {
	switch code {
	case ErrCodeBlocked:
		return playback.ErrBlocked
	case ErrCodeDecode:
		return playback.ErrDecode
	case "":
		return errors.New("voicecall: client playback failed")
	default:
		return fmt.Errorf("voicecall: client playback failed: %s", code)
	}
}

var (
	_ playback.Player = remotePlayer{}
	_ playback.Handle = (*remoteHandle)(nil)
)
