package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrWong99/voxpal/internal/auth"
	"github.com/MrWong99/voxpal/internal/character"
	"github.com/MrWong99/voxpal/internal/edge"
	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/ttsengine"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
)

const (
	codeNotFound = "not_found"
	codeInternal = "internal"

	maxSpeechBody = 64 << 10
)

// Response headers describing who produced the audio.
const (
	HeaderProvider = "X-TTS-Provider"
	HeaderVoice    = "X-TTS-Voice"
	HeaderFallback = "X-TTS-Fallback"
)

// SpeechRequest is the body of POST /v1/characters/{id}/speech. Text is the
// raw assistant message; narration and markup are stripped before synthesis.
type SpeechRequest struct {
	Text string `json:"text"`
}

type speechHandler struct {
	sessions *ttsengine.Pool
	chars    character.Store
}

func (h *speechHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := loadCharacter(w, r, h.chars)
	if !ok {
		return
	}

	var req SpeechRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSpeechBody)).Decode(&req); err != nil {
		edge.WriteError(w, http.StatusBadRequest, edge.CodeBadRequest, "invalid request body")
		return
	}

	res, err := h.session(ctx).Speak(ctx, req.Text, c.ResolvedVoice().ID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		status, code, msg := speechStatus(err)
		observe.Logger(ctx).Warn("speech request failed",
			"character", c.ID,
			"status", status,
			"err", err,
		)
		edge.WriteError(w, status, code, msg)
		return
	}
	if res.Skipped {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ct := res.Audio.ContentType
	if !tts.IsAudioType(ct) {
		ct = tts.DefaultContentType
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio.Data)))
	w.Header().Set(HeaderProvider, res.Provider)
	w.Header().Set(HeaderVoice, res.Voice.ID)
	w.Header().Set(HeaderFallback, strconv.FormatBool(res.Fallback))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio.Data)
}

// session returns the caller's pooled session. Anonymous callers get a
// throwaway session so they never share a premium flag.
func (h *speechHandler) session(ctx context.Context) *ttsengine.Session {
	user := auth.UserFrom(ctx)
	if user == uuid.Nil {
		return h.sessions.Engine().NewSession()
	}
	return h.sessions.Get(user.String())
}

// speechStatus maps an engine failure to a response. Credential failures are
// the server's own keys, so they surface as upstream errors rather than 401.
func speechStatus(err error) (int, string, string) {
	if tts.KindOf(err) == tts.KindQuota {
		return http.StatusTooManyRequests, tts.QuotaCode, "speech quota exceeded"
	}
	if errors.Is(err, ttsengine.ErrAllProvidersFailed) {
		return http.StatusBadGateway, edge.CodeUpstream, "speech synthesis failed"
	}
	return http.StatusInternalServerError, codeInternal, "speech synthesis failed"
}

// loadCharacter resolves the {id} route parameter, writing the error response
// itself when that fails.
func loadCharacter(w http.ResponseWriter, r *http.Request, store character.Store) (*character.Character, bool) {
	id := chi.URLParam(r, "id")
	c, err := store.Get(r.Context(), id)
	if errors.Is(err, character.ErrNotFound) {
		edge.WriteError(w, http.StatusNotFound, codeNotFound, "character not found")
		return nil, false
	}
	if err != nil {
		observe.Logger(r.Context()).Error("load character", "character", id, "err", err)
		edge.WriteError(w, http.StatusInternalServerError, codeInternal, "could not load character")
		return nil, false
	}
	return c, true
}
