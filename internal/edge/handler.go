package edge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/internal/resilience"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/speechtext"
	"github.com/MrWong99/voxpal/pkg/voice"
)

// maxRequestBytes bounds an edge request body.
const maxRequestBytes = 1 << 20

// Error codes returned in [tts.EdgeError.Code].
const (
	CodeEmptyText   = "empty_text"
	CodeBadRequest  = "bad_request"
	CodeUpstream    = "upstream_error"
	CodeUnavailable = "unavailable"
)

// Handler serves one edge function. It accepts a JSON [tts.EdgeRequest] and
// answers with audio.
type Handler struct {
	backend  tts.Provider
	maxChars int
}

// NewHandler creates a Handler for backend. maxChars <= 0 uses
// speechtext.MaxServerChars.
func NewHandler(backend tts.Provider, maxChars int) *Handler {
	if maxChars <= 0 {
		maxChars = speechtext.MaxServerChars
	}
	return &Handler{backend: backend, maxChars: maxChars}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tts.EdgeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	text := speechtext.Truncate(strings.TrimSpace(req.Text), h.maxChars)
	if text == "" {
		WriteError(w, http.StatusBadRequest, CodeEmptyText, "text is required")
		return
	}
	v := voice.Resolve(req.VoiceType)

	audio, err := h.backend.Synthesize(r.Context(), text, v)
	if err != nil {
		status, code, msg := StatusFor(err)
		observe.Logger(r.Context()).Warn("edge synthesis failed",
			"backend", h.backend.Name(),
			"voice", v.ID,
			"status", status,
			"err", err,
		)
		WriteError(w, status, code, msg)
		return
	}

	ct := audio.ContentType
	if !tts.IsAudioType(ct) {
		ct = tts.DefaultContentType
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

// StatusFor maps a synthesis error to an HTTP status, error code and public
// message. Credential failures carry the invalid_api_key code so callers can
// tell them apart from other 401s.
func StatusFor(err error) (status int, code, msg string) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return http.StatusServiceUnavailable, CodeUnavailable, "speech backend temporarily unavailable"
	}
	switch tts.KindOf(err) {
	case tts.KindCredential:
		return http.StatusUnauthorized, tts.CredentialSignature, "speech backend rejected its credentials"
	case tts.KindQuota:
		return http.StatusTooManyRequests, tts.QuotaCode, "speech backend quota exceeded"
	default:
		return http.StatusBadGateway, CodeUpstream, "speech backend failed"
	}
}

// WriteError writes a JSON [tts.EdgeError].
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(tts.EdgeError{Error: msg, Code: code})
}
