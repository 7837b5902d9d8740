package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MrWong99/voxpal/internal/resilience"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/voxpal/pkg/provider/tts/google"
	"github.com/MrWong99/voxpal/pkg/provider/tts/mock"
	"github.com/MrWong99/voxpal/pkg/speechtext"
	"github.com/MrWong99/voxpal/pkg/voice"
)

func postEdge(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEdgeError(t *testing.T, rec *httptest.ResponseRecorder) tts.EdgeError {
	t.Helper()
	var e tts.EdgeError
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestHandler_Success(t *testing.T) {
	t.Parallel()
	backend := &mock.Provider{ProviderName: "google", Audio: &tts.Audio{Data: []byte("ID3ok"), ContentType: "audio/mpeg"}}
	h := NewHandler(backend, 0)

	rec := postEdge(t, h, `{"text":"  Hola  ","voiceType":"es-US-Neural2-A"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), []byte("ID3ok")) {
		t.Errorf("body = %q", rec.Body.Bytes())
	}
	calls := backend.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Text != "Hola" {
		t.Errorf("text = %q, want trimmed", calls[0].Text)
	}
	if calls[0].Voice.ID != "es-US-Chirp3-HD-Kore" {
		t.Errorf("voice = %q, want resolved alias", calls[0].Voice.ID)
	}
}

func TestHandler_ClampsText(t *testing.T) {
	t.Parallel()
	backend := &mock.Provider{}
	h := NewHandler(backend, 0)

	long := strings.Repeat("ñ", speechtext.MaxServerChars+50)
	body, _ := json.Marshal(tts.EdgeRequest{Text: long})
	rec := postEdge(t, h, string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := utf8.RuneCountInString(backend.Calls()[0].Text); got != speechtext.MaxServerChars {
		t.Errorf("runes = %d, want %d", got, speechtext.MaxServerChars)
	}
}

func TestHandler_BadRequests(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty text", `{"text":"","voiceType":"x"}`, CodeEmptyText},
		{"whitespace", `{"text":"   "}`, CodeEmptyText},
		{"invalid json", `{"text":`, CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := &mock.Provider{}
			rec := postEdge(t, NewHandler(backend, 0), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if e := decodeEdgeError(t, rec); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
			if backend.CallCount() != 0 {
				t.Error("backend must not be called")
			}
		})
	}
}

func TestHandler_ErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"credential", &tts.Error{Provider: "p", Kind: tts.KindCredential}, http.StatusUnauthorized, tts.CredentialSignature},
		{"quota", &tts.Error{Provider: "p", Kind: tts.KindQuota}, http.StatusTooManyRequests, tts.QuotaCode},
		{"transient", &tts.Error{Provider: "p", Kind: tts.KindTransient}, http.StatusBadGateway, CodeUpstream},
		{"breaker open", resilience.ErrCircuitOpen, http.StatusServiceUnavailable, CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := postEdge(t, NewHandler(&mock.Provider{Err: tt.err}, 0), `{"text":"Hola"}`)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if e := decodeEdgeError(t, rec); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}
}

// TestHandler_ClientClassification runs the provider clients against the
// handler and checks how each side of the wire sees an upstream failure.
func TestHandler_ClientClassification(t *testing.T) {
	t.Parallel()
	credErr := &tts.Error{Provider: "upstream", Kind: tts.KindCredential}

	tests := []struct {
		name    string
		err     error
		premium bool
		want    tts.Kind
	}{
		{"premium credential", credErr, true, tts.KindCredential},
		{"standard credential stays transient", credErr, false, tts.KindTransient},
		{"premium quota", &tts.Error{Kind: tts.KindQuota}, true, tts.KindQuota},
		{"premium breaker open", resilience.ErrCircuitOpen, true, tts.KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(NewHandler(&mock.Provider{Err: tt.err}, 0))
			defer srv.Close()

			var p tts.Provider
			if tt.premium {
				p, _ = elevenlabs.New(srv.URL)
			} else {
				p, _ = google.New(srv.URL)
			}
			_, err := p.Synthesize(context.Background(), "Hola", voice.Resolve(""))
			if got := tts.KindOf(err); got != tt.want {
				t.Errorf("client KindOf = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}
