package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/voice"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", WithToken("tok"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSynthesize_Success(t *testing.T) {
	var gotReq tts.EdgeRequest
	var gotAuth, gotPath string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3audio"))
	})

	v := voice.Resolve("eleven-valentina")
	audio, err := c.Synthesize(context.Background(), "Hola", v)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "ID3audio" {
		t.Errorf("Data = %q", audio.Data)
	}
	if audio.ContentType != "audio/mpeg" {
		t.Errorf("ContentType = %q", audio.ContentType)
	}
	if gotPath != Path {
		t.Errorf("path = %q, want %q", gotPath, Path)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Text != "Hola" || gotReq.VoiceType != "eleven-valentina" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestSynthesize_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   tts.Kind
	}{
		{"invalid key", http.StatusUnauthorized, `{"error":"bad key","code":"invalid_api_key"}`, tts.KindCredential},
		{"unauthorized without signature", http.StatusUnauthorized, `{"error":"jwt expired"}`, tts.KindTransient},
		{"quota", http.StatusTooManyRequests, `{"code":"quota_exceeded"}`, tts.KindQuota},
		{"upstream", http.StatusBadGateway, `{"error":"upstream"}`, tts.KindTransient},
		{"empty success", http.StatusOK, "", tts.KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Synthesize(context.Background(), "Hola", voice.Resolve("eleven-mateo"))
			var te *tts.Error
			if !errors.As(err, &te) {
				t.Fatalf("error = %v, want *tts.Error", err)
			}
			if te.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", te.Kind, tt.want)
			}
			if te.Provider != "elevenlabs" {
				t.Errorf("Provider = %q", te.Provider)
			}
		})
	}
}

func TestSynthesize_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Synthesize(ctx, "Hola", voice.Resolve("eleven-mateo"))
	if got := tts.KindOf(err); got != tts.KindTransient {
		t.Errorf("KindOf = %q, want transient (err=%v)", got, err)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty text")
	})
	if _, err := c.Synthesize(context.Background(), "", voice.Resolve("")); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestNew_EmptyBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty baseURL")
	}
}
