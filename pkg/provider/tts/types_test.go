package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		opts   ClassifyOptions
		want   Kind
	}{
		{"no response", 0, "", ClassifyOptions{}, KindTransient},
		{"server error", http.StatusInternalServerError, "boom", ClassifyOptions{}, KindTransient},
		{"bad gateway", http.StatusBadGateway, "", ClassifyOptions{}, KindTransient},
		{"401 with signature and matching", http.StatusUnauthorized, `{"code":"invalid_api_key"}`, ClassifyOptions{MatchCredential: true}, KindCredential},
		{"401 with signature without matching", http.StatusUnauthorized, `{"code":"invalid_api_key"}`, ClassifyOptions{}, KindTransient},
		{"401 without signature", http.StatusUnauthorized, `{"error":"jwt expired"}`, ClassifyOptions{MatchCredential: true}, KindTransient},
		{"403 with signature", http.StatusForbidden, "invalid_api_key", ClassifyOptions{MatchCredential: true}, KindTransient},
		{"429", http.StatusTooManyRequests, "", ClassifyOptions{}, KindQuota},
		{"quota code", http.StatusBadRequest, `{"code":"quota_exceeded"}`, ClassifyOptions{}, KindQuota},
		{"quota words", http.StatusPaymentRequired, "Quota exceeded for this month", ClassifyOptions{}, KindQuota},
		{"resource exhausted", http.StatusInternalServerError, "RESOURCE_EXHAUSTED", ClassifyOptions{}, KindQuota},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify("p", tt.status, []byte(tt.body), nil, tt.opts)
			if e.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", e.Kind, tt.want)
			}
			if e.Status != tt.status {
				t.Errorf("Status = %d, want %d", e.Status, tt.status)
			}
		})
	}
}

func TestClassifyTransport_Timeout(t *testing.T) {
	e := ClassifyTransport("p", context.DeadlineExceeded)
	if e.Kind != KindTransient {
		t.Errorf("Kind = %q, want transient", e.Kind)
	}
	if !errors.Is(e, context.DeadlineExceeded) {
		t.Error("expected error to wrap context.DeadlineExceeded")
	}
}

func TestKindOf(t *testing.T) {
	cred := &Error{Provider: "p", Kind: KindCredential}
	if got := KindOf(fmt.Errorf("wrapped: %w", cred)); got != KindCredential {
		t.Errorf("KindOf(wrapped credential) = %q", got)
	}
	if got := KindOf(errors.New("plain")); got != KindTransient {
		t.Errorf("KindOf(plain) = %q, want transient", got)
	}
	if !IsCredential(cred) {
		t.Error("IsCredential = false, want true")
	}
	if IsCredential(nil) {
		t.Error("IsCredential(nil) = true")
	}
}

func TestError_Message(t *testing.T) {
	e := Classify("elevenlabs", http.StatusTooManyRequests, []byte("slow down"), nil, ClassifyOptions{})
	want := "elevenlabs: quota failure (status 429): slow down"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsAudioType(t *testing.T) {
	for ct, want := range map[string]bool{
		"audio/mpeg":       true,
		"Audio/Wav":        true,
		"application/json": false,
		"":                 false,
	} {
		if got := IsAudioType(ct); got != want {
			t.Errorf("IsAudioType(%q) = %v, want %v", ct, got, want)
		}
	}
}
