package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// EdgeRequest is the JSON body accepted by the provider edge functions.
type EdgeRequest struct {
	Text      string `json:"text"`
	VoiceType string `json:"voiceType"`
}

// EdgeError is the JSON body edge functions answer with on failure.
type EdgeError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// maxAudioBytes bounds the size of an audio response read into memory.
const maxAudioBytes = 16 << 20

// EdgeCall describes one POST to a provider edge function.
type EdgeCall struct {
	// Provider names the provider for error classification.
	Provider string

	// URL is the full edge function URL.
	URL string

	// Token is sent as a Bearer token. Empty disables the header.
	Token string

	// Classify tunes failure classification.
	Classify ClassifyOptions
}

// PostEdge sends req to an edge function and returns the audio it answers
// with. Every failure is an [*Error]; a 2xx response without audio bytes is a
// transient failure.
func PostEdge(ctx context.Context, client *http.Client, call EdgeCall, req EdgeRequest) (*Audio, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%s: text must not be empty", call.Provider)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", call.Provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, call.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", call.Provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	if call.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+call.Token)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, ClassifyTransport(call.Provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, ClassifyTransport(call.Provider, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Classify(call.Provider, resp.StatusCode, data, nil, call.Classify)
	}
	if len(data) == 0 {
		return nil, Classify(call.Provider, resp.StatusCode, nil, errors.New("empty audio response"), call.Classify)
	}

	return &Audio{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
