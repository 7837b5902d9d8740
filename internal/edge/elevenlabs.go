package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/voice"
)

const (
	// DefaultElevenLabsURL is the public ElevenLabs API.
	DefaultElevenLabsURL = "https://api.elevenlabs.io"

	defaultElevenLabsModel = "eleven_multilingual_v2"
	elevenLabsOutputFormat = "mp3_44100_128"
	maxUpstreamAudio       = 16 << 20
)

// ElevenLabsOption is a functional option for [NewElevenLabsBackend].
type ElevenLabsOption func(*ElevenLabsBackend)

// WithElevenLabsURL overrides the API base URL.
func WithElevenLabsURL(base string) ElevenLabsOption {
	return func(b *ElevenLabsBackend) {
		b.baseURL = strings.TrimRight(base, "/")
	}
}

// WithElevenLabsModel sets the model id (e.g. "eleven_flash_v2_5").
func WithElevenLabsModel(model string) ElevenLabsOption {
	return func(b *ElevenLabsBackend) {
		if model != "" {
			b.model = model
		}
	}
}

// WithElevenLabsHTTPClient replaces the default HTTP client.
func WithElevenLabsHTTPClient(hc *http.Client) ElevenLabsOption {
	return func(b *ElevenLabsBackend) {
		b.httpClient = hc
	}
}

// ElevenLabsBackend synthesizes premium voices with the ElevenLabs REST API.
type ElevenLabsBackend struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewElevenLabsBackend creates an ElevenLabsBackend. apiKey must be non-empty.
func NewElevenLabsBackend(apiKey string, opts ...ElevenLabsOption) (*ElevenLabsBackend, error) {
	if apiKey == "" {
		return nil, errors.New("edge: elevenlabs api key must not be empty")
	}
	b := &ElevenLabsBackend{
		apiKey:     apiKey,
		baseURL:    DefaultElevenLabsURL,
		model:      defaultElevenLabsModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Name returns "elevenlabs".
func (b *ElevenLabsBackend) Name() string { return string(voice.ProviderElevenLabs) }

// elevenLabsRequest is the JSON body of POST /v1/text-to-speech/{voice_id}.
type elevenLabsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize renders text as MP3 with the ElevenLabs voice mapped to v.
func (b *ElevenLabsBackend) Synthesize(ctx context.Context, text string, v voice.Descriptor) (*tts.Audio, error) {
	body, err := json.Marshal(elevenLabsRequest{
		Text:          text,
		ModelID:       b.model,
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, fmt.Errorf("edge: elevenlabs: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		b.baseURL, url.PathEscape(voice.ElevenLabsIDFor(v.ID)), elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("edge: elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", b.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, tts.ClassifyTransport(b.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamAudio))
	if err != nil {
		return nil, tts.ClassifyTransport(b.Name(), fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, tts.Classify(b.Name(), resp.StatusCode, data, nil, tts.ClassifyOptions{MatchCredential: true})
	}
	if len(data) == 0 {
		return nil, &tts.Error{Provider: b.Name(), Kind: tts.KindTransient, Status: resp.StatusCode, Err: errors.New("empty audio response")}
	}
	ct := resp.Header.Get("Content-Type")
	if !tts.IsAudioType(ct) {
		ct = tts.DefaultContentType
	}
	return &tts.Audio{Data: data, ContentType: ct}, nil
}

var _ tts.Provider = (*ElevenLabsBackend)(nil)
