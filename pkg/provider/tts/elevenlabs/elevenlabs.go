// Package elevenlabs provides the premium TTS provider client. It calls the
// elevenlabs-tts edge function and implements the tts.Provider interface.
//
// Unlike the standard provider, an HTTP 401 carrying the invalid_api_key
// signature is reported as a credential failure, which callers treat as
// permanent for the rest of the session.
package elevenlabs

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/voice"
)

// Path is the edge function path relative to the server base URL.
const Path = "/functions/v1/elevenlabs-tts"

const defaultTimeout = 30 * time.Second

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client implements tts.Provider against the elevenlabs-tts edge function.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("elevenlabs: baseURL must not be empty")
	}
	c := &Client{
		url:        strings.TrimRight(baseURL, "/") + Path,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Name returns "elevenlabs".
func (c *Client) Name() string { return string(voice.ProviderElevenLabs) }

// Synthesize requests premium audio for text spoken by v.
func (c *Client) Synthesize(ctx context.Context, text string, v voice.Descriptor) (*tts.Audio, error) {
	return tts.PostEdge(ctx, c.httpClient, tts.EdgeCall{
		Provider: c.Name(),
		URL:      c.url,
		Token:    c.token,
		Classify: tts.ClassifyOptions{MatchCredential: true},
	}, tts.EdgeRequest{Text: text, VoiceType: v.ID})
}

var _ tts.Provider = (*Client)(nil)
