// Package google provides the standard-tier TTS provider client. It calls the
// google-tts edge function, which synthesizes speech with a Google Cloud
// Text-to-Speech voice. It implements the tts.Provider interface.
package google

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
const Path = "/functions/v1/google-tts"

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

// Client implements tts.Provider against the google-tts edge function.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("google: baseURL must not be empty")
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

// Name returns "google".
func (c *Client) Name() string { return string(voice.ProviderGoogle) }

// Synthesize requests audio for text spoken by v. The edge function maps v to
// a Google voice; non-Google descriptors are resolved there to their standard
// fallback.
func (c *Client) Synthesize(ctx context.Context, text string, v voice.Descriptor) (*tts.Audio, error) {
	return tts.PostEdge(ctx, c.httpClient, tts.EdgeCall{
		Provider: c.Name(),
		URL:      c.url,
		Token:    c.token,
	}, tts.EdgeRequest{Text: text, VoiceType: v.ID})
}

var _ tts.Provider = (*Client)(nil)
