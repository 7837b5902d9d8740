// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to script synthesis outcomes and to verify which text and voice
// reached the backend.
//
// Example:
//
//	p := &mock.Provider{
//	    ProviderName: "google",
//	    Responses: []mock.Response{
//	        {Err: &tts.Error{Provider: "google", Kind: tts.KindTransient}},
//	        {Audio: &tts.Audio{Data: []byte("mp3")}},
//	    },
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/voice"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the descriptor passed to Synthesize.
	Voice voice.Descriptor
}

// Response is one scripted outcome of Synthesize.
type Response struct {
	Audio *tts.Audio
	Err   error
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Responses are consumed in order, one per Synthesize call. Once they run
	// out, Audio and Err are used.
	Responses []Response

	// Audio is returned when Responses is exhausted and Err is nil. A nil
	// Audio yields a small placeholder clip.
	Audio *tts.Audio

	// Err, if non-nil, is returned when Responses is exhausted.
	Err error

	// Block makes Synthesize wait for ctx to be done and return its error
	// classified as transient.
	Block bool

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Name returns ProviderName or "mock".
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Synthesize records the call and returns the next scripted response.
func (p *Provider) Synthesize(ctx context.Context, text string, v voice.Descriptor) (*tts.Audio, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: v})
	block := p.Block
	name := p.ProviderName
	var resp Response
	if len(p.Responses) > 0 {
		resp = p.Responses[0]
		p.Responses = p.Responses[1:]
	} else {
		resp = Response{Audio: p.Audio, Err: p.Err}
	}
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		if name == "" {
			name = "mock"
		}
		return nil, tts.ClassifyTransport(name, ctx.Err())
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.Audio == nil {
		return &tts.Audio{Data: []byte("ID3mock"), ContentType: tts.DefaultContentType}, nil
	}
	return resp.Audio, nil
}

// CallCount returns the number of Synthesize calls so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
