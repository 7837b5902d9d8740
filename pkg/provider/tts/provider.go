// Package tts defines the Provider interface for text-to-speech backends and
// the failure taxonomy shared by every provider.
//
// A provider performs exactly one synthesis call per [Provider.Synthesize]
// invocation. It never retries: choosing another provider or voice after a
// failure is the job of the caller (see internal/ttsengine). Failures are
// reported as [*Error] values whose [Kind] tells the caller whether the
// failure is transient, a permanent credential problem, or a quota limit.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/voxpal/pkg/voice"
)

// DefaultContentType is assumed for audio whose declared type is missing or
// not an audio type.
const DefaultContentType = "audio/mpeg"

// Audio is a complete synthesized clip.
type Audio struct {
	// Data holds the encoded audio (MP3 for both built-in providers).
	Data []byte

	// ContentType is the MIME type declared by the backend.
	ContentType string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Name returns the provider identifier used in logs and metrics.
	Name() string

	// Synthesize converts text to audio using v. text must already be
	// normalized; an empty text is a caller bug and yields an error.
	//
	// On failure the returned error is (or wraps) an [*Error]. A successful
	// call never returns empty audio.
	Synthesize(ctx context.Context, text string, v voice.Descriptor) (*Audio, error)
}
