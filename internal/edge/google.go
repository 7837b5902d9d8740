package edge

import (
	"context"
	"errors"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
	"github.com/MrWong99/voxpal/pkg/voice"
)

// SpeechAPI is the subset of the Google Cloud TTS client used by
// [GoogleBackend].
type SpeechAPI interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// gcpSpeech adapts *texttospeech.Client to [SpeechAPI].
type gcpSpeech struct {
	client *texttospeech.Client
}

func (g gcpSpeech) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return g.client.SynthesizeSpeech(ctx, req)
}

// GoogleConfig configures the Google Cloud TTS connection.
type GoogleConfig struct {
	// CredentialsFile is a service account key file. Empty uses application
	// default credentials.
	CredentialsFile string

	// Endpoint overrides the API endpoint.
	Endpoint string
}

// GoogleBackend synthesizes standard voices with Google Cloud TTS.
type GoogleBackend struct {
	api   SpeechAPI
	close func() error
}

// NewGoogleBackend dials Google Cloud TTS.
func NewGoogleBackend(ctx context.Context, cfg GoogleConfig) (*GoogleBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("edge: google client: %w", err)
	}
	return &GoogleBackend{api: gcpSpeech{client: client}, close: client.Close}, nil
}

// NewGoogleBackendWithAPI creates a GoogleBackend on top of api.
func NewGoogleBackendWithAPI(api SpeechAPI) *GoogleBackend {
	return &GoogleBackend{api: api, close: func() error { return nil }}
}

// Name returns "google".
func (b *GoogleBackend) Name() string { return string(voice.ProviderGoogle) }

// Synthesize renders text as MP3. Voices not served by Google are spoken by
// their standard fallback.
func (b *GoogleBackend) Synthesize(ctx context.Context, text string, v voice.Descriptor) (*tts.Audio, error) {
	gv := voice.GoogleVoiceFor(v.ID)
	resp, err := b.api.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: gv.LanguageCode,
			Name:         gv.Name,
			SsmlGender:   ssmlGender(gv.Gender),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, classifyGRPC(b.Name(), err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, &tts.Error{Provider: b.Name(), Kind: tts.KindTransient, Err: errors.New("empty audio content")}
	}
	return &tts.Audio{Data: resp.GetAudioContent(), ContentType: tts.DefaultContentType}, nil
}

// Close releases the client connection.
func (b *GoogleBackend) Close() error { return b.close() }

func ssmlGender(g voice.Gender) texttospeechpb.SsmlVoiceGender {
	switch g {
	case voice.GenderMale:
		return texttospeechpb.SsmlVoiceGender_MALE
	case voice.GenderFemale:
		return texttospeechpb.SsmlVoiceGender_FEMALE
	default:
		return texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED
	}
}

// classifyGRPC maps a Google API error onto the failure taxonomy.
func classifyGRPC(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return tts.ClassifyTransport(provider, err)
	}
	kind := tts.KindTransient
	switch status.Code(err) {
	case codes.ResourceExhausted:
		kind = tts.KindQuota
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = tts.KindCredential
	}
	return &tts.Error{Provider: provider, Kind: kind, Err: err}
}

var _ tts.Provider = (*GoogleBackend)(nil)
