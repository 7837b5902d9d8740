// Package voice is the single catalog of speakable voices.
//
// Every voice string accepted anywhere in voxpal (a character's stored voice,
// a voiceType in an edge function request, a CLI flag) is turned into a
// [Descriptor] through [Resolve]. The catalog also owns the provider-side
// naming tables (Google voice triples, ElevenLabs voice ids) so that the
// client and both provider backends can never disagree about what a voice id
// means.
//
// All functions are pure and safe for concurrent use.
package voice

// Provider identifies the speech backend that serves a voice.
type Provider string

const (
	// ProviderGoogle is the standard provider.
	ProviderGoogle Provider = "google"

	// ProviderElevenLabs is the premium provider.
	ProviderElevenLabs Provider = "elevenlabs"
)

// IsValid reports whether p is a known provider.
func (p Provider) IsValid() bool {
	return p == ProviderGoogle || p == ProviderElevenLabs
}

// IsPremium reports whether voices of this provider are premium-gated.
func (p Provider) IsPremium() bool {
	return p == ProviderElevenLabs
}

// Region is the accent family a voice is presented under.
type Region string

const (
	RegionLatino    Region = "LATINO"
	RegionMexico    Region = "MEXICO"
	RegionEspana    Region = "ESPAÑA"
	RegionArgentina Region = "ARGENTINA"
	RegionVenezuela Region = "VENEZUELA"
	RegionColombia  Region = "COLOMBIA"
)

// Gender of a voice.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// GoogleVoice is the voice selection triple sent to Google Cloud TTS.
type GoogleVoice struct {
	// Name is the Google voice name (e.g. "es-US-Chirp3-HD-Kore").
	Name string

	// LanguageCode is the BCP-47 code the voice belongs to (e.g. "es-US").
	LanguageCode string

	// Gender is the SSML gender of the voice.
	Gender Gender
}

// Descriptor identifies a synthesizable voice.
type Descriptor struct {
	// ID is the canonical catalog key.
	ID string `json:"id"`

	// Provider serves this voice.
	Provider Provider `json:"provider"`

	// Region is the accent family shown in the voice picker.
	Region Region `json:"region"`

	// Gender of the voice.
	Gender Gender `json:"gender"`

	// DisplayName is the human-readable name shown in the voice picker.
	DisplayName string `json:"display_name"`

	// Google is set for ProviderGoogle voices.
	Google *GoogleVoice `json:"-"`

	// ElevenLabsID is the external voice id for ProviderElevenLabs voices.
	ElevenLabsID string `json:"-"`
}

// IsPremium reports whether the voice is premium-gated.
func (d Descriptor) IsPremium() bool {
	return d.Provider.IsPremium()
}
