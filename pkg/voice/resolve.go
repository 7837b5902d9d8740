package voice

import "strings"

// Resolve maps any voice string to a canonical [Descriptor]. It looks in the
// catalog, then in the legacy alias table (exact, then case-insensitive), and
// finally returns the voice for [DefaultID]. It never fails.
//
// Resolve is idempotent: Resolve(Resolve(s).ID) == Resolve(s).
func Resolve(id string) Descriptor {
	id = strings.TrimSpace(id)
	if d, ok := byID[id]; ok {
		return d
	}
	if canon, ok := legacyAliases[id]; ok {
		return byID[canon]
	}
	lower := strings.ToLower(id)
	for alias, canon := range legacyAliases {
		if strings.ToLower(alias) == lower {
			return byID[canon]
		}
	}
	for _, d := range catalog {
		if strings.ToLower(d.ID) == lower {
			return d
		}
	}
	return byID[DefaultID]
}

// IsKnown reports whether id names a catalog voice or a legacy alias.
func IsKnown(id string) bool {
	id = strings.TrimSpace(id)
	if _, ok := byID[id]; ok {
		return true
	}
	_, ok := legacyAliases[id]
	return ok
}

// ProviderFor returns the provider that serves id after resolution.
func ProviderFor(id string) Provider {
	return Resolve(id).Provider
}

// IsPremium reports whether id resolves to a premium-gated voice.
func IsPremium(id string) bool {
	return Resolve(id).IsPremium()
}

// FallbackFor returns the standard-provider voice used when id cannot be
// served by its own provider. The choice is a fixed table lookup on the
// resolved voice's region and gender; a standard voice is its own fallback.
func FallbackFor(id string) Descriptor {
	d := Resolve(id)
	if d.Provider == ProviderGoogle {
		return d
	}
	if canon, ok := fallbackTable[regionGender{d.Region, d.Gender}]; ok {
		return byID[canon]
	}
	if canon, ok := fallbackDefault[d.Gender]; ok {
		return byID[canon]
	}
	return byID[DefaultID]
}

// GoogleVoiceFor returns the Google voice triple for id. Voices that are not
// served by Google use the triple of their fallback voice.
func GoogleVoiceFor(id string) GoogleVoice {
	d := Resolve(id)
	if d.Google == nil {
		d = FallbackFor(d.ID)
	}
	return *d.Google
}

// ElevenLabsIDFor returns the external ElevenLabs voice id for id. Voices not
// served by ElevenLabs map to a single default voice.
func ElevenLabsIDFor(id string) string {
	if d := Resolve(id); d.ElevenLabsID != "" {
		return d.ElevenLabsID
	}
	return defaultElevenLabsID
}

// All returns every canonical voice in picker order. The returned slice is a
// copy.
func All() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}
