package voice

// DefaultID is the voice every unknown voice string resolves to.
const DefaultID = "es-US-Chirp3-HD-Kore"

// defaultElevenLabsID is used when an ElevenLabs lookup misses.
const defaultElevenLabsID = "EXAVITQu4vr4xnSDxMaL"

func google(id, lang string, region Region, gender Gender, display string) Descriptor {
	return Descriptor{
		ID:          id,
		Provider:    ProviderGoogle,
		Region:      region,
		Gender:      gender,
		DisplayName: display,
		Google:      &GoogleVoice{Name: id, LanguageCode: lang, Gender: gender},
	}
}

func eleven(id, externalID string, region Region, gender Gender, display string) Descriptor {
	return Descriptor{
		ID:           id,
		Provider:     ProviderElevenLabs,
		Region:       region,
		Gender:       gender,
		DisplayName:  display,
		ElevenLabsID: externalID,
	}
}

// catalog lists every canonical voice in picker order.
var catalog = []Descriptor{
	google("es-US-Chirp3-HD-Kore", "es-US", RegionLatino, GenderFemale, "Kore"),
	google("es-US-Chirp3-HD-Puck", "es-US", RegionLatino, GenderMale, "Puck"),
	google("es-US-Chirp3-HD-Leda", "es-US", RegionMexico, GenderFemale, "Leda"),
	google("es-US-Chirp3-HD-Fenrir", "es-US", RegionMexico, GenderMale, "Fenrir"),
	google("es-ES-Chirp3-HD-Aoede", "es-ES", RegionEspana, GenderFemale, "Aoede"),
	google("es-ES-Chirp3-HD-Charon", "es-ES", RegionEspana, GenderMale, "Charon"),

	eleven("eleven-valentina", "EXAVITQu4vr4xnSDxMaL", RegionLatino, GenderFemale, "Valentina"),
	eleven("eleven-mateo", "ErXwobaYiN019PkySvjV", RegionLatino, GenderMale, "Mateo"),
	eleven("eleven-ximena", "MF3mGyEYCl7XYWbV9V6O", RegionMexico, GenderFemale, "Ximena"),
	eleven("eleven-diego", "TxGEqnHWrfWFTfGW9XjX", RegionMexico, GenderMale, "Diego"),
	eleven("eleven-lucia", "21m00Tcm4TlvDq8ikWAM", RegionEspana, GenderFemale, "Lucía"),
	eleven("eleven-alvaro", "VR6AewLTigWG4xSOukaG", RegionEspana, GenderMale, "Álvaro"),
	eleven("eleven-camila", "AZnzlk1XvdvUeBnXmlld", RegionArgentina, GenderFemale, "Camila"),
	eleven("eleven-tomas", "pNInz6obpgDQGcFmaJgB", RegionArgentina, GenderMale, "Tomás"),
	eleven("eleven-andreina", "ThT5KcBeYPX3keUQqHPh", RegionVenezuela, GenderFemale, "Andreína"),
	eleven("eleven-rafael", "yoZ06aMxZJJ28mfd3POQ", RegionVenezuela, GenderMale, "Rafael"),
	eleven("eleven-mariana", "XB0fDUnXU5powFXDhCwa", RegionColombia, GenderFemale, "Mariana"),
	eleven("eleven-santiago", "onwK4e9ZLuTAKqWW03F9", RegionColombia, GenderMale, "Santiago"),
}

// legacyAliases maps voice strings stored by older app versions to
// canonical ids.
var legacyAliases = map[string]string{
	// Generic gender presets from the first release.
	"female": "es-US-Chirp3-HD-Kore",
	"male":   "es-US-Chirp3-HD-Puck",
	"mujer":  "es-US-Chirp3-HD-Kore",
	"hombre": "es-US-Chirp3-HD-Puck",

	// Region presets.
	"latina":     "es-US-Chirp3-HD-Kore",
	"latino":     "es-US-Chirp3-HD-Puck",
	"mexicana":   "es-US-Chirp3-HD-Leda",
	"mexicano":   "es-US-Chirp3-HD-Fenrir",
	"española":   "es-ES-Chirp3-HD-Aoede",
	"español":    "es-ES-Chirp3-HD-Charon",
	"argentina":  "eleven-camila",
	"argentino":  "eleven-tomas",
	"venezolana": "eleven-andreina",
	"venezolano": "eleven-rafael",
	"colombiana": "eleven-mariana",
	"colombiano": "eleven-santiago",

	// Google voices retired in favour of Chirp3-HD.
	"es-US-Neural2-A":  "es-US-Chirp3-HD-Kore",
	"es-US-Neural2-B":  "es-US-Chirp3-HD-Puck",
	"es-US-Neural2-C":  "es-US-Chirp3-HD-Fenrir",
	"es-US-Wavenet-A":  "es-US-Chirp3-HD-Leda",
	"es-US-Wavenet-B":  "es-US-Chirp3-HD-Puck",
	"es-ES-Neural2-A":  "es-ES-Chirp3-HD-Aoede",
	"es-ES-Neural2-B":  "es-ES-Chirp3-HD-Charon",
	"es-ES-Standard-A": "es-ES-Chirp3-HD-Aoede",
	"es-ES-Standard-B": "es-ES-Chirp3-HD-Charon",

	// ElevenLabs voices that were stored by their external id or preset name.
	"EXAVITQu4vr4xnSDxMaL": "eleven-valentina",
	"ErXwobaYiN019PkySvjV": "eleven-mateo",
	"21m00Tcm4TlvDq8ikWAM": "eleven-lucia",
	"elevenlabs-female":    "eleven-valentina",
	"elevenlabs-male":      "eleven-mateo",
	"premium-female":       "eleven-valentina",
	"premium-male":         "eleven-mateo",
}

type regionGender struct {
	region Region
	gender Gender
}

// fallbackTable picks the standard voice closest to a (region, gender) pair.
// Regions without a row use fallbackDefault.
var fallbackTable = map[regionGender]string{
	{RegionLatino, GenderFemale}: "es-US-Chirp3-HD-Kore",
	{RegionLatino, GenderMale}:   "es-US-Chirp3-HD-Puck",
	{RegionMexico, GenderFemale}: "es-US-Chirp3-HD-Leda",
	{RegionMexico, GenderMale}:   "es-US-Chirp3-HD-Fenrir",
	{RegionEspana, GenderFemale}: "es-ES-Chirp3-HD-Aoede",
	{RegionEspana, GenderMale}:   "es-ES-Chirp3-HD-Charon",
}

// fallbackDefault is the neutral-latino row, keyed by gender.
var fallbackDefault = map[Gender]string{
	GenderFemale: "es-US-Chirp3-HD-Kore",
	GenderMale:   "es-US-Chirp3-HD-Puck",
}

var byID = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(catalog))
	for _, d := range catalog {
		m[d.ID] = d
	}
	return m
}()
