package autoplay

import "regexp"

// Cue names a short expressive sound effect played before speech.
type Cue string

const (
	CueSigh  Cue = "sigh"
	CueLaugh Cue = "laugh"
	CueYawn  Cue = "yawn"
	CueCry   Cue = "cry"
	CueKiss  Cue = "kiss"
	CueGasp  Cue = "gasp"
	CueHum   Cue = "hum"
)

// Cue patterns match Spanish action verbs. The leading group rejects matches
// inside a longer word, so "sonríe" does not count as laughing.
var cueTable = []struct {
	re  *regexp.Regexp
	cue Cue
}{
	{regexp.MustCompile(`(?i)(?:^|[^\p{L}])(suspir(?:a|o|ando|os))`), CueSigh},
	{regexp.MustCompile(`(?i)(?:^|[^\p{L}])(r[ií]e|r[ií]endo|re[ií]r|carcajada|ja(?:ja)+)`), CueLaugh},
	{regexp.MustCompile(`(?i)(?:^|[^\p{L}])(bostez(?:a|o|ando))`), CueYawn},
	{regexp.MustCompile(`(?i)(?:^|[^\p{L}])(llor(?:a|o|ando)|solloz(?:a|o|ando))`), CueCry},
	{regexp.MustCompile(`(?i)(?:^|[^\p{L}])(bes(?:a|o|ando|ito))`), CueKiss},
	{regexp.MustCompile(`(?i)(?:^|[^\p{L}])(grit(?:a|o|ando))`), CueGasp},
	{regexp.MustCompile(`(?i)(?:^|[^\p{L}])(tararea(?:ndo)?)`), CueHum},
}

// DetectCue returns the cue whose trigger appears earliest in text.
func DetectCue(text string) (Cue, bool) {
	best, bestAt := Cue(""), -1
	for _, e := range cueTable {
		m := e.re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		if at := m[2]; bestAt < 0 || at < bestAt {
			best, bestAt = e.cue, at
		}
	}
	return best, bestAt >= 0
}
