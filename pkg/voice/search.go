package voice

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// searchThreshold is the minimum Jaro-Winkler score for a search hit.
const searchThreshold = 0.80

// Search returns catalog voices whose display name, id, or region resemble
// query, best match first. Matching is case-insensitive and tolerant of
// accents and typos ("lucia" finds "Lucía", "valentna" finds "Valentina").
// An empty query returns [All].
func Search(query string) []Descriptor {
	q := fold(query)
	if q == "" {
		return All()
	}

	type hit struct {
		d     Descriptor
		score float64
		idx   int
	}
	var hits []hit
	for i, d := range catalog {
		score := bestScore(q, d)
		if score >= searchThreshold {
			hits = append(hits, hit{d: d, score: score, idx: i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].idx < hits[j].idx
	})

	out := make([]Descriptor, len(hits))
	for i, h := range hits {
		out[i] = h.d
	}
	return out
}

func bestScore(q string, d Descriptor) float64 {
	candidates := []string{fold(d.DisplayName), fold(d.ID), fold(string(d.Region))}
	best := 0.0
	for _, c := range candidates {
		if c == q || (len(q) >= 3 && strings.Contains(c, q)) {
			return 1
		}
		if s := matchr.JaroWinkler(q, c, false); s > best {
			best = s
		}
	}
	return best
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u",
)

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}
