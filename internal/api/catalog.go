package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrWong99/voxpal/internal/character"
	"github.com/MrWong99/voxpal/internal/edge"
	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/pkg/voice"
)

// VoiceView is one entry of GET /v1/voices.
type VoiceView struct {
	voice.Descriptor
	Premium bool `json:"premium"`
}

// CharacterView is one entry of GET /v1/characters. Voice is the resolved
// catalog id, never a legacy alias.
type CharacterView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Voice   string `json:"voice"`
	Premium bool   `json:"premium"`
	NSFW    bool   `json:"nsfw"`
}

type catalogHandler struct {
	chars character.Store
}

// Voices lists the catalog, or the fuzzy matches for ?q=.
func (h *catalogHandler) Voices(w http.ResponseWriter, r *http.Request) {
	var list []voice.Descriptor
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		list = voice.Search(q)
	} else {
		list = voice.All()
	}
	out := make([]VoiceView, 0, len(list))
	for _, d := range list {
		out = append(out, VoiceView{Descriptor: d, Premium: d.IsPremium()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": out, "count": len(out)})
}

// Characters lists every character.
func (h *catalogHandler) Characters(w http.ResponseWriter, r *http.Request) {
	chars, err := h.chars.List(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("list characters", "err", err)
		edge.WriteError(w, http.StatusInternalServerError, codeInternal, "could not list characters")
		return
	}
	out := make([]CharacterView, 0, len(chars))
	for i := range chars {
		out = append(out, viewOf(&chars[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": out, "count": len(out)})
}

// Character returns one character.
func (h *catalogHandler) Character(w http.ResponseWriter, r *http.Request) {
	c, ok := loadCharacter(w, r, h.chars)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func viewOf(c *character.Character) CharacterView {
	v := c.ResolvedVoice()
	return CharacterView{ID: c.ID, Name: c.Name, Voice: v.ID, Premium: v.IsPremium(), NSFW: c.NSFW}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
