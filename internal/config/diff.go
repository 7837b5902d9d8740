package config

import (
	"reflect"
	"slices"
	"strings"
)

// ConfigDiff describes what changed between two configs. Hot-reloadable
// changes are itemised; everything else is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	AutoplayChanged bool

	CharactersChanged bool
	CharacterChanges  []CharacterDiff

	// RestartRequired names top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.AutoplayChanged && !d.CharactersChanged && len(d.RestartRequired) == 0
}

// CharacterDiff describes what changed for a single character.
type CharacterDiff struct {
	ID           string
	NameChanged  bool
	VoiceChanged bool
	NSFWChanged  bool
	Added        bool
	Removed      bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Autoplay.Delays() != new.Autoplay.Delays() {
		d.AutoplayChanged = true
	}

	oldSrv, newSrv := old.Server, new.Server
	oldSrv.LogLevel, newSrv.LogLevel = "", ""
	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldSrv, newSrv},
		{"auth", old.Auth, new.Auth},
		{"providers", old.Providers, new.Providers},
		{"engine", old.Engine, new.Engine},
		{"edge", old.Edge, new.Edge},
		{"database", old.Database, new.Database},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}

	oldChars := make(map[string]int, len(old.Characters))
	for i, c := range old.Characters {
		oldChars[c.ID] = i
	}
	newChars := make(map[string]int, len(new.Characters))
	for i, c := range new.Characters {
		newChars[c.ID] = i
	}

	for id, oi := range oldChars {
		ni, ok := newChars[id]
		if !ok {
			d.CharacterChanges = append(d.CharacterChanges, CharacterDiff{ID: id, Removed: true})
			continue
		}
		o, n := old.Characters[oi], new.Characters[ni]
		cd := CharacterDiff{
			ID:           id,
			NameChanged:  o.Name != n.Name,
			VoiceChanged: o.Voice != n.Voice,
			NSFWChanged:  o.NSFW != n.NSFW,
		}
		if cd.NameChanged || cd.VoiceChanged || cd.NSFWChanged {
			d.CharacterChanges = append(d.CharacterChanges, cd)
		}
	}
	for id := range newChars {
		if _, ok := oldChars[id]; !ok {
			d.CharacterChanges = append(d.CharacterChanges, CharacterDiff{ID: id, Added: true})
		}
	}
	slices.SortFunc(d.CharacterChanges, func(a, b CharacterDiff) int {
		return strings.Compare(a.ID, b.ID)
	})
	d.CharactersChanged = len(d.CharacterChanges) > 0

	return d
}
