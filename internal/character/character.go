// Package character provides read access to the virtual characters users talk
// to. voxpal only reads the fields speech depends on: the stored voice string
// and the NSFW flag.
//
// The stored voice is whatever the app saved, possibly a legacy alias. Use
// [Character.ResolvedVoice] rather than the raw value.
package character

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/voxpal/pkg/voice"
)

// ErrNotFound is returned when no character has the requested id.
var ErrNotFound = errors.New("character: not found")

// Character is a chat persona.
type Character struct {
	// ID is the unique identifier.
	ID string `yaml:"id" json:"id"`

	// Name is the display name.
	Name string `yaml:"name" json:"name"`

	// Voice is the stored voice string. It may be a legacy alias or empty.
	Voice string `yaml:"voice" json:"voice"`

	// NSFW marks adult characters.
	NSFW bool `yaml:"nsfw" json:"nsfw"`
}

// ResolvedVoice returns the catalog voice for the stored voice string.
func (c *Character) ResolvedVoice() voice.Descriptor {
	return voice.Resolve(c.Voice)
}

// Validate checks that the character can be stored.
func (c *Character) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("character: validate: %w", err)
	}
	return nil
}

// Store reads characters. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the character with id, or an error wrapping [ErrNotFound].
	Get(ctx context.Context, id string) (*Character, error)

	// List returns every character ordered by id.
	List(ctx context.Context) ([]Character, error)

	// Upsert creates or replaces a character. Used to seed from config.
	Upsert(ctx context.Context, c *Character) error
}
