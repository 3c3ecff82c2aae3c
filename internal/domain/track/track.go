// Package track provides the Track domain entity.
package track

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrInvalid marks a track that fails validation.
var ErrInvalid = errors.New("invalid track")

// NoPosition marks a track that is not held by any queue yet.
const NoPosition = -1

// Origin tells which queue a track belongs to.
type Origin int

const (
	OriginNormal Origin = iota // Part of the main playlist
	OriginNext                 // Ad hoc "play next" insertion, consumed once
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginNormal:
		return "normal"
	case OriginNext:
		return "next"
	default:
		return "unknown"
	}
}

// Track represents a playable item.
// Identity fields are set at creation; Played, Position and Origin are
// owned by the queue store.
type Track struct {
	ID     string `json:"id"`                      // Stable identity
	URL    string `json:"url" validate:"required"` // Media URL handed to the engine
	Name   string `json:"name,omitempty"`          // Display name
	Album  string `json:"album,omitempty"`         // Album name (optional)
	Artist string `json:"artist,omitempty"`        // Artist name (optional)
	Image  string `json:"image,omitempty"`         // Artwork reference (optional)

	Played   bool   `json:"played"`
	Position int    `json:"position"`
	Origin   Origin `json:"origin"`
}

// New creates a Normal track with a fresh identity.
func New(url, name, album, artist, image string) Track {
	return Track{
		ID:       uuid.New().String(),
		URL:      url,
		Name:     name,
		Album:    album,
		Artist:   artist,
		Image:    image,
		Position: NoPosition,
		Origin:   OriginNormal,
	}
}

// EnsureID assigns an identity if the track has none.
func (t *Track) EnsureID() {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
}

// SameAs reports whether both values refer to the same track identity.
// Mutable queue fields are ignored.
func (t Track) SameAs(other Track) bool {
	return t.ID != "" && t.ID == other.ID
}

// IsNext reports whether the track was inserted through "play next".
func (t Track) IsNext() bool {
	return t.Origin == OriginNext
}

// HasPosition reports whether a queue has assigned a position.
func (t Track) HasPosition() bool {
	return t.Position != NoPosition
}

// Validate checks required fields.
func (t Track) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid track"), ErrInvalid)
	}
	return nil
}
