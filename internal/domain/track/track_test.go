package track

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	trk := New("file:///a.mp3", "Song A", "Album", "Artist", "cover.png")

	assert.NotEmpty(t, trk.ID)
	assert.Equal(t, "file:///a.mp3", trk.URL)
	assert.Equal(t, "Song A", trk.Name)
	assert.Equal(t, NoPosition, trk.Position)
	assert.False(t, trk.HasPosition())
	assert.Equal(t, OriginNormal, trk.Origin)
	assert.False(t, trk.Played)
}

func TestTrack_SameAs(t *testing.T) {
	a := New("file:///a.mp3", "A", "", "", "")
	b := New("file:///a.mp3", "A", "", "", "")

	tests := []struct {
		name     string
		left     Track
		right    Track
		expected bool
	}{
		{
			name:     "same identity",
			left:     a,
			right:    a,
			expected: true,
		},
		{
			name: "mutable fields are ignored",
			left: a,
			right: func() Track {
				c := a
				c.Played = true
				c.Position = 7
				c.Origin = OriginNext
				return c
			}(),
			expected: true,
		},
		{
			name:     "same url different identity",
			left:     a,
			right:    b,
			expected: false,
		},
		{
			name:     "empty ids never match",
			left:     Track{URL: "x"},
			right:    Track{URL: "x"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.left.SameAs(tt.right))
		})
	}
}

func TestTrack_EnsureID(t *testing.T) {
	trk := Track{URL: "file:///a.mp3"}
	trk.EnsureID()
	assert.NotEmpty(t, trk.ID)

	id := trk.ID
	trk.EnsureID()
	assert.Equal(t, id, trk.ID, "existing id must be kept")
}

func TestTrack_Validate(t *testing.T) {
	tests := []struct {
		name    string
		track   Track
		wantErr bool
	}{
		{
			name:  "valid track",
			track: New("https://example.com/a.mp3", "A", "", "", ""),
		},
		{
			name:    "missing url",
			track:   Track{ID: "id", Name: "no url"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.track.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "URL")
				assert.True(t, errors.Is(err, ErrInvalid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrigin_String(t *testing.T) {
	assert.Equal(t, "normal", OriginNormal.String())
	assert.Equal(t, "next", OriginNext.String())
	assert.Equal(t, "unknown", Origin(42).String())
}
