// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/upnext/internal/domain/track"

// Playlist represents an ordered list of tracks supplied by the host.
type Playlist struct {
	ID     string        // Playlist identifier (optional)
	Name   string        // Playlist name
	Tracks []track.Track // Tracks in playlist order
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.Tracks)
}

// Positioned returns a copy of the tracks ready for the main queue:
// position = index, origin Normal, played cleared, identity assigned.
func (p *Playlist) Positioned() []track.Track {
	result := make([]track.Track, len(p.Tracks))
	for i, t := range p.Tracks {
		t.EnsureID()
		t.Position = i
		t.Origin = track.OriginNormal
		t.Played = false
		result[i] = t
	}
	return result
}
