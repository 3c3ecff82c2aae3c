package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/upnext/internal/domain/track"
)

// DuplicateTrackFilter rejects a track that is already waiting in the
// next queue.
// Detects:
// - Exact URL matches
// - Remasters and alternate versions (normalized name + same artist)
// Excludes:
// - Cover songs (same name but different artist)
type DuplicateTrackFilter struct {
	queue QueueView
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(queue QueueView) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{queue: queue}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already waiting in the next queue, remasters included. Covers are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, requested track.Track) Result {
	for _, queued := range pending(f.queue) {
		if queued.URL == requested.URL {
			return Reject("duplicate_track")
		}
		if isRemaster(queued, requested) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

// isRemaster reports whether two tracks are versions of the same song by
// the same artist.
func isRemaster(a, b track.Track) bool {
	if a.Name == "" || b.Name == "" {
		return false
	}
	if normalizeTrackName(a.Name) != normalizeTrackName(b.Name) {
		return false
	}
	// Same normalized name by a different artist is a cover
	return a.Artist != "" && strings.EqualFold(a.Artist, b.Artist)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s+-\s*live$`),             // "- Live"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTrackName strips remaster and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func(q QueueView) Filter {
		return NewDuplicateTrackFilter(q)
	})
}
