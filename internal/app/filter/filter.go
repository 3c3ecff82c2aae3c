// Package filter provides the filter chain that admits or rejects
// play-next insertions.
package filter

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/upnext/internal/domain/track"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Filter   string // Name of the rejecting filter, set by Chain
	Code     string // e.g., "duplicate_track", "next_queue_full"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Err returns nil for an accepted result and a *RejectedError otherwise.
func (r Result) Err() error {
	if r.Accepted {
		return nil
	}
	return &RejectedError{Filter: r.Filter, Code: r.Code}
}

// RejectedError reports a play-next insertion refused by a filter.
type RejectedError struct {
	Filter string
	Code   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("track rejected by %s: %s", e.Filter, e.Code)
}

// IsRejected reports whether err carries a filter rejection.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

// QueueView is the read access filters have to the queue.
type QueueView interface {
	NextTracks() []track.Track
}

// Filter is the interface for play-next filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check performs the filter check.
	Check(ctx context.Context, t track.Track) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func(QueueView) Filter)

// Register registers a filter factory.
func Register(name string, factory func(QueueView) Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func(QueueView) Filter {
	return registry
}

// decodeSettings decodes settings into out, applies defaults and validates.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// pending returns the next tracks that have not been played yet.
func pending(q QueueView) []track.Track {
	all := q.NextTracks()
	out := all[:0:0]
	for _, t := range all {
		if !t.Played {
			out = append(out, t)
		}
	}
	return out
}
