package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/domain/track"
)

// NextLimitConfig represents the configuration for NextLimitFilter.
type NextLimitConfig struct {
	MaxPending int `mapstructure:"max_pending" default:"10" validate:"gte=1,lte=1000"`
}

// NextLimitFilter caps the number of unplayed tracks in the next queue.
type NextLimitFilter struct {
	queue  QueueView
	config *NextLimitConfig
}

// NewNextLimitFilter creates a new next queue limit filter.
func NewNextLimitFilter(queue QueueView) *NextLimitFilter {
	return &NextLimitFilter{queue: queue}
}

func (f *NextLimitFilter) Name() string {
	return "next_limit_filter"
}

func (f *NextLimitFilter) Description() string {
	return "Rejects play-next insertions once the next queue holds max_pending unplayed tracks"
}

func (f *NextLimitFilter) ReturnCodes() []string {
	return []string{"next_queue_full"}
}

func (f *NextLimitFilter) ValidateConfig(settings map[string]any) error {
	var config NextLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("next limit filter config: %+v", config)
	return nil
}

func (f *NextLimitFilter) Check(ctx context.Context, t track.Track) Result {
	// If config is not set, accept all tracks
	if f.config == nil {
		return Accept()
	}
	if len(pending(f.queue)) >= f.config.MaxPending {
		return Reject("next_queue_full")
	}
	return Accept()
}

func init() {
	Register("next_limit_filter", func(q QueueView) Filter {
		return NewNextLimitFilter(q)
	})
}
