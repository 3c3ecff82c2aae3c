// Package engine builds the configured media engine.
package engine

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/app/playback"
	"github.com/osa030/upnext/internal/infra/config"
	"github.com/osa030/upnext/internal/infra/engine/sim"
)

// Info describes an available engine type.
type Info struct {
	Type        string
	Description string
}

// Available lists the engine types New accepts.
func Available() []Info {
	return []Info{
		{Type: "sim", Description: "Simulated player driven by the wall clock"},
	}
}

// New creates the engine selected by cfg.Type.
func New(cfg config.EngineConfig) (playback.Backend, error) {
	zlog.Debug().Msgf("creating engine: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case "sim":
		e, err := sim.New(cfg.Settings)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create engine (type %s)", cfg.Type)
		}
		zlog.Info().Msgf("engine ready: type=%s", cfg.Type)
		return e, nil

	default:
		return nil, errors.Newf("unsupported engine type: %s", cfg.Type)
	}
}
