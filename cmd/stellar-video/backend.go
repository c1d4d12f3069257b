package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-video-player/internal/config"
	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
	"github.com/edumarques81/stellar-video-player/internal/infra/mpd"
	"github.com/edumarques81/stellar-video-player/internal/infra/simulated"
)

// backend is the media resource the synchronizer drives plus its upkeep.
type backend struct {
	resource player.Resource
	health   func() error
	close    func()
}

func openBackend(ctx context.Context, cfg *config.Config, pl *playlist.Playlist) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMPD:
		client := mpd.NewClient(cfg.MPDHost, cfg.MPDPort, cfg.MPDPassword)
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to MPD: %w", err)
		}
		if err := client.Ping(); err != nil {
			client.Close()
			return nil, fmt.Errorf("MPD ping failed: %w", err)
		}
		log.Info().Str("host", cfg.MPDHost).Int("port", cfg.MPDPort).Msg("MPD connection verified")

		res := mpd.NewResource(client)
		events, err := client.Watch(ctx, "player", "mixer")
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to watch MPD: %w", err)
		}
		go res.Run(ctx, events)

		return &backend{
			resource: res,
			health:   client.Ping,
			close: func() {
				_ = res.Close()
				client.Close()
			},
		}, nil

	default:
		res := simulated.NewResource(simulated.ConfigFromPlaylist(pl, simulated.DefaultDuration))
		log.Info().Int("entries", pl.Len()).Msg("Using simulated backend")
		return &backend{
			resource: res,
			health:   func() error { return nil },
			close:    func() { _ = res.Close() },
		}, nil
	}
}

func newSynchronizer(cfg *config.Config, res player.Resource, pl *playlist.Playlist) *player.Synchronizer {
	return player.NewSynchronizer(res, pl,
		player.WithDurationThreshold(cfg.DurationThreshold),
		player.WithRebindDelay(cfg.RebindDelay),
		player.WithFrameInterval(cfg.FrameInterval),
	)
}
