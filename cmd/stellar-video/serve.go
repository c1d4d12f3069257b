package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-video-player/internal/config"
	"github.com/edumarques81/stellar-video-player/internal/domain/device"
	"github.com/edumarques81/stellar-video-player/internal/infra/history"
	"github.com/edumarques81/stellar-video-player/internal/infra/statebus"
	"github.com/edumarques81/stellar-video-player/internal/transport/rest"
	"github.com/edumarques81/stellar-video-player/internal/transport/socketio"
	"github.com/edumarques81/stellar-video-player/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and socket.io server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), a.cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", version.GetInfo().String())
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Int("port", cfg.Port).
		Str("backend", cfg.Backend).
		Str("media_dir", cfg.MediaDir).
		Bool("history", cfg.HistoryDB != "").
		Bool("redis", cfg.RedisAddr != "").
		Msg("Configuration")

	pl, err := cfg.Playlist()
	if err != nil {
		return fmt.Errorf("invalid playlist: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	be, err := openBackend(ctx, cfg, pl)
	if err != nil {
		return err
	}
	defer be.close()

	identity, err := device.NewService(cfg.DeviceFile)
	if err != nil {
		return fmt.Errorf("failed to load player identity: %w", err)
	}

	playerSync := newSynchronizer(cfg, be.resource, pl)

	var hist rest.HistoryReader
	if cfg.HistoryDB != "" {
		db := history.NewDB(cfg.HistoryDB)
		if err := db.Open(); err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer db.Close()
		recorder := history.NewRecorder(db)
		defer playerSync.Subscribe(recorder.Handle)()
		hist = db
	}

	if cfg.RedisAddr != "" {
		client, err := statebus.Connect(ctx, statebus.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Warn().Err(err).Msg("State publishing disabled")
		} else {
			defer client.Close()
			bus := statebus.New(client, statebus.DefaultChannel)
			go bus.Run(ctx)
			defer playerSync.Subscribe(bus.Handle)()
		}
	}

	socketServer, err := socketio.NewServer(playerSync, socketio.Options{MaxExternal: cfg.MaxExternal})
	if err != nil {
		return fmt.Errorf("failed to create Socket.io server: %w", err)
	}
	defer socketServer.Close()
	defer playerSync.Subscribe(socketServer.Handle)()

	if err := playerSync.Mount(); err != nil {
		return fmt.Errorf("failed to mount player: %w", err)
	}
	defer playerSync.Close()

	server := &http.Server{
		Addr: cfg.ListenAddr(),
		Handler: rest.NewRouter(rest.Config{
			Controller: playerSync,
			History:    hist,
			Device:     identity,
			Health:     be.health,
			Socket:     socketServer,
			MediaDir:   cfg.MediaDir,
			Backend:    cfg.Backend,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}

	log.Info().Msg("Server stopped")
	return nil
}
