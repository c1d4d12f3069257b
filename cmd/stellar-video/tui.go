package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-video-player/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Play the playlist in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer f.Close()
			setupLogging(f, a.cfg.Debug)

			pl, err := a.cfg.Playlist()
			if err != nil {
				return err
			}

			be, err := openBackend(cmd.Context(), a.cfg, pl)
			if err != nil {
				return err
			}
			defer be.close()

			playerSync := newSynchronizer(a.cfg, be.resource, pl)
			defer playerSync.Close()
			if err := playerSync.Mount(); err != nil {
				return err
			}
			return tui.Run(cmd.Context(), playerSync)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "stellar-video-tui.log", "file the terminal player logs to")
	return cmd
}
