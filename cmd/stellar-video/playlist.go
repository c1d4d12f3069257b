package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
)

func newPlaylistCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "playlist",
		Short: "Print the configured playlist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pl, err := a.cfg.Playlist()
			if err != nil {
				return err
			}
			renderPlaylist(cmd.OutOrStdout(), pl)
			return nil
		},
	}
}

func renderPlaylist(w io.Writer, pl *playlist.Playlist) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Source", "Icon", "Duration"})

	for i, e := range pl.Entries() {
		duration := "-"
		if e.Duration > 0 {
			duration = player.FormatTime(e.Duration)
		}
		t.AppendRow(table.Row{i + 1, e.DisplayTitle(), e.Source, e.Icon, duration})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d entries", pl.Len())})
	t.Render()
}
