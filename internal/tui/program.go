package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
)

// Bridge forwards the player's change stream into a buffered channel the
// model can wait on. Changes are dropped while the buffer is full; the
// redraw tick re-reads the snapshot anyway.
func Bridge(p Player, buffer int) (<-chan player.Change, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan player.Change, buffer)
	unsubscribe := p.Subscribe(func(c player.Change) {
		select {
		case ch <- c:
		default:
		}
	})
	return ch, unsubscribe
}

// Run shows the player screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, p Player) error {
	changes, stop := Bridge(p, 64)
	defer stop()

	prog := tea.NewProgram(NewModel(p, changes),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := prog.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
