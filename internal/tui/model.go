// Package tui is a terminal front end for the player.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
)

const (
	sidebarWidth  = 30
	panelPadding  = 2
	defaultWidth  = 80
	minBarWidth   = 10
	volumeStep    = 0.05
	redrawEvery   = 100 * time.Millisecond
	playlistFirst = 2 // first sidebar row holding an entry
	barRow        = 4 // row of the progress bar inside the main panel
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	loadingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	playingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Player is what the terminal front end drives.
type Player interface {
	Snapshot() player.Snapshot
	Playlist() *playlist.Playlist
	Subscribe(fn func(player.Change)) (unsubscribe func())
	SelectEntry(source string) error
	TogglePlayPause() error
	SkipForward() error
	SkipBackward() error
	SeekToFraction(offsetX, width float64) error
	SetVolume(v float64) error
	ToggleMute() error
	Reload() error
}

type tickMsg time.Time

type changeMsg player.Change

type commandErrMsg struct{ err error }

// Model is the bubbletea model of the player screen.
type Model struct {
	player  Player
	entries []playlist.Entry
	changes <-chan player.Change

	state   player.Snapshot
	cursor  int
	width   int
	height  int
	lastErr string
}

// NewModel builds a model over p. changes may be nil, in which case the
// screen only refreshes on its redraw tick.
func NewModel(p Player, changes <-chan player.Change) Model {
	m := Model{
		player:  p,
		entries: p.Playlist().Entries(),
		changes: changes,
		state:   p.Snapshot(),
	}
	m.cursor = max(0, p.Playlist().IndexOf(m.state.Entry.Source))
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForChange(m.changes))
}

func tickCmd() tea.Cmd {
	return tea.Tick(redrawEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(ch <-chan player.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(c)
	}
}

// run wraps a player command so it executes off the update loop.
func run(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return commandErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.state = m.player.Snapshot()
		return m, tickCmd()

	case changeMsg:
		m.state = msg.State
		if msg.Reason == player.ReasonSelected {
			m.lastErr = ""
		}
		return m, waitForChange(m.changes)

	case commandErrMsg:
		m.lastErr = msg.err.Error()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.player
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.entries) {
			source := m.entries[m.cursor].Source
			return m, run(func() error { return p.SelectEntry(source) })
		}
	case " ":
		return m, run(p.TogglePlayPause)
	case "right", "l":
		return m, run(p.SkipForward)
	case "left", "h":
		return m, run(p.SkipBackward)
	case "+", "=":
		v := m.state.Volume + volumeStep
		return m, run(func() error { return p.SetVolume(v) })
	case "-", "_":
		v := m.state.Volume - volumeStep
		return m, run(func() error { return p.SetVolume(v) })
	case "m":
		return m, run(p.ToggleMute)
	case "r":
		m.lastErr = ""
		return m, run(p.Reload)
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	p := m.player

	if msg.X < sidebarWidth {
		row := msg.Y - playlistFirst
		if row >= 0 && row < len(m.entries) {
			m.cursor = row
			source := m.entries[row].Source
			return m, run(func() error { return p.SelectEntry(source) })
		}
		return m, nil
	}

	x0 := m.barX()
	width := m.barWidth()
	if msg.Y == barRow && msg.X >= x0 && msg.X < x0+width {
		offset := float64(msg.X - x0)
		return m, run(func() error { return p.SeekToFraction(offset, float64(width)) })
	}
	return m, nil
}

func (m Model) screenWidth() int {
	if m.width <= 0 {
		return defaultWidth
	}
	return m.width
}

func (m Model) barX() int {
	return sidebarWidth + panelPadding
}

func (m Model) barWidth() int {
	return max(minBarWidth, m.screenWidth()-m.barX()-panelPadding)
}

func (m Model) View() string {
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), m.renderPanel())
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Playlist"))
	b.WriteString("\n\n")
	for i, e := range m.entries {
		cursor := " "
		if i == m.cursor {
			cursor = "›"
		}
		label := cursor + " " + truncate(e.DisplayTitle(), sidebarWidth-4)
		switch {
		case e.Source == m.state.Entry.Source:
			label = selectedStyle.Render(label)
		case i == m.cursor:
			label = cursorStyle.Render(label)
		}
		b.WriteString(label)
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(sidebarWidth).Render(b.String())
}

func (m Model) renderPanel() string {
	s := m.state
	lines := make([]string, 0, 10)

	lines = append(lines, titleStyle.Render(s.Title), "")

	switch {
	case s.HasError():
		lines = append(lines, errorStyle.Render(s.Error+" (press r to retry)"))
	case !s.Ready:
		lines = append(lines, loadingStyle.Render("Loading video..."))
	case s.Playing:
		lines = append(lines, playingStyle.Render("▶ Playing"))
	default:
		lines = append(lines, pausedStyle.Render("❚❚ Paused"))
	}
	lines = append(lines, "")

	lines = append(lines, renderBar(s.Progress, m.barWidth()))
	lines = append(lines, fmt.Sprintf("%s / %s", s.PositionLabel, s.DurationLabel))
	lines = append(lines, "")

	volume := fmt.Sprintf("Volume %3.0f%%", s.Volume*100)
	if s.Muted {
		volume += " (muted)"
	}
	lines = append(lines, volume)

	if m.lastErr != "" {
		lines = append(lines, errorStyle.Render(m.lastErr))
	} else {
		lines = append(lines, "")
	}

	lines = append(lines, helpStyle.Render("↑/↓ move  enter select  space play/pause  ←/→ 10s  +/- volume  m mute  r reload  q quit"))

	return lipgloss.NewStyle().PaddingLeft(panelPadding).Render(strings.Join(lines, "\n"))
}

func renderBar(progress float64, width int) string {
	filled := int(progress / 100 * float64(width))
	filled = min(max(filled, 0), width)
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
