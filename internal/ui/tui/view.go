package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/osa030/zora/internal/app/playback"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	artistStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	stateStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	searchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	barStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const progressWidth = 30

func (m model) View() string {
	var b strings.Builder

	b.WriteString(barStyle.Render(m.playerBar()))
	b.WriteString("\n\n")
	b.WriteString(m.queuePanel())
	b.WriteString("\n")

	switch {
	case m.searching:
		b.WriteString(searchStyle.Render("  Search: [" + m.query + "_]"))
	case m.notice != "":
		b.WriteString(searchStyle.Render("  " + m.notice))
	default:
		b.WriteString(helpStyle.Render("  space play/pause • ←/→ seek • ctrl+←/→ prev/next • ↑/↓ volume • alt+m mute"))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("  j/k move cursor • enter play • x remove • J/K reorder • s shuffle • r repeat • / search • q quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m model) playerBar() string {
	s := m.status
	if s.Track == nil {
		return helpStyle.Render("Nothing playing")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Track.Title))
	b.WriteString("  ")
	artist := s.Track.ArtistName
	if s.Track.AlbumName != nil {
		artist += " · " + *s.Track.AlbumName
	}
	b.WriteString(artistStyle.Render(artist))
	b.WriteString("\n")

	state := s.State.String()
	if s.State == playback.StateError {
		b.WriteString(errorStyle.Render(state))
	} else {
		b.WriteString(stateStyle.Render(state))
	}
	b.WriteString("  ")
	b.WriteString(progressBar(s.Position, s.Duration, progressWidth))
	b.WriteString(fmt.Sprintf(" %s / %s", formatClock(s.Position), formatClock(s.Duration)))
	b.WriteString("\n")

	volume := fmt.Sprintf("vol %d%%", s.Volume)
	if s.Muted {
		volume = "muted"
	}
	shuffle := "off"
	if s.Shuffled {
		shuffle = "on"
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("%s  shuffle %s  repeat %s  %s", volume, shuffle, s.Repeat, s.Context)))
	return b.String()
}

func (m model) queuePanel() string {
	var b strings.Builder
	q := m.status.Queue

	b.WriteString(headerStyle.Render(fmt.Sprintf("  QUEUE (%d)", len(q))))
	b.WriteString("\n")
	if len(q) == 0 {
		b.WriteString(helpStyle.Render("  Queue is empty, press / to search"))
		b.WriteString("\n")
		return b.String()
	}

	for i, t := range q {
		marker := "  "
		if i == m.status.Index {
			marker = "▶ "
		}
		row := fmt.Sprintf("%s%2d. %-40s %-24s %s", marker, i+1, truncate(t.Title, 40), truncate(t.ArtistName, 24), formatClock(t.Duration))

		switch {
		case i == m.cursor:
			b.WriteString(selectedStyle.Render(row))
		case i == m.status.Index:
			b.WriteString(currentStyle.Render(row))
		default:
			b.WriteString(row)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func progressBar(pos, total time.Duration, width int) string {
	filled := 0
	if total > 0 {
		filled = int(float64(width) * float64(pos) / float64(total))
		filled = min(max(filled, 0), width)
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
}

func formatClock(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
