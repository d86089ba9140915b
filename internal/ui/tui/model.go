// Package tui renders the player bar and queue panel in the terminal.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/app/keys"
	"github.com/osa030/zora/internal/app/playback"
	"github.com/osa030/zora/internal/domain/track"
)

// Engine is the part of the playback engine the UI drives.
type Engine interface {
	keys.Transport
	Subscribe() (string, <-chan playback.Event)
	Unsubscribe(id string)
	Status() playback.Status
	JumpToIndex(index int) error
	RemoveFromQueue(index int) error
	MoveInQueue(from, to int) error
	PlayContext(tracks []track.Track, index int)
	ToggleShuffle()
	ToggleRepeat()
}

// Searcher looks tracks up in the catalog.
type Searcher interface {
	Search(ctx context.Context, query string) ([]track.Track, error)
}

type eventMsg struct{}

type closedMsg struct{}

type searchResultMsg struct {
	query  string
	tracks []track.Track
	err    error
}

type model struct {
	engine   Engine
	binder   *keys.Binder
	searcher Searcher
	events   <-chan playback.Event

	status    playback.Status
	cursor    int
	searching bool
	query     string
	notice    string
	width     int
}

func newModel(engine Engine, binder *keys.Binder, searcher Searcher, events <-chan playback.Event) model {
	return model{
		engine:   engine,
		binder:   binder,
		searcher: searcher,
		events:   events,
		status:   engine.Status(),
		cursor:   max(engine.Status().Index, 0),
	}
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// waitForEvent blocks on the next engine event, coalescing any already queued.
func waitForEvent(events <-chan playback.Event) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-events; !ok {
			return closedMsg{}
		}
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return closedMsg{}
				}
			default:
				return eventMsg{}
			}
		}
	}
}

func (m model) search(query string) tea.Cmd {
	searcher := m.searcher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tracks, err := searcher.Search(ctx, query)
		return searchResultMsg{query: query, tracks: tracks, err: err}
	}
}

func (m model) target() keys.Target {
	if m.searching {
		return keys.Target{Tag: "input"}
	}
	return keys.Target{Tag: "queue"}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if ev, ok := toKeyEvent(msg, m.target()); ok && m.binder.Handle(ev) {
			return m, nil
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateQueue(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case eventMsg:
		m = m.refresh()
		return m, waitForEvent(m.events)

	case closedMsg:
		return m, tea.Quit

	case searchResultMsg:
		switch {
		case msg.err != nil:
			zlog.Warn().Err(msg.err).Msgf("tui: search %q failed", msg.query)
			m.notice = "search failed"
		case len(msg.tracks) == 0:
			m.notice = "no results for \"" + msg.query + "\""
		default:
			m.notice = ""
			m.engine.PlayContext(msg.tracks, 0)
			m.cursor = 0
		}
	}

	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.query = ""
	case "enter":
		m.searching = false
		if m.query == "" || m.searcher == nil {
			return m, nil
		}
		m.notice = "searching..."
		return m, m.search(m.query)
	case "backspace":
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case "ctrl+u":
		m.query = ""
	case "ctrl+c":
		return m, tea.Quit
	default:
		switch msg.Type {
		case tea.KeySpace:
			m.query += " "
		case tea.KeyRunes:
			m.query += string(msg.Runes)
		}
	}
	return m, nil
}

func (m model) updateQueue(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.status.Queue)

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.searching = true
		m.query = ""
		m.notice = ""
	case "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "j":
		if m.cursor < n-1 {
			m.cursor++
		}
	case "enter":
		m.apply(m.engine.JumpToIndex(m.cursor))
	case "x", "delete":
		m.apply(m.engine.RemoveFromQueue(m.cursor))
	case "K":
		if err := m.engine.MoveInQueue(m.cursor, m.cursor-1); err == nil {
			m.cursor--
		}
	case "J":
		if err := m.engine.MoveInQueue(m.cursor, m.cursor+1); err == nil {
			m.cursor++
		}
	case "s":
		m.engine.ToggleShuffle()
	case "r":
		m.engine.ToggleRepeat()
	}

	return m.refresh(), nil
}

func (m *model) apply(err error) {
	if errors.Is(err, playback.ErrIndexOutOfRange) {
		m.notice = "nothing at that position"
	}
}

func (m model) refresh() model {
	m.status = m.engine.Status()
	if m.cursor >= len(m.status.Queue) {
		m.cursor = len(m.status.Queue) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

// Run starts the terminal UI and blocks until the user quits, ctx is done or the engine closes.
func Run(ctx context.Context, engine Engine, binder *keys.Binder, searcher Searcher) error {
	id, events := engine.Subscribe()
	defer engine.Unsubscribe(id)

	p := tea.NewProgram(newModel(engine, binder, searcher, events), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "failed to run terminal UI")
	}
	return nil
}
