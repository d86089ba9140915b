package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/osa030/zora/internal/app/keys"
)

// Terminals cannot tell ctrl+m from enter, so mute is bound to alt+m as well.
var codes = map[string]string{
	" ":     keys.CodeSpace,
	"left":  keys.CodeArrowLeft,
	"right": keys.CodeArrowRight,
	"up":    keys.CodeArrowUp,
	"down":  keys.CodeArrowDown,
	"m":     keys.CodeKeyM,
}

// toKeyEvent translates a terminal key press into a binder key event.
func toKeyEvent(msg tea.KeyMsg, target keys.Target) (keys.KeyEvent, bool) {
	s := msg.String()
	ev := keys.KeyEvent{Target: target}

	switch {
	case strings.HasPrefix(s, "ctrl+"):
		ev.Ctrl = true
		s = strings.TrimPrefix(s, "ctrl+")
	case strings.HasPrefix(s, "alt+"):
		ev.Meta = true
		s = strings.TrimPrefix(s, "alt+")
	}

	code, ok := codes[s]
	if !ok {
		return keys.KeyEvent{}, false
	}
	ev.Code = code
	return ev, true
}
