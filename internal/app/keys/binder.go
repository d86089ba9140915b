// Package keys maps global key events to transport commands.
package keys

import (
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Key codes, named after KeyboardEvent.code.
const (
	CodeSpace      = "Space"
	CodeArrowLeft  = "ArrowLeft"
	CodeArrowRight = "ArrowRight"
	CodeArrowUp    = "ArrowUp"
	CodeArrowDown  = "ArrowDown"
	CodeKeyM       = "KeyM"
)

// Transport is the set of engine commands the binder dispatches.
type Transport interface {
	TogglePlayPause()
	SkipForward(d time.Duration)
	SkipBackward(d time.Duration)
	Next()
	Previous()
	ChangeVolume(delta int)
	ToggleMute()
}

// Target describes the element holding focus when the key was pressed.
type Target struct {
	Tag      string // "input", "textarea", or any other element name
	Editable bool
}

// IsTextField reports whether key presses belong to the target itself.
func (t Target) IsTextField() bool {
	switch t.Tag {
	case "input", "textarea":
		return true
	}
	return t.Editable
}

// KeyEvent is a key press.
type KeyEvent struct {
	Code   string
	Ctrl   bool
	Meta   bool
	Target Target
}

func (k KeyEvent) modifier() bool {
	return k.Ctrl || k.Meta
}

// Config holds binder configuration.
type Config struct {
	SkipInterval time.Duration
	VolumeStep   int
}

// DefaultConfig returns the stock bindings.
func DefaultConfig() Config {
	return Config{
		SkipInterval: 10 * time.Second,
		VolumeStep:   5,
	}
}

// Binder dispatches key events to a Transport.
type Binder struct {
	transport Transport
	config    Config
}

// NewBinder creates a binder. Zero config values use the defaults.
func NewBinder(transport Transport, config Config) *Binder {
	def := DefaultConfig()
	if config.SkipInterval <= 0 {
		config.SkipInterval = def.SkipInterval
	}
	if config.VolumeStep <= 0 {
		config.VolumeStep = def.VolumeStep
	}
	return &Binder{transport: transport, config: config}
}

// Handle dispatches ev and reports whether it was consumed.
// The caller suppresses default handling only when Handle returns true.
func (b *Binder) Handle(ev KeyEvent) bool {
	if ev.Target.IsTextField() {
		return false
	}

	switch ev.Code {
	case CodeSpace:
		b.transport.TogglePlayPause()
	case CodeArrowLeft:
		if ev.modifier() {
			b.transport.Previous()
		} else {
			b.transport.SkipBackward(b.config.SkipInterval)
		}
	case CodeArrowRight:
		if ev.modifier() {
			b.transport.Next()
		} else {
			b.transport.SkipForward(b.config.SkipInterval)
		}
	case CodeArrowUp:
		b.transport.ChangeVolume(b.config.VolumeStep)
	case CodeArrowDown:
		b.transport.ChangeVolume(-b.config.VolumeStep)
	case CodeKeyM:
		if !ev.modifier() {
			return false
		}
		b.transport.ToggleMute()
	default:
		return false
	}

	zlog.Debug().Msgf("keys: dispatched code=%s ctrl=%v meta=%v", ev.Code, ev.Ctrl, ev.Meta)
	return true
}
