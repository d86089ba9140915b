// Package output provides the media outputs the playback engine can drive.
package output

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/app/playback"
)

// ErrUnavailable is returned when an output is not supported by this build.
var ErrUnavailable = errors.New("output not available in this build")

// ErrNotLoaded is the play rejection of an output with no resource.
var ErrNotLoaded = errors.New("no resource loaded")

// Output is a media output that holds releasable resources.
type Output interface {
	playback.MediaOutput
	Close() error
}

// Types lists the output names accepted by New.
var Types = []string{"simulated", "beep", "mpd"}

// New creates an output from its type name and raw settings.
func New(typ string, settings map[string]any) (Output, error) {
	zlog.Debug().Msgf("creating media output: type=%s settings=%+v", typ, settings)
	switch typ {
	case "simulated", "":
		var cfg SimulatedConfig
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid %s output settings", typ)
		}
		return NewSimulated(cfg), nil

	case "beep":
		var cfg BeepConfig
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid %s output settings", typ)
		}
		o, err := NewBeep(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil

	case "mpd":
		var cfg MPDConfig
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid %s output settings", typ)
		}
		o, err := NewMPD(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil

	default:
		return nil, errors.Newf("unsupported output type: %s", typ)
	}
}

func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     out,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create settings decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// dispatcher delivers media events in order from its own goroutine,
// so outputs never call the handler from inside one of their methods.
type dispatcher struct {
	mu      sync.Mutex
	handler func(playback.MediaEvent)
	queue   []playback.MediaEvent
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(handler func(playback.MediaEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

// emit stamps ev with the load generation and queues it without blocking.
func (d *dispatcher) emit(gen uint64, ev playback.MediaEvent) {
	ev.Gen = gen
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) emitType(gen uint64, t playback.MediaEventType) {
	d.emit(gen, playback.MediaEvent{Type: t})
}

func (d *dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			batch := d.queue
			d.queue = nil
			handler := d.handler
			d.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			if handler == nil {
				continue
			}
			for _, ev := range batch {
				handler(ev)
			}
		}
	}
}

func (d *dispatcher) close() {
	d.once.Do(func() { close(d.done) })
}
