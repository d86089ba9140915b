// Package prefstore provides durable key-value storage for player preferences.
package prefstore

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("preference not found")

// Store is a byte-oriented key-value store.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Close() error
}

// Types lists the backend names accepted by New.
var Types = []string{"memory", "file", "sqlite"}

// New creates a store backend from its type name and raw settings.
func New(typ string, settings map[string]any) (Store, error) {
	zlog.Debug().Msgf("creating preference store: type=%s settings=%+v", typ, settings)
	switch typ {
	case "memory", "":
		return NewMemoryStore(), nil

	case "file":
		var cfg FileConfig
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid %s store settings", typ)
		}
		s, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil

	case "sqlite":
		var cfg SqliteConfig
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid %s store settings", typ)
		}
		s, err := NewSqliteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, errors.Newf("unsupported preference store type: %s", typ)
	}
}

func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
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
