package prefstore

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/domain/snapshot"
)

// Preferences is the JSON layer over a Store.
// Save never fails and Load reports absence for any unreadable value,
// so callers can keep playing when persistence is broken.
type Preferences struct {
	store Store
}

// NewPreferences wraps a Store.
func NewPreferences(store Store) *Preferences {
	return &Preferences{store: store}
}

// Save marshals v and writes it under key. Failures are logged and dropped.
func (p *Preferences) Save(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zlog.Warn().Err(err).Msgf("prefstore: failed to encode %s", key)
		return
	}
	if err := p.store.Set(key, data); err != nil {
		zlog.Warn().Err(err).Msgf("prefstore: failed to save %s", key)
	}
}

// Load returns the raw value stored under key, or false when absent or unreadable.
func (p *Preferences) Load(key string) ([]byte, bool) {
	data, err := p.store.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zlog.Warn().Err(err).Msgf("prefstore: failed to load %s", key)
		}
		return nil, false
	}
	return data, true
}

// SaveSnapshot writes the resume snapshot of the given user.
func (p *Preferences) SaveSnapshot(user string, r snapshot.Resume) {
	p.Save(snapshot.ResumeKey(user), r)
}

// LoadSnapshot reads the resume snapshot of the given user.
// Malformed data is treated as absent.
func (p *Preferences) LoadSnapshot(user string) (*snapshot.Resume, bool) {
	data, ok := p.Load(snapshot.ResumeKey(user))
	if !ok {
		return nil, false
	}
	r, err := snapshot.DecodeResume(data)
	if err != nil {
		zlog.Warn().Err(err).Msgf("prefstore: ignoring resume snapshot for %s", user)
		return nil, false
	}
	return r, true
}

// SaveVolume writes the global volume preference.
func (p *Preferences) SaveVolume(v snapshot.Volume) {
	p.Save(snapshot.VolumeKey, v)
}

// LoadVolume reads the global volume preference.
func (p *Preferences) LoadVolume() (*snapshot.Volume, bool) {
	data, ok := p.Load(snapshot.VolumeKey)
	if !ok {
		return nil, false
	}
	v, err := snapshot.DecodeVolume(data)
	if err != nil {
		zlog.Warn().Err(err).Msg("prefstore: ignoring volume preference")
		return nil, false
	}
	return v, true
}
