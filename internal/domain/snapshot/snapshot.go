// Package snapshot defines the persisted player state records.
package snapshot

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

const (
	// ResumeKeyPrefix namespaces the resume snapshot per user identity.
	ResumeKeyPrefix = "zora_last_playback_v1_"
	// VolumeKey holds the global volume preference.
	VolumeKey = "zora_player_volume"
)

// ErrMalformed is returned when stored data cannot be used.
var ErrMalformed = errors.New("malformed snapshot")

var validate = validator.New()

// Resume is the last-known playback position of a user.
type Resume struct {
	SongID            string   `json:"songId" validate:"required"`
	Position          float64  `json:"position" validate:"gte=0"`
	Duration          float64  `json:"duration" validate:"gte=0"`
	IsPlaying         bool     `json:"isPlaying"`
	QueueSongIDs      []string `json:"queueSongIds"`
	CurrentQueueIndex int      `json:"currentQueueIndex"`
	PlaybackContext   string   `json:"playbackContext" validate:"omitempty,oneof=single playlist"`
	UpdatedAt         int64    `json:"updatedAt"` // epoch millis
}

// Volume is the persisted volume preference.
type Volume struct {
	Volume  int  `json:"volume" validate:"gte=0,lte=100"`
	IsMuted bool `json:"isMuted"`
}

// ResumeKey returns the storage key for the given user identity.
func ResumeKey(user string) string {
	return ResumeKeyPrefix + user
}

// PositionDuration returns Position as a time.Duration.
func (r *Resume) PositionDuration() time.Duration {
	return Seconds(r.Position)
}

// DurationDuration returns Duration as a time.Duration.
func (r *Resume) DurationDuration() time.Duration {
	return Seconds(r.Duration)
}

// UpdatedTime returns UpdatedAt as a time.Time.
func (r *Resume) UpdatedTime() time.Time {
	return time.UnixMilli(r.UpdatedAt)
}

// DecodeResume parses and validates a stored resume snapshot.
func DecodeResume(data []byte) (*Resume, error) {
	var r Resume
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse resume snapshot"), ErrMalformed)
	}
	if err := validate.Struct(r); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid resume snapshot"), ErrMalformed)
	}
	return &r, nil
}

// DecodeVolume parses and validates a stored volume preference.
func DecodeVolume(data []byte) (*Volume, error) {
	var v Volume
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse volume preference"), ErrMalformed)
	}
	if err := validate.Struct(v); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid volume preference"), ErrMalformed)
	}
	return &v, nil
}

// Seconds converts fractional seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ToSeconds converts a duration to fractional seconds.
func ToSeconds(d time.Duration) float64 {
	return d.Seconds()
}
