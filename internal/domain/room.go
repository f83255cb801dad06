package domain

import "maps"

const (
	MaxRoomIDLen = 128
	// DefaultHistoryLimit caps the chat buffer of a room.
	DefaultHistoryLimit = 100
)

type RoomID string

// Settings is an open key/value bag merged shallowly on update.
type Settings map[string]any

// Merge copies every key of patch into s and returns s.
func (s Settings) Merge(patch Settings) Settings {
	maps.Copy(s, patch)
	return s
}

// Clone returns a shallow copy safe to hand to other goroutines.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	maps.Copy(out, s)
	return out
}
