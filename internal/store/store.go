// Package store persists room state to a durable key/value backend.
//
// Every room maps to one record holding the JSON-serialized shape array;
// mutations replace the whole array (no deltas). Backends:
//   - redis: production relay storage
//   - memory: tests and single-process runs
//   - Local (badger): the client-side slot used when no room is joined
package store

import (
	"context"
	"errors"

	"drawflow/internal/scene"
)

// ErrUnavailable is returned when the backend cannot be reached. The relay
// treats it as a degradation, not a failure: broadcasts continue without
// persistence.
var ErrUnavailable = errors.New("room store unavailable")

// RoomStore is the durable per-room record access used by the relay.
type RoomStore interface {
	// LoadShapes returns the room's shape list, empty when the room has
	// never been written.
	LoadShapes(ctx context.Context, roomID string) ([]scene.Shape, error)

	// SaveShapes replaces the room's shape list wholesale.
	SaveShapes(ctx context.Context, roomID string, shapes []scene.Shape) error

	// LoadSettings returns the room's settings record, nil when unset.
	LoadSettings(ctx context.Context, roomID string) (*scene.RoomSettings, error)

	// SaveSettings replaces the room's settings record.
	SaveSettings(ctx context.Context, roomID string, settings *scene.RoomSettings) error

	// Clear removes the room's persisted state entirely.
	Clear(ctx context.Context, roomID string) error

	Close() error
}

func shapesKey(roomID string) string   { return "room:" + roomID + ":shapes" }
func settingsKey(roomID string) string { return "room:" + roomID + ":settings" }
