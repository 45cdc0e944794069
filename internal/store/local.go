package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"drawflow/internal/scene"
)

// Local keys are namespaced apart from room records: the solo scene must
// never collide with relay-persisted rooms sharing the same backend kind.
var (
	localShapesKey   = []byte("local:shapes")
	localSettingsKey = []byte("local:settings")
	localUsernameKey = []byte("local:username")
	localCursorKey   = []byte("local:cursorId")
)

// Local is the client-side durable slot backed by badger. It holds the solo
// (no room joined) scene, UI preferences, the username and the cached
// cursor id.
type Local struct {
	db *badger.DB
}

// OpenLocal opens (or creates) the badger database at dir.
func OpenLocal(dir string) (*Local, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return &Local{db: db}, nil
}

func (l *Local) get(key []byte) ([]byte, error) {
	var out []byte
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return out, err
}

func (l *Local) set(key, val []byte) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// LoadShapes returns the locally persisted scene, empty when never saved.
func (l *Local) LoadShapes() ([]scene.Shape, error) {
	data, err := l.get(localShapesKey)
	if err != nil {
		return nil, fmt.Errorf("load local shapes: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var shapes []scene.Shape
	if err := json.Unmarshal(data, &shapes); err != nil {
		return nil, fmt.Errorf("parse local shapes: %w", err)
	}
	return shapes, nil
}

// SaveShapes replaces the locally persisted scene wholesale.
func (l *Local) SaveShapes(shapes []scene.Shape) error {
	if shapes == nil {
		shapes = []scene.Shape{}
	}
	data, err := json.Marshal(shapes)
	if err != nil {
		return fmt.Errorf("marshal local shapes: %w", err)
	}
	return l.set(localShapesKey, data)
}

// LoadSettings returns the locally persisted preferences, nil when unset.
func (l *Local) LoadSettings() (*scene.RoomSettings, error) {
	data, err := l.get(localSettingsKey)
	if err != nil || data == nil {
		return nil, err
	}
	var settings scene.RoomSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse local settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings replaces the locally persisted preferences.
func (l *Local) SaveSettings(settings *scene.RoomSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal local settings: %w", err)
	}
	return l.set(localSettingsKey, data)
}

// Username returns the persisted username, empty when never set.
func (l *Local) Username() (string, error) {
	data, err := l.get(localUsernameKey)
	return string(data), err
}

// SetUsername persists the user-editable name.
func (l *Local) SetUsername(name string) error {
	return l.set(localUsernameKey, []byte(name))
}

// CursorID returns the cached per-client cursor id, generating and
// persisting one on first use so it survives restarts.
func (l *Local) CursorID() (string, error) {
	data, err := l.get(localCursorKey)
	if err != nil {
		return "", err
	}
	if len(data) > 0 {
		return string(data), nil
	}
	id := uuid.NewString()
	if err := l.set(localCursorKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

func (l *Local) Close() error { return l.db.Close() }
