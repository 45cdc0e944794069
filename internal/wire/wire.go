// Package wire defines the JSON messages exchanged between sync clients and
// the relay over one persistent websocket per client.
package wire

import (
	"encoding/json"
	"fmt"

	"drawflow/internal/scene"
)

// MessageType tags a protocol message.
type MessageType string

// Client → server.
const (
	TypeJoinRoom           MessageType = "join_room"
	TypeShapeAdd           MessageType = "shape_add"
	TypeShapeUpdate        MessageType = "shape_update"
	TypeShapeRemove        MessageType = "shape_remove"
	TypeShapesSync         MessageType = "shapes_sync"
	TypeCursorMove         MessageType = "cursor_move"
	TypeUserUpdate         MessageType = "user_update"
	TypeRoomSettingsUpdate MessageType = "room_settings_update"
)

// Server → client.
const (
	TypeRoomJoined          MessageType = "room_joined"
	TypeShapeAdded          MessageType = "shape_added"
	TypeShapeUpdated        MessageType = "shape_updated"
	TypeShapeRemoved        MessageType = "shape_removed"
	TypeShapesSynced        MessageType = "shapes_synced"
	TypeCursorMoved         MessageType = "cursor_moved"
	TypeUserJoined          MessageType = "user_joined"
	TypeUserLeft            MessageType = "user_left"
	TypeUserUpdated         MessageType = "user_updated"
	TypeRoomSettingsUpdated MessageType = "room_settings_updated"
	TypeError               MessageType = "error"
)

// Message is the envelope for every protocol message. Only the fields
// meaningful for Type are populated; the rest are dropped from JSON.
type Message struct {
	Type   MessageType `json:"type"`
	RoomID string      `json:"roomId,omitempty"`

	Shape   *scene.Shape  `json:"shape,omitempty"`
	ShapeID string        `json:"shapeId,omitempty"`
	Shapes  []scene.Shape `json:"shapes,omitempty"`

	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	UserID   string `json:"userId,omitempty"`
	ClientID string `json:"clientId,omitempty"`
	Username string `json:"username,omitempty"`

	Settings *scene.RoomSettings `json:"settings,omitempty"`

	// Message carries the description on error replies.
	Message string `json:"message,omitempty"`
}

// Encode serializes the message.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return data, nil
}

// Decode parses a message, validating the envelope and any carried shapes.
// Malformed input is an error for the caller to log and drop; it never
// reaches a store.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("message has no type")
	}
	if m.Shape != nil {
		if err := m.Shape.Validate(); err != nil {
			return Message{}, fmt.Errorf("%s: %w", m.Type, err)
		}
	}
	for _, s := range m.Shapes {
		if err := s.Validate(); err != nil {
			return Message{}, fmt.Errorf("%s: %w", m.Type, err)
		}
	}
	return m, nil
}

// ErrorMessage builds the generic error reply.
func ErrorMessage(text string) Message {
	return Message{Type: TypeError, Message: text}
}
