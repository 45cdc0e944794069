// Package sync implements the client side of room synchronization: one
// websocket to the relay, optimistic local edits published fire-and-forget,
// remote edits applied to the scene store without touching history, and
// automatic reconnection with exponential backoff.
package sync

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"drawflow/internal/presence"
	"drawflow/internal/scene"
	"drawflow/internal/wire"
)

// Connection lifecycle errors.
var (
	// ErrConnectInProgress is returned when Connect is called while an
	// earlier dial is still running. Callers retry rather than queue.
	ErrConnectInProgress = errors.New("connection attempt already in progress")

	// ErrDisconnected reports that reconnection attempts were exhausted.
	ErrDisconnected = errors.New("disconnected from relay")
)

// Status is the connection state visible to callers.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusJoined
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Default reconnection policy: 1s, 2s, 4s, 8s, 16s, then give up.
// Config can override both knobs.
const (
	reconnectBase     = time.Second
	reconnectAttempts = 5
)

// Cursor publishing is throttled so pointer motion does not flood the
// socket: at most one message per interval, and only after real movement.
const (
	cursorMinInterval = 50 * time.Millisecond
	cursorMinDelta    = 2.0
)

// Config carries the client's identity and target.
type Config struct {
	// URL is the relay websocket endpoint, e.g. ws://192.168.1.7:9560/ws.
	URL string

	// Username is announced on join and on cursor traffic.
	Username string

	// CursorID is this client's stable presence identity. Cursor
	// broadcasts carrying it are our own echoes and are dropped.
	CursorID string

	// ReconnectBase and ReconnectAttempts override the reconnection
	// policy. Zero values take the defaults.
	ReconnectBase     time.Duration
	ReconnectAttempts int

	Logger *log.Logger
}

// Client synchronizes a scene store with a relay room.
type Client struct {
	cfg      Config
	store    *scene.Store
	registry *presence.Registry
	logger   *log.Logger

	mu       sync.Mutex
	status   Status
	roomID   string
	sock     *websocket.Conn
	gen      int
	onStatus func(Status, error)

	onSettings func(scene.RoomSettings)

	writeMu sync.Mutex

	cursorMu    sync.Mutex
	cursorSent  time.Time
	cursorX     float64
	cursorY     float64
	cursorQueue *wire.Message
	cursorTimer *time.Timer
}

// NewClient wires a client to the scene store and presence registry it
// should keep current.
func NewClient(cfg Config, store *scene.Store, registry *presence.Registry) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = reconnectBase
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = reconnectAttempts
	}
	return &Client{
		cfg:      cfg,
		store:    store,
		registry: registry,
		logger:   logger.With("component", "sync"),
	}
}

// SetStatusFunc registers the connection-state callback. The error is
// non-nil only for the terminal transition to StatusDisconnected after
// reconnection gave up.
func (c *Client) SetStatusFunc(fn func(Status, error)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// SetSettingsFunc registers the callback for remote room-settings changes.
func (c *Client) SetSettingsFunc(fn func(scene.RoomSettings)) {
	c.mu.Lock()
	c.onSettings = fn
	c.mu.Unlock()
}

// Status reports the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RoomID reports the room this client is connected (or connecting) to.
func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Connect dials the relay and joins roomID. It blocks until the socket is
// established and the join request is sent; the room snapshot arrives
// asynchronously. Joining the room already joined is a no-op; while a dial
// is in flight any further Connect fails fast with ErrConnectInProgress.
func (c *Client) Connect(roomID string) error {
	c.mu.Lock()
	switch c.status {
	case StatusConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	case StatusJoined:
		if c.roomID == roomID {
			c.mu.Unlock()
			return nil
		}
		// Switching rooms: tear the old session down first.
		c.teardownLocked()
	}
	c.status = StatusConnecting
	c.roomID = roomID
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.notify(StatusConnecting, nil)

	sock, err := c.dial(roomID, gen)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.status = StatusDisconnected
		}
		c.mu.Unlock()
		c.notify(StatusDisconnected, err)
		return err
	}
	go c.readLoop(sock, roomID, gen)
	return nil
}

// dial opens the socket and sends join_room. On success the session is
// marked joined; the snapshot handling happens in the read loop.
func (c *Client) dial(roomID string, gen int) (*websocket.Conn, error) {
	sock, _, err := websocket.DefaultDialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	join := wire.Message{
		Type:     wire.TypeJoinRoom,
		RoomID:   roomID,
		ClientID: c.cfg.CursorID,
		Username: c.cfg.Username,
	}
	data, err := join.Encode()
	if err != nil {
		_ = sock.Close()
		return nil, err
	}
	if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("join room: %w", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		// Disconnect or a newer Connect won while we were dialing.
		c.mu.Unlock()
		_ = sock.Close()
		return nil, ErrDisconnected
	}
	c.sock = sock
	c.status = StatusJoined
	c.mu.Unlock()
	c.notify(StatusJoined, nil)
	c.logger.Info("joined room", "room", roomID, "relay", c.cfg.URL)
	return sock, nil
}

// Disconnect closes the session and clears remote presence. It is safe to
// call at any time.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.teardownLocked()
	c.status = StatusDisconnected
	c.mu.Unlock()
	c.notify(StatusDisconnected, nil)
}

func (c *Client) teardownLocked() {
	c.gen++
	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
	}
	if c.registry != nil {
		c.registry.Clear()
	}
	c.cursorMu.Lock()
	if c.cursorTimer != nil {
		c.cursorTimer.Stop()
		c.cursorTimer = nil
	}
	c.cursorQueue = nil
	c.cursorMu.Unlock()
}

// readLoop owns inbound dispatch for one socket. It is the only goroutine
// that mutates the scene store from remote edits, so remote messages apply
// in arrival order. An unexpected close triggers reconnection.
func (c *Client) readLoop(sock *websocket.Conn, roomID string, gen int) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.gen != gen
			c.mu.Unlock()
			if stale {
				return
			}
			c.logger.Warn("connection lost", "room", roomID, "err", err)
			c.reconnect(roomID, gen)
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed message", "err", err)
			continue
		}
		c.handle(msg)
	}
}

// reconnect retries the dial with doubling delays. Local editing continues
// throughout; only if every attempt fails does the client give up and report
// ErrDisconnected.
func (c *Client) reconnect(roomID string, gen int) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.status = StatusConnecting
	c.sock = nil
	c.gen++
	gen = c.gen
	c.mu.Unlock()
	c.notify(StatusConnecting, nil)

	delay := c.cfg.ReconnectBase
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(delay)
		delay *= 2

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.logger.Info("reconnecting", "room", roomID, "attempt", attempt)
		sock, err := c.dial(roomID, gen)
		if err == nil {
			go c.readLoop(sock, roomID, gen)
			return
		}
		if errors.Is(err, ErrDisconnected) {
			return
		}
		c.logger.Warn("reconnect failed", "attempt", attempt, "err", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.status = StatusDisconnected
	c.mu.Unlock()
	if c.registry != nil {
		c.registry.Clear()
	}
	c.notify(StatusDisconnected, ErrDisconnected)
	c.logger.Error("giving up after failed reconnects", "room", roomID, "attempts", c.cfg.ReconnectAttempts)
}

func (c *Client) handle(msg wire.Message) {
	switch msg.Type {
	case wire.TypeRoomJoined:
		// The room scene is authoritative from here on in, whichever way
		// the snapshot exchange goes: undoing into the pre-join scene
		// would publish stale content to every peer.
		c.store.ClearHistory()
		// The snapshot wins when it has content; an empty room instead
		// gets seeded with whatever we drew offline.
		if len(msg.Shapes) > 0 {
			c.store.ApplySynced(msg.Shapes)
		} else if c.store.Len() > 0 {
			c.PublishSync(c.store.Shapes())
		}
	case wire.TypeShapeAdded:
		if msg.Shape != nil {
			c.store.ApplyAdded(*msg.Shape)
		}
	case wire.TypeShapeUpdated:
		if msg.Shape != nil {
			c.store.ApplyUpdated(*msg.Shape)
		}
	case wire.TypeShapeRemoved:
		c.store.ApplyRemoved(msg.ShapeID)
	case wire.TypeShapesSynced:
		c.store.ApplySynced(msg.Shapes)
	case wire.TypeCursorMoved:
		if c.registry == nil || msg.ClientID == c.cfg.CursorID {
			return
		}
		c.registry.Update(msg.ClientID, presence.Cursor{
			UserID:   msg.UserID,
			Username: msg.Username,
			X:        msg.X,
			Y:        msg.Y,
			LastSeen: time.Now(),
		})
	case wire.TypeUserUpdated:
		if c.registry != nil && msg.ClientID != c.cfg.CursorID {
			c.registry.UpdateName(msg.ClientID, msg.Username, time.Now())
		}
	case wire.TypeUserLeft:
		if c.registry != nil {
			c.registry.RemoveUser(msg.UserID)
		}
	case wire.TypeUserJoined:
		c.logger.Info("user joined", "user", msg.UserID, "username", msg.Username)
	case wire.TypeRoomSettingsUpdated:
		c.mu.Lock()
		fn := c.onSettings
		c.mu.Unlock()
		if fn != nil && msg.Settings != nil {
			fn(*msg.Settings)
		}
	case wire.TypeError:
		c.logger.Warn("relay error", "message", msg.Message)
	default:
		c.logger.Warn("unknown message type", "type", msg.Type)
	}
}

// send publishes fire-and-forget: a failed write is logged and the message
// dropped. Durability comes from the snapshot exchange on the next join.
func (c *Client) send(msg wire.Message) {
	c.mu.Lock()
	sock := c.sock
	roomID := c.roomID
	joined := c.status == StatusJoined
	c.mu.Unlock()
	if !joined || sock == nil {
		return
	}
	if msg.RoomID == "" {
		msg.RoomID = roomID
	}
	data, err := msg.Encode()
	if err != nil {
		c.logger.Warn("encode failed", "type", msg.Type, "err", err)
		return
	}
	c.writeMu.Lock()
	err = sock.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("publish failed", "type", msg.Type, "err", err)
	}
}

// PublishAdd announces a locally added shape.
func (c *Client) PublishAdd(s scene.Shape) {
	c.send(wire.Message{Type: wire.TypeShapeAdd, Shape: &s})
}

// PublishUpdate announces a locally updated shape.
func (c *Client) PublishUpdate(s scene.Shape) {
	c.send(wire.Message{Type: wire.TypeShapeUpdate, Shape: &s})
}

// PublishRemove announces a locally removed shape.
func (c *Client) PublishRemove(id string) {
	c.send(wire.Message{Type: wire.TypeShapeRemove, ShapeID: id})
}

// PublishSync replaces the room's whole shape list, typically after undo or
// redo where the delta is not expressible as a single edit.
func (c *Client) PublishSync(shapes []scene.Shape) {
	c.send(wire.Message{Type: wire.TypeShapesSync, Shapes: shapes})
}

// PublishSettings announces a room settings change.
func (c *Client) PublishSettings(settings scene.RoomSettings) {
	c.send(wire.Message{Type: wire.TypeRoomSettingsUpdate, Settings: &settings})
}

// PublishUsername announces a rename.
func (c *Client) PublishUsername(username string) {
	c.mu.Lock()
	c.cfg.Username = username
	c.mu.Unlock()
	c.send(wire.Message{
		Type:     wire.TypeUserUpdate,
		ClientID: c.cfg.CursorID,
		Username: username,
	})
}

// PublishCursor reports the local pointer position, throttled. Positions
// arriving faster than the interval are coalesced; the trailing position is
// flushed by timer so the remote cursor never freezes mid-gesture.
func (c *Client) PublishCursor(x, y float64) {
	msg := wire.Message{
		Type:     wire.TypeCursorMove,
		ClientID: c.cfg.CursorID,
		Username: c.cfg.Username,
		X:        x,
		Y:        y,
	}

	c.cursorMu.Lock()
	now := time.Now()
	dx, dy := x-c.cursorX, y-c.cursorY
	moved := dx*dx+dy*dy >= cursorMinDelta*cursorMinDelta
	if now.Sub(c.cursorSent) >= cursorMinInterval && (moved || c.cursorSent.IsZero()) {
		c.cursorSent = now
		c.cursorX, c.cursorY = x, y
		c.cursorMu.Unlock()
		c.send(msg)
		return
	}
	if !moved {
		c.cursorMu.Unlock()
		return
	}
	c.cursorQueue = &msg
	if c.cursorTimer == nil {
		wait := cursorMinInterval - now.Sub(c.cursorSent)
		if wait <= 0 {
			wait = cursorMinInterval
		}
		c.cursorTimer = time.AfterFunc(wait, c.flushCursor)
	}
	c.cursorMu.Unlock()
}

func (c *Client) flushCursor() {
	c.cursorMu.Lock()
	msg := c.cursorQueue
	c.cursorQueue = nil
	c.cursorTimer = nil
	if msg != nil {
		c.cursorSent = time.Now()
		c.cursorX, c.cursorY = msg.X, msg.Y
	}
	c.cursorMu.Unlock()
	if msg != nil {
		c.send(*msg)
	}
}

func (c *Client) notify(s Status, err error) {
	c.mu.Lock()
	fn := c.onStatus
	c.mu.Unlock()
	if fn != nil {
		fn(s, err)
	}
}
