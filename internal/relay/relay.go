// Package relay implements the synchronization server: it accepts one
// websocket per client, tracks room membership, persists each room's shape
// list and re-broadcasts edits to every other member.
//
// The consistency model is deliberately last-write-wins at whole-shape
// granularity. Persistence happens before broadcast; when the store is
// unreachable the broadcast still goes out (availability over durability).
package relay

import (
	"context"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"drawflow/internal/scene"
	"drawflow/internal/store"
	"drawflow/internal/wire"
)

// conn is one connected client: its socket, server-assigned identity and the
// rooms it has joined. Writes are serialized by writeMu; reads happen on the
// connection's single reader goroutine.
type conn struct {
	sock     *websocket.Conn
	userID   string
	username string
	rooms    map[string]bool

	writeMu sync.Mutex
}

func (c *conn) send(m wire.Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

// Server relays room traffic between connected clients.
type Server struct {
	store    store.RoomStore
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu    sync.RWMutex
	conns map[*conn]bool
	rooms map[string]map[*conn]bool
}

// New creates a relay backed by the given room store.
func New(st store.RoomStore, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		store: st,
		upgrader: websocket.Upgrader{
			// Room ids are unguessable capabilities; the socket itself
			// accepts any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "relay"),
		conns:  make(map[*conn]bool),
		rooms:  make(map[string]map[*conn]bool),
	}
}

// Router mounts the websocket endpoint and a health probe.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "err", err)
		return
	}

	c := &conn{
		sock:     sock,
		userID:   uuid.NewString(),
		username: "Anonymous",
		rooms:    make(map[string]bool),
	}
	s.mu.Lock()
	s.conns[c] = true
	s.mu.Unlock()
	s.logger.Info("client connected", "user", c.userID, "remote", sock.RemoteAddr())

	// The request context dies with the handler; store calls outlive it.
	s.readLoop(context.Background(), c)
}

// readLoop processes one connection's messages to completion, in order.
// Messages from different connections interleave freely.
func (s *Server) readLoop(ctx context.Context, c *conn) {
	defer s.dropConn(c)
	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			// Malformed input never kills the loop.
			s.logger.Warn("dropping malformed message", "user", c.userID, "err", err)
			if err := c.send(wire.ErrorMessage("failed to process message")); err != nil {
				return
			}
			continue
		}
		s.dispatch(ctx, c, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, c *conn, msg wire.Message) {
	switch msg.Type {
	case wire.TypeJoinRoom:
		s.handleJoin(ctx, c, msg)
	case wire.TypeShapeAdd:
		s.handleShapeAdd(ctx, c, msg)
	case wire.TypeShapeUpdate:
		s.handleShapeUpdate(ctx, c, msg)
	case wire.TypeShapeRemove:
		s.handleShapeRemove(ctx, c, msg)
	case wire.TypeShapesSync:
		s.handleShapesSync(ctx, c, msg)
	case wire.TypeCursorMove:
		s.handleCursorMove(c, msg)
	case wire.TypeUserUpdate:
		s.handleUserUpdate(c, msg)
	case wire.TypeRoomSettingsUpdate:
		s.handleSettingsUpdate(ctx, c, msg)
	default:
		s.logger.Warn("unknown message type", "type", msg.Type, "user", c.userID)
		_ = c.send(wire.ErrorMessage("unknown message type"))
	}
}

func (s *Server) handleJoin(ctx context.Context, c *conn, msg wire.Message) {
	if msg.Username != "" {
		c.username = msg.Username
	}

	s.mu.Lock()
	first := !c.rooms[msg.RoomID]
	c.rooms[msg.RoomID] = true
	members := s.rooms[msg.RoomID]
	if members == nil {
		members = make(map[*conn]bool)
		s.rooms[msg.RoomID] = members
	}
	members[c] = true
	s.mu.Unlock()

	if first {
		s.broadcast(msg.RoomID, wire.Message{
			Type:     wire.TypeUserJoined,
			RoomID:   msg.RoomID,
			UserID:   c.userID,
			Username: c.username,
		}, c)
	}

	// Reply with the persisted snapshot. A store outage degrades to an
	// empty payload so the client can carry on.
	shapes, err := s.store.LoadShapes(ctx, msg.RoomID)
	if err != nil {
		s.logger.Error("store unavailable on join, sending empty snapshot",
			"room", msg.RoomID, "err", err)
		shapes = nil
	}
	if err := c.send(wire.Message{
		Type:   wire.TypeRoomJoined,
		RoomID: msg.RoomID,
		Shapes: shapes,
	}); err != nil {
		s.logger.Warn("send room_joined failed", "user", c.userID, "err", err)
	}

	// Persisted settings follow the snapshot so a late joiner picks up the
	// room's theme and background.
	if settings, err := s.store.LoadSettings(ctx, msg.RoomID); err != nil {
		s.logger.Error("load settings failed on join", "room", msg.RoomID, "err", err)
	} else if settings != nil {
		if err := c.send(wire.Message{
			Type:     wire.TypeRoomSettingsUpdated,
			RoomID:   msg.RoomID,
			Settings: settings,
		}); err != nil {
			s.logger.Warn("send settings failed", "user", c.userID, "err", err)
		}
	}
	s.logger.Info("joined room", "room", msg.RoomID, "user", c.userID, "username", c.username)
}

func (s *Server) handleShapeAdd(ctx context.Context, c *conn, msg wire.Message) {
	if msg.Shape == nil {
		_ = c.send(wire.ErrorMessage("shape_add without shape"))
		return
	}
	s.mutateRoom(ctx, msg.RoomID, func(shapes []scene.Shape) []scene.Shape {
		return append(shapes, *msg.Shape)
	})
	s.broadcast(msg.RoomID, wire.Message{
		Type:   wire.TypeShapeAdded,
		RoomID: msg.RoomID,
		Shape:  msg.Shape,
	}, c)
}

func (s *Server) handleShapeUpdate(ctx context.Context, c *conn, msg wire.Message) {
	if msg.Shape == nil {
		_ = c.send(wire.ErrorMessage("shape_update without shape"))
		return
	}
	s.mutateRoom(ctx, msg.RoomID, func(shapes []scene.Shape) []scene.Shape {
		for i := range shapes {
			if shapes[i].ID == msg.Shape.ID {
				shapes[i] = *msg.Shape
				return shapes
			}
		}
		// Update for a shape the store never saw: keep it rather than
		// lose the edit.
		return append(shapes, *msg.Shape)
	})
	s.broadcast(msg.RoomID, wire.Message{
		Type:   wire.TypeShapeUpdated,
		RoomID: msg.RoomID,
		Shape:  msg.Shape,
	}, c)
}

func (s *Server) handleShapeRemove(ctx context.Context, c *conn, msg wire.Message) {
	s.mutateRoom(ctx, msg.RoomID, func(shapes []scene.Shape) []scene.Shape {
		out := shapes[:0]
		for _, sh := range shapes {
			if sh.ID != msg.ShapeID {
				out = append(out, sh)
			}
		}
		return out
	})
	s.broadcast(msg.RoomID, wire.Message{
		Type:    wire.TypeShapeRemoved,
		RoomID:  msg.RoomID,
		ShapeID: msg.ShapeID,
	}, c)
}

func (s *Server) handleShapesSync(ctx context.Context, c *conn, msg wire.Message) {
	if err := s.store.SaveShapes(ctx, msg.RoomID, msg.Shapes); err != nil {
		s.logger.Error("persist failed, broadcasting anyway", "room", msg.RoomID, "err", err)
	}
	s.broadcast(msg.RoomID, wire.Message{
		Type:   wire.TypeShapesSynced,
		RoomID: msg.RoomID,
		Shapes: msg.Shapes,
	}, c)
}

func (s *Server) handleCursorMove(c *conn, msg wire.Message) {
	if !s.inRoom(c, msg.RoomID) {
		return
	}
	username := msg.Username
	if username == "" {
		username = c.username
	}
	s.broadcast(msg.RoomID, wire.Message{
		Type:     wire.TypeCursorMoved,
		RoomID:   msg.RoomID,
		UserID:   c.userID,
		ClientID: msg.ClientID,
		Username: username,
		X:        msg.X,
		Y:        msg.Y,
	}, c)
}

func (s *Server) handleUserUpdate(c *conn, msg wire.Message) {
	if !s.inRoom(c, msg.RoomID) {
		return
	}
	c.username = msg.Username
	s.broadcast(msg.RoomID, wire.Message{
		Type:     wire.TypeUserUpdated,
		RoomID:   msg.RoomID,
		UserID:   c.userID,
		ClientID: msg.ClientID,
		Username: msg.Username,
	}, c)
}

func (s *Server) handleSettingsUpdate(ctx context.Context, c *conn, msg wire.Message) {
	if err := s.store.SaveSettings(ctx, msg.RoomID, msg.Settings); err != nil {
		s.logger.Error("persist settings failed, broadcasting anyway", "room", msg.RoomID, "err", err)
	}
	s.broadcast(msg.RoomID, wire.Message{
		Type:     wire.TypeRoomSettingsUpdated,
		RoomID:   msg.RoomID,
		Settings: msg.Settings,
	}, c)
}

// mutateRoom runs a read-modify-write against the room's persisted shape
// list. The RMW is not serialized across connections: a lost race here is a
// last-write-wins outcome, matching shape-level conflict policy. A store
// outage is logged and swallowed so the broadcast path never blocks on it.
func (s *Server) mutateRoom(ctx context.Context, roomID string, mutate func([]scene.Shape) []scene.Shape) {
	shapes, err := s.store.LoadShapes(ctx, roomID)
	if err != nil {
		s.logger.Error("load failed, broadcasting without persistence", "room", roomID, "err", err)
		return
	}
	if err := s.store.SaveShapes(ctx, roomID, mutate(shapes)); err != nil {
		s.logger.Error("persist failed, broadcasting anyway", "room", roomID, "err", err)
	}
}

// broadcast sends to every room member except the originator; senders apply
// their own edits optimistically and never get an echo.
func (s *Server) broadcast(roomID string, msg wire.Message, except *conn) {
	s.mu.RLock()
	members := make([]*conn, 0, len(s.rooms[roomID]))
	for m := range s.rooms[roomID] {
		if m != except {
			members = append(members, m)
		}
	}
	s.mu.RUnlock()

	for _, m := range members {
		if err := m.send(msg); err != nil {
			s.logger.Warn("broadcast failed", "room", roomID, "user", m.userID, "err", err)
		}
	}
}

func (s *Server) inRoom(c *conn, roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.rooms[roomID]
}

// dropConn notifies every joined room of the departure, then removes the
// connection's membership entirely.
func (s *Server) dropConn(c *conn) {
	_ = c.sock.Close()

	s.mu.Lock()
	joined := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		joined = append(joined, roomID)
		if members := s.rooms[roomID]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(s.rooms, roomID)
			}
		}
	}
	delete(s.conns, c)
	s.mu.Unlock()

	for _, roomID := range joined {
		s.broadcast(roomID, wire.Message{
			Type:   wire.TypeUserLeft,
			RoomID: roomID,
			UserID: c.userID,
		}, c)
	}
	s.logger.Info("client disconnected", "user", c.userID)
}
