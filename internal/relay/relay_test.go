package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drawflow/internal/scene"
	"drawflow/internal/store"
	"drawflow/internal/wire"
)

type testRelay struct {
	srv   *httptest.Server
	rooms *store.MemStore
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	rooms := store.NewMemory()
	srv := httptest.NewServer(New(rooms, nil).Router())
	t.Cleanup(srv.Close)
	return &testRelay{srv: srv, rooms: rooms}
}

func (r *testRelay) wsURL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/ws"
}

// dialAndJoin connects a raw client and waits for the room snapshot.
func dialAndJoin(t *testing.T, r *testRelay, roomID, username string) (*websocket.Conn, wire.Message) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(r.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sendMsg(t, conn, wire.Message{Type: wire.TypeJoinRoom, RoomID: roomID, Username: username})

	for {
		msg := readMsg(t, conn)
		if msg.Type == wire.TypeRoomJoined {
			return conn, msg
		}
	}
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg wire.Message) {
	t.Helper()
	data, err := msg.Encode()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readMsg(t *testing.T, conn *websocket.Conn) wire.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := wire.Decode(data)
	require.NoError(t, err)
	return msg
}

// assertNoMessage verifies the connection stays quiet for a moment.
func assertNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected no message")
}

func shapeRect(id string) scene.Shape {
	return scene.Shape{ID: id, Type: scene.ShapeRect, Style: scene.DefaultStyle(), X: 1, Y: 1, W: 10, H: 10}
}

func TestJoinEmptyRoom(t *testing.T) {
	r := newTestRelay(t)
	_, joined := dialAndJoin(t, r, "room-1", "ada")
	assert.Empty(t, joined.Shapes)
	assert.Equal(t, "room-1", joined.RoomID)
}

func TestJoinDeliversPersistedSnapshot(t *testing.T) {
	r := newTestRelay(t)
	require.NoError(t, r.rooms.SaveShapes(context.Background(), "room-1",
		[]scene.Shape{shapeRect("s1"), shapeRect("s2")}))

	_, joined := dialAndJoin(t, r, "room-1", "ada")
	require.Len(t, joined.Shapes, 2)
	assert.Equal(t, "s1", joined.Shapes[0].ID)
}

func TestAddBroadcastsWithoutEcho(t *testing.T) {
	r := newTestRelay(t)
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-1", "bob")
	readMsg(t, alice) // alice sees bob's user_joined

	s := shapeRect("s1")
	sendMsg(t, alice, wire.Message{Type: wire.TypeShapeAdd, RoomID: "room-1", Shape: &s})

	got := readMsg(t, bob)
	assert.Equal(t, wire.TypeShapeAdded, got.Type)
	require.NotNil(t, got.Shape)
	assert.Equal(t, "s1", got.Shape.ID)

	assertNoMessage(t, alice)

	// The edit was persisted before the broadcast.
	stored, err := r.rooms.LoadShapes(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestUpdatePersistsReplacement(t *testing.T) {
	r := newTestRelay(t)
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-1", "bob")
	readMsg(t, alice)

	s := shapeRect("s1")
	sendMsg(t, alice, wire.Message{Type: wire.TypeShapeAdd, RoomID: "room-1", Shape: &s})
	readMsg(t, bob)

	s.X = 77
	sendMsg(t, alice, wire.Message{Type: wire.TypeShapeUpdate, RoomID: "room-1", Shape: &s})
	got := readMsg(t, bob)
	assert.Equal(t, wire.TypeShapeUpdated, got.Type)
	assert.Equal(t, 77.0, got.Shape.X)

	stored, err := r.rooms.LoadShapes(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, stored, 1, "update replaces, never duplicates")
	assert.Equal(t, 77.0, stored[0].X)
}

func TestRemoveFiltersStore(t *testing.T) {
	r := newTestRelay(t)
	require.NoError(t, r.rooms.SaveShapes(context.Background(), "room-1",
		[]scene.Shape{shapeRect("s1"), shapeRect("s2")}))
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-1", "bob")
	readMsg(t, alice)

	sendMsg(t, alice, wire.Message{Type: wire.TypeShapeRemove, RoomID: "room-1", ShapeID: "s1"})
	got := readMsg(t, bob)
	assert.Equal(t, wire.TypeShapeRemoved, got.Type)
	assert.Equal(t, "s1", got.ShapeID)

	stored, err := r.rooms.LoadShapes(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "s2", stored[0].ID)
}

func TestSyncReplacesWholesale(t *testing.T) {
	r := newTestRelay(t)
	require.NoError(t, r.rooms.SaveShapes(context.Background(), "room-1",
		[]scene.Shape{shapeRect("old")}))
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-1", "bob")
	readMsg(t, alice)

	sendMsg(t, alice, wire.Message{
		Type: wire.TypeShapesSync, RoomID: "room-1",
		Shapes: []scene.Shape{shapeRect("n1"), shapeRect("n2")},
	})
	got := readMsg(t, bob)
	assert.Equal(t, wire.TypeShapesSynced, got.Type)
	require.Len(t, got.Shapes, 2)

	stored, err := r.rooms.LoadShapes(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "n1", stored[0].ID)
}

func TestBroadcastSurvivesStoreOutage(t *testing.T) {
	r := newTestRelay(t)
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-1", "bob")
	readMsg(t, alice)

	r.rooms.SetUnavailable(true)

	s := shapeRect("s1")
	sendMsg(t, alice, wire.Message{Type: wire.TypeShapeAdd, RoomID: "room-1", Shape: &s})

	got := readMsg(t, bob)
	assert.Equal(t, wire.TypeShapeAdded, got.Type, "relay degrades, never blocks")
}

func TestJoinDuringOutageGetsEmptySnapshot(t *testing.T) {
	r := newTestRelay(t)
	require.NoError(t, r.rooms.SaveShapes(context.Background(), "room-1",
		[]scene.Shape{shapeRect("s1")}))
	r.rooms.SetUnavailable(true)

	_, joined := dialAndJoin(t, r, "room-1", "ada")
	assert.Empty(t, joined.Shapes)
}

func TestRoomsAreIsolated(t *testing.T) {
	r := newTestRelay(t)
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-2", "bob")

	s := shapeRect("s1")
	sendMsg(t, alice, wire.Message{Type: wire.TypeShapeAdd, RoomID: "room-1", Shape: &s})

	assertNoMessage(t, bob)
}

func TestCursorRelayedToOthersOnly(t *testing.T) {
	r := newTestRelay(t)
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-1", "bob")
	readMsg(t, alice)

	sendMsg(t, alice, wire.Message{
		Type: wire.TypeCursorMove, RoomID: "room-1",
		ClientID: "cursor-alice", X: 12, Y: 34,
	})

	got := readMsg(t, bob)
	assert.Equal(t, wire.TypeCursorMoved, got.Type)
	assert.Equal(t, "cursor-alice", got.ClientID)
	assert.Equal(t, 12.0, got.X)
	assert.Equal(t, "alice", got.Username, "relay fills the sender's name")
	assertNoMessage(t, alice)
}

func TestUserLifecycleNotifications(t *testing.T) {
	r := newTestRelay(t)
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-1", "bob")

	joined := readMsg(t, alice)
	assert.Equal(t, wire.TypeUserJoined, joined.Type)
	assert.Equal(t, "bob", joined.Username)

	sendMsg(t, bob, wire.Message{Type: wire.TypeUserUpdate, RoomID: "room-1", Username: "robert"})
	updated := readMsg(t, alice)
	assert.Equal(t, wire.TypeUserUpdated, updated.Type)
	assert.Equal(t, "robert", updated.Username)
	assert.Equal(t, joined.UserID, updated.UserID)

	require.NoError(t, bob.Close())
	left := readMsg(t, alice)
	assert.Equal(t, wire.TypeUserLeft, left.Type)
	assert.Equal(t, joined.UserID, left.UserID)
}

func TestMalformedMessageGetsErrorReply(t *testing.T) {
	r := newTestRelay(t)
	conn, _ := dialAndJoin(t, r, "room-1", "ada")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	got := readMsg(t, conn)
	assert.Equal(t, wire.TypeError, got.Type)

	// The connection is still usable afterwards.
	s := shapeRect("s1")
	sendMsg(t, conn, wire.Message{Type: wire.TypeShapeAdd, RoomID: "room-1", Shape: &s})
	stored := func() []scene.Shape {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			shapes, err := r.rooms.LoadShapes(context.Background(), "room-1")
			require.NoError(t, err)
			if len(shapes) > 0 {
				return shapes
			}
			time.Sleep(10 * time.Millisecond)
		}
		return nil
	}()
	require.Len(t, stored, 1)
}

func TestSettingsPersistAndRelay(t *testing.T) {
	r := newTestRelay(t)
	alice, _ := dialAndJoin(t, r, "room-1", "alice")
	bob, _ := dialAndJoin(t, r, "room-1", "bob")
	readMsg(t, alice)

	sendMsg(t, alice, wire.Message{
		Type: wire.TypeRoomSettingsUpdate, RoomID: "room-1",
		Settings: &scene.RoomSettings{Theme: "dark", CanvasBackground: "#111"},
	})

	got := readMsg(t, bob)
	assert.Equal(t, wire.TypeRoomSettingsUpdated, got.Type)
	require.NotNil(t, got.Settings)
	assert.Equal(t, "dark", got.Settings.Theme)

	stored, err := r.rooms.LoadSettings(context.Background(), "room-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "#111", stored.CanvasBackground)
}

func TestJoinDeliversPersistedSettings(t *testing.T) {
	r := newTestRelay(t)
	require.NoError(t, r.rooms.SaveSettings(context.Background(), "room-1",
		&scene.RoomSettings{Theme: "dark", CanvasBackground: "#111"}))

	conn, _ := dialAndJoin(t, r, "room-1", "ada")

	// The settings record follows straight after the snapshot.
	got := readMsg(t, conn)
	assert.Equal(t, wire.TypeRoomSettingsUpdated, got.Type)
	require.NotNil(t, got.Settings)
	assert.Equal(t, "dark", got.Settings.Theme)
	assert.Equal(t, "#111", got.Settings.CanvasBackground)
}

func TestJoinWithoutSettingsStaysQuiet(t *testing.T) {
	r := newTestRelay(t)
	conn, _ := dialAndJoin(t, r, "room-1", "ada")
	assertNoMessage(t, conn)
}
