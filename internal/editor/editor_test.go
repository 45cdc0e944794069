package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drawflow/internal/scene"
	"drawflow/internal/sync"
	"drawflow/internal/tools"
)

// fakePublisher records published traffic instead of dialing anything.
type fakePublisher struct {
	status     sync.Status
	adds       []scene.Shape
	updates    []scene.Shape
	removes    []string
	syncs      [][]scene.Shape
	settings   []scene.RoomSettings
	usernames  []string
	cursors    []scene.Point
	onSettings func(scene.RoomSettings)
}

func (f *fakePublisher) Status() sync.Status        { return f.status }
func (f *fakePublisher) Connect(string) error       { f.status = sync.StatusJoined; return nil }
func (f *fakePublisher) Disconnect()                { f.status = sync.StatusDisconnected }
func (f *fakePublisher) PublishAdd(s scene.Shape)   { f.adds = append(f.adds, s) }
func (f *fakePublisher) PublishUpdate(s scene.Shape) {
	f.updates = append(f.updates, s)
}
func (f *fakePublisher) PublishRemove(id string) { f.removes = append(f.removes, id) }
func (f *fakePublisher) PublishSync(shapes []scene.Shape) {
	f.syncs = append(f.syncs, shapes)
}
func (f *fakePublisher) PublishSettings(s scene.RoomSettings) {
	f.settings = append(f.settings, s)
}
func (f *fakePublisher) PublishUsername(name string) { f.usernames = append(f.usernames, name) }
func (f *fakePublisher) PublishCursor(x, y float64) {
	f.cursors = append(f.cursors, scene.Point{X: x, Y: y})
}
func (f *fakePublisher) SetSettingsFunc(fn func(scene.RoomSettings)) { f.onSettings = fn }

// fakeLocal is an in-memory stand-in for the badger slot.
type fakeLocal struct {
	shapes   []scene.Shape
	settings *scene.RoomSettings
	username string
	saves    int
}

func (f *fakeLocal) LoadShapes() ([]scene.Shape, error) { return f.shapes, nil }
func (f *fakeLocal) SaveShapes(shapes []scene.Shape) error {
	f.shapes = shapes
	f.saves++
	return nil
}
func (f *fakeLocal) LoadSettings() (*scene.RoomSettings, error) { return f.settings, nil }
func (f *fakeLocal) SaveSettings(s *scene.RoomSettings) error   { f.settings = s; return nil }
func (f *fakeLocal) SetUsername(name string) error              { f.username = name; return nil }

func testRect(id string) scene.Shape {
	return scene.Shape{ID: id, Type: scene.ShapeRect, Style: scene.DefaultStyle(), X: 1, Y: 1, W: 10, H: 10}
}

func newTestEngine(t *testing.T) (*Engine, *scene.Store, *fakePublisher, *fakeLocal) {
	t.Helper()
	st := scene.NewStore(nil)
	pub := &fakePublisher{}
	local := &fakeLocal{}
	return NewEngine(st, pub, local, nil), st, pub, local
}

func TestCommitRoutesToRoomWhenJoined(t *testing.T) {
	e, st, pub, local := newTestEngine(t)
	require.NoError(t, e.JoinRoom("room-1"))

	require.NoError(t, st.AddShape(testRect("a")))
	st.UpdateShape("a", func(s scene.Shape) scene.Shape { s.X = 5; return s })
	st.RemoveShape("a")

	require.Len(t, pub.adds, 1)
	assert.Equal(t, "a", pub.adds[0].ID)
	require.Len(t, pub.updates, 1)
	assert.Equal(t, 5.0, pub.updates[0].X)
	assert.Equal(t, []string{"a"}, pub.removes)
	assert.Equal(t, 0, local.saves, "joined edits never hit the local slot")
}

func TestCommitRoutesToLocalWhenSolo(t *testing.T) {
	_, st, pub, local := newTestEngine(t)

	require.NoError(t, st.AddShape(testRect("a")))

	assert.Empty(t, pub.adds)
	assert.Equal(t, 1, local.saves)
	require.Len(t, local.shapes, 1)
	assert.Equal(t, "a", local.shapes[0].ID)
}

func TestUndoPublishesWholeScene(t *testing.T) {
	e, st, pub, _ := newTestEngine(t)
	require.NoError(t, e.JoinRoom("room-1"))
	require.NoError(t, st.AddShape(testRect("a")))
	require.NoError(t, st.AddShape(testRect("b")))

	e.Undo()
	require.Len(t, pub.syncs, 1)
	assert.Len(t, pub.syncs[0], 1, "undo rewinds to one shape")

	e.Redo()
	require.Len(t, pub.syncs, 2)
	assert.Len(t, pub.syncs[1], 2)

	e.Redo()
	assert.Len(t, pub.syncs, 2, "redo at the top publishes nothing")
}

func TestUndoSoloPersistsLocally(t *testing.T) {
	e, st, _, local := newTestEngine(t)
	require.NoError(t, st.AddShape(testRect("a")))
	saves := local.saves

	e.Undo()
	assert.Greater(t, local.saves, saves)
	assert.Empty(t, local.shapes)
}

func TestLoadLocalRestoresSceneAndSettings(t *testing.T) {
	st := scene.NewStore(nil)
	local := &fakeLocal{
		shapes:   []scene.Shape{testRect("saved")},
		settings: &scene.RoomSettings{Theme: "dark"},
	}
	e := NewEngine(st, nil, local, nil)

	require.NoError(t, e.LoadLocal())
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, "dark", e.Settings().Theme)
	assert.False(t, st.CanUndo(), "restoring is not an edit")
}

func TestSetToolSwitchesAndValidates(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	assert.Equal(t, "select", e.ActiveTool())

	require.NoError(t, e.SetTool("rect"))
	assert.Equal(t, "rect", e.ActiveTool())
	assert.Error(t, e.SetTool("chainsaw"))
	assert.Equal(t, "rect", e.ActiveTool(), "failed switch keeps the old tool")

	// Switching away mid-gesture abandons the draft.
	e.PointerDown(scene.Point{X: 0, Y: 0}, tools.Modifiers{})
	e.PointerMove(scene.Point{X: 50, Y: 50}, tools.Modifiers{})
	_, hasDraft := st.Draft()
	require.True(t, hasDraft)
	require.NoError(t, e.SetTool("select"))
	_, hasDraft = st.Draft()
	assert.False(t, hasDraft)
}

func TestPointerEventsPassThroughCamera(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	require.NoError(t, e.SetTool("rect"))
	e.Pan(100, 50)
	e.ZoomAt(scene.Point{X: 100, Y: 50}, 2)

	// Screen (100,50) is scene (0,0); screen (140,90) is scene (20,20).
	e.PointerDown(scene.Point{X: 100, Y: 50}, tools.Modifiers{})
	e.PointerUp(scene.Point{X: 140, Y: 90}, tools.Modifiers{})

	require.Equal(t, 1, st.Len())
	s := st.Shapes()[0]
	assert.InDelta(t, 0.0, s.X, 1e-9)
	assert.InDelta(t, 20.0, s.W, 1e-9)
}

func TestPointerMovePublishesCursorOnlyWhenJoined(t *testing.T) {
	e, _, pub, _ := newTestEngine(t)

	e.PointerMove(scene.Point{X: 10, Y: 10}, tools.Modifiers{})
	assert.Empty(t, pub.cursors)

	require.NoError(t, e.JoinRoom("room-1"))
	e.PointerMove(scene.Point{X: 10, Y: 10}, tools.Modifiers{})
	require.Len(t, pub.cursors, 1)
	assert.Equal(t, scene.Point{X: 10, Y: 10}, pub.cursors[0])
}

func TestZoomClamps(t *testing.T) {
	cam := NewCamera()
	for i := 0; i < 20; i++ {
		cam.ZoomAt(scene.Point{}, 2)
	}
	assert.Equal(t, MaxZoom, cam.Zoom)

	for i := 0; i < 40; i++ {
		cam.ZoomAt(scene.Point{}, 0.5)
	}
	assert.Equal(t, MinZoom, cam.Zoom)
}

func TestZoomAtKeepsAnchorStationary(t *testing.T) {
	cam := NewCamera()
	cam.Pan(30, 40)
	anchor := scene.Point{X: 200, Y: 150}
	before := cam.ToScene(anchor)

	cam.ZoomAt(anchor, 1.5)
	after := cam.ToScene(anchor)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestSetTextRecomputesExtent(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	require.NoError(t, st.AddShape(scene.Shape{
		ID: "t", Type: scene.ShapeText, Style: scene.DefaultStyle(),
		X: 0, Y: 20, W: 12, H: 24, FontSize: 20,
	}))

	e.SetText("t", "hello")

	got, _ := st.ShapeByID("t")
	assert.Equal(t, "hello", got.Text)
	assert.InDelta(t, 5*20*0.6, got.W, 1e-9)
	assert.InDelta(t, 20*1.2, got.H, 1e-9)
}

func TestApplyStyleKeepsRotation(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	s := testRect("a")
	s.Rotation = 1.25
	require.NoError(t, st.AddShape(s))
	st.SetSelection([]string{"a"})

	style := scene.DefaultStyle()
	style.Stroke = "#ff0000"
	e.ApplyStyle(style)

	got, _ := st.ShapeByID("a")
	assert.Equal(t, "#ff0000", got.Stroke)
	assert.Equal(t, 1.25, got.Rotation)
	assert.Equal(t, "#ff0000", e.Style().Stroke, "new shapes pick up the style too")
}

func TestSettingsRouting(t *testing.T) {
	e, _, pub, local := newTestEngine(t)

	e.SetSettings(scene.RoomSettings{Theme: "dark"})
	require.NotNil(t, local.settings)
	assert.Equal(t, "dark", local.settings.Theme)
	assert.Empty(t, pub.settings)

	require.NoError(t, e.JoinRoom("room-1"))
	e.SetSettings(scene.RoomSettings{Theme: "light"})
	require.Len(t, pub.settings, 1)
	assert.Equal(t, "light", pub.settings[0].Theme)

	// Remote change lands through the registered callback.
	pub.onSettings(scene.RoomSettings{Theme: "dark", CustomBackground: true})
	assert.True(t, e.Settings().CustomBackground)
}

func TestDeleteSelection(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	require.NoError(t, st.AddShape(testRect("a")))
	require.NoError(t, st.AddShape(testRect("b")))
	require.NoError(t, st.AddShape(testRect("c")))
	st.SetSelection([]string{"a", "c"})

	e.DeleteSelection()

	require.Equal(t, 1, st.Len())
	assert.Equal(t, "b", st.Shapes()[0].ID)
	assert.Empty(t, st.Selection())
}

func TestSetUsername(t *testing.T) {
	e, _, pub, local := newTestEngine(t)

	require.NoError(t, e.SetUsername("ada"))
	assert.Equal(t, "ada", local.username)
	assert.Empty(t, pub.usernames, "no room, nothing to announce")

	require.NoError(t, e.JoinRoom("room-1"))
	require.NoError(t, e.SetUsername("grace"))
	assert.Equal(t, []string{"grace"}, pub.usernames)
}
