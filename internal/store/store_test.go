package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drawflow/internal/scene"
)

func sampleShapes() []scene.Shape {
	return []scene.Shape{
		{ID: "a", Type: scene.ShapeRect, Style: scene.DefaultStyle(), X: 1, Y: 2, W: 30, H: 40},
		{ID: "b", Type: scene.ShapeEllipse, Style: scene.DefaultStyle(), CX: 5, CY: 5, R: 10},
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	shapes, err := s.LoadShapes(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, shapes, "unwritten room loads empty")

	require.NoError(t, s.SaveShapes(ctx, "r1", sampleShapes()))
	shapes, err = s.LoadShapes(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, shapes, 2)
	assert.Equal(t, "a", shapes[0].ID)

	// Rooms are isolated.
	shapes, err = s.LoadShapes(ctx, "r2")
	require.NoError(t, err)
	assert.Empty(t, shapes)
}

func TestMemorySettings(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	got, err := s.LoadSettings(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.SaveSettings(ctx, "r1", &scene.RoomSettings{Theme: "dark"}))
	got, err = s.LoadSettings(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "dark", got.Theme)
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.SaveShapes(ctx, "r1", sampleShapes()))
	require.NoError(t, s.SaveSettings(ctx, "r1", &scene.RoomSettings{Theme: "dark"}))

	require.NoError(t, s.Clear(ctx, "r1"))

	shapes, err := s.LoadShapes(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, shapes)
	settings, err := s.LoadSettings(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestMemoryOutage(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	s.SetUnavailable(true)

	_, err := s.LoadShapes(ctx, "r1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.SaveShapes(ctx, "r1", nil), ErrUnavailable)

	s.SetUnavailable(false)
	_, err = s.LoadShapes(ctx, "r1")
	assert.NoError(t, err)
}

func TestLocalRoundTrip(t *testing.T) {
	l, err := OpenLocal(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	shapes, err := l.LoadShapes()
	require.NoError(t, err)
	assert.Empty(t, shapes)

	require.NoError(t, l.SaveShapes(sampleShapes()))
	shapes, err = l.LoadShapes()
	require.NoError(t, err)
	require.Len(t, shapes, 2)
	assert.Equal(t, 10.0, shapes[1].R)

	require.NoError(t, l.SaveSettings(&scene.RoomSettings{Theme: "dark", CanvasBackground: "#222"}))
	settings, err := l.LoadSettings()
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "#222", settings.CanvasBackground)
}

func TestLocalUsername(t *testing.T) {
	l, err := OpenLocal(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	name, err := l.Username()
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, l.SetUsername("ada"))
	name, err = l.Username()
	require.NoError(t, err)
	assert.Equal(t, "ada", name)
}

func TestLocalCursorIDStable(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenLocal(dir)
	require.NoError(t, err)

	id1, err := l.CursorID()
	require.NoError(t, err)
	assert.NotEmpty(t, id1)

	id2, err := l.CursorID()
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// The id survives a reopen.
	require.NoError(t, l.Close())
	l, err = OpenLocal(dir)
	require.NoError(t, err)
	defer l.Close()

	id3, err := l.CursorID()
	require.NoError(t, err)
	assert.Equal(t, id1, id3)
}
