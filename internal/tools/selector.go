package tools

import (
	"math"

	"drawflow/internal/geometry"
	"drawflow/internal/scene"
)

type selectorMode int

const (
	modeIdle selectorMode = iota
	modeMove
	modeMarquee
	modeResize
	modeRotate
	modeLine
)

// Selector is the selection tool: click and shift-click selection, marquee,
// drag-move, the eight resize handles, the rotate handle and the endpoint
// handles of lines and arrows.
//
// Gestures preview without touching the store and commit on pointer up, so
// each gesture lands as one history entry per shape.
type Selector struct {
	host Host

	mode      selectorMode
	start     scene.Point
	moved     bool
	clickedID string

	originals []scene.Shape
	preview   []scene.Shape

	handle      geometry.Handle
	startBounds geometry.Rect

	center        scene.Point
	startAngle    float64
	startRotation float64

	marquee    geometry.Rect
	hasMarquee bool
}

// NewSelector returns the selection tool.
func NewSelector() *Selector { return &Selector{} }

func (t *Selector) Name() string    { return "select" }
func (t *Selector) Activate(h Host) { t.host = h }
func (t *Selector) Deactivate() {
	t.reset()
	t.host = nil
}

func (t *Selector) reset() {
	t.mode = modeIdle
	t.moved = false
	t.clickedID = ""
	t.originals = nil
	t.preview = nil
	t.hasMarquee = false
}

// Preview returns the in-gesture geometry of the shapes being transformed.
// Renderers draw these in place of the store's copies while a gesture runs.
func (t *Selector) Preview() []scene.Shape { return t.preview }

// Marquee returns the active rubber-band rectangle.
func (t *Selector) Marquee() (geometry.Rect, bool) { return t.marquee, t.hasMarquee }

func (t *Selector) PointerDown(p scene.Point, mods Modifiers) {
	t.reset()
	t.start = p
	st := t.host.Scene()
	sel := st.Selection()

	// Handles take priority over shape bodies, and only a single
	// selection exposes them.
	if len(sel) == 1 {
		if s, ok := st.ShapeByID(sel[0]); ok {
			if t.grabHandle(p, s) {
				return
			}
		}
	}

	if id, ok := topmostHit(st, p); ok {
		if mods.Shift {
			st.ToggleSelection(id)
			return
		}
		if !contains(sel, id) {
			st.SetSelection([]string{id})
		}
		t.clickedID = id
		t.beginMove(st)
		return
	}

	if !mods.Shift {
		st.SetSelection(nil)
	}
	t.mode = modeMarquee
}

func (t *Selector) grabHandle(p scene.Point, s scene.Shape) bool {
	if s.Type == scene.ShapeLine || s.Type == scene.ShapeArrow {
		if h, ok := geometry.LineHandleAt(p, s); ok {
			t.mode = modeLine
			t.handle = h
			t.originals = []scene.Shape{s.Clone()}
			return true
		}
		return false
	}

	bounds, ok := geometry.BoundsOf(s)
	if !ok {
		return false
	}
	if geometry.RotateHandleAt(p, bounds) {
		t.mode = modeRotate
		t.center = bounds.Center()
		t.startAngle = math.Atan2(p.Y-t.center.Y, p.X-t.center.X)
		t.startRotation = s.Rotation
		t.originals = []scene.Shape{s.Clone()}
		return true
	}
	if h, ok := geometry.HandleAt(p, bounds); ok {
		t.mode = modeResize
		t.handle = h
		t.startBounds = bounds
		t.originals = []scene.Shape{s.Clone()}
		return true
	}
	return false
}

func (t *Selector) beginMove(st *scene.Store) {
	t.mode = modeMove
	sel := st.Selection()
	t.originals = make([]scene.Shape, 0, len(sel))
	for _, id := range sel {
		if s, ok := st.ShapeByID(id); ok {
			t.originals = append(t.originals, s.Clone())
		}
	}
}

func (t *Selector) PointerMove(p scene.Point, _ Modifiers) {
	switch t.mode {
	case modeMove:
		dx, dy := p.X-t.start.X, p.Y-t.start.Y
		t.preview = t.preview[:0]
		for _, s := range t.originals {
			t.preview = append(t.preview, geometry.TranslateShape(s, dx, dy))
		}
		t.moved = true

	case modeResize:
		anchor, sx, sy := geometry.ResizeTransform(t.startBounds, t.handle, p)
		t.preview = []scene.Shape{geometry.ScaleShape(t.originals[0], anchor, sx, sy)}
		t.moved = true

	case modeRotate:
		s := t.originals[0].Clone()
		s.Rotation = geometry.RotateDelta(t.center, t.startAngle, t.startRotation, p)
		t.preview = []scene.Shape{s}
		t.moved = true

	case modeLine:
		s := t.originals[0].Clone()
		switch t.handle {
		case geometry.HandleLineStart:
			s.Start = p
		case geometry.HandleLineEnd:
			s.End = p
		case geometry.HandleArrowControl:
			ctrl := geometry.ControlForMidpoint(s.Start, p, s.End)
			s.Control = &ctrl
		}
		t.preview = []scene.Shape{s}
		t.moved = true

	case modeMarquee:
		x := math.Min(t.start.X, p.X)
		y := math.Min(t.start.Y, p.Y)
		t.marquee = geometry.Rect{X: x, Y: y, W: math.Abs(p.X - t.start.X), H: math.Abs(p.Y - t.start.Y)}
		t.hasMarquee = true
	}
}

func (t *Selector) PointerUp(p scene.Point, mods Modifiers) {
	st := t.host.Scene()
	switch t.mode {
	case modeMove, modeResize, modeRotate, modeLine:
		if t.moved {
			t.commit(st)
		} else if t.mode == modeMove && t.clickedID != "" && len(st.Selection()) > 1 {
			// A plain click on a multi-selection collapses to that shape.
			st.SetSelection([]string{t.clickedID})
		}

	case modeMarquee:
		if t.hasMarquee {
			t.applyMarquee(st, mods)
		}
	}
	t.reset()
}

func (t *Selector) commit(st *scene.Store) {
	for _, s := range t.preview {
		final := s
		st.UpdateShape(final.ID, func(scene.Shape) scene.Shape { return final })
	}
}

func (t *Selector) applyMarquee(st *scene.Store, mods Modifiers) {
	var ids []string
	if mods.Shift {
		ids = st.Selection()
	}
	for _, s := range st.Shapes() {
		b, ok := geometry.BoundsOf(s)
		if !ok || !geometry.MarqueeIntersects(t.marquee, b) {
			continue
		}
		if !contains(ids, s.ID) {
			ids = append(ids, s.ID)
		}
	}
	st.SetSelection(ids)
}

// DoubleClick opens the text editor when a text shape sits under the pointer.
func (t *Selector) DoubleClick(p scene.Point) {
	st := t.host.Scene()
	id, ok := topmostHit(st, p)
	if !ok {
		return
	}
	s, ok := st.ShapeByID(id)
	if !ok || s.Type != scene.ShapeText {
		return
	}
	st.SetSelection([]string{id})
	t.host.BeginTextEdit(id)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
