package tools

import (
	"math"

	"drawflow/internal/scene"
)

// dragThreshold discards accidental clicks: a drawing gesture shorter than
// this in both axes produces no shape.
const dragThreshold = 2.0

// drawTool is the shared chassis for drag-to-draw tools. The concrete tool
// supplies build, which maps the gesture's endpoints to a shape.
type drawTool struct {
	name  string
	build func(style scene.Style, start, cur scene.Point) scene.Shape

	host     Host
	start    scene.Point
	dragging bool
}

func (t *drawTool) Name() string    { return t.name }
func (t *drawTool) Activate(h Host) { t.host = h }
func (t *drawTool) Deactivate() {
	if t.dragging && t.host != nil {
		t.host.Scene().ClearDraft()
	}
	t.dragging = false
	t.host = nil
}

func (t *drawTool) PointerDown(p scene.Point, _ Modifiers) {
	t.start = p
	t.dragging = true
}

func (t *drawTool) PointerMove(p scene.Point, _ Modifiers) {
	if !t.dragging {
		return
	}
	t.host.Scene().SetDraft(t.build(t.host.Style(), t.start, p))
}

func (t *drawTool) PointerUp(p scene.Point, _ Modifiers) {
	if !t.dragging {
		return
	}
	t.dragging = false
	st := t.host.Scene()
	st.ClearDraft()
	if math.Abs(p.X-t.start.X) < dragThreshold && math.Abs(p.Y-t.start.Y) < dragThreshold {
		return
	}
	s := t.build(t.host.Style(), t.start, p)
	s.ID = scene.NewID()
	if err := st.AddShape(s); err != nil {
		return
	}
	st.SetSelection([]string{s.ID})
}

// dragBox normalizes a gesture to a positive-extent box.
func dragBox(start, cur scene.Point) (x, y, w, h float64) {
	x = math.Min(start.X, cur.X)
	y = math.Min(start.Y, cur.Y)
	w = math.Abs(cur.X - start.X)
	h = math.Abs(cur.Y - start.Y)
	return
}

// NewRect returns the rectangle tool.
func NewRect() Tool {
	return &drawTool{name: "rect", build: func(style scene.Style, start, cur scene.Point) scene.Shape {
		x, y, w, h := dragBox(start, cur)
		return scene.Shape{Type: scene.ShapeRect, Style: style, X: x, Y: y, W: w, H: h}
	}}
}

// NewEllipse returns the circle tool: center at the gesture midpoint, radius
// half the drag distance.
func NewEllipse() Tool {
	return &drawTool{name: "ellipse", build: func(style scene.Style, start, cur scene.Point) scene.Shape {
		dx, dy := cur.X-start.X, cur.Y-start.Y
		return scene.Shape{
			Type:  scene.ShapeEllipse,
			Style: style,
			CX:    (start.X + cur.X) / 2,
			CY:    (start.Y + cur.Y) / 2,
			R:     math.Hypot(dx, dy) / 2,
		}
	}}
}

// NewRhombus returns the rhombus tool: vertices at the edge midpoints of the
// dragged box.
func NewRhombus() Tool {
	return &drawTool{name: "rhombus", build: func(style scene.Style, start, cur scene.Point) scene.Shape {
		x, y, w, h := dragBox(start, cur)
		return scene.Shape{
			Type:   scene.ShapeRhombus,
			Style:  style,
			Top:    scene.Point{X: x + w/2, Y: y},
			Right:  scene.Point{X: x + w, Y: y + h/2},
			Bottom: scene.Point{X: x + w/2, Y: y + h},
			Left:   scene.Point{X: x, Y: y + h/2},
		}
	}}
}

// NewLine returns the straight line tool.
func NewLine() Tool {
	return &drawTool{name: "line", build: func(style scene.Style, start, cur scene.Point) scene.Shape {
		return scene.Shape{Type: scene.ShapeLine, Style: style, Start: start, End: cur}
	}}
}

// NewArrow returns the arrow tool. New arrows are straight; the selection
// tool's midpoint handle bends them later.
func NewArrow() Tool {
	return &drawTool{name: "arrow", build: func(style scene.Style, start, cur scene.Point) scene.Shape {
		return scene.Shape{Type: scene.ShapeArrow, Style: style, Start: start, End: cur}
	}}
}

// pencilMinStep skips points closer than this to the previous one, keeping
// freehand strokes from ballooning.
const pencilMinStep = 1.5

// Pencil is the freehand polyline tool.
type Pencil struct {
	host     Host
	points   []scene.Point
	dragging bool
}

// NewPencil returns the freehand drawing tool.
func NewPencil() *Pencil { return &Pencil{} }

func (t *Pencil) Name() string    { return "pencil" }
func (t *Pencil) Activate(h Host) { t.host = h }
func (t *Pencil) Deactivate() {
	if t.dragging && t.host != nil {
		t.host.Scene().ClearDraft()
	}
	t.dragging = false
	t.points = nil
	t.host = nil
}

func (t *Pencil) PointerDown(p scene.Point, _ Modifiers) {
	t.dragging = true
	t.points = []scene.Point{p}
}

func (t *Pencil) PointerMove(p scene.Point, _ Modifiers) {
	if !t.dragging {
		return
	}
	last := t.points[len(t.points)-1]
	if math.Hypot(p.X-last.X, p.Y-last.Y) < pencilMinStep {
		return
	}
	t.points = append(t.points, p)
	t.host.Scene().SetDraft(t.shape())
}

func (t *Pencil) PointerUp(p scene.Point, _ Modifiers) {
	if !t.dragging {
		return
	}
	t.dragging = false
	st := t.host.Scene()
	st.ClearDraft()
	if last := t.points[len(t.points)-1]; p != last {
		t.points = append(t.points, p)
	}
	if len(t.points) < 2 {
		t.points = nil
		return
	}
	s := t.shape()
	s.ID = scene.NewID()
	t.points = nil
	if err := st.AddShape(s); err != nil {
		return
	}
	st.SetSelection([]string{s.ID})
}

func (t *Pencil) shape() scene.Shape {
	pts := make([]scene.Point, len(t.points))
	copy(pts, t.points)
	return scene.Shape{Type: scene.ShapePolyline, Style: t.host.Style(), Points: pts}
}
