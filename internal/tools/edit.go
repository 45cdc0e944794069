package tools

import (
	"drawflow/internal/geometry"
	"drawflow/internal/scene"
)

// Text defaults stamped onto new text shapes.
const (
	DefaultFontSize   = 20.0
	DefaultFontFamily = "sans-serif"
)

// TextTool places a text shape where the user clicks and hands it straight
// to the editor's text input.
type TextTool struct {
	host Host
}

// NewText returns the text placement tool.
func NewText() *TextTool { return &TextTool{} }

func (t *TextTool) Name() string    { return "text" }
func (t *TextTool) Activate(h Host) { t.host = h }
func (t *TextTool) Deactivate()     { t.host = nil }

func (t *TextTool) PointerDown(p scene.Point, _ Modifiers) {
	w, h := t.host.MeasureText("", DefaultFontSize)
	s := scene.Shape{
		ID:         scene.NewID(),
		Type:       scene.ShapeText,
		Style:      t.host.Style(),
		X:          p.X,
		Y:          p.Y,
		W:          w,
		H:          h,
		FontSize:   DefaultFontSize,
		FontFamily: DefaultFontFamily,
		Align:      "left",
	}
	st := t.host.Scene()
	if err := st.AddShape(s); err != nil {
		return
	}
	st.SetSelection([]string{s.ID})
	t.host.BeginTextEdit(s.ID)
}

func (t *TextTool) PointerMove(scene.Point, Modifiers) {}
func (t *TextTool) PointerUp(scene.Point, Modifiers)   {}

// Eraser removes the topmost shape under the pointer, both on click and
// while dragging across the canvas.
type Eraser struct {
	host     Host
	dragging bool
}

// NewEraser returns the eraser tool.
func NewEraser() *Eraser { return &Eraser{} }

func (t *Eraser) Name() string    { return "eraser" }
func (t *Eraser) Activate(h Host) { t.host = h }
func (t *Eraser) Deactivate() {
	t.dragging = false
	t.host = nil
}

func (t *Eraser) PointerDown(p scene.Point, _ Modifiers) {
	t.dragging = true
	t.eraseAt(p)
}

func (t *Eraser) PointerMove(p scene.Point, _ Modifiers) {
	if t.dragging {
		t.eraseAt(p)
	}
}

func (t *Eraser) PointerUp(scene.Point, Modifiers) {
	t.dragging = false
}

func (t *Eraser) eraseAt(p scene.Point) {
	if id, ok := topmostHit(t.host.Scene(), p); ok {
		t.host.Scene().RemoveShape(id)
	}
}

// topmostHit returns the last shape in draw order containing p.
func topmostHit(st *scene.Store, p scene.Point) (string, bool) {
	shapes := st.Shapes()
	for i := len(shapes) - 1; i >= 0; i-- {
		if geometry.HitTest(p, shapes[i]) {
			return shapes[i].ID, true
		}
	}
	return "", false
}
