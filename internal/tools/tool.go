// Package tools implements the pointer tools that edit a scene: one drawing
// tool per shape variant, an eraser, and the selection tool that carries
// move, marquee, resize and rotate gestures.
//
// Tools receive scene-space pointer events from the editor; converting from
// screen space is the camera's job, not theirs. A drawing gesture builds the
// store's draft shape and commits exactly once on pointer up.
package tools

import (
	"drawflow/internal/scene"
)

// Host is the surface a tool edits through. The editor implements it.
type Host interface {
	// Scene returns the store the tool reads and mutates.
	Scene() *scene.Store

	// Style returns the style to stamp onto newly drawn shapes.
	Style() scene.Style

	// MeasureText returns the rendered extent of a text run.
	MeasureText(text string, fontSize float64) (w, h float64)

	// BeginTextEdit asks the editor to open its text input for the shape.
	BeginTextEdit(shapeID string)
}

// Modifiers carries the keyboard state relevant to pointer gestures.
type Modifiers struct {
	Shift bool
}

// Tool handles pointer input while active. Points are scene coordinates.
type Tool interface {
	Name() string
	Activate(h Host)
	Deactivate()
	PointerDown(p scene.Point, mods Modifiers)
	PointerMove(p scene.Point, mods Modifiers)
	PointerUp(p scene.Point, mods Modifiers)
}

// DoubleClicker is implemented by tools that react to double clicks.
type DoubleClicker interface {
	DoubleClick(p scene.Point)
}
