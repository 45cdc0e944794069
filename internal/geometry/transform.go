package geometry

import (
	"math"

	"drawflow/internal/scene"
)

// Handle identifies a grab point on the selection box, or an endpoint handle
// on a line/arrow.
type Handle string

const (
	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
	HandleNW Handle = "nw"

	HandleLineStart    Handle = "line-start"
	HandleLineEnd      Handle = "line-end"
	HandleArrowControl Handle = "arrow-control"
)

// ResizeTransform derives the anchor and scale factors for dragging one of
// the eight box handles to the pointer. Dimensions clamp at MinShapeSize;
// when clamped the anchor-side edge stays fixed.
func ResizeTransform(bounds Rect, handle Handle, p scene.Point) (anchor scene.Point, sx, sy float64) {
	x, y, w, h := bounds.X, bounds.Y, bounds.W, bounds.H
	newW, newH := w, h

	switch handle {
	case HandleNW:
		newW = x + w - p.X
		newH = y + h - p.Y
	case HandleN:
		newH = y + h - p.Y
	case HandleNE:
		newW = p.X - x
		newH = y + h - p.Y
	case HandleE:
		newW = p.X - x
	case HandleSE:
		newW = p.X - x
		newH = p.Y - y
	case HandleS:
		newH = p.Y - y
	case HandleSW:
		newW = x + w - p.X
		newH = p.Y - y
	case HandleW:
		newW = x + w - p.X
	}

	// Edge handles only scale one axis.
	if handle == HandleN || handle == HandleS {
		newW = w
	}
	if handle == HandleE || handle == HandleW {
		newH = h
	}

	newW = math.Max(newW, MinShapeSize)
	newH = math.Max(newH, MinShapeSize)

	sx, sy = 1, 1
	if w != 0 {
		sx = newW / w
	}
	if h != 0 {
		sy = newH / h
	}
	return AnchorPoint(handle, bounds), sx, sy
}

// AnchorPoint returns the fixed point opposite the dragged handle.
func AnchorPoint(handle Handle, b Rect) scene.Point {
	switch handle {
	case HandleNW:
		return scene.Point{X: b.X + b.W, Y: b.Y + b.H}
	case HandleN:
		return scene.Point{X: b.X + b.W/2, Y: b.Y + b.H}
	case HandleNE:
		return scene.Point{X: b.X, Y: b.Y + b.H}
	case HandleE:
		return scene.Point{X: b.X, Y: b.Y + b.H/2}
	case HandleSE:
		return scene.Point{X: b.X, Y: b.Y}
	case HandleS:
		return scene.Point{X: b.X + b.W/2, Y: b.Y}
	case HandleSW:
		return scene.Point{X: b.X + b.W, Y: b.Y}
	case HandleW:
		return scene.Point{X: b.X + b.W, Y: b.Y + b.H/2}
	}
	return scene.Point{X: b.X, Y: b.Y}
}

// RotateDelta maps the current pointer angle to the shape's new rotation.
func RotateDelta(center scene.Point, startAngle, startRotation float64, p scene.Point) float64 {
	return startRotation + (math.Atan2(p.Y-center.Y, p.X-center.X) - startAngle)
}

// ScalePoint maps a point through anchor + (p - anchor) * scale.
func ScalePoint(p, anchor scene.Point, sx, sy float64) scene.Point {
	return scene.Point{
		X: anchor.X + (p.X-anchor.X)*sx,
		Y: anchor.Y + (p.Y-anchor.Y)*sy,
	}
}

// ScaleShape applies the anchored scale per control point of the variant.
// Ellipses scale uniformly by the mean factor so the radius stays circular.
func ScaleShape(s scene.Shape, anchor scene.Point, sx, sy float64) scene.Shape {
	out := s.Clone()
	switch s.Type {
	case scene.ShapeRect:
		out.X = anchor.X + (s.X-anchor.X)*sx
		out.Y = anchor.Y + (s.Y-anchor.Y)*sy
		out.W = s.W * sx
		out.H = s.H * sy
	case scene.ShapeText:
		topLeft := ScalePoint(scene.Point{X: s.X, Y: s.Y - s.H}, anchor, sx, sy)
		out.X = topLeft.X
		out.Y = topLeft.Y + s.H*sy
		out.W = s.W * sx
		out.H = s.H * sy
	case scene.ShapeEllipse:
		c := ScalePoint(scene.Point{X: s.CX, Y: s.CY}, anchor, sx, sy)
		out.CX = c.X
		out.CY = c.Y
		out.R = s.R * (sx + sy) / 2
	case scene.ShapeRhombus:
		out.Top = ScalePoint(s.Top, anchor, sx, sy)
		out.Right = ScalePoint(s.Right, anchor, sx, sy)
		out.Bottom = ScalePoint(s.Bottom, anchor, sx, sy)
		out.Left = ScalePoint(s.Left, anchor, sx, sy)
	case scene.ShapePolyline:
		for i, p := range s.Points {
			out.Points[i] = ScalePoint(p, anchor, sx, sy)
		}
	case scene.ShapeLine, scene.ShapeArrow:
		out.Start = ScalePoint(s.Start, anchor, sx, sy)
		out.End = ScalePoint(s.End, anchor, sx, sy)
		if s.Control != nil {
			c := ScalePoint(*s.Control, anchor, sx, sy)
			out.Control = &c
		}
	}
	return out
}

// TranslateShape moves every control point of the variant by (dx, dy).
func TranslateShape(s scene.Shape, dx, dy float64) scene.Shape {
	out := s.Clone()
	switch s.Type {
	case scene.ShapeRect, scene.ShapeText:
		out.X += dx
		out.Y += dy
	case scene.ShapeEllipse:
		out.CX += dx
		out.CY += dy
	case scene.ShapeRhombus:
		out.Top = scene.Point{X: s.Top.X + dx, Y: s.Top.Y + dy}
		out.Right = scene.Point{X: s.Right.X + dx, Y: s.Right.Y + dy}
		out.Bottom = scene.Point{X: s.Bottom.X + dx, Y: s.Bottom.Y + dy}
		out.Left = scene.Point{X: s.Left.X + dx, Y: s.Left.Y + dy}
	case scene.ShapePolyline:
		for i, p := range s.Points {
			out.Points[i] = scene.Point{X: p.X + dx, Y: p.Y + dy}
		}
	case scene.ShapeLine, scene.ShapeArrow:
		out.Start = scene.Point{X: s.Start.X + dx, Y: s.Start.Y + dy}
		out.End = scene.Point{X: s.End.X + dx, Y: s.End.Y + dy}
		if s.Control != nil {
			c := scene.Point{X: s.Control.X + dx, Y: s.Control.Y + dy}
			out.Control = &c
		}
	}
	return out
}

// HandleAt resolves which of the eight box handles, laid out on the padded
// selection box, the pointer is over.
func HandleAt(p scene.Point, bounds Rect) (Handle, bool) {
	box := Rect{
		X: bounds.X - SelectionPadding,
		Y: bounds.Y - SelectionPadding,
		W: bounds.W + 2*SelectionPadding,
		H: bounds.H + 2*SelectionPadding,
	}
	half := HandleSize / 2
	spots := []struct {
		h    Handle
		x, y float64
	}{
		{HandleNW, box.X, box.Y},
		{HandleN, box.X + box.W/2, box.Y},
		{HandleNE, box.X + box.W, box.Y},
		{HandleE, box.X + box.W, box.Y + box.H/2},
		{HandleSE, box.X + box.W, box.Y + box.H},
		{HandleS, box.X + box.W/2, box.Y + box.H},
		{HandleSW, box.X, box.Y + box.H},
		{HandleW, box.X, box.Y + box.H/2},
	}
	for _, spot := range spots {
		if p.X >= spot.x-half && p.X <= spot.x+half &&
			p.Y >= spot.y-half && p.Y <= spot.y+half {
			return spot.h, true
		}
	}
	return "", false
}

// RotateHandleAt reports whether the pointer is over the rotation grab
// point floating above the selection box.
func RotateHandleAt(p scene.Point, bounds Rect) bool {
	cx := bounds.X + bounds.W/2
	hy := bounds.Y - SelectionPadding - RotateHandleOffset
	return math.Hypot(p.X-cx, p.Y-hy) <= RotateHandleRadius
}

// LineHandleAt resolves endpoint and control handles on a line or arrow.
func LineHandleAt(p scene.Point, s scene.Shape) (Handle, bool) {
	if s.Type != scene.ShapeLine && s.Type != scene.ShapeArrow {
		return "", false
	}
	radius := HandleSize / 2
	if distance(p, s.Start) <= radius {
		return HandleLineStart, true
	}
	if s.Type == scene.ShapeArrow && distance(p, ArrowMidpoint(s)) <= radius {
		return HandleArrowControl, true
	}
	if distance(p, s.End) <= radius {
		return HandleLineEnd, true
	}
	return "", false
}

// ArrowMidpoint returns the curve midpoint of an arrow, falling back to the
// chord midpoint when it has no control point.
func ArrowMidpoint(s scene.Shape) scene.Point {
	control := scene.Point{
		X: (s.Start.X + s.End.X) / 2,
		Y: (s.Start.Y + s.End.Y) / 2,
	}
	if s.Control != nil {
		control = *s.Control
	}
	return QuadraticAt(s.Start, control, s.End, 0.5)
}

// ControlForMidpoint inverts QuadraticAt at t=0.5: the control point that
// makes the curve pass through mid.
func ControlForMidpoint(start, mid, end scene.Point) scene.Point {
	return scene.Point{
		X: 2*mid.X - 0.5*(start.X+end.X),
		Y: 2*mid.Y - 0.5*(start.Y+end.Y),
	}
}
