// Package geometry holds the pure math behind direct manipulation: bounding
// boxes, hit-testing, resize/rotate transforms and marquee intersection.
// Nothing here carries state or performs I/O; every function maps shapes and
// points to values.
package geometry

import (
	"math"

	"drawflow/internal/scene"
)

// Rect is an axis-aligned box in scene coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Center returns the midpoint of the rect.
func (r Rect) Center() scene.Point {
	return scene.Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Manipulation constants. Tolerances are in scene units and deliberately
// independent of zoom: the caller hands in points already mapped to scene
// space.
const (
	HitTolerance  = 6.0
	MinShapeSize  = 12.0
	curveSegments = 20

	SelectionPadding   = 6.0
	HandleSize         = 8.0
	RotateHandleOffset = 20.0
	RotateHandleRadius = 8.0
)

// BoundsOf computes the axis-aligned bounding box of a shape. ok is false
// only for degenerate geometry (an empty polyline), which a store never
// accepts in the first place.
func BoundsOf(s scene.Shape) (Rect, bool) {
	switch s.Type {
	case scene.ShapeRect:
		return Rect{s.X, s.Y, s.W, s.H}, true
	case scene.ShapeText:
		// Text x/y is the baseline-left corner.
		return Rect{s.X, s.Y - s.H, s.W, s.H}, true
	case scene.ShapeEllipse:
		return Rect{s.CX - s.R, s.CY - s.R, 2 * s.R, 2 * s.R}, true
	case scene.ShapeRhombus:
		return pointBounds([]scene.Point{s.Top, s.Right, s.Bottom, s.Left})
	case scene.ShapePolyline:
		return pointBounds(s.Points)
	case scene.ShapeLine:
		return pointBounds([]scene.Point{s.Start, s.End})
	case scene.ShapeArrow:
		pts := []scene.Point{s.Start, s.End}
		if s.Control != nil {
			pts = append(pts, *s.Control)
		}
		return pointBounds(pts)
	}
	return Rect{}, false
}

func pointBounds(pts []scene.Point) (Rect, bool) {
	if len(pts) == 0 {
		return Rect{}, false
	}
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{minX, minY, maxX - minX, maxY - minY}, true
}

// SelectionBounds returns the union box over the identified shapes. ok is
// false when no member resolves a box.
func SelectionBounds(shapes []scene.Shape, ids []string) (Rect, bool) {
	idset := make(map[string]bool, len(ids))
	for _, id := range ids {
		idset[id] = true
	}
	var (
		out   Rect
		found bool
	)
	for _, s := range shapes {
		if !idset[s.ID] {
			continue
		}
		b, ok := BoundsOf(s)
		if !ok {
			continue
		}
		if !found {
			out, found = b, true
			continue
		}
		minX := math.Min(out.X, b.X)
		minY := math.Min(out.Y, b.Y)
		maxX := math.Max(out.X+out.W, b.X+b.W)
		maxY := math.Max(out.Y+out.H, b.Y+b.H)
		out = Rect{minX, minY, maxX - minX, maxY - minY}
	}
	return out, found
}

// MarqueeIntersects reports AABB overlap. Overlap, not containment: a shape
// only has to touch the drag rectangle to be picked up.
func MarqueeIntersects(a, b Rect) bool {
	return !(a.X > b.X+b.W || a.X+a.W < b.X || a.Y > b.Y+b.H || a.Y+a.H < b.Y)
}

// RotatePoint rotates p about center by angle radians.
func RotatePoint(p, center scene.Point, angle float64) scene.Point {
	sin, cos := math.Sincos(angle)
	dx := p.X - center.X
	dy := p.Y - center.Y
	return scene.Point{
		X: center.X + dx*cos - dy*sin,
		Y: center.Y + dx*sin + dy*cos,
	}
}

// QuadraticAt evaluates the quadratic curve a→b with control c at t.
func QuadraticAt(a, c, b scene.Point, t float64) scene.Point {
	mt := 1 - t
	return scene.Point{
		X: mt*mt*a.X + 2*mt*t*c.X + t*t*b.X,
		Y: mt*mt*a.Y + 2*mt*t*c.Y + t*t*b.Y,
	}
}

func distance(a, b scene.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
