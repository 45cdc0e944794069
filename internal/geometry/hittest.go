package geometry

import (
	"math"

	"drawflow/internal/scene"
)

// HitTest reports whether the point lies within HitTolerance of the shape's
// stroke, or inside its fill for closed shapes. Rotated shapes are handled
// by inverse-rotating the test point about the bounding-box center before
// the variant-specific test.
func HitTest(p scene.Point, s scene.Shape) bool {
	if s.Rotation != 0 {
		if b, ok := BoundsOf(s); ok {
			p = RotatePoint(p, b.Center(), -s.Rotation)
		}
	}

	switch s.Type {
	case scene.ShapeRect:
		return hitRect(p, Rect{s.X, s.Y, s.W, s.H})
	case scene.ShapeText:
		return hitRect(p, Rect{s.X, s.Y - s.H, s.W, s.H})
	case scene.ShapeEllipse:
		return distance(p, scene.Point{X: s.CX, Y: s.CY}) <= s.R+HitTolerance
	case scene.ShapeRhombus:
		return hitPolygon(p, []scene.Point{s.Top, s.Right, s.Bottom, s.Left})
	case scene.ShapePolyline:
		return hitPolyline(p, s.Points)
	case scene.ShapeLine:
		return hitSegment(p, s.Start, s.End)
	case scene.ShapeArrow:
		if s.Control != nil {
			return hitQuadratic(p, s.Start, *s.Control, s.End)
		}
		return hitSegment(p, s.Start, s.End)
	}
	return false
}

func hitRect(p scene.Point, r Rect) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// hitPolygon ray-casts after a tolerance-padded bounding-box reject.
func hitPolygon(p scene.Point, poly []scene.Point) bool {
	b, ok := pointBounds(poly)
	if !ok {
		return false
	}
	if p.X < b.X-HitTolerance || p.X > b.X+b.W+HitTolerance ||
		p.Y < b.Y-HitTolerance || p.Y > b.Y+b.H+HitTolerance {
		return false
	}

	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y
		if (yi > p.Y) != (yj > p.Y) &&
			p.X < (xj-xi)*(p.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func hitPolyline(p scene.Point, pts []scene.Point) bool {
	for i := 0; i+1 < len(pts); i++ {
		if hitSegment(p, pts[i], pts[i+1]) {
			return true
		}
	}
	return false
}

// hitSegment tests point-to-segment distance against the tolerance.
func hitSegment(p, a, b scene.Point) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return false
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSq
	if t < 0 || t > 1 {
		return false
	}
	proj := scene.Point{X: a.X + t*dx, Y: a.Y + t*dy}
	return math.Hypot(p.X-proj.X, p.Y-proj.Y) <= HitTolerance
}

// hitQuadratic samples the curve at fixed steps and tests each chord.
func hitQuadratic(p, a, c, b scene.Point) bool {
	prev := a
	for i := 1; i <= curveSegments; i++ {
		q := QuadraticAt(a, c, b, float64(i)/curveSegments)
		if hitSegment(p, prev, q) {
			return true
		}
		prev = q
	}
	return false
}
