package editor

import "drawflow/internal/scene"

// Zoom limits. Outside this range hit targets get too small to grab.
const (
	MinZoom = 0.1
	MaxZoom = 4.0
)

// Camera maps between screen and scene coordinates:
// screen = scene*Zoom + Offset.
type Camera struct {
	OffsetX float64
	OffsetY float64
	Zoom    float64
}

// NewCamera returns an identity camera.
func NewCamera() Camera { return Camera{Zoom: 1} }

// ToScene converts a screen position to scene coordinates.
func (c Camera) ToScene(p scene.Point) scene.Point {
	return scene.Point{X: (p.X - c.OffsetX) / c.Zoom, Y: (p.Y - c.OffsetY) / c.Zoom}
}

// ToScreen converts a scene position to screen coordinates.
func (c Camera) ToScreen(p scene.Point) scene.Point {
	return scene.Point{X: p.X*c.Zoom + c.OffsetX, Y: p.Y*c.Zoom + c.OffsetY}
}

// Pan shifts the viewport by a screen-space delta.
func (c *Camera) Pan(dx, dy float64) {
	c.OffsetX += dx
	c.OffsetY += dy
}

// ZoomAt scales the zoom by factor, keeping the scene point under the given
// screen position stationary.
func (c *Camera) ZoomAt(p scene.Point, factor float64) {
	z := c.Zoom * factor
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	if z == c.Zoom {
		return
	}
	anchor := c.ToScene(p)
	c.Zoom = z
	c.OffsetX = p.X - anchor.X*z
	c.OffsetY = p.Y - anchor.Y*z
}
