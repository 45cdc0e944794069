package scene

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Point is a position in scene coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ShapeType tags the variant carried by a Shape.
type ShapeType string

const (
	ShapeRect     ShapeType = "rect"
	ShapeEllipse  ShapeType = "ellipse"
	ShapeRhombus  ShapeType = "rhombus"
	ShapePolyline ShapeType = "polyline"
	ShapeLine     ShapeType = "line"
	ShapeArrow    ShapeType = "arrow"
	ShapeText     ShapeType = "text"
)

// StrokePattern selects the dash style of a stroke.
type StrokePattern string

const (
	PatternSolid  StrokePattern = "solid"
	PatternDashed StrokePattern = "dashed"
	PatternDotted StrokePattern = "dotted"
)

// CornerStyle selects sharp or rounded corners.
type CornerStyle string

const (
	CornersSharp CornerStyle = "sharp"
	CornersRound CornerStyle = "round"
)

// Style is the record shared by every shape variant.
type Style struct {
	Stroke      string        `json:"stroke,omitempty"`
	Fill        string        `json:"fill,omitempty"` // "none" disables fill
	StrokeWidth float64       `json:"strokeWidth,omitempty"`
	Opacity     float64       `json:"opacity,omitempty"`
	Pattern     StrokePattern `json:"pattern,omitempty"`
	Roughness   int           `json:"roughness,omitempty"`
	Corners     CornerStyle   `json:"corners,omitempty"`
	Rotation    float64       `json:"rotation,omitempty"` // radians
}

// DefaultStyle returns the style applied to newly drawn shapes.
func DefaultStyle() Style {
	return Style{
		Stroke:      "#000000",
		Fill:        "none",
		StrokeWidth: 2,
		Opacity:     1,
		Pattern:     PatternSolid,
		Roughness:   1,
		Corners:     CornersSharp,
	}
}

// Shape is one element of a scene. Type selects which geometry fields are
// meaningful; the rest stay at their zero value and are dropped from JSON.
//
// Geometry per variant:
//
//	rect, text  X/Y/W/H (text X/Y is the baseline-left corner, W/H cached)
//	ellipse     CX/CY/R
//	rhombus     Top/Right/Bottom/Left
//	polyline    Points
//	line, arrow Start/End, arrow optionally Control
type Shape struct {
	ID   string    `json:"id"`
	Type ShapeType `json:"type"`
	Style

	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	W float64 `json:"w,omitempty"`
	H float64 `json:"h,omitempty"`

	CX float64 `json:"cx,omitempty"`
	CY float64 `json:"cy,omitempty"`
	R  float64 `json:"r,omitempty"`

	Top    Point `json:"top,omitzero"`
	Right  Point `json:"right,omitzero"`
	Bottom Point `json:"bottom,omitzero"`
	Left   Point `json:"left,omitzero"`

	Points []Point `json:"points,omitempty"`

	Start   Point  `json:"startPoint,omitzero"`
	End     Point  `json:"endPoint,omitzero"`
	Control *Point `json:"controlPoint,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontWeight string  `json:"fontWeight,omitempty"`
	FontStyle  string  `json:"fontStyle,omitempty"`
	Align      string  `json:"align,omitempty"`
}

// NewID returns a collision-resistant shape id.
func NewID() string { return uuid.NewString() }

// Clone returns a deep copy: history snapshots and remote applies must never
// alias point slices or the control pointer.
func (s Shape) Clone() Shape {
	c := s
	if s.Points != nil {
		c.Points = make([]Point, len(s.Points))
		copy(c.Points, s.Points)
	}
	if s.Control != nil {
		cp := *s.Control
		c.Control = &cp
	}
	return c
}

// CloneShapes deep-copies a shape sequence.
func CloneShapes(shapes []Shape) []Shape {
	out := make([]Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Clone()
	}
	return out
}

// Validate rejects shapes that must never enter a store: missing id, unknown
// variant, or any non-finite coordinate.
func (s Shape) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("shape has no id")
	}
	nums := []float64{s.Rotation, s.Opacity, s.StrokeWidth}
	switch s.Type {
	case ShapeRect:
		nums = append(nums, s.X, s.Y, s.W, s.H)
	case ShapeText:
		nums = append(nums, s.X, s.Y, s.W, s.H, s.FontSize)
	case ShapeEllipse:
		nums = append(nums, s.CX, s.CY, s.R)
	case ShapeRhombus:
		nums = append(nums, s.Top.X, s.Top.Y, s.Right.X, s.Right.Y,
			s.Bottom.X, s.Bottom.Y, s.Left.X, s.Left.Y)
	case ShapePolyline:
		for _, p := range s.Points {
			nums = append(nums, p.X, p.Y)
		}
	case ShapeLine, ShapeArrow:
		nums = append(nums, s.Start.X, s.Start.Y, s.End.X, s.End.Y)
		if s.Control != nil {
			nums = append(nums, s.Control.X, s.Control.Y)
		}
	default:
		return fmt.Errorf("unknown shape type %q", s.Type)
	}
	for _, n := range nums {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("shape %s has non-finite geometry", s.ID)
		}
	}
	return nil
}

// RoomSettings is the small per-room preference record persisted next to the
// shape list.
type RoomSettings struct {
	Theme            string `json:"theme"`
	CanvasBackground string `json:"canvasBackground"`
	CustomBackground bool   `json:"customBackground"`
}
