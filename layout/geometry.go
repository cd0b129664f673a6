// Package layout computes where the signature and its accompanying text are
// drawn. It is pure geometry: nothing here touches a document.
package layout

import (
	"fmt"
	"math"
	"strings"
)

// Point is a position in PDF user space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NewPoint creates a new point.
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p translated by other.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Size is a width and a height.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// IsZero reports whether either dimension is non-positive.
func (s Size) IsZero() bool {
	return !(s.Width > 0) || !(s.Height > 0)
}

// AspectRatio returns width / height, or 0 for a degenerate size.
func (s Size) AspectRatio() float64 {
	if s.IsZero() {
		return 0
	}
	return s.Width / s.Height
}

// Scale multiplies both dimensions by factor.
func (s Size) Scale(factor float64) Size {
	return Size{Width: s.Width * factor, Height: s.Height * factor}
}

// Box is an axis-aligned rectangle given by its lower-left corner and size.
type Box struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewBox creates a new box.
func NewBox(x, y, width, height float64) Box {
	return Box{X: x, Y: y, Width: width, Height: height}
}

// BoxFromCorners builds a box from two opposite corners in any order.
func BoxFromCorners(x1, y1, x2, y2 float64) Box {
	return Box{
		X:      math.Min(x1, x2),
		Y:      math.Min(y1, y2),
		Width:  math.Abs(x2 - x1),
		Height: math.Abs(y2 - y1),
	}
}

// Origin returns the lower-left corner.
func (b Box) Origin() Point { return Point{X: b.X, Y: b.Y} }

// Size returns the box dimensions.
func (b Box) Size() Size { return Size{Width: b.Width, Height: b.Height} }

// Top returns the upper edge.
func (b Box) Top() float64 { return b.Y + b.Height }

// Center returns the center point.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// IsEmpty reports whether the box has no area.
func (b Box) IsEmpty() bool { return b.Size().IsZero() }

func (b Box) String() string {
	return fmt.Sprintf("(%g, %g, %g×%g)", b.X, b.Y, b.Width, b.Height)
}

// PageSize represents standard page dimensions.
type PageSize struct {
	Width  float64
	Height float64
}

// Standard page sizes in points
var (
	Letter = PageSize{612, 792}
	Legal  = PageSize{612, 1008}
	A4     = PageSize{595, 842}
	A5     = PageSize{420, 595}
)

// PageSizeByName looks up a standard page size, ignoring case.
func PageSizeByName(name string) (PageSize, bool) {
	switch strings.ToLower(name) {
	case "letter":
		return Letter, true
	case "legal":
		return Legal, true
	case "a4":
		return A4, true
	case "a5":
		return A5, true
	}
	return PageSize{}, false
}

