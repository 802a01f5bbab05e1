package model

import (
	"errors"
	"math"

	"github.com/ivolkov/loothound/game/geom"
)

// DefaultRoadWidth is the half-width of a road's navigable rectangle.
const DefaultRoadWidth = 0.4

// ErrSkewedRoad is returned when a road's endpoints are not axis-aligned.
var ErrSkewedRoad = errors.New("road is not axis-aligned")

// Road is an axis-aligned segment expanded by its half-width into a closed
// navigable rectangle.
type Road struct {
	start geom.Point
	end   geom.Point
	width float64
}

// NewRoad builds a road between two endpoints that share an x or y
// coordinate. width is the half-width; non-positive values take the default.
func NewRoad(start, end geom.Point, width float64) (Road, error) {
	if start.X != end.X && start.Y != end.Y {
		return Road{}, ErrSkewedRoad
	}
	if width <= 0 {
		width = DefaultRoadWidth
	}
	return Road{start: start, end: end, width: width}, nil
}

// NewHorizontalRoad builds a road from start to (endX, start.Y).
func NewHorizontalRoad(start geom.Point, endX float64) Road {
	return Road{start: start, end: geom.Point{X: endX, Y: start.Y}, width: DefaultRoadWidth}
}

// NewVerticalRoad builds a road from start to (start.X, endY).
func NewVerticalRoad(start geom.Point, endY float64) Road {
	return Road{start: start, end: geom.Point{X: start.X, Y: endY}, width: DefaultRoadWidth}
}

func (r Road) Start() geom.Point {
	return r.start
}

func (r Road) End() geom.Point {
	return r.end
}

func (r Road) Width() float64 {
	return r.width
}

func (r Road) IsHorizontal() bool {
	return r.start.Y == r.end.Y
}

func (r Road) IsVertical() bool {
	return r.start.X == r.end.X
}

// LeftBottomCorner returns the minimal corner of the navigable rectangle.
func (r Road) LeftBottomCorner() geom.Point {
	return geom.Point{
		X: math.Min(r.start.X, r.end.X) - r.width,
		Y: math.Min(r.start.Y, r.end.Y) - r.width,
	}
}

// RightTopCorner returns the maximal corner of the navigable rectangle.
func (r Road) RightTopCorner() geom.Point {
	return geom.Point{
		X: math.Max(r.start.X, r.end.X) + r.width,
		Y: math.Max(r.start.Y, r.end.Y) + r.width,
	}
}

// Bound clamps point componentwise into the navigable rectangle.
func (r Road) Bound(point geom.Point) geom.Point {
	leftBottom := r.LeftBottomCorner()
	rightTop := r.RightTopCorner()

	return geom.Point{
		X: clamp(point.X, leftBottom.X, rightTop.X),
		Y: clamp(point.Y, leftBottom.Y, rightTop.Y),
	}
}

// Contains reports whether point lies inside the closed navigable rectangle.
func (r Road) Contains(point geom.Point) bool {
	return r.LeftBottomCorner().LessOrEqual(point) && point.LessOrEqual(r.RightTopCorner())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
