package model

import (
	"errors"
	"testing"

	"github.com/ivolkov/loothound/game/geom"
)

func TestNewRoadRejectsSkewed(t *testing.T) {
	_, err := NewRoad(geom.Point{X: 0, Y: 0}, geom.Point{X: 3, Y: 4}, 0)
	if !errors.Is(err, ErrSkewedRoad) {
		t.Fatalf("expected ErrSkewedRoad, got %v", err)
	}
}

func TestRoadContainsBoundary(t *testing.T) {
	road := NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10)

	tests := []struct {
		name  string
		point geom.Point
		want  bool
	}{
		{"corner inside", geom.Point{X: 10.4, Y: 0.4}, true},
		{"just past right edge", geom.Point{X: 10.4001, Y: 0}, false},
		{"segment start", geom.Point{X: 0, Y: 0}, true},
		{"left expansion", geom.Point{X: -0.4, Y: -0.4}, true},
		{"above expansion", geom.Point{X: 5, Y: 0.41}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := road.Contains(tt.point); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestRoadContainsReversedEndpoints(t *testing.T) {
	road := NewVerticalRoad(geom.Point{X: 2, Y: 8}, 1)

	if !road.Contains(geom.Point{X: 2, Y: 5}) {
		t.Error("road defined end-to-start must still contain its interior")
	}
	if !road.IsVertical() {
		t.Error("expected a vertical road")
	}
}

func TestRoadBound(t *testing.T) {
	road := NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10)

	tests := []struct {
		name  string
		point geom.Point
		want  geom.Point
	}{
		{"inside unchanged", geom.Point{X: 5, Y: 0.2}, geom.Point{X: 5, Y: 0.2}},
		{"beyond right", geom.Point{X: 15, Y: 0}, geom.Point{X: 10.4, Y: 0}},
		{"beyond corner", geom.Point{X: -5, Y: -5}, geom.Point{X: -0.4, Y: -0.4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := road.Bound(tt.point); got != tt.want {
				t.Errorf("Bound(%+v) = %+v, want %+v", tt.point, got, tt.want)
			}
		})
	}
}
