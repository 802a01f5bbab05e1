package model

import (
	"errors"
	"testing"

	"github.com/ivolkov/loothound/game/geom"
)

func TestMapDuplicateOffice(t *testing.T) {
	m := NewMap("town", "Town", MapConfig{DogSpeed: 1, BagCapacity: 3})

	if err := m.AddOffice(NewOffice("o1", geom.Point{}, geom.Offset{})); err != nil {
		t.Fatalf("first AddOffice: %v", err)
	}
	err := m.AddOffice(NewOffice("o1", geom.Point{X: 1}, geom.Offset{}))
	if !errors.Is(err, ErrDuplicateOffice) {
		t.Fatalf("expected ErrDuplicateOffice, got %v", err)
	}
	if len(m.Offices()) != 1 {
		t.Error("failed AddOffice must not modify the map")
	}
}

func TestGameDuplicateMap(t *testing.T) {
	game := NewGame(0, 0, 0)

	if err := game.AddMap(NewMap("town", "Town", MapConfig{})); err != nil {
		t.Fatalf("first AddMap: %v", err)
	}
	err := game.AddMap(NewMap("town", "Another town", MapConfig{}))
	if !errors.Is(err, ErrDuplicateMap) {
		t.Fatalf("expected ErrDuplicateMap, got %v", err)
	}
}

func TestGameFindMap(t *testing.T) {
	game := NewGame(0, 0, 0)
	game.AddMap(NewMap("town", "Town", MapConfig{}))

	if game.FindMap("town") == nil {
		t.Error("FindMap must return a registered map")
	}
	if game.FindMap("village") != nil {
		t.Error("FindMap must return nil for an unknown id")
	}
}

func TestFindRoadsContainingKeepsMapOrder(t *testing.T) {
	m := NewMap("town", "Town", MapConfig{})
	m.AddRoad(NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10))
	m.AddRoad(NewVerticalRoad(geom.Point{X: 5, Y: 0}, 10))
	m.AddRoad(NewHorizontalRoad(geom.Point{X: 0, Y: 20}, 10))

	roads := m.FindRoadsContaining(geom.Point{X: 5, Y: 0})
	if len(roads) != 2 {
		t.Fatalf("expected 2 containing roads, got %d", len(roads))
	}
	if !roads[0].IsHorizontal() || !roads[1].IsVertical() {
		t.Error("containing roads must preserve map registration order")
	}
}
