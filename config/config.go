// Package config loads the JSON game configuration file and builds the
// immutable game model from it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ivolkov/loothound/game/geom"
	"github.com/ivolkov/loothound/game/model"
)

// Defaults applied when the config file omits the optional parameters.
const (
	DefaultDogSpeed       = 1.0
	DefaultBagCapacity    = 3
	DefaultRetirementTime = 60 * time.Second
)

var (
	// ErrNoMaps is returned when the config defines no maps.
	ErrNoMaps = errors.New("config defines no maps")

	// ErrNoRoads is returned when a map has no roads.
	ErrNoRoads = errors.New("map has no roads")

	// ErrBadLootConfig is returned when the loot generator parameters are
	// out of range.
	ErrBadLootConfig = errors.New("invalid loot generator config")
)

// File mirrors the JSON config document.
type File struct {
	DefaultDogSpeed    *float64      `json:"defaultDogSpeed,omitempty"`
	DefaultBagCapacity *int          `json:"defaultBagCapacity,omitempty"`
	DogRetirementTime  *float64      `json:"dogRetirementTime,omitempty"`
	LootGenerator      LootGenerator `json:"lootGeneratorConfig"`
	Maps               []Map         `json:"maps"`
}

// LootGenerator holds the spawn pacing parameters. Period is in seconds.
type LootGenerator struct {
	Period      float64 `json:"period"`
	Probability float64 `json:"probability"`
}

// Map mirrors one map entry.
type Map struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DogSpeed    *float64   `json:"dogSpeed,omitempty"`
	BagCapacity *int       `json:"bagCapacity,omitempty"`
	Roads       []Road     `json:"roads"`
	Buildings   []Building `json:"buildings"`
	Offices     []Office   `json:"offices"`
	LootTypes   []LootType `json:"lootTypes"`
}

// Road mirrors one road entry: x1 for a horizontal road, y1 for a vertical
// one.
type Road struct {
	X0 float64  `json:"x0"`
	Y0 float64  `json:"y0"`
	X1 *float64 `json:"x1,omitempty"`
	Y1 *float64 `json:"y1,omitempty"`
}

// Building mirrors one building entry.
type Building struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Office mirrors one office entry.
type Office struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// LootType mirrors one loot type entry; rendering fields pass through to
// clients untouched.
type LootType struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Type     string   `json:"type"`
	Rotation *int     `json:"rotation,omitempty"`
	Color    *string  `json:"color,omitempty"`
	Scale    *float64 `json:"scale,omitempty"`
	Value    int      `json:"value"`
}

// Load reads and validates the config file and builds the game model.
func Load(path string) (*model.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return Build(&file)
}

// Build converts a parsed config document into the game model.
func Build(file *File) (*model.Game, error) {
	if len(file.Maps) == 0 {
		return nil, ErrNoMaps
	}
	if file.LootGenerator.Period <= 0 ||
		file.LootGenerator.Probability < 0 || file.LootGenerator.Probability > 1 {
		return nil, fmt.Errorf("%w: period=%v probability=%v",
			ErrBadLootConfig, file.LootGenerator.Period, file.LootGenerator.Probability)
	}

	retirement := DefaultRetirementTime
	if file.DogRetirementTime != nil {
		retirement = secondsToDuration(*file.DogRetirementTime)
	}

	game := model.NewGame(
		secondsToDuration(file.LootGenerator.Period),
		file.LootGenerator.Probability,
		retirement,
	)

	for i := range file.Maps {
		m, err := buildMap(&file.Maps[i], file)
		if err != nil {
			return nil, fmt.Errorf("map %q: %w", file.Maps[i].ID, err)
		}
		if err := game.AddMap(m); err != nil {
			return nil, err
		}
	}
	return game, nil
}

func buildMap(entry *Map, file *File) (*model.Map, error) {
	dogSpeed := DefaultDogSpeed
	if file.DefaultDogSpeed != nil {
		dogSpeed = *file.DefaultDogSpeed
	}
	if entry.DogSpeed != nil {
		dogSpeed = *entry.DogSpeed
	}

	bagCapacity := DefaultBagCapacity
	if file.DefaultBagCapacity != nil {
		bagCapacity = *file.DefaultBagCapacity
	}
	if entry.BagCapacity != nil {
		bagCapacity = *entry.BagCapacity
	}

	if len(entry.Roads) == 0 {
		return nil, ErrNoRoads
	}

	m := model.NewMap(entry.ID, entry.Name, model.MapConfig{
		DogSpeed:    dogSpeed,
		BagCapacity: bagCapacity,
	})

	for _, road := range entry.Roads {
		start := geom.Point{X: road.X0, Y: road.Y0}
		switch {
		case road.X1 != nil:
			m.AddRoad(model.NewHorizontalRoad(start, *road.X1))
		case road.Y1 != nil:
			m.AddRoad(model.NewVerticalRoad(start, *road.Y1))
		default:
			return nil, fmt.Errorf("road at (%v, %v): %w", road.X0, road.Y0, model.ErrSkewedRoad)
		}
	}

	for _, building := range entry.Buildings {
		m.AddBuilding(model.Building{Bounds: geom.Rectangle{
			Position: geom.Point{X: building.X, Y: building.Y},
			Size:     geom.Size{Width: building.W, Height: building.H},
		}})
	}

	for _, office := range entry.Offices {
		err := m.AddOffice(model.NewOffice(
			office.ID,
			geom.Point{X: office.X, Y: office.Y},
			geom.Offset{DX: office.OffsetX, DY: office.OffsetY},
		))
		if err != nil {
			return nil, err
		}
	}

	for _, lootType := range entry.LootTypes {
		m.AddLootType(model.LootType{
			Name:     lootType.Name,
			File:     lootType.File,
			Kind:     lootType.Type,
			Rotation: lootType.Rotation,
			Color:    lootType.Color,
			Scale:    lootType.Scale,
			Value:    lootType.Value,
		})
	}

	return m, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
