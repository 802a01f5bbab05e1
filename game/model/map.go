package model

import (
	"errors"
	"fmt"

	"github.com/ivolkov/loothound/game/geom"
)

// DefaultOfficeWidth is the collision half-width of an office.
const DefaultOfficeWidth = 0.5

var (
	// ErrDuplicateOffice is returned when a map already has an office with
	// the same id.
	ErrDuplicateOffice = errors.New("duplicate office id")

	// ErrDuplicateMap is returned when a game already has a map with the
	// same id.
	ErrDuplicateMap = errors.New("duplicate map id")
)

// Building is an opaque rectangle; the core only carries it through to map
// serialization.
type Building struct {
	Bounds geom.Rectangle
}

// Office is a static deposit target on a map.
type Office struct {
	id       string
	position geom.Point
	offset   geom.Offset
	width    float64
}

// NewOffice builds an office with the default collision width.
func NewOffice(id string, position geom.Point, offset geom.Offset) Office {
	return Office{id: id, position: position, offset: offset, width: DefaultOfficeWidth}
}

func (o Office) ID() string {
	return o.id
}

func (o Office) Position() geom.Point {
	return o.position
}

func (o Office) Offset() geom.Offset {
	return o.offset
}

func (o Office) Width() float64 {
	return o.width
}

// LootType describes one spawnable object kind. The rendering fields are
// passed through to clients untouched; only Value matters to the core.
type LootType struct {
	Name     string
	File     string
	Kind     string
	Rotation *int
	Color    *string
	Scale    *float64
	Value    int
}

// MapConfig holds the per-map gameplay parameters.
type MapConfig struct {
	DogSpeed    float64
	BagCapacity int
}

// Map is an immutable world description: roads, buildings, offices and loot
// types. Build it with the Add* methods before sharing; sessions only read.
type Map struct {
	id          string
	name        string
	roads       []Road
	buildings   []Building
	offices     []Office
	officeIndex map[string]int
	lootTypes   []LootType
	config      MapConfig
}

// NewMap creates an empty map with the given identity and config.
func NewMap(id, name string, config MapConfig) *Map {
	return &Map{
		id:          id,
		name:        name,
		officeIndex: make(map[string]int),
		config:      config,
	}
}

func (m *Map) ID() string {
	return m.id
}

func (m *Map) Name() string {
	return m.name
}

func (m *Map) Roads() []Road {
	return m.roads
}

func (m *Map) Buildings() []Building {
	return m.buildings
}

func (m *Map) Offices() []Office {
	return m.offices
}

func (m *Map) LootTypes() []LootType {
	return m.lootTypes
}

func (m *Map) Config() MapConfig {
	return m.config
}

func (m *Map) DogSpeed() float64 {
	return m.config.DogSpeed
}

// AddRoad appends a road. Road order is significant: the first road is the
// default spawn locus and iteration order drives clamp tie-breaking.
func (m *Map) AddRoad(road Road) {
	m.roads = append(m.roads, road)
}

func (m *Map) AddBuilding(building Building) {
	m.buildings = append(m.buildings, building)
}

// AddOffice appends an office; office ids must be unique within a map.
func (m *Map) AddOffice(office Office) error {
	if _, ok := m.officeIndex[office.id]; ok {
		return fmt.Errorf("office %q: %w", office.id, ErrDuplicateOffice)
	}
	m.officeIndex[office.id] = len(m.offices)
	m.offices = append(m.offices, office)
	return nil
}

func (m *Map) AddLootType(lootType LootType) {
	m.lootTypes = append(m.lootTypes, lootType)
}

// FindRoadsContaining returns every road whose navigable rectangle contains
// point, in map road order.
func (m *Map) FindRoadsContaining(point geom.Point) []Road {
	var roads []Road
	for _, road := range m.roads {
		if road.Contains(point) {
			roads = append(roads, road)
		}
	}
	return roads
}
