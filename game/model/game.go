package model

import (
	"fmt"
	"time"
)

// Game is the immutable collection of maps plus the global gameplay
// parameters shared by every session.
type Game struct {
	maps            []*Map
	mapIndex        map[string]int
	lootInterval    time.Duration
	lootProbability float64
	maxInactiveTime time.Duration
}

// NewGame creates a game with the given loot generation parameters and
// inactivity eviction threshold.
func NewGame(lootInterval time.Duration, lootProbability float64, maxInactiveTime time.Duration) *Game {
	return &Game{
		mapIndex:        make(map[string]int),
		lootInterval:    lootInterval,
		lootProbability: lootProbability,
		maxInactiveTime: maxInactiveTime,
	}
}

// AddMap registers a map; map ids must be unique.
func (g *Game) AddMap(m *Map) error {
	if _, ok := g.mapIndex[m.ID()]; ok {
		return fmt.Errorf("map %q: %w", m.ID(), ErrDuplicateMap)
	}
	g.mapIndex[m.ID()] = len(g.maps)
	g.maps = append(g.maps, m)
	return nil
}

// Maps returns the maps in registration order.
func (g *Game) Maps() []*Map {
	return g.maps
}

// FindMap returns the map with the given id, or nil.
func (g *Game) FindMap(id string) *Map {
	if i, ok := g.mapIndex[id]; ok {
		return g.maps[i]
	}
	return nil
}

func (g *Game) LootInterval() time.Duration {
	return g.lootInterval
}

func (g *Game) LootProbability() float64 {
	return g.lootProbability
}

func (g *Game) MaxInactiveTime() time.Duration {
	return g.maxInactiveTime
}
