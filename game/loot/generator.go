// Package loot decides how many lost objects a session should spawn over
// elapsed time, given a base interval and a per-interval probability.
package loot

import (
	"math"
	"time"
)

// RandomSource yields uniform reals in [0, 1).
type RandomSource func() float64

// Config holds the generator parameters: the base time interval and the
// probability that one object appears within it.
type Config struct {
	BaseInterval time.Duration
	Probability  float64
}

// Generator accumulates time between spawns and converts it into spawn
// counts. It is not safe for concurrent use; each session owns one.
type Generator struct {
	config          Config
	timeWithoutLoot time.Duration
	random          RandomSource
}

// NewGenerator creates a generator. A nil random source always yields 1,
// which makes spawn counts deterministic for tests.
func NewGenerator(config Config, random RandomSource) *Generator {
	if random == nil {
		random = func() float64 { return 1.0 }
	}
	return &Generator{config: config, random: random}
}

// Interval returns the configured base interval.
func (g *Generator) Interval() time.Duration {
	return g.config.BaseInterval
}

// Generate returns how many objects should spawn after dt has elapsed.
// The count never raises the object total above the looter count. The spawn
// probability compounds over accumulated time without loot; the accumulator
// is consumed whenever at least one object is produced.
func (g *Generator) Generate(dt time.Duration, lootCount, looterCount int) int {
	g.timeWithoutLoot += dt

	shortage := looterCount - lootCount
	if shortage <= 0 {
		return 0
	}

	ratio := float64(g.timeWithoutLoot) / float64(g.config.BaseInterval)
	probability := 1.0 - math.Pow(1.0-g.config.Probability, ratio)

	generated := int(math.Floor(float64(shortage) * probability * g.random()))
	if generated > 0 {
		g.timeWithoutLoot = 0
	}
	return generated
}
