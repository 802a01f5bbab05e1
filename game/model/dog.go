package model

import (
	"errors"
	"time"

	"github.com/ivolkov/loothound/game/geom"
)

// DefaultDogWidth is the collision half-width of a dog.
const DefaultDogWidth = 0.6

// ErrNegativeScore is returned when an operation would make a score negative.
var ErrNegativeScore = errors.New("negative score")

// Dog is a player's avatar inside a session. All state is mutated from the
// session's strand only.
type Dog struct {
	position     geom.Point
	prevPosition geom.Point
	speed        geom.Speed
	direction    geom.Direction
	bag          *Bag
	width        float64
	score        int
	liveTime     time.Duration
	inactiveTime time.Duration
}

// NewDog creates a stopped dog at position, facing north, with an empty bag.
func NewDog(position geom.Point, bagCapacity int) *Dog {
	return &Dog{
		position:     position,
		prevPosition: position,
		direction:    geom.North,
		bag:          NewBag(bagCapacity),
		width:        DefaultDogWidth,
	}
}

// RestoreDog rebuilds a dog from snapshot state.
func RestoreDog(
	position, prevPosition geom.Point, speed geom.Speed, direction geom.Direction,
	bag *Bag, width float64, score int,
) *Dog {
	return &Dog{
		position:     position,
		prevPosition: prevPosition,
		speed:        speed,
		direction:    direction,
		bag:          bag,
		width:        width,
		score:        score,
	}
}

func (d *Dog) Position() geom.Point {
	return d.position
}

func (d *Dog) PrevPosition() geom.Point {
	return d.prevPosition
}

// SetPosition moves the dog and records the previous position.
func (d *Dog) SetPosition(position geom.Point) {
	d.prevPosition = d.position
	d.position = position
}

func (d *Dog) Speed() geom.Speed {
	return d.speed
}

// SetSpeed updates the velocity; a nonzero speed marks the dog active.
func (d *Dog) SetSpeed(speed geom.Speed) {
	d.speed = speed
	if !speed.IsZero() {
		d.inactiveTime = 0
	}
}

func (d *Dog) Direction() geom.Direction {
	return d.direction
}

// SetDirection updates the facing; any cardinal direction marks the dog
// active.
func (d *Dog) SetDirection(direction geom.Direction) {
	d.direction = direction
	if direction != geom.None {
		d.inactiveTime = 0
	}
}

func (d *Dog) Bag() *Bag {
	return d.bag
}

func (d *Dog) Width() float64 {
	return d.width
}

func (d *Dog) Score() int {
	return d.score
}

// AddScore increases the score; the result must stay nonnegative.
func (d *Dog) AddScore(points int) error {
	if d.score+points < 0 {
		return ErrNegativeScore
	}
	d.score += points
	return nil
}

func (d *Dog) LiveTime() time.Duration {
	return d.liveTime
}

func (d *Dog) AddLiveTime(dt time.Duration) {
	d.liveTime += dt
}

func (d *Dog) InactiveTime() time.Duration {
	return d.inactiveTime
}

func (d *Dog) AddInactiveTime(dt time.Duration) {
	d.inactiveTime += dt
}

func (d *Dog) ResetInactiveTime() {
	d.inactiveTime = 0
}
