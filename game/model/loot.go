package model

import "github.com/ivolkov/loothound/game/geom"

// DefaultLootWidth is the collision half-width of a lost object. Objects are
// collected on contact with the dog's circle, so their own radius is zero.
const DefaultLootWidth = 0.0

// LostObject is a spawned item waiting to be picked up. Identity and
// placement are immutable; only the picked-up flag transitions, once.
type LostObject struct {
	id        uint64
	position  geom.Point
	typeIndex int
	value     int
	width     float64
	pickedUp  bool
}

// NewLostObject creates an object of the given loot type at position.
func NewLostObject(id uint64, position geom.Point, typeIndex, value int) LostObject {
	return LostObject{
		id:        id,
		position:  position,
		typeIndex: typeIndex,
		value:     value,
		width:     DefaultLootWidth,
	}
}

// RestoreLostObject rebuilds an object from snapshot state.
func RestoreLostObject(id uint64, position geom.Point, typeIndex, value int, width float64, pickedUp bool) LostObject {
	return LostObject{
		id:        id,
		position:  position,
		typeIndex: typeIndex,
		value:     value,
		width:     width,
		pickedUp:  pickedUp,
	}
}

func (o LostObject) ID() uint64 {
	return o.id
}

func (o LostObject) Position() geom.Point {
	return o.position
}

func (o LostObject) Type() int {
	return o.typeIndex
}

func (o LostObject) Value() int {
	return o.value
}

func (o LostObject) Width() float64 {
	return o.width
}

func (o LostObject) IsPickedUp() bool {
	return o.pickedUp
}

// MarkPickedUp flips the one-shot picked-up flag.
func (o *LostObject) MarkPickedUp() {
	o.pickedUp = true
}
