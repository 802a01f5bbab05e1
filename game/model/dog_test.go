package model

import (
	"errors"
	"testing"
	"time"

	"github.com/ivolkov/loothound/game/geom"
)

func TestDogSetPositionRecordsPrevious(t *testing.T) {
	dog := NewDog(geom.Point{X: 1, Y: 1}, 3)

	if dog.PrevPosition() != dog.Position() {
		t.Error("a fresh dog's previous position must equal its position")
	}

	dog.SetPosition(geom.Point{X: 2, Y: 1})
	if dog.PrevPosition() != (geom.Point{X: 1, Y: 1}) {
		t.Errorf("prev = %+v, want (1,1)", dog.PrevPosition())
	}

	dog.SetPosition(geom.Point{X: 3, Y: 1})
	if dog.PrevPosition() != (geom.Point{X: 2, Y: 1}) {
		t.Errorf("prev = %+v, want (2,1)", dog.PrevPosition())
	}
}

func TestDogInactivityResets(t *testing.T) {
	dog := NewDog(geom.Point{}, 3)
	dog.AddInactiveTime(10 * time.Second)

	dog.SetSpeed(geom.Speed{X: 1})
	if dog.InactiveTime() != 0 {
		t.Error("nonzero speed must reset inactive time")
	}

	dog.AddInactiveTime(10 * time.Second)
	dog.SetSpeed(geom.Speed{})
	if dog.InactiveTime() != 10*time.Second {
		t.Error("zero speed must not reset inactive time")
	}

	dog.SetDirection(geom.East)
	if dog.InactiveTime() != 0 {
		t.Error("cardinal direction must reset inactive time")
	}

	dog.AddInactiveTime(time.Second)
	dog.SetDirection(geom.None)
	if dog.InactiveTime() != time.Second {
		t.Error("direction None must not reset inactive time")
	}
}

func TestDogScore(t *testing.T) {
	dog := NewDog(geom.Point{}, 3)

	if err := dog.AddScore(42); err != nil {
		t.Fatalf("AddScore: %v", err)
	}
	if dog.Score() != 42 {
		t.Errorf("Score = %d, want 42", dog.Score())
	}
	if err := dog.AddScore(-100); !errors.Is(err, ErrNegativeScore) {
		t.Errorf("negative result: got %v, want ErrNegativeScore", err)
	}
	if dog.Score() != 42 {
		t.Error("failed AddScore must leave the score unchanged")
	}
}

func TestDogDefaults(t *testing.T) {
	dog := NewDog(geom.Point{X: 5, Y: 5}, 2)

	if dog.Direction() != geom.North {
		t.Errorf("new dog direction = %v, want North", dog.Direction())
	}
	if !dog.Speed().IsZero() {
		t.Error("new dog must be stopped")
	}
	if dog.Width() != DefaultDogWidth {
		t.Errorf("width = %v, want %v", dog.Width(), DefaultDogWidth)
	}
	if dog.Bag().Capacity() != 2 {
		t.Errorf("bag capacity = %d, want 2", dog.Bag().Capacity())
	}
}
