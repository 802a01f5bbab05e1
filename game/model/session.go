package model

import (
	"math/rand/v2"
	"time"

	"github.com/ivolkov/loothound/game/geom"
	"github.com/ivolkov/loothound/game/loot"
)

// GameSession owns the live state of one map instance: its dogs and lost
// objects. A session is created on the first join for its map and lives for
// the rest of the process. All methods must be called from the application
// strand.
type GameSession struct {
	id           string
	gameMap      *Map
	generator    *loot.Generator
	dogs         []*Dog
	lostObjects  []LostObject
	nextObjectID uint64
}

// NewGameSession creates an empty session for the map. The session takes
// ownership of the generator: loot spawn pacing is per-session state.
func NewGameSession(gameMap *Map, generator *loot.Generator) *GameSession {
	return &GameSession{
		id:        gameMap.ID(),
		gameMap:   gameMap,
		generator: generator,
	}
}

// ID returns the session identity, which equals its map id.
func (s *GameSession) ID() string {
	return s.id
}

func (s *GameSession) Map() *Map {
	return s.gameMap
}

// Dogs returns the session's dogs in insertion order. The collision engine
// relies on this ordering.
func (s *GameSession) Dogs() []*Dog {
	return s.dogs
}

func (s *GameSession) LostObjects() []LostObject {
	return s.lostObjects
}

// LootInterval returns the base interval of the session's loot generator.
func (s *GameSession) LootInterval() time.Duration {
	return s.generator.Interval()
}

// SpawnDog creates a dog at the map's spawn point and adds it. With
// randomize set, the spawn point is sampled from a random road.
func (s *GameSession) SpawnDog(randomize bool) *Dog {
	position := s.defaultPosition()
	if randomize {
		position = s.randomPosition()
	}
	dog := NewDog(position, s.gameMap.Config().BagCapacity)
	s.AddDog(dog)
	return dog
}

// AddDog appends a dog and runs an immediate loot pass so a fresh session is
// not empty until the first scheduled loot tick.
func (s *GameSession) AddDog(dog *Dog) {
	s.dogs = append(s.dogs, dog)
	s.GenerateLoot(s.generator.Interval())
}

// AttachDog appends a restored dog without triggering a loot pass, so a
// snapshot restore reproduces the saved state exactly.
func (s *GameSession) AttachDog(dog *Dog) {
	s.dogs = append(s.dogs, dog)
}

// RemoveDog deletes the dog from the session, preserving insertion order of
// the remaining dogs.
func (s *GameSession) RemoveDog(dog *Dog) {
	for i, d := range s.dogs {
		if d == dog {
			s.dogs = append(s.dogs[:i], s.dogs[i+1:]...)
			return
		}
	}
}

// AddLostObject appends a restored object and advances the id counter past
// it, so later spawns never reuse a restored id.
func (s *GameSession) AddLostObject(object LostObject) {
	if object.id >= s.nextObjectID {
		s.nextObjectID = object.id + 1
	}
	s.lostObjects = append(s.lostObjects, object)
}

// Tick advances the session by dt: moves every dog along the road network,
// updates its clocks, then applies gathering events.
func (s *GameSession) Tick(dt time.Duration) {
	seconds := dt.Seconds()

	for _, dog := range s.dogs {
		position := dog.Position()
		speed := dog.Speed()

		target := geom.Point{
			X: position.X + speed.X*seconds,
			Y: position.Y + speed.Y*seconds,
		}

		if next, ok := s.findSuitablePoint(position, target); ok {
			dog.SetPosition(next)
			if next.X != target.X || next.Y != target.Y {
				dog.SetSpeed(geom.Speed{})
			}
		}

		dog.AddLiveTime(dt)

		if speed.IsZero() {
			dog.AddInactiveTime(dt)
		} else {
			dog.ResetInactiveTime()
		}
	}

	s.processLoot()
}

// GenerateLoot asks the generator how many objects to spawn for the elapsed
// interval and places them on random roads.
func (s *GameSession) GenerateLoot(dt time.Duration) {
	if len(s.gameMap.LootTypes()) == 0 {
		return
	}
	count := s.generator.Generate(dt, len(s.lostObjects), len(s.dogs))
	for i := 0; i < count; i++ {
		s.lostObjects = append(s.lostObjects, s.makeLostObject())
	}
}

// ReleaseInactiveDogs removes and returns every dog idle for at least
// maxInactive. Call after Tick so collision indices are no longer live.
func (s *GameSession) ReleaseInactiveDogs(maxInactive time.Duration) []*Dog {
	var released []*Dog
	kept := s.dogs[:0]
	for _, dog := range s.dogs {
		if dog.InactiveTime() >= maxInactive {
			released = append(released, dog)
		} else {
			kept = append(kept, dog)
		}
	}
	s.dogs = kept
	return released
}

// findSuitablePoint clamps the displacement start->end to the road network.
// Among the roads containing start, it picks the clamp farthest from start,
// so a dog entering a junction continues onto the crossing road. It reports
// false when start lies on no road.
func (s *GameSession) findSuitablePoint(start, end geom.Point) (geom.Point, bool) {
	roads := s.gameMap.FindRoadsContaining(start)
	if len(roads) == 0 {
		return geom.Point{}, false
	}

	mostFar := roads[0].Bound(end)
	maxDistance := geom.Distance(start, mostFar)

	for _, road := range roads[1:] {
		pretender := road.Bound(end)
		if distance := geom.Distance(start, pretender); distance > maxDistance {
			mostFar = pretender
			maxDistance = distance
		}
	}

	return mostFar, true
}

// processLoot runs the collision engine over lost objects, offices and dogs,
// then applies pickups and deposits in time order.
func (s *GameSession) processLoot() {
	offices := s.gameMap.Offices()

	items := make([]geom.Item, 0, len(s.lostObjects)+len(offices))
	for _, object := range s.lostObjects {
		items = append(items, geom.Item{Position: object.position, Width: object.width})
	}
	officesStart := len(items)
	for _, office := range offices {
		items = append(items, geom.Item{Position: office.position, Width: office.width})
	}

	gatherers := make([]geom.Gatherer, 0, len(s.dogs))
	for _, dog := range s.dogs {
		gatherers = append(gatherers, geom.Gatherer{
			Start: dog.PrevPosition(),
			End:   dog.Position(),
			Width: dog.Width(),
		})
	}

	events := geom.FindGatherEvents(itemDogProvider{items: items, gatherers: gatherers})
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		dog := s.dogs[event.GathererIndex]
		bag := dog.Bag()

		if event.ItemIndex < officesStart {
			object := &s.lostObjects[event.ItemIndex]
			if bag.IsFull() || object.IsPickedUp() {
				continue
			}
			object.MarkPickedUp()
			bag.Add(*object)
		} else {
			if bag.IsEmpty() {
				continue
			}
			dog.AddScore(bag.Drop())
		}
	}

	kept := s.lostObjects[:0]
	for _, object := range s.lostObjects {
		if !object.pickedUp {
			kept = append(kept, object)
		}
	}
	s.lostObjects = kept
}

func (s *GameSession) makeLostObject() LostObject {
	lootTypes := s.gameMap.LootTypes()
	typeIndex := rand.IntN(len(lootTypes))

	id := s.nextObjectID
	s.nextObjectID++

	return NewLostObject(id, s.randomPosition(), typeIndex, lootTypes[typeIndex].Value)
}

func (s *GameSession) defaultPosition() geom.Point {
	return s.gameMap.Roads()[0].Start()
}

func (s *GameSession) randomPosition() geom.Point {
	roads := s.gameMap.Roads()
	road := roads[rand.IntN(len(roads))]

	if road.IsHorizontal() {
		return geom.Point{
			X: uniform(road.Start().X, road.End().X),
			Y: road.Start().Y,
		}
	}
	return geom.Point{
		X: road.Start().X,
		Y: uniform(road.Start().Y, road.End().Y),
	}
}

func uniform(a, b float64) float64 {
	if b < a {
		a, b = b, a
	}
	return a + rand.Float64()*(b-a)
}

// itemDogProvider adapts a session's flattened items and dogs to the
// collision engine.
type itemDogProvider struct {
	items     []geom.Item
	gatherers []geom.Gatherer
}

func (p itemDogProvider) ItemsCount() int {
	return len(p.items)
}

func (p itemDogProvider) Item(i int) geom.Item {
	return p.items[i]
}

func (p itemDogProvider) GatherersCount() int {
	return len(p.gatherers)
}

func (p itemDogProvider) Gatherer(i int) geom.Gatherer {
	return p.gatherers[i]
}
