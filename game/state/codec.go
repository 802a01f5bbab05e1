// Package state implements the binary snapshot of the live game world:
// sessions, dogs, bags, lost objects, players and tokens. Encoding and
// decoding are symmetric; the stream is versioned and length-prefixed.
package state

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ivolkov/loothound/game/geom"
	"github.com/ivolkov/loothound/game/model"
)

const (
	snapshotVersion = 1

	// maxElements caps every decoded vector length. A well-formed snapshot
	// never approaches it; it bounds allocation on a corrupt stream.
	maxElements = 1 << 20
)

var snapshotMagic = [4]byte{'L', 'H', 'S', 'T'}

// ErrMalformedSnapshot reports an unreadable or corrupt snapshot stream.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Snapshot is the full persisted world: sessions first, then players.
type Snapshot struct {
	Sessions []SessionRepr
	Players  []PlayerRepr
}

// SessionRepr persists one session. Dogs are written for completeness but
// restored through their owning players, which re-attach them by map id.
type SessionRepr struct {
	MapID       string
	Dogs        []DogRepr
	LostObjects []LostObjectRepr
}

// PlayerRepr persists one player together with its dog and token.
type PlayerRepr struct {
	ID    uint64
	MapID string
	Name  string
	Dog   DogRepr
	Token string
}

// DogRepr persists one dog.
type DogRepr struct {
	Position     PointRepr
	PrevPosition PointRepr
	Speed        SpeedRepr
	Direction    int8
	Bag          BagRepr
	Width        float64
	Score        uint64
}

// BagRepr persists a bag's contents and capacity.
type BagRepr struct {
	Contents []LostObjectRepr
	Capacity uint32
}

// LostObjectRepr persists one lost object.
type LostObjectRepr struct {
	ID       uint64
	Position PointRepr
	Type     uint32
	Value    int64
	Width    float64
	PickedUp bool
}

// PointRepr persists a point.
type PointRepr struct {
	X float64
	Y float64
}

// SpeedRepr persists a speed vector.
type SpeedRepr struct {
	X float64
	Y float64
}

// DogToRepr converts a live dog into its persisted form.
func DogToRepr(dog *model.Dog) DogRepr {
	bag := dog.Bag()
	contents := make([]LostObjectRepr, 0, bag.Size())
	for _, object := range bag.Items() {
		contents = append(contents, LostObjectToRepr(object))
	}

	return DogRepr{
		Position:     PointRepr{X: dog.Position().X, Y: dog.Position().Y},
		PrevPosition: PointRepr{X: dog.PrevPosition().X, Y: dog.PrevPosition().Y},
		Speed:        SpeedRepr{X: dog.Speed().X, Y: dog.Speed().Y},
		Direction:    int8(dog.Direction()),
		Bag:          BagRepr{Contents: contents, Capacity: uint32(bag.Capacity())},
		Width:        dog.Width(),
		Score:        uint64(dog.Score()),
	}
}

// RestoreDog rebuilds a live dog from its persisted form.
func (r DogRepr) RestoreDog() *model.Dog {
	bag := model.NewBag(int(r.Bag.Capacity))
	for _, object := range r.Bag.Contents {
		bag.Add(object.RestoreLostObject())
	}

	return model.RestoreDog(
		geom.Point{X: r.Position.X, Y: r.Position.Y},
		geom.Point{X: r.PrevPosition.X, Y: r.PrevPosition.Y},
		geom.Speed{X: r.Speed.X, Y: r.Speed.Y},
		geom.Direction(r.Direction),
		bag,
		r.Width,
		int(r.Score),
	)
}

// LostObjectToRepr converts a lost object into its persisted form.
func LostObjectToRepr(object model.LostObject) LostObjectRepr {
	return LostObjectRepr{
		ID:       object.ID(),
		Position: PointRepr{X: object.Position().X, Y: object.Position().Y},
		Type:     uint32(object.Type()),
		Value:    int64(object.Value()),
		Width:    object.Width(),
		PickedUp: object.IsPickedUp(),
	}
}

// RestoreLostObject rebuilds a lost object from its persisted form.
func (r LostObjectRepr) RestoreLostObject() model.LostObject {
	return model.RestoreLostObject(
		r.ID,
		geom.Point{X: r.Position.X, Y: r.Position.Y},
		int(r.Type),
		int(r.Value),
		r.Width,
		r.PickedUp,
	)
}

// SessionToRepr converts a live session into its persisted form.
func SessionToRepr(session *model.GameSession) SessionRepr {
	repr := SessionRepr{MapID: session.ID()}

	for _, dog := range session.Dogs() {
		repr.Dogs = append(repr.Dogs, DogToRepr(dog))
	}
	for _, object := range session.LostObjects() {
		repr.LostObjects = append(repr.LostObjects, LostObjectToRepr(object))
	}
	return repr
}

// Encode writes the snapshot to w.
func Encode(w io.Writer, snapshot *Snapshot) error {
	bw := bufio.NewWriter(w)
	enc := encoder{w: bw}

	enc.bytes(snapshotMagic[:])
	enc.u16(snapshotVersion)

	enc.u32(uint32(len(snapshot.Sessions)))
	for _, session := range snapshot.Sessions {
		enc.session(session)
	}

	enc.u32(uint32(len(snapshot.Players)))
	for _, player := range snapshot.Players {
		enc.player(player)
	}

	if enc.err != nil {
		return enc.err
	}
	return bw.Flush()
}

// Decode reads a snapshot from r. Any structural problem yields
// ErrMalformedSnapshot.
func Decode(r io.Reader) (*Snapshot, error) {
	dec := decoder{r: bufio.NewReader(r)}

	var magic [4]byte
	dec.bytes(magic[:])
	if dec.err == nil && magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedSnapshot)
	}
	if version := dec.u16(); dec.err == nil && version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedSnapshot, version)
	}

	snapshot := &Snapshot{}

	sessionCount := dec.count()
	for i := uint32(0); i < sessionCount && dec.err == nil; i++ {
		snapshot.Sessions = append(snapshot.Sessions, dec.session())
	}

	playerCount := dec.count()
	for i := uint32(0); i < playerCount && dec.err == nil; i++ {
		snapshot.Players = append(snapshot.Players, dec.player())
	}

	if dec.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, dec.err)
	}
	return snapshot, nil
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) bytes(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *encoder) u8(v uint8) {
	e.bytes([]byte{v})
}

func (e *encoder) u16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	e.bytes(buf[:])
}

func (e *encoder) u32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	e.bytes(buf[:])
}

func (e *encoder) u64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	e.bytes(buf[:])
}

func (e *encoder) f64(v float64) {
	e.u64(math.Float64bits(v))
}

func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.bytes([]byte(s))
}

func (e *encoder) point(p PointRepr) {
	e.f64(p.X)
	e.f64(p.Y)
}

func (e *encoder) lostObject(o LostObjectRepr) {
	e.u64(o.ID)
	e.point(o.Position)
	e.u32(o.Type)
	e.u64(uint64(o.Value))
	e.f64(o.Width)
	e.boolean(o.PickedUp)
}

func (e *encoder) dog(d DogRepr) {
	e.point(d.Position)
	e.point(d.PrevPosition)
	e.f64(d.Speed.X)
	e.f64(d.Speed.Y)
	e.u8(uint8(d.Direction))
	e.u32(uint32(len(d.Bag.Contents)))
	for _, object := range d.Bag.Contents {
		e.lostObject(object)
	}
	e.u32(d.Bag.Capacity)
	e.f64(d.Width)
	e.u64(d.Score)
}

func (e *encoder) session(s SessionRepr) {
	e.str(s.MapID)
	e.u32(uint32(len(s.Dogs)))
	for _, dog := range s.Dogs {
		e.dog(dog)
	}
	e.u32(uint32(len(s.LostObjects)))
	for _, object := range s.LostObjects {
		e.lostObject(object)
	}
}

func (e *encoder) player(p PlayerRepr) {
	e.u64(p.ID)
	e.str(p.MapID)
	e.str(p.Name)
	e.dog(p.Dog)
	e.str(p.Token)
}

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) bytes(b []byte) {
	if d.err != nil {
		return
	}
	_, d.err = io.ReadFull(d.r, b)
}

func (d *decoder) u8() uint8 {
	var buf [1]byte
	d.bytes(buf[:])
	return buf[0]
}

func (d *decoder) u16() uint16 {
	var buf [2]byte
	d.bytes(buf[:])
	return binary.LittleEndian.Uint16(buf[:])
}

func (d *decoder) u32() uint32 {
	var buf [4]byte
	d.bytes(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (d *decoder) u64() uint64 {
	var buf [8]byte
	d.bytes(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

func (d *decoder) f64() float64 {
	return math.Float64frombits(d.u64())
}

func (d *decoder) boolean() bool {
	return d.u8() != 0
}

func (d *decoder) count() uint32 {
	n := d.u32()
	if d.err == nil && n > maxElements {
		d.err = fmt.Errorf("element count %d exceeds limit", n)
	}
	return n
}

func (d *decoder) str() string {
	n := d.count()
	if d.err != nil {
		return ""
	}
	buf := make([]byte, n)
	d.bytes(buf)
	return string(buf)
}

func (d *decoder) point() PointRepr {
	return PointRepr{X: d.f64(), Y: d.f64()}
}

func (d *decoder) lostObject() LostObjectRepr {
	return LostObjectRepr{
		ID:       d.u64(),
		Position: d.point(),
		Type:     d.u32(),
		Value:    int64(d.u64()),
		Width:    d.f64(),
		PickedUp: d.boolean(),
	}
}

func (d *decoder) dog() DogRepr {
	dog := DogRepr{
		Position:     d.point(),
		PrevPosition: d.point(),
	}
	dog.Speed = SpeedRepr{X: d.f64(), Y: d.f64()}
	dog.Direction = int8(d.u8())

	contentsCount := d.count()
	for i := uint32(0); i < contentsCount && d.err == nil; i++ {
		dog.Bag.Contents = append(dog.Bag.Contents, d.lostObject())
	}
	dog.Bag.Capacity = d.u32()
	dog.Width = d.f64()
	dog.Score = d.u64()
	return dog
}

func (d *decoder) session() SessionRepr {
	session := SessionRepr{MapID: d.str()}

	dogCount := d.count()
	for i := uint32(0); i < dogCount && d.err == nil; i++ {
		session.Dogs = append(session.Dogs, d.dog())
	}

	objectCount := d.count()
	for i := uint32(0); i < objectCount && d.err == nil; i++ {
		session.LostObjects = append(session.LostObjects, d.lostObject())
	}
	return session
}

func (d *decoder) player() PlayerRepr {
	return PlayerRepr{
		ID:    d.u64(),
		MapID: d.str(),
		Name:  d.str(),
		Dog:   d.dog(),
		Token: d.str(),
	}
}
