package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivolkov/loothound/game/geom"
	"github.com/ivolkov/loothound/game/model"
)

func newTestGame() *model.Game {
	game := model.NewGame(5*time.Second, 0.5, 60*time.Second)

	m := model.NewMap("town", "Town", model.MapConfig{DogSpeed: 1, BagCapacity: 3})
	m.AddRoad(model.NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10))
	m.AddOffice(model.NewOffice("o1", geom.Point{X: 0, Y: 0}, geom.Offset{DX: 5, DY: 0}))
	m.AddLootType(model.LootType{Name: "key", Value: 42})
	game.AddMap(m)

	return game
}

// recorderStore is an in-memory RecordRepository for tests. failures makes
// the first N SaveAll calls fail.
type recorderStore struct {
	mu       sync.Mutex
	saved    []PlayerRecord
	failures int
	savedCh  chan struct{}
}

func newRecorderStore() *recorderStore {
	return &recorderStore{savedCh: make(chan struct{}, 16)}
}

func (s *recorderStore) SaveAll(_ context.Context, records []PlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.saved = append(s.saved, records...)
	s.savedCh <- struct{}{}
	return nil
}

func (s *recorderStore) List(_ context.Context, start, maxItems int) ([]PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if start >= len(s.saved) {
		return []PlayerRecord{}, nil
	}
	end := start + maxItems
	if end > len(s.saved) {
		end = len(s.saved)
	}
	return append([]PlayerRecord(nil), s.saved[start:end]...), nil
}

func newRunningApp(t *testing.T, records RecordRepository, cfg Config) *Application {
	t.Helper()
	application := New(zap.NewNop(), newTestGame(), records, cfg)
	if err := application.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(application.Stop)
	return application
}

func TestApplicationJoin(t *testing.T) {
	application := newRunningApp(t, nil, Config{})

	result, err := application.Join("alice", "town")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !isHexToken(result.Token) {
		t.Errorf("token %q is not 32 hex chars", result.Token)
	}
	if result.PlayerID != 0 {
		t.Errorf("first player id = %d, want 0", result.PlayerID)
	}

	view, err := application.StateFor(result.Token)
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	if len(view.Players) != 1 {
		t.Fatalf("state has %d players, want 1", len(view.Players))
	}
	player := view.Players[0]
	if player.Position != (geom.Point{X: 0, Y: 0}) {
		t.Errorf("spawn position = %+v, want the first road's start", player.Position)
	}
	if !player.Speed.IsZero() || player.Direction != geom.North {
		t.Errorf("fresh player must stand still facing north, got %+v", player)
	}

	players, err := application.PlayersFor(result.Token)
	if err != nil {
		t.Fatalf("PlayersFor: %v", err)
	}
	if len(players) != 1 || players[0].Name != "alice" {
		t.Errorf("players = %+v, want alice", players)
	}
}

func TestApplicationJoinValidation(t *testing.T) {
	application := newRunningApp(t, nil, Config{})

	if _, err := application.Join("", "town"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name: got %v, want ErrInvalidName", err)
	}

	long := make([]byte, MaxPlayerNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := application.Join(string(long), "town"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("long name: got %v, want ErrInvalidName", err)
	}

	if _, err := application.Join("alice", "nowhere"); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("unknown map: got %v, want ErrMapNotFound", err)
	}
}

func TestApplicationMoveAndTick(t *testing.T) {
	application := newRunningApp(t, nil, Config{})

	result, _ := application.Join("alice", "town")

	if err := application.Move(result.Token, geom.East); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := application.Tick(time.Second); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	view, _ := application.StateFor(result.Token)
	if !view.Players[0].Position.Equal(geom.Point{X: 1, Y: 0}) {
		t.Errorf("position = %+v, want (1,0)", view.Players[0].Position)
	}
	if view.Players[0].Speed != (geom.Speed{X: 1}) {
		t.Errorf("speed = %+v, want (1,0)", view.Players[0].Speed)
	}

	// A long tick runs into the road's edge: position clamps, speed drops.
	if err := application.Tick(100 * time.Second); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	view, _ = application.StateFor(result.Token)
	if !view.Players[0].Position.Equal(geom.Point{X: 10.4, Y: 0}) {
		t.Errorf("position = %+v, want (10.4,0)", view.Players[0].Position)
	}
	if !view.Players[0].Speed.IsZero() {
		t.Errorf("clamped speed = %+v, want zero", view.Players[0].Speed)
	}
}

func TestApplicationUnknownToken(t *testing.T) {
	application := newRunningApp(t, nil, Config{})
	token := Token("00000000000000000000000000000000")

	if err := application.Move(token, geom.East); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("Move: got %v, want ErrUnknownToken", err)
	}
	if _, err := application.StateFor(token); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("StateFor: got %v, want ErrUnknownToken", err)
	}
	if _, err := application.PlayersFor(token); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("PlayersFor: got %v, want ErrUnknownToken", err)
	}
}

func TestApplicationEviction(t *testing.T) {
	store := newRecorderStore()
	application := newRunningApp(t, store, Config{})

	result, _ := application.Join("alice", "town")

	if err := application.Tick(60 * time.Second); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	select {
	case <-store.savedCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the eviction record")
	}

	if application.HasPlayer(result.Token) {
		t.Error("evicted player must be gone from the registry")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(store.saved))
	}
	record := store.saved[0]
	if record.Name != "alice" || record.Score != 0 || record.PlayTime != 60*time.Second {
		t.Errorf("record = %+v, want {alice 0 60s}", record)
	}
}

func TestApplicationEvictionRetriesOnce(t *testing.T) {
	store := newRecorderStore()
	store.failures = 1
	application := newRunningApp(t, store, Config{})

	application.Join("alice", "town")
	application.Tick(60 * time.Second)

	select {
	case <-store.savedCh:
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not persist the record")
	}
}

func TestApplicationRecords(t *testing.T) {
	store := newRecorderStore()
	store.saved = []PlayerRecord{
		{Name: "alice", Score: 10, PlayTime: time.Minute},
		{Name: "bob", Score: 5, PlayTime: time.Minute},
	}
	application := newRunningApp(t, store, Config{})

	records, err := application.Records(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}

	if _, err := application.Records(context.Background(), 0, 101); !errors.Is(err, ErrRecordsLimit) {
		t.Errorf("oversized page: got %v, want ErrRecordsLimit", err)
	}

	records, err = application.Records(context.Background(), 5, 100)
	if err != nil || len(records) != 0 {
		t.Errorf("page past the end: got %v, %v", records, err)
	}
}

func TestApplicationRecordsWithoutStore(t *testing.T) {
	application := newRunningApp(t, nil, Config{})

	records, err := application.Records(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want none", len(records))
	}
}

func TestApplicationSnapshotRoundTrip(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state", "game.save")

	first := New(zap.NewNop(), newTestGame(), nil, Config{StateFile: stateFile})
	if err := first.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, _ := first.Join("alice", "town")
	first.Move(result.Token, geom.East)
	first.Tick(2 * time.Second)

	before, _ := first.StateFor(result.Token)
	first.Stop() // writes the final snapshot

	second := New(zap.NewNop(), newTestGame(), nil, Config{StateFile: stateFile})
	if err := second.Start(); err != nil {
		t.Fatalf("restore Start: %v", err)
	}
	defer second.Stop()

	after, err := second.StateFor(result.Token)
	if err != nil {
		t.Fatalf("the restored registry must accept the old token: %v", err)
	}
	if len(after.Players) != len(before.Players) {
		t.Fatalf("restored %d players, want %d", len(after.Players), len(before.Players))
	}
	if !after.Players[0].Position.Equal(before.Players[0].Position) {
		t.Errorf("position %+v, want %+v", after.Players[0].Position, before.Players[0].Position)
	}
	if after.Players[0].Direction != before.Players[0].Direction {
		t.Errorf("direction %v, want %v", after.Players[0].Direction, before.Players[0].Direction)
	}

	next, err := second.Join("bob", "town")
	if err != nil {
		t.Fatalf("Join after restore: %v", err)
	}
	if next.PlayerID != result.PlayerID+1 {
		t.Errorf("next id = %d, want %d", next.PlayerID, result.PlayerID+1)
	}
}

func TestApplicationMalformedSnapshotIsFatal(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "game.save")
	if err := os.WriteFile(stateFile, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}

	application := New(zap.NewNop(), newTestGame(), nil, Config{StateFile: stateFile})
	if err := application.Start(); err == nil {
		application.Stop()
		t.Fatal("Start must fail on a malformed snapshot")
	}
}

func TestApplicationMissingSnapshotIsSkipped(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "absent.save")

	application := New(zap.NewNop(), newTestGame(), nil, Config{StateFile: stateFile})
	if err := application.Start(); err != nil {
		t.Fatalf("a missing snapshot must not be fatal: %v", err)
	}
	application.Stop()
}

func TestApplicationStopRejectsCommands(t *testing.T) {
	application := New(zap.NewNop(), newTestGame(), nil, Config{})
	if err := application.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	application.Stop()

	if _, err := application.Join("alice", "town"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Join after Stop: got %v, want ErrNotRunning", err)
	}
	if err := application.Tick(time.Second); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Tick after Stop: got %v, want ErrNotRunning", err)
	}
}
