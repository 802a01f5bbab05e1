// Package app hosts the authoritative game state behind a single cooperative
// executor. HTTP workers submit commands; the strand serializes every
// mutation, so sessions, players and dogs are never touched concurrently.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ivolkov/loothound/game/geom"
	"github.com/ivolkov/loothound/game/loot"
	"github.com/ivolkov/loothound/game/model"
	"github.com/ivolkov/loothound/game/state"
)

// MaxPlayerNameLength bounds a joining player's name; it mirrors the
// leaderboard column width.
const MaxPlayerNameLength = 100

var (
	// ErrMapNotFound is returned when a request names an unknown map.
	ErrMapNotFound = errors.New("map not found")

	// ErrInvalidName is returned when a join name is empty or too long.
	ErrInvalidName = errors.New("invalid player name")

	// ErrUnknownToken is returned when a token is not in the registry.
	ErrUnknownToken = errors.New("unknown token")

	// ErrRecordsLimit is returned when a leaderboard page is too large.
	ErrRecordsLimit = fmt.Errorf("at most %d records per page", MaxRecordsPageSize)

	// ErrNotRunning is returned when a command reaches a stopped application.
	ErrNotRunning = errors.New("application is not running")
)

// Application lifecycle states.
const (
	stateStarting int32 = iota
	stateRunning
	stateStopped
)

// Config holds the runtime parameters of the application facade.
type Config struct {
	// TickPeriod schedules the internal game tick; zero disables it and
	// hands tick control to the external tick command.
	TickPeriod time.Duration

	// RandomizeSpawnPoints places joining dogs on random road points
	// instead of the first road's start.
	RandomizeSpawnPoints bool

	// StateFile is the snapshot path; empty disables persistence.
	StateFile string

	// SavePeriod schedules periodic snapshots; zero saves only on clean
	// shutdown.
	SavePeriod time.Duration
}

// JoinResult is the outcome of a successful join.
type JoinResult struct {
	Token    Token
	PlayerID uint64
}

// PlayerView is the public projection of one player for API responses.
type PlayerView struct {
	ID        uint64
	Name      string
	Position  geom.Point
	Speed     geom.Speed
	Direction geom.Direction
}

// LootView is the public projection of one lost object.
type LootView struct {
	ID       uint64
	Type     int
	Position geom.Point
}

// StateView is a consistent point-in-time projection of one session.
type StateView struct {
	Players     []PlayerView
	LostObjects []LootView
}

// StateBroadcaster receives a session's state after every applied tick.
// Implementations must not block: they run on the strand.
type StateBroadcaster interface {
	BroadcastState(mapID string, view StateView)
}

// Application owns all sessions and players and orchestrates ticking, loot,
// eviction, snapshots and the leaderboard.
type Application struct {
	logger  *zap.SugaredLogger
	game    *model.Game
	config  Config
	records RecordRepository

	strand      *Strand
	ticker      *Ticker
	lootTickers []*Ticker

	sessions     []*model.GameSession
	sessionIndex map[string]int
	players      *PlayerRegistry

	broadcaster StateBroadcaster

	timeWithoutSave time.Duration
	lifecycle       atomic.Int32

	playerCount  atomic.Int64
	sessionCount atomic.Int64
	tickCount    atomic.Int64
}

// New creates an application. records may be nil when the leaderboard store
// is disabled.
func New(logger *zap.Logger, game *model.Game, records RecordRepository, config Config) *Application {
	return &Application{
		logger:       logger.Sugar(),
		game:         game,
		config:       config,
		records:      records,
		strand:       NewStrand(),
		sessionIndex: make(map[string]int),
		players:      NewPlayerRegistry(),
	}
}

// SetBroadcaster wires a state broadcaster. Call before Start.
func (a *Application) SetBroadcaster(b StateBroadcaster) {
	a.broadcaster = b
}

// Start restores the snapshot if one exists, launches the strand and, when
// configured, the internal ticker. A malformed snapshot is a fatal error.
func (a *Application) Start() error {
	if err := a.restoreState(); err != nil {
		return err
	}

	go a.strand.Run()

	if a.config.TickPeriod > 0 {
		a.ticker = NewTicker(a.strand, a.config.TickPeriod, a.update)
		a.ticker.Start()
		for i := range a.sessions {
			a.startLootTicker(a.sessions[i])
		}
	}

	a.lifecycle.Store(stateRunning)
	a.logger.Infow("application started",
		"maps", len(a.game.Maps()),
		"sessions", len(a.sessions),
		"players", a.playerCount.Load(),
		"tickPeriod", a.config.TickPeriod,
	)
	return nil
}

// Stop rejects further commands, drains the strand, writes the final
// snapshot and returns.
func (a *Application) Stop() {
	if !a.lifecycle.CompareAndSwap(stateRunning, stateStopped) {
		return
	}

	if a.ticker != nil {
		a.ticker.Stop()
	}
	for _, t := range a.lootTickers {
		t.Stop()
	}

	a.strand.Do(func() {
		if err := a.saveState(); err != nil {
			a.logger.Errorw("final state save failed", "error", err)
		}
	})
	a.strand.Close()
	a.logger.Infow("application stopped")
}

// HasInternalTicker reports whether the scheduled tick is active; the
// external tick command is allowed only when it is not.
func (a *Application) HasInternalTicker() bool {
	return a.config.TickPeriod > 0
}

// ListMaps returns the maps in configuration order. The game is immutable,
// so no strand hop is needed.
func (a *Application) ListMaps() []*model.Map {
	return a.game.Maps()
}

// FindMap returns a map by id, or nil.
func (a *Application) FindMap(id string) *model.Map {
	return a.game.FindMap(id)
}

// PlayersCount returns the number of joined players.
func (a *Application) PlayersCount() int64 {
	return a.playerCount.Load()
}

// SessionsCount returns the number of live sessions.
func (a *Application) SessionsCount() int64 {
	return a.sessionCount.Load()
}

// TicksApplied returns the number of applied game ticks.
func (a *Application) TicksApplied() int64 {
	return a.tickCount.Load()
}

// Join creates a player on the map, spawns its dog and returns the token.
func (a *Application) Join(name, mapID string) (JoinResult, error) {
	if name == "" || len(name) > MaxPlayerNameLength {
		return JoinResult{}, ErrInvalidName
	}
	if a.game.FindMap(mapID) == nil {
		return JoinResult{}, fmt.Errorf("map %q: %w", mapID, ErrMapNotFound)
	}

	var result JoinResult
	err := a.do(func() {
		session := a.ensureSession(mapID)
		dog := session.SpawnDog(a.config.RandomizeSpawnPoints)

		token, player := a.players.Add(name, mapID, dog)
		a.playerCount.Add(1)

		result = JoinResult{Token: token, PlayerID: player.ID()}
	})
	if err != nil {
		return JoinResult{}, err
	}

	a.logger.Infow("player joined", "player", result.PlayerID, "map", mapID)
	return result, nil
}

// HasPlayer reports whether a token belongs to a live player.
func (a *Application) HasPlayer(token Token) bool {
	found := false
	a.do(func() {
		found = a.players.Find(token) != nil
	})
	return found
}

// Move points the player's dog in a direction at the map's dog speed.
// geom.None stops the dog without marking it active.
func (a *Application) Move(token Token, direction geom.Direction) error {
	var opErr error
	err := a.do(func() {
		player := a.players.Find(token)
		if player == nil {
			opErr = ErrUnknownToken
			return
		}

		gameMap := a.game.FindMap(player.SessionID())
		dog := player.Dog()
		dog.SetSpeed(geom.SpeedTowards(gameMap.DogSpeed(), direction))
		dog.SetDirection(direction)
	})
	if err != nil {
		return err
	}
	return opErr
}

// Tick applies an externally commanded time delta.
func (a *Application) Tick(delta time.Duration) error {
	return a.do(func() {
		a.update(delta)
	})
}

// PlayersFor returns the players sharing the token owner's session.
func (a *Application) PlayersFor(token Token) ([]PlayerView, error) {
	var views []PlayerView
	var opErr error
	err := a.do(func() {
		player := a.players.Find(token)
		if player == nil {
			opErr = ErrUnknownToken
			return
		}
		for _, peer := range a.players.SessionPlayers(player.SessionID()) {
			views = append(views, playerView(peer))
		}
	})
	if err != nil {
		return nil, err
	}
	return views, opErr
}

// StateFor returns the full session state visible to the token owner.
func (a *Application) StateFor(token Token) (StateView, error) {
	var view StateView
	var opErr error
	err := a.do(func() {
		player := a.players.Find(token)
		if player == nil {
			opErr = ErrUnknownToken
			return
		}
		view = a.sessionView(player.SessionID())
	})
	if err != nil {
		return StateView{}, err
	}
	return view, opErr
}

// Records reads a leaderboard page. It talks to the store directly; record
// reads never touch game state.
func (a *Application) Records(ctx context.Context, start, maxItems int) ([]PlayerRecord, error) {
	if maxItems > MaxRecordsPageSize {
		return nil, ErrRecordsLimit
	}
	if a.records == nil {
		return []PlayerRecord{}, nil
	}
	return a.records.List(ctx, start, maxItems)
}

// do runs fn on the strand when the application accepts commands.
func (a *Application) do(fn func()) error {
	if a.lifecycle.Load() != stateRunning {
		return ErrNotRunning
	}
	if err := a.strand.Do(fn); err != nil {
		return ErrNotRunning
	}
	return nil
}

// ensureSession returns the session for the map, creating it on first join.
func (a *Application) ensureSession(mapID string) *model.GameSession {
	if i, ok := a.sessionIndex[mapID]; ok {
		return a.sessions[i]
	}

	gameMap := a.game.FindMap(mapID)
	generator := loot.NewGenerator(loot.Config{
		BaseInterval: a.game.LootInterval(),
		Probability:  a.game.LootProbability(),
	}, rand.Float64)

	session := model.NewGameSession(gameMap, generator)
	a.sessionIndex[mapID] = len(a.sessions)
	a.sessions = append(a.sessions, session)
	a.sessionCount.Add(1)

	if a.lifecycle.Load() == stateRunning && a.config.TickPeriod > 0 {
		a.startLootTicker(session)
	}
	return session
}

// startLootTicker schedules the session's independent loot tick.
func (a *Application) startLootTicker(session *model.GameSession) {
	ticker := NewTicker(a.strand, session.LootInterval(), func(delta time.Duration) {
		session.GenerateLoot(delta)
	})
	ticker.Start()
	a.lootTickers = append(a.lootTickers, ticker)
}

// update is the tick handler. It runs on the strand: sessions advance, the
// evicted are recorded, the snapshot interval is serviced and the new state
// is broadcast.
func (a *Application) update(delta time.Duration) {
	for _, session := range a.sessions {
		session.Tick(delta)
	}
	a.tickCount.Add(1)

	a.evictInactive()

	if a.config.SavePeriod > 0 {
		a.timeWithoutSave += delta
		if a.timeWithoutSave >= a.config.SavePeriod {
			a.timeWithoutSave = 0
			if err := a.saveState(); err != nil {
				a.logger.Warnw("state save failed, will retry next interval", "error", err)
			}
		}
	}

	if a.broadcaster != nil {
		for _, session := range a.sessions {
			a.broadcaster.BroadcastState(session.ID(), a.sessionView(session.ID()))
		}
	}
}

// evictInactive removes players idle past the threshold and hands their
// records to the leaderboard store off-strand.
func (a *Application) evictInactive() {
	var batch []PlayerRecord

	for _, session := range a.sessions {
		for _, dog := range session.ReleaseInactiveDogs(a.game.MaxInactiveTime()) {
			player := a.players.RemoveByDog(dog)
			if player == nil {
				continue
			}
			a.playerCount.Add(-1)
			a.logger.Infow("player evicted",
				"player", player.ID(),
				"score", dog.Score(),
				"playTime", dog.LiveTime(),
			)
			batch = append(batch, PlayerRecord{
				Name:     player.Name(),
				Score:    dog.Score(),
				PlayTime: dog.LiveTime(),
			})
		}
	}

	if len(batch) == 0 || a.records == nil {
		return
	}
	go a.saveRecords(batch)
}

// saveRecords writes an eviction batch with a single retry; a second failure
// drops the batch with a warning and the game continues.
func (a *Application) saveRecords(batch []PlayerRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.records.SaveAll(ctx, batch); err != nil {
		a.logger.Warnw("leaderboard write failed, retrying", "error", err, "records", len(batch))
		if err := a.records.SaveAll(ctx, batch); err != nil {
			a.logger.Warnw("leaderboard write failed, dropping batch", "error", err, "records", len(batch))
		}
	}
}

// saveState writes the snapshot. Must run on the strand so it observes a
// consistent point between ticks.
func (a *Application) saveState() error {
	if a.config.StateFile == "" {
		return nil
	}

	snapshot := &state.Snapshot{}
	for _, session := range a.sessions {
		snapshot.Sessions = append(snapshot.Sessions, state.SessionToRepr(session))
	}
	for _, entry := range a.players.All() {
		player := entry.Player
		snapshot.Players = append(snapshot.Players, state.PlayerRepr{
			ID:    player.ID(),
			MapID: player.SessionID(),
			Name:  player.Name(),
			Dog:   state.DogToRepr(player.Dog()),
			Token: string(entry.Token),
		})
	}

	return state.WriteFile(a.config.StateFile, snapshot)
}

// restoreState loads the snapshot at startup. A missing file is skipped
// silently; anything else is fatal.
func (a *Application) restoreState() error {
	if a.config.StateFile == "" {
		return nil
	}

	snapshot, err := state.ReadFile(a.config.StateFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("restore state: %w", err)
	}

	for _, sessionRepr := range snapshot.Sessions {
		if a.game.FindMap(sessionRepr.MapID) == nil {
			return fmt.Errorf("restore state: %w: %q", ErrMapNotFound, sessionRepr.MapID)
		}
		session := a.ensureSession(sessionRepr.MapID)
		for _, objectRepr := range sessionRepr.LostObjects {
			session.AddLostObject(objectRepr.RestoreLostObject())
		}
	}

	for _, playerRepr := range snapshot.Players {
		i, ok := a.sessionIndex[playerRepr.MapID]
		if !ok {
			return fmt.Errorf("restore state: player %d references unknown session %q",
				playerRepr.ID, playerRepr.MapID)
		}
		session := a.sessions[i]

		dog := playerRepr.Dog.RestoreDog()
		session.AttachDog(dog)

		player := NewPlayer(playerRepr.ID, playerRepr.Name, playerRepr.MapID, dog)
		a.players.Restore(Token(playerRepr.Token), player)
		a.playerCount.Add(1)
	}

	a.logger.Infow("state restored",
		"file", a.config.StateFile,
		"sessions", len(snapshot.Sessions),
		"players", len(snapshot.Players),
	)
	return nil
}

// sessionView builds the public projection of one session.
func (a *Application) sessionView(sessionID string) StateView {
	view := StateView{}

	for _, peer := range a.players.SessionPlayers(sessionID) {
		view.Players = append(view.Players, playerView(peer))
	}

	if i, ok := a.sessionIndex[sessionID]; ok {
		for _, object := range a.sessions[i].LostObjects() {
			view.LostObjects = append(view.LostObjects, LootView{
				ID:       object.ID(),
				Type:     object.Type(),
				Position: object.Position(),
			})
		}
	}
	return view
}

func playerView(player *Player) PlayerView {
	dog := player.Dog()
	return PlayerView{
		ID:        player.ID(),
		Name:      player.Name(),
		Position:  dog.Position(),
		Speed:     dog.Speed(),
		Direction: dog.Direction(),
	}
}
