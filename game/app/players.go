package app

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/ivolkov/loothound/game/model"
)

// Token is a 128-bit bearer credential rendered as 32 lowercase hex chars.
type Token string

// Player binds a joined user to its session (by map id) and its dog.
type Player struct {
	id        uint64
	name      string
	sessionID string
	dog       *model.Dog
}

// NewPlayer creates a player wired to an existing dog.
func NewPlayer(id uint64, name, sessionID string, dog *model.Dog) *Player {
	return &Player{id: id, name: name, sessionID: sessionID, dog: dog}
}

func (p *Player) ID() uint64 {
	return p.id
}

func (p *Player) Name() string {
	return p.name
}

func (p *Player) SessionID() string {
	return p.sessionID
}

func (p *Player) Dog() *model.Dog {
	return p.dog
}

// PlayerEntry pairs a player with its token for snapshot iteration.
type PlayerEntry struct {
	Token  Token
	Player *Player
}

// PlayerRegistry maps tokens to players and players to sessions. Tokens come
// from two independent 64-bit generators seeded from OS entropy at process
// start; a collision triggers a re-draw.
type PlayerRegistry struct {
	players   map[Token]*Player
	bySession map[string][]*Player
	freeID    uint64
	gen1      *rand.Rand
	gen2      *rand.Rand
}

// NewPlayerRegistry creates an empty registry with freshly seeded token
// generators.
func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{
		players:   make(map[Token]*Player),
		bySession: make(map[string][]*Player),
		gen1:      newSeededRand(),
		gen2:      newSeededRand(),
	}
}

func newSeededRand() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("cannot seed token generator: %v", err))
	}
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}

// FreeID returns the id the next added player will receive.
func (r *PlayerRegistry) FreeID() uint64 {
	return r.freeID
}

// Add creates a player for the dog and returns its fresh token.
func (r *PlayerRegistry) Add(name, sessionID string, dog *model.Dog) (Token, *Player) {
	player := NewPlayer(r.freeID, name, sessionID, dog)
	r.freeID++

	token := r.generateToken()
	r.players[token] = player
	r.bySession[sessionID] = append(r.bySession[sessionID], player)
	return token, player
}

// Restore inserts a player under a known token and advances the id counter
// past the restored id.
func (r *PlayerRegistry) Restore(token Token, player *Player) {
	r.players[token] = player
	r.bySession[player.sessionID] = append(r.bySession[player.sessionID], player)
	if player.id >= r.freeID {
		r.freeID = player.id + 1
	}
}

// Find returns the player for a token, or nil.
func (r *PlayerRegistry) Find(token Token) *Player {
	return r.players[token]
}

// SessionPlayers returns the players attached to a session, in join order.
func (r *PlayerRegistry) SessionPlayers(sessionID string) []*Player {
	return r.bySession[sessionID]
}

// All returns every (token, player) pair ordered by player id.
func (r *PlayerRegistry) All() []PlayerEntry {
	entries := make([]PlayerEntry, 0, len(r.players))
	for token, player := range r.players {
		entries = append(entries, PlayerEntry{Token: token, Player: player})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Player.id < entries[j].Player.id
	})
	return entries
}

// RemoveByDog deletes the player owning the dog and returns it, or nil.
func (r *PlayerRegistry) RemoveByDog(dog *model.Dog) *Player {
	for token, player := range r.players {
		if player.dog != dog {
			continue
		}
		delete(r.players, token)

		peers := r.bySession[player.sessionID]
		for i, peer := range peers {
			if peer == player {
				r.bySession[player.sessionID] = append(peers[:i], peers[i+1:]...)
				break
			}
		}
		return player
	}
	return nil
}

func (r *PlayerRegistry) generateToken() Token {
	for {
		token := Token(fmt.Sprintf("%016x%016x", r.gen1.Uint64(), r.gen2.Uint64()))
		if _, taken := r.players[token]; !taken {
			return token
		}
	}
}
