// internal/models/game.go
package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/dice"
)

// GameStatus is the lifecycle state of a game.
type GameStatus string

const (
	GameRunning GameStatus = "RUNNING"
	GameClosed  GameStatus = "CLOSED"
)

// Game owns its rounds. At most one RUNNING game exists per lobby.
type Game struct {
	ID          uuid.UUID  `json:"id"`
	LobbyID     uuid.UUID  `json:"lobbyId"`
	Status      GameStatus `json:"status"`
	PlayerCount int        `json:"playerCount"`
	// RoundCounter is the number of rounds completed so far.
	RoundCounter int `json:"roundCounter"`
	// Roster is the ordered player list; players evicted for lack of credit are removed.
	Roster    []uuid.UUID `json:"roster"`
	Winners   []uuid.UUID `json:"winners,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	ClosedAt  *time.Time  `json:"closedAt,omitempty"`
}

// Clone returns a deep copy.
func (g *Game) Clone() *Game {
	c := *g
	c.Roster = slices.Clone(g.Roster)
	c.Winners = slices.Clone(g.Winners)
	if g.ClosedAt != nil {
		t := *g.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// Round is one pass of every roster player taking exactly one turn.
type Round struct {
	ID     uuid.UUID `json:"id"`
	GameID uuid.UUID `json:"gameId"`
	Number int       `json:"roundNumber"`
	Bet    int64     `json:"bet"`
	// Roster is the set of players whose bet was debited for this round, in turn order.
	Roster  []uuid.UUID `json:"roster"`
	IsOver  bool        `json:"isOver"`
	Winners []uuid.UUID `json:"winners,omitempty"`
	// CurrentTurnID points at the single open turn; uuid.Nil once every turn is done.
	CurrentTurnID uuid.UUID `json:"currentTurnId"`
}

// Pot is the total stake collected for the round.
func (r *Round) Pot() int64 {
	return int64(len(r.Roster)) * r.Bet
}

func (r *Round) Clone() *Round {
	c := *r
	c.Roster = slices.Clone(r.Roster)
	c.Winners = slices.Clone(r.Winners)
	return &c
}

// Turn is one player's roll sequence within a round. Immutable once IsDone.
type Turn struct {
	ID        uuid.UUID   `json:"id"`
	RoundID   uuid.UUID   `json:"roundId"`
	PlayerID  uuid.UUID   `json:"playerId"`
	RollCount int         `json:"rollCount"`
	Dice      *dice.Hand  `json:"dice,omitempty"`
	Score     *dice.Score `json:"score,omitempty"`
	IsDone    bool        `json:"isDone"`
}

func (t *Turn) Clone() *Turn {
	c := *t
	if t.Dice != nil {
		h := *t.Dice
		c.Dice = &h
	}
	if t.Score != nil {
		s := *t.Score
		c.Score = &s
	}
	return &c
}
