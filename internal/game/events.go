// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/events"
)

// GameEventType is an enum-like type for the events pushed to players.
type GameEventType string

const (
	EventGameStarted   GameEventType = "game_started"
	EventRoundStarted  GameEventType = "round_started"
	EventTurnAdvanced  GameEventType = "turn_advanced"
	EventDiceRolled    GameEventType = "dice_rolled"
	EventRoundEnded    GameEventType = "round_ended"
	EventPlayerEvicted GameEventType = "player_evicted"
	EventGameEnded     GameEventType = "game_ended"
	EventLobbyReopened GameEventType = "lobby_reopened"
	EventLobbyClosed   GameEventType = "lobby_closed"

	// EventGameState carries a GameState snapshot to a listener that just registered.
	EventGameState GameEventType = "game_state"
)

// Notifier delivers events to connected players. *events.Registry satisfies it.
type Notifier interface {
	EmitToPlayers(ids []uuid.UUID, ev events.Event)
}

type GameStartedPayload struct {
	GameID     uuid.UUID   `json:"gameId"`
	LobbyID    uuid.UUID   `json:"lobbyId"`
	Roster     []uuid.UUID `json:"roster"`
	RoundCount int         `json:"roundCount"`
}

type RoundStartedPayload struct {
	GameID      uuid.UUID   `json:"gameId"`
	RoundID     uuid.UUID   `json:"roundId"`
	RoundNumber int         `json:"roundNumber"`
	Bet         int64       `json:"bet"`
	Pot         int64       `json:"pot"`
	Roster      []uuid.UUID `json:"roster"`
}

type TurnAdvancedPayload struct {
	GameID      uuid.UUID `json:"gameId"`
	RoundNumber int       `json:"roundNumber"`
	PlayerID    uuid.UUID `json:"playerId"`
}

type DiceRolledPayload struct {
	GameID    uuid.UUID `json:"gameId"`
	PlayerID  uuid.UUID `json:"playerId"`
	Dice      dice.Hand `json:"dice"`
	RollCount int       `json:"rollCount"`
	Done      bool      `json:"done"`
}

// TurnResult is one finished turn as reported at round end.
type TurnResult struct {
	PlayerID uuid.UUID  `json:"playerId"`
	Dice     dice.Hand  `json:"dice"`
	Score    dice.Score `json:"score"`
}

type RoundEndedPayload struct {
	GameID      uuid.UUID    `json:"gameId"`
	RoundNumber int          `json:"roundNumber"`
	Winners     []uuid.UUID  `json:"winners"`
	Payout      int64        `json:"payout"`
	Results     []TurnResult `json:"results"`
}

type PlayerEvictedPayload struct {
	GameID   uuid.UUID `json:"gameId"`
	LobbyID  uuid.UUID `json:"lobbyId"`
	PlayerID uuid.UUID `json:"playerId"`
	Credit   int64     `json:"credit"`
	Bet      int64     `json:"bet"`
}

type GameEndedPayload struct {
	GameID    uuid.UUID         `json:"gameId"`
	Winners   []uuid.UUID       `json:"winners"`
	RoundWins map[uuid.UUID]int `json:"roundWins"`
	Rounds    int               `json:"rounds"`
	Aborted   bool              `json:"aborted"`
}

type LobbyPayload struct {
	LobbyID uuid.UUID `json:"lobbyId"`
}
