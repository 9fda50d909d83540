// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jason-s-yu/pokerdice/internal/dice"
)

// Domain failures. Callers discriminate with errors.Is.
var (
	ErrLobbyNotFound       = errors.New("lobby not found")
	ErrGameAlreadyRunning  = errors.New("a game is already running in this lobby")
	ErrNotEnoughPlayers    = errors.New("not enough players")
	ErrNotTheHost          = errors.New("only the host can start the game")
	ErrGameNotFound        = errors.New("game not found")
	ErrNoActiveRound       = errors.New("no active round")
	ErrNoActiveTurn        = errors.New("no active turn")
	ErrNotYourTurn         = errors.New("it is not your turn")
	ErrNotFirstRoll        = errors.New("dice were already rolled this turn")
	ErrTurnAlreadyFinished = errors.New("turn already finished")
	ErrGameAlreadyClosed   = errors.New("game already closed")
	ErrYouAreNotHost       = errors.New("only the host can end the game")
	ErrMustRollFirst       = errors.New("dice must be rolled first")
	ErrLobbyClosed         = errors.New("lobby closed: host could not cover the bet")

	// ErrRollBudgetExhausted is returned when a reroll arrives after the last allowed
	// touch. The turn has been scored and finished by the time the caller sees it.
	ErrRollBudgetExhausted = fmt.Errorf("%w: roll budget exhausted", ErrTurnAlreadyFinished)
)

type classification struct {
	err    error
	code   string
	status int
}

// Order matters: wrapped errors must come before the sentinels they wrap.
var classifications = []classification{
	{ErrRollBudgetExhausted, "roll_budget_exhausted", http.StatusConflict},
	{ErrLobbyNotFound, "lobby_not_found", http.StatusNotFound},
	{ErrGameNotFound, "game_not_found", http.StatusNotFound},
	{ErrGameAlreadyRunning, "game_already_running", http.StatusConflict},
	{ErrNotEnoughPlayers, "not_enough_players", http.StatusConflict},
	{ErrNotTheHost, "not_the_host", http.StatusForbidden},
	{ErrYouAreNotHost, "you_are_not_host", http.StatusForbidden},
	{ErrNoActiveRound, "no_active_round", http.StatusConflict},
	{ErrNoActiveTurn, "no_active_turn", http.StatusConflict},
	{ErrNotYourTurn, "not_your_turn", http.StatusForbidden},
	{ErrNotFirstRoll, "not_first_roll", http.StatusConflict},
	{ErrTurnAlreadyFinished, "turn_already_finished", http.StatusConflict},
	{ErrGameAlreadyClosed, "game_already_closed", http.StatusConflict},
	{ErrMustRollFirst, "must_roll_first", http.StatusConflict},
	{ErrLobbyClosed, "lobby_closed", http.StatusGone},
	{dice.ErrInvalidIndex, "invalid_index", http.StatusBadRequest},
}

// Classify maps an error to a stable code and HTTP status. Anything that is not a
// domain failure is reported as an internal error.
func Classify(err error) (code string, status int) {
	if err == nil {
		return "", http.StatusOK
	}
	for _, c := range classifications {
		if errors.Is(err, c.err) {
			return c.code, c.status
		}
	}
	return "internal_error", http.StatusInternalServerError
}
