// internal/handlers/games.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/jason-s-yu/pokerdice/internal/middleware"
)

// requester returns the player set by middleware.RequireUser.
func requester(r *http.Request) uuid.UUID {
	id, _ := middleware.PlayerID(r.Context())
	return id
}

// createGame handles POST /lobbies/{lobbyID}/game.
func (api *API) createGame(w http.ResponseWriter, r *http.Request) {
	lobbyID, ok := pathID(w, r, "lobbyID")
	if !ok {
		return
	}
	gameID, err := api.Games.CreateGame(r.Context(), lobbyID, requester(r))
	if err != nil {
		// The game may have been created and closed straight away.
		var result any
		if gameID != uuid.Nil {
			result = map[string]any{"gameId": gameID}
		}
		api.writeError(w, r, err, result)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"gameId": gameID})
}

// rollFirst handles POST /lobbies/{lobbyID}/roll.
func (api *API) rollFirst(w http.ResponseWriter, r *http.Request) {
	lobbyID, ok := pathID(w, r, "lobbyID")
	if !ok {
		return
	}
	hand, err := api.Games.RollFirst(r.Context(), lobbyID, requester(r))
	if err != nil {
		api.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dice": hand})
}

type rerollRequest struct {
	Indices []int `json:"indices"`
}

// reroll handles POST /lobbies/{lobbyID}/reroll.
func (api *API) reroll(w http.ResponseWriter, r *http.Request) {
	lobbyID, ok := pathID(w, r, "lobbyID")
	if !ok {
		return
	}
	var req rerollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	res, err := api.Games.Reroll(r.Context(), lobbyID, requester(r), req.Indices)
	if err != nil {
		if errors.Is(err, game.ErrRollBudgetExhausted) && res != nil {
			api.writeError(w, r, err, res)
			return
		}
		api.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// endTurn handles POST /games/{gameID}/end-turn.
func (api *API) endTurn(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	out, err := api.Games.EndTurn(r.Context(), gameID, requester(r))
	if err != nil {
		api.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// endGame handles POST /games/{gameID}/end.
func (api *API) endGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	if err := api.Games.EndGame(r.Context(), gameID, requester(r), true); err != nil {
		api.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// currentTurn handles GET /games/{gameID}/turn.
func (api *API) currentTurn(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	pid, err := api.Games.CurrentTurnPlayer(r.Context(), gameID)
	if err != nil {
		api.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playerId": pid})
}

// gameState handles GET /games/{gameID}.
func (api *API) gameState(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	st, err := api.Games.State(r.Context(), gameID)
	if err != nil {
		api.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// roundHistory handles GET /games/{gameID}/rounds.
func (api *API) roundHistory(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	rounds, err := api.Games.RoundHistory(r.Context(), gameID)
	if err != nil {
		api.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": rounds})
}
