// internal/models/lobby.go
package models

import "github.com/google/uuid"

// Lobby is owned by the lobby subsystem. The game engine reads it when a game starts
// and flips IsRunning when the game ends.
type Lobby struct {
	ID         uuid.UUID `json:"id"`
	HostID     uuid.UUID `json:"hostId"`
	Name       string    `json:"name"`
	MinPlayers int       `json:"minPlayers"`
	MaxPlayers int       `json:"maxPlayers"`
	RoundCount int       `json:"roundCount"`
	// Bet is the number of credits each player stakes per round.
	Bet       int64 `json:"bet"`
	IsRunning bool  `json:"isRunning"`
}
