package models

import "github.com/google/uuid"

// Player is the account view the engine needs: credit and lobby membership.
type Player struct {
	ID         uuid.UUID     `json:"id"`
	Username   string        `json:"username"`
	Credit     int64         `json:"credit"`
	LobbyID    uuid.NullUUID `json:"lobbyId"`
	WinCounter int           `json:"winCounter"`
}
