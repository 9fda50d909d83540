// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/models"
)

// ErrNotFound is returned by any lookup that matches no record.
var ErrNotFound = errors.New("record not found")

// Store runs engine operations as all-or-nothing units.
type Store interface {
	// Atomic runs fn inside one transaction. If fn returns an error every write made
	// through tx is discarded.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the read/write surface available inside a transaction.
type Tx interface {
	Players
	Lobbies
	Games
}

// Players is the account collaborator: credit balance and lobby membership.
type Players interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	GetCredit(ctx context.Context, id uuid.UUID) (int64, error)
	// DebitCredit removes amount from the balance. It reports false, with no effect,
	// when the balance is insufficient.
	DebitCredit(ctx context.Context, id uuid.UUID, amount int64) (bool, error)
	CreditCredit(ctx context.Context, id uuid.UUID, amount int64) error
	// RosterForLobby lists the lobby's members in join order.
	RosterForLobby(ctx context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error)
	RemoveFromLobby(ctx context.Context, id uuid.UUID) error
	IncrementWins(ctx context.Context, id uuid.UUID) error
}

// Lobbies is the lobby collaborator.
type Lobbies interface {
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	SetLobbyRunning(ctx context.Context, id uuid.UUID, running bool) error
	// DeleteLobby removes the lobby and clears the membership of everyone in it.
	DeleteLobby(ctx context.Context, id uuid.UUID) error
}

// Games persists game, round and turn records.
type Games interface {
	InsertGame(ctx context.Context, g *models.Game) error
	UpdateGame(ctx context.Context, g *models.Game) error
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	RunningGameForLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Game, error)

	InsertRound(ctx context.Context, r *models.Round) error
	UpdateRound(ctx context.Context, r *models.Round) error
	// OpenRound returns the game's round that is not over, locking it for the
	// rest of the transaction where the backend supports row locks.
	OpenRound(ctx context.Context, gameID uuid.UUID) (*models.Round, error)
	ListRounds(ctx context.Context, gameID uuid.UUID) ([]*models.Round, error)

	InsertTurn(ctx context.Context, t *models.Turn) error
	UpdateTurn(ctx context.Context, t *models.Turn) error
	GetTurn(ctx context.Context, id uuid.UUID) (*models.Turn, error)
	ListTurns(ctx context.Context, roundID uuid.UUID) ([]*models.Turn, error)
}
