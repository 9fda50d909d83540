package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/pokerdice/internal/models"
)

// SeedLobby inserts a lobby and its players, joining them in the given order.
// It is used to stand up a demo table; lobby administration lives elsewhere.
func SeedLobby(ctx context.Context, pool *pgxpool.Pool, lobby models.Lobby, players []models.Player) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO lobbies (id, host_id, name, min_players, max_players, round_count, bet, is_running)
			VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		`
		if _, err := tx.Exec(ctx, q,
			lobby.ID, lobby.HostID, lobby.Name, lobby.MinPlayers, lobby.MaxPlayers, lobby.RoundCount, lobby.Bet,
		); err != nil {
			return fmt.Errorf("insert lobby: %w", err)
		}
		for i, p := range players {
			q := `
				INSERT INTO players (id, username, credit, lobby_id, joined_at, win_counter)
				VALUES ($1, $2, $3, $4, NOW() + make_interval(secs => $5), 0)
				ON CONFLICT (id) DO UPDATE SET lobby_id = EXCLUDED.lobby_id, joined_at = EXCLUDED.joined_at
			`
			if _, err := tx.Exec(ctx, q, p.ID, p.Username, p.Credit, lobby.ID, float64(i)/1000); err != nil {
				return fmt.Errorf("insert player %s: %w", p.Username, err)
			}
		}
		return nil
	})
}

// NewDemoLobby builds an unsaved lobby hosted by the first of n fresh players.
func NewDemoLobby(n int, credit, bet int64, rounds int) (models.Lobby, []models.Player) {
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{
			ID:       uuid.New(),
			Username: fmt.Sprintf("player%d-%s", i+1, uuid.NewString()[:8]),
			Credit:   credit,
		}
	}
	lobby := models.Lobby{
		ID:         uuid.New(),
		HostID:     players[0].ID,
		Name:       "demo",
		MinPlayers: 2,
		MaxPlayers: max(n, 2),
		RoundCount: rounds,
		Bet:        bet,
	}
	return lobby, players
}
