package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/pokerdice/internal/auth"
	"github.com/jason-s-yu/pokerdice/internal/database"
	"github.com/sirupsen/logrus"
)

// seedDemo stands up a lobby of n players and logs a session token for each.
func seedDemo(ctx context.Context, logger *logrus.Logger, pool *pgxpool.Pool, sessions *auth.Sessions, n int) error {
	lobby, players := database.NewDemoLobby(n, 100, 10, 3)
	if err := database.SeedLobby(ctx, pool, lobby, players); err != nil {
		return err
	}
	logger.WithField("lobby", lobby.ID).Info("demo lobby seeded")
	for _, p := range players {
		tok, err := sessions.CreateJWT(p.ID)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"player": p.ID,
			"name":   p.Username,
			"host":   p.ID == lobby.HostID,
			"token":  tok,
		}).Info("demo player")
	}
	return nil
}
