package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/pokerdice/internal/cache"
)

// ActionWriter persists historian batches.
type ActionWriter struct {
	pool *pgxpool.Pool
}

func NewActionWriter(pool *pgxpool.Pool) *ActionWriter {
	return &ActionWriter{pool: pool}
}

// WriteActions inserts the whole batch in one transaction.
func (w *ActionWriter) WriteActions(ctx context.Context, batch []cache.GameActionRecord) error {
	q := `
		INSERT INTO game_actions (
			game_id, action_index, actor_user_id, action_type, action_payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	return pgx.BeginTxFunc(ctx, w.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batch {
			payload, err := json.Marshal(rec.ActionPayload)
			if err != nil {
				return fmt.Errorf("marshal payload for action %d: %w", rec.ActionIndex, err)
			}
			_, err = tx.Exec(ctx, q,
				rec.GameID, int64(rec.ActionIndex), nullable(rec.ActorUserID), rec.ActionType, payload,
				time.UnixMilli(rec.Timestamp),
			)
			if err != nil {
				return fmt.Errorf("insert action %d for game %s: %w", rec.ActionIndex, rec.GameID, err)
			}
		}
		return nil
	})
}
