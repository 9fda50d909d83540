package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/models"
	"github.com/jason-s-yu/pokerdice/internal/store"
)

// Store is the Postgres-backed store.Store. Each Atomic call is one transaction.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Atomic implements store.Store.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

// notFound maps pgx.ErrNoRows onto store.ErrNotFound.
func notFound(err error, what string, id uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", what, id, err)
}

func requireRow(tag interface{ RowsAffected() int64 }, what string, id uuid.UUID) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return nil
}

// --- players ---

func (t *pgTx) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	q := `SELECT id, username, credit, lobby_id, win_counter FROM players WHERE id = $1`
	err := t.tx.QueryRow(ctx, q, id).Scan(&p.ID, &p.Username, &p.Credit, &p.LobbyID, &p.WinCounter)
	if err != nil {
		return nil, notFound(err, "player", id)
	}
	return &p, nil
}

func (t *pgTx) GetCredit(ctx context.Context, id uuid.UUID) (int64, error) {
	var credit int64
	err := t.tx.QueryRow(ctx, `SELECT credit FROM players WHERE id = $1`, id).Scan(&credit)
	if err != nil {
		return 0, notFound(err, "player", id)
	}
	return credit, nil
}

func (t *pgTx) DebitCredit(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE players SET credit = credit - $2 WHERE id = $1 AND credit >= $2`, id, amount)
	if err != nil {
		return false, fmt.Errorf("debit player %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := t.GetCredit(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (t *pgTx) CreditCredit(ctx context.Context, id uuid.UUID, amount int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE players SET credit = credit + $2 WHERE id = $1`, id, amount)
	if err != nil {
		return fmt.Errorf("credit player %s: %w", id, err)
	}
	return requireRow(tag, "player", id)
}

func (t *pgTx) RosterForLobby(ctx context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := t.GetLobby(ctx, lobbyID); err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, `SELECT id FROM players WHERE lobby_id = $1 ORDER BY joined_at NULLS LAST, id`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("roster for lobby %s: %w", lobbyID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("roster for lobby %s: %w", lobbyID, err)
	}
	return ids, nil
}

func (t *pgTx) RemoveFromLobby(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `UPDATE players SET lobby_id = NULL, joined_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove player %s from lobby: %w", id, err)
	}
	return requireRow(tag, "player", id)
}

func (t *pgTx) IncrementWins(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `UPDATE players SET win_counter = win_counter + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment wins for %s: %w", id, err)
	}
	return requireRow(tag, "player", id)
}

// --- lobbies ---

func (t *pgTx) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	var l models.Lobby
	q := `
		SELECT id, host_id, name, min_players, max_players, round_count, bet, is_running
		FROM lobbies
		WHERE id = $1
	`
	err := t.tx.QueryRow(ctx, q, id).Scan(
		&l.ID, &l.HostID, &l.Name, &l.MinPlayers, &l.MaxPlayers, &l.RoundCount, &l.Bet, &l.IsRunning,
	)
	if err != nil {
		return nil, notFound(err, "lobby", id)
	}
	return &l, nil
}

func (t *pgTx) SetLobbyRunning(ctx context.Context, id uuid.UUID, running bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE lobbies SET is_running = $2 WHERE id = $1`, id, running)
	if err != nil {
		return fmt.Errorf("set lobby %s running: %w", id, err)
	}
	return requireRow(tag, "lobby", id)
}

// DeleteLobby relies on ON DELETE SET NULL to clear memberships; joined_at is reset here.
func (t *pgTx) DeleteLobby(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `UPDATE players SET joined_at = NULL WHERE lobby_id = $1`, id); err != nil {
		return fmt.Errorf("clear lobby %s members: %w", id, err)
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM lobbies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lobby %s: %w", id, err)
	}
	return requireRow(tag, "lobby", id)
}

// --- games ---

const gameColumns = `id, lobby_id, status, player_count, round_counter, roster, winners, created_at, closed_at`

func scanGame(row pgx.Row) (*models.Game, error) {
	var (
		g      models.Game
		status string
	)
	err := row.Scan(&g.ID, &g.LobbyID, &status, &g.PlayerCount, &g.RoundCounter, &g.Roster, &g.Winners, &g.CreatedAt, &g.ClosedAt)
	if err != nil {
		return nil, err
	}
	g.Status = models.GameStatus(status)
	return &g, nil
}

func (t *pgTx) InsertGame(ctx context.Context, g *models.Game) error {
	q := `
		INSERT INTO games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := t.tx.Exec(ctx, q,
		g.ID, g.LobbyID, string(g.Status), g.PlayerCount, g.RoundCounter, g.Roster, g.Winners, createdAt, g.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", g.ID, err)
	}
	return nil
}

func (t *pgTx) UpdateGame(ctx context.Context, g *models.Game) error {
	q := `
		UPDATE games
		SET status = $2, player_count = $3, round_counter = $4, roster = $5, winners = $6, closed_at = $7
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, q, g.ID, string(g.Status), g.PlayerCount, g.RoundCounter, g.Roster, g.Winners, g.ClosedAt)
	if err != nil {
		return fmt.Errorf("update game %s: %w", g.ID, err)
	}
	return requireRow(tag, "game", g.ID)
}

func (t *pgTx) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	g, err := scanGame(t.tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "game", id)
	}
	return g, nil
}

func (t *pgTx) RunningGameForLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Game, error) {
	q := `SELECT ` + gameColumns + ` FROM games WHERE lobby_id = $1 AND status = 'RUNNING'`
	g, err := scanGame(t.tx.QueryRow(ctx, q, lobbyID))
	if err != nil {
		return nil, notFound(err, "running game for lobby", lobbyID)
	}
	return g, nil
}

// --- rounds ---

const roundColumns = `id, game_id, round_number, bet, roster, is_over, winners, current_turn_id`

func scanRound(row pgx.Row) (*models.Round, error) {
	var (
		r       models.Round
		current uuid.NullUUID
	)
	if err := row.Scan(&r.ID, &r.GameID, &r.Number, &r.Bet, &r.Roster, &r.IsOver, &r.Winners, &current); err != nil {
		return nil, err
	}
	if current.Valid {
		r.CurrentTurnID = current.UUID
	}
	return &r, nil
}

func nullable(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func (t *pgTx) InsertRound(ctx context.Context, r *models.Round) error {
	q := `INSERT INTO rounds (` + roundColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := t.tx.Exec(ctx, q, r.ID, r.GameID, r.Number, r.Bet, r.Roster, r.IsOver, r.Winners, nullable(r.CurrentTurnID))
	if err != nil {
		return fmt.Errorf("insert round %s: %w", r.ID, err)
	}
	return nil
}

func (t *pgTx) UpdateRound(ctx context.Context, r *models.Round) error {
	q := `
		UPDATE rounds
		SET roster = $2, is_over = $3, winners = $4, current_turn_id = $5
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, q, r.ID, r.Roster, r.IsOver, r.Winners, nullable(r.CurrentTurnID))
	if err != nil {
		return fmt.Errorf("update round %s: %w", r.ID, err)
	}
	return requireRow(tag, "round", r.ID)
}

// OpenRound locks the open round row so concurrent operations on the same game queue up.
func (t *pgTx) OpenRound(ctx context.Context, gameID uuid.UUID) (*models.Round, error) {
	q := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE game_id = $1 AND is_over = FALSE
		ORDER BY round_number
		LIMIT 1
		FOR UPDATE
	`
	r, err := scanRound(t.tx.QueryRow(ctx, q, gameID))
	if err != nil {
		return nil, notFound(err, "open round for game", gameID)
	}
	return r, nil
}

func (t *pgTx) ListRounds(ctx context.Context, gameID uuid.UUID) ([]*models.Round, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+roundColumns+` FROM rounds WHERE game_id = $1 ORDER BY round_number`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list rounds for game %s: %w", gameID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Round, error) { return scanRound(row) })
	if err != nil {
		return nil, fmt.Errorf("list rounds for game %s: %w", gameID, err)
	}
	return out, nil
}

// --- turns ---

const turnColumns = `id, round_id, player_id, roll_count, dice, score_category, score_tiebreak, is_done`

func scanTurn(row pgx.Row) (*models.Turn, error) {
	var (
		tr       models.Turn
		faces    []int16
		category *int16
		tiebreak []int32
	)
	if err := row.Scan(&tr.ID, &tr.RoundID, &tr.PlayerID, &tr.RollCount, &faces, &category, &tiebreak, &tr.IsDone); err != nil {
		return nil, err
	}
	if len(faces) == dice.HandSize {
		var h dice.Hand
		for i, f := range faces {
			h[i] = dice.Face(f)
		}
		tr.Dice = &h
	}
	if category != nil {
		s := dice.Score{Category: dice.Category(*category)}
		for i := 0; i < len(tiebreak) && i < len(s.Tiebreak); i++ {
			s.Tiebreak[i] = int(tiebreak[i])
		}
		tr.Score = &s
	}
	return &tr, nil
}

// turnArgs flattens the hand and score into column values.
func turnArgs(tr *models.Turn) (faces []int16, category *int16, tiebreak []int32) {
	if tr.Dice != nil {
		faces = make([]int16, 0, dice.HandSize)
		for _, f := range tr.Dice {
			faces = append(faces, int16(f))
		}
	}
	if tr.Score != nil {
		c := int16(tr.Score.Category)
		category = &c
		for _, v := range tr.Score.Tiebreak {
			tiebreak = append(tiebreak, int32(v))
		}
	}
	return faces, category, tiebreak
}

func (t *pgTx) InsertTurn(ctx context.Context, tr *models.Turn) error {
	faces, category, tiebreak := turnArgs(tr)
	q := `INSERT INTO turns (` + turnColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := t.tx.Exec(ctx, q, tr.ID, tr.RoundID, tr.PlayerID, tr.RollCount, faces, category, tiebreak, tr.IsDone)
	if err != nil {
		return fmt.Errorf("insert turn %s: %w", tr.ID, err)
	}
	return nil
}

func (t *pgTx) UpdateTurn(ctx context.Context, tr *models.Turn) error {
	faces, category, tiebreak := turnArgs(tr)
	q := `
		UPDATE turns
		SET roll_count = $2, dice = $3, score_category = $4, score_tiebreak = $5, is_done = $6
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, q, tr.ID, tr.RollCount, faces, category, tiebreak, tr.IsDone)
	if err != nil {
		return fmt.Errorf("update turn %s: %w", tr.ID, err)
	}
	return requireRow(tag, "turn", tr.ID)
}

func (t *pgTx) GetTurn(ctx context.Context, id uuid.UUID) (*models.Turn, error) {
	tr, err := scanTurn(t.tx.QueryRow(ctx, `SELECT `+turnColumns+` FROM turns WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "turn", id)
	}
	return tr, nil
}

func (t *pgTx) ListTurns(ctx context.Context, roundID uuid.UUID) ([]*models.Turn, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+turnColumns+` FROM turns WHERE round_id = $1 ORDER BY seq`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list turns for round %s: %w", roundID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Turn, error) { return scanTurn(row) })
	if err != nil {
		return nil, fmt.Errorf("list turns for round %s: %w", roundID, err)
	}
	return out, nil
}

var _ store.Store = (*Store)(nil)
var _ store.Tx = (*pgTx)(nil)
