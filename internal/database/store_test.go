package database

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/jason-s-yu/pokerdice/internal/models"
	"github.com/jason-s-yu/pokerdice/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow feeds fixed column values to Scan.
type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(r[i]))
	}
	return nil
}

func TestTurnColumnsRoundTrip(t *testing.T) {
	h := dice.Hand{dice.King, dice.King, dice.King, dice.Jack, dice.Jack}
	s := dice.Evaluate(h)
	in := &models.Turn{
		ID:        uuid.New(),
		RoundID:   uuid.New(),
		PlayerID:  uuid.New(),
		RollCount: 2,
		Dice:      &h,
		Score:     &s,
		IsDone:    true,
	}
	faces, category, tiebreak := turnArgs(in)
	require.Len(t, faces, dice.HandSize)
	require.NotNil(t, category)

	out, err := scanTurn(fakeRow{in.ID, in.RoundID, in.PlayerID, in.RollCount, faces, category, tiebreak, in.IsDone})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestOpenTurnColumns(t *testing.T) {
	in := &models.Turn{ID: uuid.New(), RoundID: uuid.New(), PlayerID: uuid.New()}
	faces, category, tiebreak := turnArgs(in)
	assert.Nil(t, faces)
	assert.Nil(t, category)
	assert.Nil(t, tiebreak)

	out, err := scanTurn(fakeRow{in.ID, in.RoundID, in.PlayerID, 0, nil, nil, nil, false})
	require.NoError(t, err)
	assert.Nil(t, out.Dice)
	assert.Nil(t, out.Score)
}

func TestRoundPointerNullable(t *testing.T) {
	assert.False(t, nullable(uuid.Nil).Valid)
	id := uuid.New()
	assert.Equal(t, uuid.NullUUID{UUID: id, Valid: true}, nullable(id))

	r, err := scanRound(fakeRow{uuid.New(), uuid.New(), 1, int64(10), []uuid.UUID{id}, true, []uuid.UUID{id}, uuid.NullUUID{}})
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, r.CurrentTurnID)
	assert.Equal(t, []uuid.UUID{id}, r.Winners)
}

func TestConnString(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/pokerdice", ConnString("u", "p", "db", "5432", "pokerdice"))
}

// TestGameOnPostgres plays a whole game against a real database when
// POKERDICE_TEST_DATABASE_URL is set.
func TestGameOnPostgres(t *testing.T) {
	url := os.Getenv("POKERDICE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("POKERDICE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := ConnectDB(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, Migrate(ctx, pool))

	lobby, players := NewDemoLobby(3, 100, 10, 2)
	require.NoError(t, SeedLobby(ctx, pool, lobby, players))

	st := NewStore(pool)
	svc := game.NewService(st, dice.NewRoller(dice.NewSeededSource(1)), nil, nil)

	gameID, err := svc.CreateGame(ctx, lobby.ID, lobby.HostID)
	require.NoError(t, err)
	_, err = svc.CreateGame(ctx, lobby.ID, lobby.HostID)
	require.ErrorIs(t, err, game.ErrGameAlreadyRunning)

	var out *game.TurnOutcome
	for round := 0; round < 2; round++ {
		for _, p := range players {
			_, err := svc.RollFirst(ctx, lobby.ID, p.ID)
			require.NoError(t, err)
			_, err = svc.Reroll(ctx, lobby.ID, p.ID, []int{0, 4})
			require.NoError(t, err)
			out, err = svc.EndTurn(ctx, gameID, p.ID)
			require.NoError(t, err)
		}
	}
	require.True(t, out.GameOver)

	var total int64
	require.NoError(t, st.Atomic(ctx, func(tx store.Tx) error {
		g, err := tx.GetGame(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, models.GameClosed, g.Status)
		l, err := tx.GetLobby(ctx, lobby.ID)
		require.NoError(t, err)
		assert.False(t, l.IsRunning)
		for _, p := range players {
			c, err := tx.GetCredit(ctx, p.ID)
			require.NoError(t, err)
			total += c
		}
		return nil
	}))
	assert.LessOrEqual(t, total, int64(300))
	assert.GreaterOrEqual(t, total, int64(298))
}
