package game

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollFirstChecks(t *testing.T) {
	owner := uuid.New()
	roller := dice.NewRoller(&scriptSource{vals: []int{5, 5, 5, 5, 5}})

	turn := &models.Turn{ID: uuid.New(), PlayerID: owner}
	assert.ErrorIs(t, rollFirst(turn, uuid.New(), roller), ErrNotYourTurn)
	assert.Zero(t, turn.RollCount)
	assert.Nil(t, turn.Dice)

	require.NoError(t, rollFirst(turn, owner, roller))
	assert.Equal(t, 1, turn.RollCount)
	require.NotNil(t, turn.Dice)
	assert.Nil(t, turn.Score, "no score until the turn ends")

	assert.ErrorIs(t, rollFirst(turn, owner, roller), ErrNotFirstRoll)

	turn.IsDone = true
	assert.ErrorIs(t, rollFirst(turn, owner, roller), ErrTurnAlreadyFinished)
}

func TestRerollBeforeRoll(t *testing.T) {
	owner := uuid.New()
	turn := &models.Turn{ID: uuid.New(), PlayerID: owner}
	err := reroll(turn, owner, []int{0}, dice.NewRoller(&scriptSource{vals: []int{0}}))
	assert.ErrorIs(t, err, ErrMustRollFirst)
	assert.ErrorIs(t, endTurn(turn, owner), ErrMustRollFirst)
}

func TestRerollInvalidIndexLeavesTurn(t *testing.T) {
	owner := uuid.New()
	roller := dice.NewRoller(&scriptSource{vals: []int{1, 1, 1, 1, 1}})
	turn := &models.Turn{ID: uuid.New(), PlayerID: owner}
	require.NoError(t, rollFirst(turn, owner, roller))
	before := *turn.Dice

	err := reroll(turn, owner, []int{2, 7}, roller)
	assert.ErrorIs(t, err, dice.ErrInvalidIndex)
	assert.Equal(t, before, *turn.Dice)
	assert.Equal(t, 1, turn.RollCount)
}

func TestRerollBudget(t *testing.T) {
	owner := uuid.New()
	roller := dice.NewRoller(&scriptSource{vals: []int{0, 1, 2, 3, 5, 4, 4}})
	turn := &models.Turn{ID: uuid.New(), PlayerID: owner}
	require.NoError(t, rollFirst(turn, owner, roller))

	require.NoError(t, reroll(turn, owner, []int{0}, roller))
	require.NoError(t, reroll(turn, owner, []int{1}, roller))
	assert.Equal(t, MaxRolls, turn.RollCount)
	assert.False(t, turn.IsDone)
	hand := *turn.Dice

	err := reroll(turn, owner, []int{2}, roller)
	require.ErrorIs(t, err, ErrRollBudgetExhausted)
	assert.ErrorIs(t, err, ErrTurnAlreadyFinished)
	assert.True(t, turn.IsDone)
	assert.Equal(t, MaxRolls, turn.RollCount)
	assert.Equal(t, hand, *turn.Dice, "no fourth touch")
	require.NotNil(t, turn.Score)
	assert.Equal(t, dice.Evaluate(hand), *turn.Score)

	assert.ErrorIs(t, reroll(turn, owner, nil, roller), ErrTurnAlreadyFinished)
}

func TestEndTurnScores(t *testing.T) {
	owner := uuid.New()
	roller := dice.NewRoller(&scriptSource{vals: []int{4, 4, 4, 2, 2}})
	turn := &models.Turn{ID: uuid.New(), PlayerID: owner}
	require.NoError(t, rollFirst(turn, owner, roller))

	assert.ErrorIs(t, endTurn(turn, uuid.New()), ErrNotYourTurn)
	require.NoError(t, endTurn(turn, owner))
	assert.True(t, turn.IsDone)
	require.NotNil(t, turn.Score)
	assert.Equal(t, dice.FullHouse, turn.Score.Category)
	assert.ErrorIs(t, endTurn(turn, owner), ErrTurnAlreadyFinished)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{ErrRollBudgetExhausted, "roll_budget_exhausted", http.StatusConflict},
		{ErrTurnAlreadyFinished, "turn_already_finished", http.StatusConflict},
		{ErrNotYourTurn, "not_your_turn", http.StatusForbidden},
		{ErrLobbyNotFound, "lobby_not_found", http.StatusNotFound},
		{dice.ErrInvalidIndex, "invalid_index", http.StatusBadRequest},
		{assert.AnError, "internal_error", http.StatusInternalServerError},
	}
	for _, c := range cases {
		code, status := Classify(c.err)
		assert.Equal(t, c.code, code, c.err.Error())
		assert.Equal(t, c.status, status, c.err.Error())
	}
}
