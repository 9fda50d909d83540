// internal/game/turn.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/models"
)

// MaxRolls is the number of times a turn may touch the dice: one roll plus two rerolls.
const MaxRolls = 3

func checkTurnOwner(t *models.Turn, playerID uuid.UUID) error {
	if t.PlayerID != playerID {
		return ErrNotYourTurn
	}
	if t.IsDone {
		return ErrTurnAlreadyFinished
	}
	return nil
}

// rollFirst draws the opening hand. No score is computed until the turn ends.
func rollFirst(t *models.Turn, playerID uuid.UUID, roller *dice.Roller) error {
	if err := checkTurnOwner(t, playerID); err != nil {
		return err
	}
	if t.RollCount != 0 {
		return ErrNotFirstRoll
	}
	h := roller.Roll()
	t.Dice = &h
	t.RollCount = 1
	return nil
}

// reroll redraws the dice at indices. Once the budget is spent the turn is finished
// in place and ErrRollBudgetExhausted is returned; the caller must still persist t.
func reroll(t *models.Turn, playerID uuid.UUID, indices []int, roller *dice.Roller) error {
	if err := checkTurnOwner(t, playerID); err != nil {
		return err
	}
	if t.Dice == nil || t.RollCount == 0 {
		return ErrMustRollFirst
	}
	if t.RollCount >= MaxRolls {
		finishTurn(t)
		return ErrRollBudgetExhausted
	}
	h, err := roller.Reroll(*t.Dice, indices)
	if err != nil {
		return err
	}
	t.Dice = &h
	t.RollCount++
	return nil
}

// endTurn scores the hand and closes the turn.
func endTurn(t *models.Turn, playerID uuid.UUID) error {
	if err := checkTurnOwner(t, playerID); err != nil {
		return err
	}
	if t.Dice == nil {
		return ErrMustRollFirst
	}
	finishTurn(t)
	return nil
}

func finishTurn(t *models.Turn) {
	s := dice.Evaluate(*t.Dice)
	t.Score = &s
	t.IsDone = true
}
