// internal/game/round.go
package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/models"
	"github.com/sirupsen/logrus"
)

// roundStart reports how an attempt to start a round ended.
type roundStart int

const (
	roundStarted roundStart = iota
	roundLobbyClosed
	roundTooFewPlayers
)

// startRound evicts players who cannot cover the bet, then either tears the game down
// or debits everyone left and opens the round with its first turn. No one is debited
// unless the round actually starts.
func (o *op) startRound(game *models.Game, prev *models.Round) (*models.Round, roundStart, error) {
	lobby, err := o.tx.GetLobby(o.ctx, game.LobbyID)
	if err != nil {
		return nil, 0, lobbyErr(err)
	}
	bet, number := lobby.Bet, 1
	if prev != nil {
		bet, number = prev.Bet, prev.Number+1
	}

	audience := slices.Clone(game.Roster)
	kept := make([]uuid.UUID, 0, len(game.Roster))
	hostEvicted := false
	for _, pid := range game.Roster {
		credit, err := o.tx.GetCredit(o.ctx, pid)
		if err != nil {
			return nil, 0, fmt.Errorf("get credit for %s: %w", pid, err)
		}
		if credit >= bet {
			kept = append(kept, pid)
			continue
		}
		if err := o.tx.RemoveFromLobby(o.ctx, pid); err != nil {
			return nil, 0, fmt.Errorf("evict %s: %w", pid, err)
		}
		if pid == lobby.HostID {
			hostEvicted = true
		}
		o.svc.log.WithFields(logrus.Fields{
			"game":   game.ID,
			"player": pid,
			"credit": credit,
			"bet":    bet,
		}).Warn("evicting player who cannot cover the bet")
		o.emit(audience, EventPlayerEvicted, PlayerEvictedPayload{
			GameID:   game.ID,
			LobbyID:  lobby.ID,
			PlayerID: pid,
			Credit:   credit,
			Bet:      bet,
		})
		o.logAction(game.ID, pid, "player_evicted", map[string]any{"credit": credit, "bet": bet})
	}
	game.Roster = kept
	game.PlayerCount = len(kept)

	if hostEvicted {
		if err := o.tx.DeleteLobby(o.ctx, lobby.ID); err != nil {
			return nil, 0, fmt.Errorf("delete lobby %s: %w", lobby.ID, err)
		}
		if err := o.finishGame(game, nil, false, audience); err != nil {
			return nil, 0, err
		}
		o.emit(audience, EventLobbyClosed, LobbyPayload{LobbyID: lobby.ID})
		return nil, roundLobbyClosed, nil
	}
	if len(kept) == 0 || len(kept) < lobby.MinPlayers {
		if err := o.finishGame(game, lobby, false, audience); err != nil {
			return nil, 0, err
		}
		return nil, roundTooFewPlayers, nil
	}

	for _, pid := range kept {
		ok, err := o.tx.DebitCredit(o.ctx, pid, bet)
		if err != nil {
			return nil, 0, fmt.Errorf("debit %s: %w", pid, err)
		}
		if !ok {
			return nil, 0, fmt.Errorf("debit %s: balance fell below %d during round start", pid, bet)
		}
	}

	round := &models.Round{
		ID:     uuid.New(),
		GameID: game.ID,
		Number: number,
		Bet:    bet,
		Roster: slices.Clone(kept),
	}
	first := &models.Turn{ID: uuid.New(), RoundID: round.ID, PlayerID: kept[0]}
	round.CurrentTurnID = first.ID

	if err := o.tx.InsertRound(o.ctx, round); err != nil {
		return nil, 0, fmt.Errorf("insert round: %w", err)
	}
	if err := o.tx.InsertTurn(o.ctx, first); err != nil {
		return nil, 0, fmt.Errorf("insert turn: %w", err)
	}
	if err := o.tx.UpdateGame(o.ctx, game); err != nil {
		return nil, 0, fmt.Errorf("update game: %w", err)
	}

	o.svc.log.WithFields(logrus.Fields{
		"game":  game.ID,
		"round": round.Number,
		"pot":   round.Pot(),
	}).Info("round started")
	o.emit(round.Roster, EventRoundStarted, RoundStartedPayload{
		GameID:      game.ID,
		RoundID:     round.ID,
		RoundNumber: round.Number,
		Bet:         round.Bet,
		Pot:         round.Pot(),
		Roster:      round.Roster,
	})
	o.emit(round.Roster, EventTurnAdvanced, TurnAdvancedPayload{GameID: game.ID, RoundNumber: round.Number, PlayerID: first.PlayerID})
	o.logAction(game.ID, uuid.Nil, "round_started", map[string]any{"round": round.Number, "bet": bet, "players": len(kept)})
	return round, roundStarted, nil
}

// advanceTurn opens a turn for the next roster player who has not played this round.
// When everyone has played the round is closed and uuid.Nil is returned.
func (o *op) advanceTurn(game *models.Game, round *models.Round) (uuid.UUID, error) {
	turns, err := o.tx.ListTurns(o.ctx, round.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list turns: %w", err)
	}
	played := make(map[uuid.UUID]bool, len(turns))
	for _, t := range turns {
		if !t.IsDone {
			return uuid.Nil, fmt.Errorf("round %s: turn %s is still open", round.ID, t.ID)
		}
		played[t.PlayerID] = true
	}

	for _, pid := range round.Roster {
		if played[pid] {
			continue
		}
		next := &models.Turn{ID: uuid.New(), RoundID: round.ID, PlayerID: pid}
		if err := o.tx.InsertTurn(o.ctx, next); err != nil {
			return uuid.Nil, fmt.Errorf("insert turn: %w", err)
		}
		round.CurrentTurnID = next.ID
		if err := o.tx.UpdateRound(o.ctx, round); err != nil {
			return uuid.Nil, fmt.Errorf("update round: %w", err)
		}
		o.emit(round.Roster, EventTurnAdvanced, TurnAdvancedPayload{GameID: game.ID, RoundNumber: round.Number, PlayerID: pid})
		return pid, nil
	}

	return uuid.Nil, o.closeRound(game, round, turns)
}

// closeRound picks the best score and splits the pot evenly among everyone holding it.
// The integer-division remainder is not paid out.
func (o *op) closeRound(game *models.Game, round *models.Round, turns []*models.Turn) error {
	byPlayer := make(map[uuid.UUID]*models.Turn, len(turns))
	for _, t := range turns {
		byPlayer[t.PlayerID] = t
	}

	results := make([]TurnResult, 0, len(round.Roster))
	var best dice.Score
	for i, pid := range round.Roster {
		t, ok := byPlayer[pid]
		if !ok || !t.IsDone || t.Score == nil || t.Dice == nil {
			return fmt.Errorf("round %s: player %s has no finished turn", round.ID, pid)
		}
		results = append(results, TurnResult{PlayerID: pid, Dice: *t.Dice, Score: *t.Score})
		if i == 0 || t.Score.Beats(best) {
			best = *t.Score
		}
	}

	var winners []uuid.UUID
	for _, r := range results {
		if r.Score.Compare(best) == 0 {
			winners = append(winners, r.PlayerID)
		}
	}
	payout := round.Pot() / int64(len(winners))
	for _, w := range winners {
		if err := o.tx.CreditCredit(o.ctx, w, payout); err != nil {
			return fmt.Errorf("pay %s: %w", w, err)
		}
	}

	round.IsOver = true
	round.Winners = winners
	round.CurrentTurnID = uuid.Nil
	if err := o.tx.UpdateRound(o.ctx, round); err != nil {
		return fmt.Errorf("update round: %w", err)
	}

	o.svc.log.WithFields(logrus.Fields{
		"game":    game.ID,
		"round":   round.Number,
		"winners": len(winners),
		"best":    best.String(),
		"payout":  payout,
	}).Info("round closed")
	o.emit(round.Roster, EventRoundEnded, RoundEndedPayload{
		GameID:      game.ID,
		RoundNumber: round.Number,
		Winners:     winners,
		Payout:      payout,
		Results:     results,
	})
	o.logAction(game.ID, uuid.Nil, "round_closed", map[string]any{
		"round":   round.Number,
		"winners": winners,
		"payout":  payout,
	})
	return nil
}

// finishGame closes the game and names the players with the most round wins. A nil
// lobby means it was deleted, so there is nothing to reopen.
func (o *op) finishGame(game *models.Game, lobby *models.Lobby, aborted bool, audience []uuid.UUID) error {
	rounds, err := o.tx.ListRounds(o.ctx, game.ID)
	if err != nil {
		return fmt.Errorf("list rounds: %w", err)
	}

	seen := make(map[uuid.UUID]bool)
	var players []uuid.UUID
	add := func(ids []uuid.UUID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				players = append(players, id)
			}
		}
	}
	add(audience)
	add(game.Roster)

	wins := make(map[uuid.UUID]int)
	top := 0
	for _, r := range rounds {
		add(r.Roster)
		if !r.IsOver {
			continue
		}
		for _, w := range r.Winners {
			wins[w]++
			top = max(top, wins[w])
		}
	}
	var winners []uuid.UUID
	if top > 0 {
		for _, id := range players {
			if wins[id] == top {
				winners = append(winners, id)
			}
		}
	}

	now := time.Now()
	game.Status = models.GameClosed
	game.ClosedAt = &now
	game.Winners = winners
	if err := o.tx.UpdateGame(o.ctx, game); err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	for _, w := range winners {
		if err := o.tx.IncrementWins(o.ctx, w); err != nil {
			return fmt.Errorf("increment wins for %s: %w", w, err)
		}
	}

	o.svc.log.WithFields(logrus.Fields{
		"game":    game.ID,
		"rounds":  game.RoundCounter,
		"winners": len(winners),
		"aborted": aborted,
	}).Info("game closed")
	o.emit(players, EventGameEnded, GameEndedPayload{
		GameID:    game.ID,
		Winners:   winners,
		RoundWins: wins,
		Rounds:    game.RoundCounter,
		Aborted:   aborted,
	})
	o.logAction(game.ID, uuid.Nil, "game_closed", map[string]any{"winners": winners, "aborted": aborted})

	if lobby == nil {
		return nil
	}
	if err := o.tx.SetLobbyRunning(o.ctx, lobby.ID, false); err != nil {
		return fmt.Errorf("release lobby: %w", err)
	}
	members, err := o.tx.RosterForLobby(o.ctx, lobby.ID)
	if err != nil {
		return fmt.Errorf("lobby roster: %w", err)
	}
	o.emit(members, EventLobbyReopened, LobbyPayload{LobbyID: lobby.ID})
	return nil
}
