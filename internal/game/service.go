// internal/game/service.go
package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/cache"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/events"
	"github.com/jason-s-yu/pokerdice/internal/models"
	"github.com/jason-s-yu/pokerdice/internal/store"
	"github.com/sirupsen/logrus"
)

// ActionPublisher ships applied actions to the historian. *cache.Publisher satisfies it.
type ActionPublisher interface {
	PublishGameAction(ctx context.Context, record cache.GameActionRecord) error
}

// Service is the game coordinator. Every public operation runs as one store
// transaction while holding the lobby's lock; events and action records are only
// sent after the transaction commits.
type Service struct {
	store    store.Store
	roller   *dice.Roller
	notifier Notifier
	log      *logrus.Entry
	locks    *lobbyLocks

	// Actions receives a record for every committed action. Nil disables the action log.
	Actions   ActionPublisher
	actionSeq atomic.Uint64
}

// NewService wires a coordinator. A nil roller uses a time-seeded source and a nil
// notifier drops events.
func NewService(st store.Store, roller *dice.Roller, notifier Notifier, logger *logrus.Logger) *Service {
	if roller == nil {
		roller = dice.NewRoller(nil)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		store:    st,
		roller:   roller,
		notifier: notifier,
		log:      logger.WithField("component", "game"),
		locks:    newLobbyLocks(),
	}
}

// TurnOutcome describes where play stands after a turn finishes.
type TurnOutcome struct {
	NextPlayer   *uuid.UUID  `json:"nextPlayer,omitempty"`
	RoundWinners []uuid.UUID `json:"roundWinners,omitempty"`
	GameWinners  []uuid.UUID `json:"gameWinners,omitempty"`
	GameOver     bool        `json:"gameOver"`
	LobbyClosed  bool        `json:"lobbyClosed,omitempty"`
}

// RollResult is the hand after a reroll. Outcome is set when the turn finished.
type RollResult struct {
	Dice      dice.Hand    `json:"dice"`
	RollCount int          `json:"rollCount"`
	Done      bool         `json:"done"`
	Outcome   *TurnOutcome `json:"outcome,omitempty"`
}

// GameState is a point-in-time view of a game for syncing a client.
type GameState struct {
	Game          *models.Game    `json:"game"`
	Round         *models.Round   `json:"round,omitempty"`
	Turns         []*models.Turn  `json:"turns,omitempty"`
	CurrentPlayer *uuid.UUID      `json:"currentPlayer,omitempty"`
	History       []*models.Round `json:"history,omitempty"`
}

type pendingEvent struct {
	audience []uuid.UUID
	typ      GameEventType
	payload  any
}

// op carries one transaction and the side effects it will release on commit.
type op struct {
	svc     *Service
	ctx     context.Context
	tx      store.Tx
	pending []pendingEvent
	actions []cache.GameActionRecord
}

func (o *op) emit(audience []uuid.UUID, typ GameEventType, payload any) {
	o.pending = append(o.pending, pendingEvent{audience: slices.Clone(audience), typ: typ, payload: payload})
}

func (o *op) logAction(gameID, actorID uuid.UUID, actionType string, payload map[string]any) {
	if payload == nil {
		payload = make(map[string]any)
	}
	o.actions = append(o.actions, cache.GameActionRecord{
		GameID:        gameID,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	})
}

// run executes fn in a transaction under the lobby lock and flushes side effects if it commits.
func (s *Service) run(ctx context.Context, lobbyID uuid.UUID, fn func(o *op) error) error {
	unlock := s.locks.lock(lobbyID)
	defer unlock()

	var o *op
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		o = &op{svc: s, ctx: ctx, tx: tx}
		return fn(o)
	})
	if err != nil {
		return err
	}
	s.flush(o)
	return nil
}

func (s *Service) flush(o *op) {
	if s.notifier != nil {
		for _, ev := range o.pending {
			if len(ev.audience) == 0 {
				continue
			}
			s.notifier.EmitToPlayers(ev.audience, events.Message(string(ev.typ), ev.payload))
		}
	}
	if s.Actions == nil {
		return
	}
	for _, rec := range o.actions {
		rec.ActionIndex = s.actionSeq.Add(1)
		go func(rec cache.GameActionRecord) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.Actions.PublishGameAction(ctx, rec); err != nil {
				s.log.WithError(err).WithField("game", rec.GameID).Warn("failed to publish game action")
			}
		}(rec)
	}
}

// read runs fn in a transaction without locking or side effects.
func (s *Service) read(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.store.Atomic(ctx, fn)
}

func lobbyErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrLobbyNotFound
	}
	return fmt.Errorf("load lobby: %w", err)
}

func gameErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrGameNotFound
	}
	return fmt.Errorf("load game: %w", err)
}

// lobbyOf resolves the lobby a game belongs to so game-keyed calls take the same lock.
func (s *Service) lobbyOf(ctx context.Context, gameID uuid.UUID) (uuid.UUID, error) {
	var lobbyID uuid.UUID
	err := s.read(ctx, func(tx store.Tx) error {
		g, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return gameErr(err)
		}
		lobbyID = g.LobbyID
		return nil
	})
	return lobbyID, err
}

func openTurn(ctx context.Context, tx store.Tx, game *models.Game) (*models.Round, *models.Turn, error) {
	round, err := tx.OpenRound(ctx, game.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrNoActiveRound
		}
		return nil, nil, fmt.Errorf("load round: %w", err)
	}
	if round.CurrentTurnID == uuid.Nil {
		return nil, nil, ErrNoActiveTurn
	}
	turn, err := tx.GetTurn(ctx, round.CurrentTurnID)
	if err != nil {
		return nil, nil, fmt.Errorf("round %s points at turn %s: %w", round.ID, round.CurrentTurnID, err)
	}
	if turn.IsDone {
		return nil, nil, ErrNoActiveTurn
	}
	return round, turn, nil
}

func (o *op) openTurnForLobby(lobbyID uuid.UUID) (*models.Game, *models.Round, *models.Turn, error) {
	game, err := o.tx.RunningGameForLobby(o.ctx, lobbyID)
	if err != nil {
		return nil, nil, nil, gameErr(err)
	}
	round, turn, err := openTurn(o.ctx, o.tx, game)
	if err != nil {
		return nil, nil, nil, err
	}
	return game, round, turn, nil
}

// afterTurn moves play on once the open turn is done: next turn, next round, or game end.
func (o *op) afterTurn(game *models.Game, round *models.Round, out *TurnOutcome) error {
	next, err := o.advanceTurn(game, round)
	if err != nil {
		return err
	}
	if next != uuid.Nil {
		out.NextPlayer = &next
		return nil
	}
	out.RoundWinners = round.Winners

	lobby, err := o.tx.GetLobby(o.ctx, game.LobbyID)
	if err != nil {
		return lobbyErr(err)
	}
	game.RoundCounter++
	if game.RoundCounter >= lobby.RoundCount {
		if err := o.finishGame(game, lobby, false, round.Roster); err != nil {
			return err
		}
		out.GameOver = true
		out.GameWinners = game.Winners
		return nil
	}

	nextRound, res, err := o.startRound(game, round)
	if err != nil {
		return err
	}
	if res == roundStarted {
		first := nextRound.Roster[0]
		out.NextPlayer = &first
		return nil
	}
	out.GameOver = true
	out.GameWinners = game.Winners
	out.LobbyClosed = res == roundLobbyClosed
	return nil
}

// CreateGame starts a game from the lobby's current roster and opens round one.
// If the opening round cannot start the game is created and immediately closed, and
// ErrLobbyClosed or ErrNotEnoughPlayers is returned alongside its id.
func (s *Service) CreateGame(ctx context.Context, lobbyID, requesterID uuid.UUID) (uuid.UUID, error) {
	var (
		gameID uuid.UUID
		result error
	)
	err := s.run(ctx, lobbyID, func(o *op) error {
		lobby, err := o.tx.GetLobby(ctx, lobbyID)
		if err != nil {
			return lobbyErr(err)
		}
		if lobby.HostID != requesterID {
			return ErrNotTheHost
		}
		if lobby.IsRunning {
			return ErrGameAlreadyRunning
		}
		if _, err := o.tx.RunningGameForLobby(ctx, lobbyID); err == nil {
			return ErrGameAlreadyRunning
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check running game: %w", err)
		}
		roster, err := o.tx.RosterForLobby(ctx, lobbyID)
		if err != nil {
			return fmt.Errorf("lobby roster: %w", err)
		}
		if len(roster) == 0 || len(roster) < lobby.MinPlayers {
			return ErrNotEnoughPlayers
		}

		if err := o.tx.SetLobbyRunning(ctx, lobbyID, true); err != nil {
			return fmt.Errorf("mark lobby running: %w", err)
		}
		game := &models.Game{
			ID:          uuid.New(),
			LobbyID:     lobbyID,
			Status:      models.GameRunning,
			PlayerCount: len(roster),
			Roster:      roster,
			CreatedAt:   time.Now(),
		}
		if err := o.tx.InsertGame(ctx, game); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		gameID = game.ID

		s.log.WithFields(logrus.Fields{"game": game.ID, "lobby": lobbyID, "players": len(roster)}).Info("game created")
		o.emit(roster, EventGameStarted, GameStartedPayload{
			GameID:     game.ID,
			LobbyID:    lobbyID,
			Roster:     roster,
			RoundCount: lobby.RoundCount,
		})
		o.logAction(game.ID, requesterID, "game_created", map[string]any{"lobbyId": lobbyID, "players": len(roster)})

		_, res, err := o.startRound(game, nil)
		if err != nil {
			return err
		}
		switch res {
		case roundLobbyClosed:
			result = ErrLobbyClosed
		case roundTooFewPlayers:
			result = ErrNotEnoughPlayers
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return gameID, result
}

// RollFirst draws the opening hand for the open turn of the lobby's running game.
func (s *Service) RollFirst(ctx context.Context, lobbyID, requesterID uuid.UUID) (dice.Hand, error) {
	var hand dice.Hand
	err := s.run(ctx, lobbyID, func(o *op) error {
		game, round, turn, err := o.openTurnForLobby(lobbyID)
		if err != nil {
			return err
		}
		if err := rollFirst(turn, requesterID, s.roller); err != nil {
			return err
		}
		if err := o.tx.UpdateTurn(ctx, turn); err != nil {
			return fmt.Errorf("update turn: %w", err)
		}
		hand = *turn.Dice

		s.log.WithFields(logrus.Fields{"game": game.ID, "player": requesterID, "dice": hand.String()}).Debug("dice rolled")
		o.emit(round.Roster, EventDiceRolled, DiceRolledPayload{
			GameID:    game.ID,
			PlayerID:  requesterID,
			Dice:      hand,
			RollCount: turn.RollCount,
		})
		o.logAction(game.ID, requesterID, "dice_rolled", map[string]any{"round": round.Number, "rollCount": turn.RollCount})
		return nil
	})
	return hand, err
}

// Reroll redraws the dice at indices. A reroll after the budget is spent finishes the
// turn instead: the result carries the outcome and the error is ErrRollBudgetExhausted.
func (s *Service) Reroll(ctx context.Context, lobbyID, requesterID uuid.UUID, indices []int) (*RollResult, error) {
	var (
		res    *RollResult
		result error
	)
	err := s.run(ctx, lobbyID, func(o *op) error {
		game, round, turn, err := o.openTurnForLobby(lobbyID)
		if err != nil {
			return err
		}
		if err := reroll(turn, requesterID, indices, s.roller); err != nil {
			if !errors.Is(err, ErrRollBudgetExhausted) {
				return err
			}
			result = err
		}
		if err := o.tx.UpdateTurn(ctx, turn); err != nil {
			return fmt.Errorf("update turn: %w", err)
		}
		res = &RollResult{Dice: *turn.Dice, RollCount: turn.RollCount, Done: turn.IsDone}

		if !turn.IsDone {
			s.log.WithFields(logrus.Fields{"game": game.ID, "player": requesterID, "dice": res.Dice.String()}).Debug("dice rerolled")
			o.emit(round.Roster, EventDiceRolled, DiceRolledPayload{
				GameID:    game.ID,
				PlayerID:  requesterID,
				Dice:      res.Dice,
				RollCount: turn.RollCount,
			})
			o.logAction(game.ID, requesterID, "dice_rerolled", map[string]any{"round": round.Number, "rollCount": turn.RollCount, "count": len(indices)})
			return nil
		}

		o.logAction(game.ID, requesterID, "turn_ended", map[string]any{"round": round.Number, "category": turn.Score.Category.String(), "auto": true})
		res.Outcome = &TurnOutcome{}
		return o.afterTurn(game, round, res.Outcome)
	})
	if err != nil {
		return nil, err
	}
	return res, result
}

// EndTurn scores the requester's hand and moves play on.
func (s *Service) EndTurn(ctx context.Context, gameID, requesterID uuid.UUID) (*TurnOutcome, error) {
	lobbyID, err := s.lobbyOf(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var out *TurnOutcome
	err = s.run(ctx, lobbyID, func(o *op) error {
		game, err := o.tx.GetGame(ctx, gameID)
		if err != nil {
			return gameErr(err)
		}
		round, turn, err := openTurn(ctx, o.tx, game)
		if err != nil {
			return err
		}
		if err := endTurn(turn, requesterID); err != nil {
			return err
		}
		if err := o.tx.UpdateTurn(ctx, turn); err != nil {
			return fmt.Errorf("update turn: %w", err)
		}
		s.log.WithFields(logrus.Fields{"game": game.ID, "player": requesterID, "score": turn.Score.String()}).Debug("turn ended")
		o.logAction(game.ID, requesterID, "turn_ended", map[string]any{"round": round.Number, "category": turn.Score.Category.String()})

		out = &TurnOutcome{}
		return o.afterTurn(game, round, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EndGame closes a game. When explicit, only the host may do it and any round still
// open is refunded to the players who staked it.
func (s *Service) EndGame(ctx context.Context, gameID, requesterID uuid.UUID, explicit bool) error {
	lobbyID, err := s.lobbyOf(ctx, gameID)
	if err != nil {
		return err
	}
	return s.run(ctx, lobbyID, func(o *op) error {
		game, err := o.tx.GetGame(ctx, gameID)
		if err != nil {
			return gameErr(err)
		}
		lobby, err := o.tx.GetLobby(ctx, game.LobbyID)
		if err != nil {
			if explicit || !errors.Is(err, store.ErrNotFound) {
				return lobbyErr(err)
			}
		}
		if explicit && lobby.HostID != requesterID {
			return ErrYouAreNotHost
		}
		if game.Status == models.GameClosed {
			return ErrGameAlreadyClosed
		}

		audience := slices.Clone(game.Roster)
		round, err := o.tx.OpenRound(ctx, game.ID)
		switch {
		case err == nil:
			for _, pid := range round.Roster {
				if err := o.tx.CreditCredit(ctx, pid, round.Bet); err != nil {
					return fmt.Errorf("refund %s: %w", pid, err)
				}
			}
			round.IsOver = true
			round.CurrentTurnID = uuid.Nil
			if err := o.tx.UpdateRound(ctx, round); err != nil {
				return fmt.Errorf("update round: %w", err)
			}
			audience = append(audience, round.Roster...)
			o.logAction(game.ID, requesterID, "round_refunded", map[string]any{"round": round.Number, "bet": round.Bet})
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("load round: %w", err)
		}

		return o.finishGame(game, lobby, explicit, audience)
	})
}

// CurrentTurnPlayer returns whose turn it is in the game's open round.
func (s *Service) CurrentTurnPlayer(ctx context.Context, gameID uuid.UUID) (uuid.UUID, error) {
	var pid uuid.UUID
	err := s.read(ctx, func(tx store.Tx) error {
		game, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return gameErr(err)
		}
		_, turn, err := openTurn(ctx, tx, game)
		if err != nil {
			return err
		}
		pid = turn.PlayerID
		return nil
	})
	return pid, err
}

// State returns the game, its open round with turns so far, and closed rounds.
func (s *Service) State(ctx context.Context, gameID uuid.UUID) (*GameState, error) {
	st := &GameState{}
	err := s.read(ctx, func(tx store.Tx) error {
		game, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return gameErr(err)
		}
		st.Game = game

		rounds, err := tx.ListRounds(ctx, gameID)
		if err != nil {
			return fmt.Errorf("list rounds: %w", err)
		}
		for _, r := range rounds {
			if r.IsOver {
				st.History = append(st.History, r)
				continue
			}
			st.Round = r
		}
		if st.Round == nil {
			return nil
		}
		if st.Turns, err = tx.ListTurns(ctx, st.Round.ID); err != nil {
			return fmt.Errorf("list turns: %w", err)
		}
		for _, t := range st.Turns {
			if t.ID == st.Round.CurrentTurnID {
				pid := t.PlayerID
				st.CurrentPlayer = &pid
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// RoundHistory lists the game's closed rounds in order.
func (s *Service) RoundHistory(ctx context.Context, gameID uuid.UUID) ([]*models.Round, error) {
	var out []*models.Round
	err := s.read(ctx, func(tx store.Tx) error {
		if _, err := tx.GetGame(ctx, gameID); err != nil {
			return gameErr(err)
		}
		rounds, err := tx.ListRounds(ctx, gameID)
		if err != nil {
			return fmt.Errorf("list rounds: %w", err)
		}
		for _, r := range rounds {
			if r.IsOver {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}
