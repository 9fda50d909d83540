// cmd/simulate plays a complete game between bots on the in-memory store and
// renders each round in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/jason-s-yu/pokerdice/internal/models"
	"github.com/jason-s-yu/pokerdice/internal/store"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
)

func main() {
	players := flag.Int("players", 4, "number of bots at the table")
	rounds := flag.Int("rounds", 5, "rounds per game")
	credit := flag.Int64("credit", 50, "starting credit per bot")
	bet := flag.Int64("bet", 10, "stake per round")
	seed := flag.Int64("seed", 0, "dice seed; 0 picks a random one")
	verbose := flag.Bool("v", false, "log engine activity")
	flag.Parse()

	if *players < 2 {
		pterm.Error.Println("at least two players are needed")
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if *verbose {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.DebugLevel)
	}

	src := dice.NewSource()
	if *seed != 0 {
		src = dice.NewSeededSource(*seed)
	}

	t := newTable(*players, *credit, *bet, *rounds)
	svc := game.NewService(t.mem, dice.NewRoller(src), t, logger)

	pterm.DefaultHeader.WithFullWidth().Println("Poker Dice")
	pterm.Info.Printfln("%d bots, %d rounds, %d credits each, bet %d", *players, *rounds, *credit, *bet)

	if err := play(context.Background(), svc, t); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	t.printStandings()
}

// play drives the bots until the game closes.
func play(ctx context.Context, svc *game.Service, t *table) error {
	gameID, err := svc.CreateGame(ctx, t.lobby.ID, t.lobby.HostID)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	for {
		st, err := svc.State(ctx, gameID)
		if err != nil {
			return err
		}
		if st.Game.Status == models.GameClosed || st.CurrentPlayer == nil {
			return nil
		}
		pid := *st.CurrentPlayer

		hand, err := svc.RollFirst(ctx, t.lobby.ID, pid)
		if err != nil {
			return fmt.Errorf("%s roll: %w", t.name(pid), err)
		}
		for rolls := 1; rolls < game.MaxRolls; rolls++ {
			keep := botRerolls(hand)
			if len(keep) == 0 {
				break
			}
			res, err := svc.Reroll(ctx, t.lobby.ID, pid, keep)
			if err != nil {
				return fmt.Errorf("%s reroll: %w", t.name(pid), err)
			}
			hand = res.Dice
		}
		out, err := svc.EndTurn(ctx, gameID, pid)
		if err != nil {
			return fmt.Errorf("%s end turn: %w", t.name(pid), err)
		}
		if out.GameOver {
			return nil
		}
	}
}

// botRerolls keeps every matched face, or the single best die when nothing matches,
// and rerolls the rest. Straights and better stand.
func botRerolls(h dice.Hand) []int {
	if dice.Evaluate(h).Category >= dice.Straight {
		return nil
	}
	var counts [dice.FaceCount]int
	matched := false
	for _, f := range h {
		counts[f]++
		if counts[f] >= 2 {
			matched = true
		}
	}
	best := slices.Max(h[:])
	keptBest := false
	var out []int
	for i, f := range h {
		switch {
		case matched && counts[f] >= 2:
		case !matched && f == best && !keptBest:
			keptBest = true
		default:
			out = append(out, i)
		}
	}
	return out
}

// table is the seeded lobby plus the terminal renderer for game events.
type table struct {
	mem   *store.Memory
	lobby models.Lobby
	names map[uuid.UUID]string
	order []uuid.UUID
}

func newTable(n int, credit, bet int64, rounds int) *table {
	t := &table{mem: store.NewMemory(), names: make(map[uuid.UUID]string)}
	for i := range n {
		id := uuid.New()
		t.order = append(t.order, id)
		t.names[id] = fmt.Sprintf("bot-%d", i+1)
	}
	t.lobby = models.Lobby{
		ID:         uuid.New(),
		HostID:     t.order[0],
		Name:       "simulation",
		MinPlayers: 2,
		MaxPlayers: n,
		RoundCount: rounds,
		Bet:        bet,
	}
	t.mem.AddLobby(t.lobby)
	for _, id := range t.order {
		t.mem.AddPlayer(models.Player{
			ID:       id,
			Username: t.names[id],
			Credit:   credit,
			LobbyID:  uuid.NullUUID{UUID: t.lobby.ID, Valid: true},
		})
	}
	return t
}

func (t *table) name(id uuid.UUID) string {
	if n, ok := t.names[id]; ok {
		return n
	}
	return id.String()[:8]
}
