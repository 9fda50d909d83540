package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/events"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/pterm/pterm"
)

// EmitToPlayers renders engine events. Every event reaches the whole table, so
// the audience is ignored.
func (t *table) EmitToPlayers(_ []uuid.UUID, ev events.Event) {
	switch p := ev.Payload.(type) {
	case game.RoundStartedPayload:
		pterm.DefaultSection.Printfln("Round %d  (pot %d)", p.RoundNumber, p.Pot)
	case game.PlayerEvictedPayload:
		pterm.Warning.Printfln("%s leaves the table with %d credits (bet is %d)", t.name(p.PlayerID), p.Credit, p.Bet)
	case game.RoundEndedPayload:
		t.printRound(p)
	case game.GameEndedPayload:
		t.printGameEnd(p)
	case game.LobbyPayload:
		if ev.Type == string(game.EventLobbyClosed) {
			pterm.Error.Println("the host could not cover the bet, lobby closed")
		}
	}
}

func (t *table) printRound(p game.RoundEndedPayload) {
	data := pterm.TableData{{"Player", "Dice", "Hand", ""}}
	for _, r := range p.Results {
		mark := ""
		if slices.Contains(p.Winners, r.PlayerID) {
			mark = pterm.LightGreen(fmt.Sprintf("+%d", p.Payout))
		}
		data = append(data, []string{t.name(r.PlayerID), r.Dice.String(), strings.ReplaceAll(r.Score.Category.String(), "_", " "), mark})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func (t *table) printGameEnd(p game.GameEndedPayload) {
	names := make([]string, 0, len(p.Winners))
	for _, w := range p.Winners {
		names = append(names, pterm.LightCyan(t.name(w)))
	}
	body := pterm.Sprintfln("Rounds played: %d", p.Rounds)
	if len(names) == 0 {
		body += "No winner"
	} else {
		body += pterm.Sprintf("Winner(s): %s", strings.Join(names, ", "))
	}
	title := "|GAME OVER|"
	if p.Aborted {
		title = "|GAME ABORTED|"
	}
	pterm.DefaultBox.WithTitle(pterm.LightGreen(title)).WithTitleTopCenter().WithHorizontalPadding(4).Println(body)
}

func (t *table) printStandings() {
	data := pterm.TableData{{"Player", "Credit", "Games won"}}
	for _, id := range t.order {
		p, ok := t.mem.Player(id)
		if !ok {
			continue
		}
		data = append(data, []string{t.name(id), fmt.Sprint(p.Credit), fmt.Sprint(p.WinCounter)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
