package debug

import (
	"fmt"
	"strings"

	"pointsbank/application"
	"pointsbank/domain/entities"
	"pointsbank/domain/utils"

	"github.com/pterm/pterm"
)

// RenderResult formats a command result for the console
func RenderResult(r *application.CommandResult) string {
	if r.Failure != entities.FailureNone && !hasRecord(r) {
		return pterm.LightRed("✗ " + string(r.Failure))
	}

	var body string
	switch {
	case r.Account != nil:
		body = fmt.Sprintf("%s has %s points", r.Account.Username, points(r.Account.Balance))
	case r.Leaderboard != nil:
		body = renderLeaderboard(r.Leaderboard)
	case r.History != nil:
		body = renderHistory(r.History)
	case r.Game != nil:
		body = renderGame(r.Game)
	case r.Blackjack != nil:
		body = renderBlackjack(r.Blackjack)
	case r.Duel != nil:
		body = renderDuel(r.Duel)
	case r.Duels != nil:
		body = renderPendingDuels(r.Duels)
	case r.Purchase != nil:
		body = renderPurchase(r.Purchase)
	case r.Grant != nil:
		body = fmt.Sprintf("Granted %s to %s (balance %s)", points(r.Grant.Amount), r.Grant.Username, points(r.Grant.BalanceAfter))
	case r.Reset:
		body = "Economy reset"
	}

	if r.Failure != entities.FailureNone {
		return pterm.LightRed("✗ "+string(r.Failure)) + "\n" + body
	}
	return body
}

func hasRecord(r *application.CommandResult) bool {
	return r.Account != nil || r.Leaderboard != nil || r.History != nil || r.Game != nil ||
		r.Blackjack != nil || r.Duel != nil || r.Duels != nil || r.Purchase != nil ||
		r.Grant != nil || r.Reset
}

func points(v int64) string {
	return utils.FormatShortNotation(v)
}

func renderLeaderboard(accounts []*entities.Account) string {
	if len(accounts) == 0 {
		return "Nobody has any points yet"
	}
	var b strings.Builder
	for i, a := range accounts {
		fmt.Fprintf(&b, "%2d. %-20s %s\n", i+1, a.Username, points(a.Balance))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHistory(txns []*entities.Transaction) string {
	if len(txns) == 0 {
		return "No transactions"
	}
	var b strings.Builder
	for _, t := range txns {
		sign := "-"
		if t.Type.IsCredit() {
			sign = "+"
		}
		fmt.Fprintf(&b, "%s  %-8s %s%-8s -> %-8s %s\n",
			t.Timestamp.Format("01-02 15:04"), t.Type, sign, points(t.Amount), points(t.BalanceAfter), t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderGame(g *entities.GameResult) string {
	if !g.Success {
		return fmt.Sprintf("%s %s rejected", g.Game, points(g.Bet))
	}
	outcome := pterm.LightRed("lost " + points(g.Bet))
	switch {
	case g.Push:
		outcome = pterm.LightYellow("push")
	case g.Won:
		outcome = pterm.LightGreen("won " + points(g.Winnings))
	}
	return fmt.Sprintf("%s: %s, %s (balance %s)", g.Game, g.Outcome, outcome, points(g.NewBalance))
}

func renderCards(cards []int) string {
	labels := make([]string, len(cards))
	for i, c := range cards {
		labels[i] = entities.CardLabel(c)
	}
	return strings.Join(labels, " ")
}

func renderBlackjack(r *entities.BlackjackResult) string {
	if !r.Success {
		return "No hand"
	}
	lines := []string{
		fmt.Sprintf("You:    %s (%d)", renderCards(r.UserCards), r.UserTotal),
		fmt.Sprintf("Dealer: %s (%d)", renderCards(r.DealerCards), r.DealerTotal),
	}
	if r.Finished {
		lines = append(lines, fmt.Sprintf("%s, winnings %s (balance %s)", r.Outcome, points(r.Winnings), points(r.NewBalance)))
	} else {
		lines = append(lines, "hit or stand?")
	}
	return strings.Join(lines, "\n")
}

func renderDuel(d *entities.DuelResult) string {
	if !d.Success {
		return fmt.Sprintf("duel %s vs %s", d.Challenger, d.Target)
	}
	switch d.Outcome {
	case entities.DuelChallenged:
		return fmt.Sprintf("%s challenged %s for a pot of %s, open until %s",
			d.Challenger, d.Target, points(d.Pot), d.ExpiresAt.Format("15:04:05"))
	case entities.DuelResolved:
		return fmt.Sprintf("%s beat %s and took %s", d.Winner, d.Loser, points(d.Pot))
	default:
		return fmt.Sprintf("duel %s: %s refunded to %s", d.Outcome, points(d.Refunded), d.Challenger)
	}
}

func renderPendingDuels(duels []*entities.PendingDuel) string {
	if len(duels) == 0 {
		return "No pending duels"
	}
	var b strings.Builder
	for _, d := range duels {
		fmt.Fprintf(&b, "%s -> %s  pot %s  expires %s\n", d.Challenger, d.Target, points(d.Pot()), d.ExpiresAt.Format("15:04:05"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderPurchase(p *entities.PurchaseResult) string {
	if !p.Success {
		return fmt.Sprintf("%s not purchased", p.Action)
	}
	out := fmt.Sprintf("Bought %s for %s (balance %s)", p.Action, points(p.Cost), points(p.NewBalance))
	if p.Duel != nil {
		out += "\n" + renderDuel(p.Duel)
	}
	return out
}
