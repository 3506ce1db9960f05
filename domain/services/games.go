package services

import (
	"fmt"
	"strconv"
	"strings"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"

	"github.com/shopspring/decimal"
)

// gameOutcome is what a single draw produced. A zero multiplier is a loss.
type gameOutcome struct {
	multiplier  decimal.Decimal
	push        bool
	description string
	detail      entities.GameDetail
}

func (o gameOutcome) won() bool {
	return !o.push && o.multiplier.IsPositive()
}

// game is one row of the engine's rule table
type game interface {
	kind() entities.GameKind
	// normalizeChoice returns the canonical choice or false when it is not allowed
	normalizeChoice(choice string) (string, bool)
	play(rng interfaces.RandomSource, choice string) gameOutcome
}

var (
	multiplierLoss    = decimal.Zero
	multiplierDouble  = decimal.NewFromInt(2)
	multiplierOneHalf = decimal.RequireFromString("1.5")
)

// payout returns floor(bet * multiplier)
func payout(bet int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(bet).Mul(multiplier).Floor().IntPart()
}

func defaultGames() map[entities.GameKind]game {
	games := []game{
		coinflipGame{},
		diceGame{},
		slotsGame{},
		rouletteGame{},
		wheelGame{},
		rpsGame{},
	}
	m := make(map[entities.GameKind]game, len(games))
	for _, g := range games {
		m[g.kind()] = g
	}
	return m
}

type coinflipGame struct{}

func (coinflipGame) kind() entities.GameKind { return entities.GameCoinflip }

func (coinflipGame) normalizeChoice(choice string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "heads", "head", "h":
		return "heads", true
	case "tails", "tail", "t":
		return "tails", true
	}
	return "", false
}

func (coinflipGame) play(rng interfaces.RandomSource, choice string) gameOutcome {
	side := "heads"
	if rng.Intn(2) == 1 {
		side = "tails"
	}
	out := gameOutcome{
		multiplier:  multiplierLoss,
		description: "coin landed on " + side,
		detail:      entities.GameDetail{CoinSide: side},
	}
	if side == choice {
		out.multiplier = multiplierDouble
	}
	return out
}

type diceGame struct{}

func (diceGame) kind() entities.GameKind { return entities.GameDice }

func (diceGame) normalizeChoice(string) (string, bool) { return "", true }

func (diceGame) play(rng interfaces.RandomSource, _ string) gameOutcome {
	user := rng.Intn(6) + 1
	house := rng.Intn(6) + 1
	out := gameOutcome{
		multiplier:  multiplierLoss,
		description: fmt.Sprintf("rolled %d vs house %d", user, house),
		detail:      entities.GameDetail{UserRoll: user, HouseRoll: house},
	}
	switch {
	case user > house:
		out.multiplier = multiplierOneHalf
	case user == house:
		out.push = true
	}
	return out
}

var slotSymbols = []string{"🍒", "🍋", "🍊", "🍇", "🔔", "⭐", "💎"}

type slotsGame struct{}

func (slotsGame) kind() entities.GameKind { return entities.GameSlots }

func (slotsGame) normalizeChoice(string) (string, bool) { return "", true }

func (slotsGame) play(rng interfaces.RandomSource, _ string) gameOutcome {
	reels := make([]int, 3)
	labels := make([]string, 3)
	for i := range reels {
		reels[i] = rng.Intn(len(slotSymbols))
		labels[i] = slotSymbols[reels[i]]
	}
	out := gameOutcome{
		multiplier:  multiplierLoss,
		description: strings.Join(labels, " "),
		detail:      entities.GameDetail{Reels: labels},
	}
	switch {
	case reels[0] == reels[1] && reels[1] == reels[2]:
		out.multiplier = decimal.NewFromInt(10)
	case reels[0] == reels[1] || reels[1] == reels[2] || reels[0] == reels[2]:
		out.multiplier = multiplierDouble
	}
	return out
}

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// RouletteColor returns green, red or black for a pocket
func RouletteColor(n int) string {
	switch {
	case n == 0:
		return "green"
	case redNumbers[n]:
		return "red"
	default:
		return "black"
	}
}

type rouletteGame struct{}

func (rouletteGame) kind() entities.GameKind { return entities.GameRoulette }

func (rouletteGame) normalizeChoice(choice string) (string, bool) {
	choice = strings.ToLower(strings.TrimSpace(choice))
	switch choice {
	case "red", "black", "even", "odd", "green":
		return choice, true
	}
	n, err := strconv.Atoi(choice)
	if err != nil || n < 0 || n > 36 {
		return "", false
	}
	return strconv.Itoa(n), true
}

func (rouletteGame) play(rng interfaces.RandomSource, choice string) gameOutcome {
	n := rng.Intn(37)
	color := RouletteColor(n)
	out := gameOutcome{
		multiplier:  multiplierLoss,
		description: fmt.Sprintf("ball landed on %d %s", n, color),
		detail:      entities.GameDetail{Number: &n, Color: color},
	}

	var won, straight bool
	switch choice {
	case "red", "black":
		won = color == choice
	case "even":
		won = n != 0 && n%2 == 0
	case "odd":
		won = n%2 == 1
	case "green":
		won, straight = n == 0, true
	default:
		won, straight = choice == strconv.Itoa(n), true
	}

	if won {
		out.multiplier = multiplierDouble
		if straight {
			out.multiplier = decimal.NewFromInt(35)
		}
	}
	return out
}

type wheelSegment struct {
	label      string
	multiplier decimal.Decimal
}

var wheelSegments = []wheelSegment{
	{"2x", multiplierDouble},
	{"1.5x", multiplierOneHalf},
	{"3x", decimal.NewFromInt(3)},
	{"BUST", multiplierLoss},
	{"5x", decimal.NewFromInt(5)},
	{"1.5x", multiplierOneHalf},
	{"BUST", multiplierLoss},
	{"2x", multiplierDouble},
}

type wheelGame struct{}

func (wheelGame) kind() entities.GameKind { return entities.GameWheel }

func (wheelGame) normalizeChoice(string) (string, bool) { return "", true }

func (wheelGame) play(rng interfaces.RandomSource, _ string) gameOutcome {
	seg := wheelSegments[rng.Intn(len(wheelSegments))]
	return gameOutcome{
		multiplier:  seg.multiplier,
		description: "wheel stopped on " + seg.label,
		detail:      entities.GameDetail{Segment: seg.label},
	}
}

var rpsMoves = []string{"rock", "paper", "scissors"}

// rpsBeats maps each move to the move it defeats
var rpsBeats = map[string]string{
	"rock":     "scissors",
	"paper":    "rock",
	"scissors": "paper",
}

type rpsGame struct{}

func (rpsGame) kind() entities.GameKind { return entities.GameRPS }

func (rpsGame) normalizeChoice(choice string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "rock", "r":
		return "rock", true
	case "paper", "p":
		return "paper", true
	case "scissors", "scissor", "s":
		return "scissors", true
	}
	return "", false
}

func (rpsGame) play(rng interfaces.RandomSource, choice string) gameOutcome {
	house := rpsMoves[rng.Intn(len(rpsMoves))]
	out := gameOutcome{
		multiplier:  multiplierLoss,
		description: fmt.Sprintf("%s vs house %s", choice, house),
		detail:      entities.GameDetail{HousePick: house},
	}
	switch {
	case house == choice:
		out.push = true
	case rpsBeats[choice] == house:
		out.multiplier = multiplierDouble
	}
	return out
}
