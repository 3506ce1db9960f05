package cmd

import (
	"context"
	"fmt"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/domain/random"
	"pointsbank/domain/services"
	"pointsbank/domain/utils"
	"pointsbank/infrastructure"
	"pointsbank/infrastructure/snapshot"

	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
)

const simulationUser = "simulator"

// defaultChoices picks a legal choice for games that need one
var defaultChoices = map[entities.GameKind]string{
	entities.GameCoinflip: "heads",
	entities.GameRoulette: "red",
	entities.GameRPS:      "rock",
}

// SimulationReport summarizes many rounds of one game at a fixed bet
type SimulationReport struct {
	Game     entities.GameKind
	Choice   string
	Rounds   int
	Wins     int
	Pushes   int
	Losses   int
	Wagered  int64
	Returned int64
}

// WinRate is the share of rounds that paid out
func (r *SimulationReport) WinRate() float64 {
	if r.Rounds == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Rounds)
}

// ReturnToPlayer is the fraction of wagered points paid back, pushes included
func (r *SimulationReport) ReturnToPlayer() float64 {
	if r.Wagered == 0 {
		return 0
	}
	return float64(r.Returned) / float64(r.Wagered)
}

// Simulate plays rounds of a game through the real engine against a throwaway
// in-memory ledger. The same seed always produces the same report.
func Simulate(ctx context.Context, game entities.GameKind, choice string, rounds int, bet, seed int64) (*SimulationReport, error) {
	if rounds <= 0 {
		return nil, fmt.Errorf("rounds must be positive")
	}
	if choice == "" {
		choice = defaultChoices[game]
	}

	store := snapshot.NewMemory(nil)
	executor := services.NewLedgerExecutor(store, utils.SystemClock{})
	prices := entities.PriceTable{MinBets: entities.DefaultMinBets()}
	engine := services.NewGameService(executor, random.New(seed), prices, infrastructure.NewNoopEventPublisher())

	// A bankroll of one bet per round can never run dry.
	err := executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		_, err := ledger.Deposit(ctx, simulationUser, bet*int64(rounds), "simulation bankroll")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fund simulation: %w", err)
	}

	report := &SimulationReport{Game: game, Choice: choice, Rounds: rounds}
	for i := 0; i < rounds; i++ {
		result, err := engine.Play(ctx, entities.GameRequest{
			Username: simulationUser,
			Game:     game,
			Bet:      bet,
			Choice:   choice,
		})
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, fmt.Errorf("round %d rejected: %w", i+1, result.Failure.Err())
		}

		report.Wagered += bet
		switch {
		case result.Push:
			report.Pushes++
			report.Returned += bet
		case result.Won:
			report.Wins++
			report.Returned += result.Winnings
		default:
			report.Losses++
		}
	}
	return report, nil
}

// RunSimulation prints a report for every game, or for the one named
func RunSimulation(ctx context.Context, only entities.GameKind, rounds int, bet, seed int64) error {
	// The engine logs each settlement at info.
	previous := log.GetLevel()
	log.SetLevel(log.WarnLevel)
	defer log.SetLevel(previous)

	kinds := []entities.GameKind{only}
	if only == "" {
		kinds = []entities.GameKind{
			entities.GameCoinflip, entities.GameDice, entities.GameSlots,
			entities.GameRoulette, entities.GameWheel, entities.GameRPS,
		}
	}

	data := pterm.TableData{{"Game", "Choice", "Rounds", "Win rate", "Push rate", "Return to player"}}
	for _, kind := range kinds {
		report, err := Simulate(ctx, kind, "", rounds, bet, seed)
		if err != nil {
			return fmt.Errorf("failed to simulate %s: %w", kind, err)
		}
		data = append(data, []string{
			string(kind),
			report.Choice,
			fmt.Sprintf("%d", report.Rounds),
			fmt.Sprintf("%.2f%%", report.WinRate()*100),
			fmt.Sprintf("%.2f%%", float64(report.Pushes)/float64(report.Rounds)*100),
			fmt.Sprintf("%.2f%%", report.ReturnToPlayer()*100),
		})
	}

	pterm.DefaultHeader.Printfln("Game simulation: %d rounds at %s, seed %d", rounds, utils.FormatShortNotation(bet), seed)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
