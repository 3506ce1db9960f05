package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pointsbank/config"
	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/domain/utils"
	"pointsbank/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 10
	maxListLimit     = 50
	allInKeyword     = "all"
)

// DefaultCommandPrefix marks a chat line as a command
const DefaultCommandPrefix = "!"

// CommandResult carries the record produced by one command.
// At most one record field is set. Failure repeats the record's tag; argument
// errors caught by the router carry a tag and no record.
type CommandResult struct {
	Command     string                    `json:"command"`
	Failure     entities.Failure          `json:"failure,omitempty"`
	Account     *entities.Account         `json:"account,omitempty"`
	Leaderboard []*entities.Account       `json:"leaderboard,omitempty"`
	History     []*entities.Transaction   `json:"history,omitempty"`
	Game        *entities.GameResult      `json:"game,omitempty"`
	Blackjack   *entities.BlackjackResult `json:"blackjack,omitempty"`
	Duel        *entities.DuelResult      `json:"duel,omitempty"`
	Duels       []*entities.PendingDuel   `json:"duels,omitempty"`
	Purchase    *entities.PurchaseResult  `json:"purchase,omitempty"`
	Grant       *entities.Transaction     `json:"grant,omitempty"`
	Reset       bool                      `json:"reset,omitempty"`
}

// Success reports whether the command ran without a failure tag
func (r *CommandResult) Success() bool {
	return r.Failure == entities.FailureNone
}

func failed(command string, failure entities.Failure) *CommandResult {
	return &CommandResult{Command: command, Failure: failure}
}

// LeaderboardReader serves ranked accounts from outside the ledger
type LeaderboardReader interface {
	Top(ctx context.Context, limit int) ([]*entities.Account, error)
}

type commandHandler func(ctx context.Context, username string, args []string) (*CommandResult, error)

// CommandRouter turns chat command lines into service calls
type CommandRouter struct {
	executor    interfaces.LedgerExecutor
	games       interfaces.GameService
	blackjack   interfaces.BlackjackService
	duels       interfaces.DuelService
	marketplace interfaces.MarketplaceService
	cfg         *config.Config
	metrics     *observability.MetricsProvider
	leaderboard LeaderboardReader
	handlers    map[string]commandHandler
	adminOnly   map[string]bool
}

// NewCommandRouter creates a router. metrics may be nil.
func NewCommandRouter(
	executor interfaces.LedgerExecutor,
	games interfaces.GameService,
	blackjack interfaces.BlackjackService,
	duels interfaces.DuelService,
	marketplace interfaces.MarketplaceService,
	cfg *config.Config,
	metrics *observability.MetricsProvider,
) *CommandRouter {
	r := &CommandRouter{
		executor:    executor,
		games:       games,
		blackjack:   blackjack,
		duels:       duels,
		marketplace: marketplace,
		cfg:         cfg,
		metrics:     metrics,
	}

	r.handlers = map[string]commandHandler{
		"balance":     r.handleBalance,
		"leaderboard": r.handleLeaderboard,
		"history":     r.handleHistory,
		"coinflip":    r.gameHandler(entities.GameCoinflip, true),
		"flip":        r.gameHandler(entities.GameCoinflip, true),
		"dice":        r.gameHandler(entities.GameDice, false),
		"slots":       r.gameHandler(entities.GameSlots, false),
		"roulette":    r.gameHandler(entities.GameRoulette, true),
		"wheel":       r.gameHandler(entities.GameWheel, false),
		"rps":         r.gameHandler(entities.GameRPS, true),
		"blackjack":   r.handleBlackjack,
		"bj":          r.handleBlackjack,
		"hit":         r.handleHit,
		"stand":       r.handleStand,
		"duel":        r.handleDuel,
		"accept":      r.handleAccept,
		"decline":     r.handleDecline,
		"duels":       r.handleDuels,
		"buy":         r.handleBuy,
		"sponsor":     r.handleSponsor,
		"give":        r.handleGive,
		"reset":       r.handleReset,
	}
	r.adminOnly = map[string]bool{
		"give":  true,
		"reset": true,
	}
	return r
}

// UseLeaderboard serves the leaderboard command from reader, falling back
// to the ledger when it fails
func (r *CommandRouter) UseLeaderboard(reader LeaderboardReader) {
	r.leaderboard = reader
}

// Commands lists every command name the router accepts, aliases included
func (r *CommandRouter) Commands() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Tokenize splits a chat line into a lower-cased command and its arguments.
// The command prefix is optional.
func Tokenize(line string) (string, []string) {
	return TokenizeWithPrefix(line, DefaultCommandPrefix)
}

// TokenizeWithPrefix is Tokenize with a configurable command prefix
func TokenizeWithPrefix(line, prefix string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	command := strings.ToLower(strings.TrimPrefix(fields[0], prefix))
	return command, fields[1:]
}

// Handle tokenizes and dispatches one chat line
func (r *CommandRouter) Handle(ctx context.Context, username, line string) (*CommandResult, error) {
	prefix := r.cfg.CommandPrefix
	if prefix == "" {
		prefix = DefaultCommandPrefix
	}
	command, args := TokenizeWithPrefix(line, prefix)
	return r.Dispatch(ctx, username, command, args)
}

// Dispatch runs a command for username. Expected rejections come back as a
// failure tag; only storage failures are returned as errors.
func (r *CommandRouter) Dispatch(ctx context.Context, username, command string, args []string) (*CommandResult, error) {
	username = entities.NormalizeUsername(username)
	command = strings.ToLower(command)

	result, err := r.dispatch(ctx, username, command, args)
	if err != nil {
		log.WithFields(log.Fields{
			"username": username,
			"command":  command,
		}).WithError(err).Error("Command failed")
		return nil, err
	}

	r.metrics.RecordCommand(command, string(result.Failure))
	log.WithFields(log.Fields{
		"username": username,
		"command":  command,
		"failure":  result.Failure,
	}).Debug("Command dispatched")
	return result, nil
}

func (r *CommandRouter) dispatch(ctx context.Context, username, command string, args []string) (*CommandResult, error) {
	handler, ok := r.handlers[command]
	if !ok || username == "" {
		return failed(command, entities.FailureUnknownCommand), nil
	}
	if r.adminOnly[command] && !r.cfg.IsAdmin(username) {
		return failed(command, entities.FailureNotAuthorized), nil
	}

	result, err := handler(ctx, username, args)
	if err != nil {
		return nil, err
	}
	result.Command = command
	return result, nil
}

func (r *CommandRouter) handleBalance(ctx context.Context, username string, _ []string) (*CommandResult, error) {
	var account *entities.Account
	err := r.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		var err error
		account, err = ledger.GetBalance(ctx, username)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if account == nil {
		account = &entities.Account{Username: username}
	}
	return &CommandResult{Account: account}, nil
}

func (r *CommandRouter) handleLeaderboard(ctx context.Context, _ string, args []string) (*CommandResult, error) {
	limit, ok := parseLimit(args)
	if !ok {
		return failed("", entities.FailureInvalidAmount), nil
	}

	if r.leaderboard != nil {
		accounts, err := r.leaderboard.Top(ctx, limit)
		if err == nil {
			return &CommandResult{Leaderboard: accounts}, nil
		}
		log.WithError(err).Warn("Leaderboard projection unavailable, reading ledger")
	}

	var accounts []*entities.Account
	err := r.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		var err error
		accounts, err = ledger.GetLeaderboard(ctx, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	if accounts == nil {
		accounts = []*entities.Account{}
	}
	return &CommandResult{Leaderboard: accounts}, nil
}

func (r *CommandRouter) handleHistory(ctx context.Context, username string, args []string) (*CommandResult, error) {
	limit, ok := parseLimit(args)
	if !ok {
		return failed("", entities.FailureInvalidAmount), nil
	}

	var history []*entities.Transaction
	err := r.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		var err error
		history, err = ledger.GetTransactions(ctx, username, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if history == nil {
		history = []*entities.Transaction{}
	}
	return &CommandResult{History: history}, nil
}

// gameHandler builds the handler for a single-shot game. A missing choice is
// passed through empty so the engine rejects it.
func (r *CommandRouter) gameHandler(game entities.GameKind, takesChoice bool) commandHandler {
	return func(ctx context.Context, username string, args []string) (*CommandResult, error) {
		if len(args) == 0 {
			return failed("", entities.FailureInvalidAmount), nil
		}
		bet, failure, err := r.resolveBet(ctx, username, args[0])
		if err != nil {
			return nil, err
		}
		if failure != entities.FailureNone {
			return failed("", failure), nil
		}

		choice := ""
		if takesChoice && len(args) > 1 {
			choice = args[1]
		}
		result, err := r.games.Play(ctx, entities.GameRequest{
			Username: username,
			Game:     game,
			Bet:      bet,
			Choice:   choice,
		})
		if err != nil {
			return nil, err
		}
		return &CommandResult{Game: result, Failure: result.Failure}, nil
	}
}

func (r *CommandRouter) handleBlackjack(ctx context.Context, username string, args []string) (*CommandResult, error) {
	if len(args) == 0 {
		return failed("", entities.FailureInvalidAmount), nil
	}
	bet, failure, err := r.resolveBet(ctx, username, args[0])
	if err != nil {
		return nil, err
	}
	if failure != entities.FailureNone {
		return failed("", failure), nil
	}
	return blackjackResult(r.blackjack.Start(ctx, username, bet))
}

func (r *CommandRouter) handleHit(ctx context.Context, username string, _ []string) (*CommandResult, error) {
	return blackjackResult(r.blackjack.Hit(ctx, username))
}

func (r *CommandRouter) handleStand(ctx context.Context, username string, _ []string) (*CommandResult, error) {
	return blackjackResult(r.blackjack.Stand(ctx, username))
}

func blackjackResult(result *entities.BlackjackResult, err error) (*CommandResult, error) {
	if err != nil {
		return nil, err
	}
	return &CommandResult{Blackjack: result, Failure: result.Failure}, nil
}

func (r *CommandRouter) handleDuel(ctx context.Context, username string, args []string) (*CommandResult, error) {
	if len(args) < 2 {
		return failed("", entities.FailureInvalidAmount), nil
	}
	target := args[0]

	all := strings.EqualFold(args[1], allInKeyword)
	var stake int64
	if !all {
		var err error
		stake, err = utils.ParseShortNotation(args[1])
		if err != nil || stake <= 0 {
			return failed("", entities.FailureInvalidAmount), nil
		}
	}
	return duelResult(r.duels.Challenge(ctx, username, target, stake, all))
}

func (r *CommandRouter) handleAccept(ctx context.Context, username string, args []string) (*CommandResult, error) {
	return duelResult(r.duels.Accept(ctx, username, optionalArg(args)))
}

func (r *CommandRouter) handleDecline(ctx context.Context, username string, args []string) (*CommandResult, error) {
	return duelResult(r.duels.Decline(ctx, username, optionalArg(args)))
}

func duelResult(result *entities.DuelResult, err error) (*CommandResult, error) {
	if err != nil {
		return nil, err
	}
	return &CommandResult{Duel: result, Failure: result.Failure}, nil
}

func (r *CommandRouter) handleDuels(_ context.Context, username string, _ []string) (*CommandResult, error) {
	pending := r.duels.Pending(username)
	if pending == nil {
		pending = []*entities.PendingDuel{}
	}
	return &CommandResult{Duels: pending}, nil
}

func (r *CommandRouter) handleBuy(ctx context.Context, username string, args []string) (*CommandResult, error) {
	if len(args) == 0 {
		return failed("", entities.FailureUnknownAction), nil
	}
	return purchaseResult(r.marketplace.Buy(ctx, username, args[0]))
}

func (r *CommandRouter) handleSponsor(ctx context.Context, username string, args []string) (*CommandResult, error) {
	if len(args) < 2 {
		return failed("", entities.FailureInvalidChoice), nil
	}
	return purchaseResult(r.marketplace.SponsorDuel(ctx, username, args[0], args[1]))
}

func purchaseResult(result *entities.PurchaseResult, err error) (*CommandResult, error) {
	if err != nil {
		return nil, err
	}
	return &CommandResult{Purchase: result, Failure: result.Failure}, nil
}

func (r *CommandRouter) handleGive(ctx context.Context, username string, args []string) (*CommandResult, error) {
	if len(args) < 2 {
		return failed("", entities.FailureInvalidAmount), nil
	}
	recipient := entities.NormalizeUsername(args[0])
	amount, err := utils.ParseShortNotation(args[1])
	if err != nil || amount <= 0 || recipient == "" {
		return failed("", entities.FailureInvalidAmount), nil
	}

	var txn *entities.Transaction
	err = r.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		var err error
		txn, err = ledger.Deposit(ctx, recipient, amount, "grant from "+username)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant points: %w", err)
	}

	log.WithFields(log.Fields{
		"admin":     username,
		"recipient": recipient,
		"amount":    amount,
	}).Info("Admin granted points")
	return &CommandResult{Grant: txn}, nil
}

func (r *CommandRouter) handleReset(ctx context.Context, username string, _ []string) (*CommandResult, error) {
	err := r.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		return ledger.ResetEconomy(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset economy: %w", err)
	}

	log.WithField("admin", username).Warn("Economy reset")
	return &CommandResult{Reset: true}, nil
}

// resolveBet parses a bet argument. "all" stakes the whole current balance.
func (r *CommandRouter) resolveBet(ctx context.Context, username, arg string) (int64, entities.Failure, error) {
	if !strings.EqualFold(arg, allInKeyword) {
		bet, err := utils.ParseShortNotation(arg)
		if err != nil || bet <= 0 {
			return 0, entities.FailureInvalidAmount, nil
		}
		return bet, entities.FailureNone, nil
	}

	var balance int64
	err := r.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		account, err := ledger.GetBalance(ctx, username)
		if err != nil {
			return err
		}
		if account != nil {
			balance = account.Balance
		}
		return nil
	})
	if err != nil {
		return 0, entities.FailureNone, fmt.Errorf("failed to read balance for all-in: %w", err)
	}
	if balance <= 0 {
		return 0, entities.FailureInsufficientFunds, nil
	}
	return balance, entities.FailureNone, nil
}

func parseLimit(args []string) (int, bool) {
	if len(args) == 0 {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
