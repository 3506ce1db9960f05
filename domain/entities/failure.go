package entities

import "errors"

// Failure tags an expected, recoverable rejection of a command.
// The zero value means the operation succeeded.
type Failure string

const (
	FailureNone                 Failure = ""
	FailureInsufficientFunds    Failure = "insufficient_funds"
	FailureBelowMinimumBet      Failure = "below_minimum_bet"
	FailureInvalidChoice        Failure = "invalid_choice"
	FailureNoActiveSession      Failure = "no_active_session"
	FailureSessionAlreadyActive Failure = "session_already_active"
	FailureSessionExpired       Failure = "session_expired"
	FailureUnknownGame          Failure = "unknown_game"
	FailureSelfChallenge        Failure = "self_challenge_not_allowed"
	FailureNoPendingDuel        Failure = "no_pending_duel"
	FailureDuelExpired          Failure = "duel_expired"
	FailureDuelAlreadyPending   Failure = "duel_already_pending"
	FailureUnknownAction        Failure = "unknown_action"
	FailureUnknownCommand       Failure = "unknown_command"
	FailureNotAuthorized        Failure = "not_authorized"
	FailureInvalidAmount        Failure = "invalid_amount"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBelowMinimumBet      = errors.New("bet is below the minimum")
	ErrInvalidChoice        = errors.New("invalid choice")
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionAlreadyActive = errors.New("session already active")
	ErrSessionExpired       = errors.New("session expired")
	ErrUnknownGame          = errors.New("unknown game")
	ErrSelfChallenge        = errors.New("cannot challenge yourself")
	ErrNoPendingDuel        = errors.New("no pending duel")
	ErrDuelExpired          = errors.New("duel expired")
	ErrDuelAlreadyPending   = errors.New("a duel with this user is already pending")
	ErrUnknownAction        = errors.New("unknown action")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrInvalidAmount        = errors.New("invalid amount")
)

var failureErrors = map[Failure]error{
	FailureInsufficientFunds:    ErrInsufficientFunds,
	FailureBelowMinimumBet:      ErrBelowMinimumBet,
	FailureInvalidChoice:        ErrInvalidChoice,
	FailureNoActiveSession:      ErrNoActiveSession,
	FailureSessionAlreadyActive: ErrSessionAlreadyActive,
	FailureSessionExpired:       ErrSessionExpired,
	FailureUnknownGame:          ErrUnknownGame,
	FailureSelfChallenge:        ErrSelfChallenge,
	FailureNoPendingDuel:        ErrNoPendingDuel,
	FailureDuelExpired:          ErrDuelExpired,
	FailureDuelAlreadyPending:   ErrDuelAlreadyPending,
	FailureUnknownAction:        ErrUnknownAction,
	FailureUnknownCommand:       ErrUnknownCommand,
	FailureNotAuthorized:        ErrNotAuthorized,
	FailureInvalidAmount:        ErrInvalidAmount,
}

// Err returns the sentinel error for the failure, or nil for FailureNone
func (f Failure) Err() error {
	if f == FailureNone {
		return nil
	}
	if err, ok := failureErrors[f]; ok {
		return err
	}
	return errors.New(string(f))
}

// FailureFromError maps a sentinel error back to its tag.
// Errors that are not sentinels map to FailureNone.
func FailureFromError(err error) Failure {
	if err == nil {
		return FailureNone
	}
	for f, sentinel := range failureErrors {
		if errors.Is(err, sentinel) {
			return f
		}
	}
	return FailureNone
}
