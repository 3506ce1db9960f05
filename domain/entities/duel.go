package entities

import "time"

// DuelKey identifies a pending duel by its ordered pair of participants
type DuelKey struct {
	Challenger string
	Target     string
}

// PendingDuel is an open challenge holding the challenger's stake in escrow
type PendingDuel struct {
	Challenger      string
	Target          string
	Bet             int64
	ChallengerStake int64
	TargetStake     int64
	SponsoredPot    int64
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Key returns the store key for the duel
func (d *PendingDuel) Key() DuelKey {
	return DuelKey{Challenger: d.Challenger, Target: d.Target}
}

// IsSponsored reports whether the pot was funded by a marketplace purchase
func (d *PendingDuel) IsSponsored() bool {
	return d.SponsoredPot > 0
}

// IsExpired reports whether the duel can no longer be accepted
func (d *PendingDuel) IsExpired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Pot is the total credited to the winner
func (d *PendingDuel) Pot() int64 {
	return d.ChallengerStake + d.TargetStake + d.SponsoredPot
}

// Clone returns a copy of the duel
func (d *PendingDuel) Clone() *PendingDuel {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// DuelOutcome describes how a duel command ended
type DuelOutcome string

const (
	DuelChallenged DuelOutcome = "challenged"
	DuelResolved   DuelOutcome = "resolved"
	DuelDeclined   DuelOutcome = "declined"
	DuelRefunded   DuelOutcome = "refunded"
)

// DuelResult is returned for every duel command
type DuelResult struct {
	Success    bool        `json:"success"`
	Failure    Failure     `json:"failure,omitempty"`
	Outcome    DuelOutcome `json:"outcome,omitempty"`
	Challenger string      `json:"challenger"`
	Target     string      `json:"target"`
	Stake      int64       `json:"stake"`
	Pot        int64       `json:"pot"`
	Sponsored  bool        `json:"sponsored"`
	Winner     string      `json:"winner,omitempty"`
	Loser      string      `json:"loser,omitempty"`
	Refunded   int64       `json:"refunded"`
	NewBalance int64       `json:"newBalance"`
	ExpiresAt  time.Time   `json:"expiresAt"`
}

// NewDuelFailure builds a rejected result
func NewDuelFailure(challenger, target string, failure Failure) *DuelResult {
	return &DuelResult{Challenger: challenger, Target: target, Failure: failure}
}

// Sponsorship is the marketplace payment that funds a sponsored duel.
// It is charged only once the duel is accepted for creation.
type Sponsorship struct {
	Buyer       string
	Cost        int64
	Description string
}
