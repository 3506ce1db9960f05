package entities

import (
	"strconv"
	"time"
)

// BlackjackOutcome describes how a blackjack step ended
type BlackjackOutcome string

const (
	BlackjackInProgress    BlackjackOutcome = "in_progress"
	BlackjackNaturalPush   BlackjackOutcome = "natural_push"
	BlackjackNaturalWin    BlackjackOutcome = "natural_win"
	BlackjackDealerNatural BlackjackOutcome = "dealer_natural"
	BlackjackBust          BlackjackOutcome = "bust"
	BlackjackWin           BlackjackOutcome = "win"
	BlackjackLoss          BlackjackOutcome = "loss"
	BlackjackPush          BlackjackOutcome = "push"
	BlackjackExpired       BlackjackOutcome = "expired"
)

// BlackjackExpiryPolicy decides what happens to the bet of an abandoned session
type BlackjackExpiryPolicy string

const (
	BlackjackExpiryForfeit BlackjackExpiryPolicy = "forfeit"
	BlackjackExpiryRefund  BlackjackExpiryPolicy = "refund"
)

// BlackjackSession is an open hand waiting for hit or stand
type BlackjackSession struct {
	Username     string
	Bet          int64
	UserCards    []int
	DealerCards  []int
	IsAllIn      bool
	StartedAt    time.Time
	LastActionAt time.Time
}

// Clone returns a deep copy of the session
func (s *BlackjackSession) Clone() *BlackjackSession {
	if s == nil {
		return nil
	}
	c := *s
	c.UserCards = append([]int(nil), s.UserCards...)
	c.DealerCards = append([]int(nil), s.DealerCards...)
	return &c
}

// IdleSince reports whether the session has seen no action for longer than timeout
func (s *BlackjackSession) IdleSince(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActionAt) > timeout
}

// CardValue returns the blackjack value of a card rank 1-13, aces counted as 1
func CardValue(card int) int {
	if card > 10 {
		return 10
	}
	return card
}

// HandValue totals a hand, counting one ace as 11 when that does not bust
func HandValue(cards []int) int {
	total := 0
	aces := 0
	for _, c := range cards {
		total += CardValue(c)
		if c == 1 {
			aces++
		}
	}
	if aces > 0 && total+10 <= 21 {
		total += 10
	}
	return total
}

// IsNatural reports a two-card 21
func IsNatural(cards []int) bool {
	return len(cards) == 2 && HandValue(cards) == 21
}

// CardLabel renders a rank as A, 2-10, J, Q or K
func CardLabel(card int) string {
	switch card {
	case 1:
		return "A"
	case 11:
		return "J"
	case 12:
		return "Q"
	case 13:
		return "K"
	default:
		return strconv.Itoa(card)
	}
}

// BlackjackResult is returned for start, hit, stand and sweep
type BlackjackResult struct {
	Success     bool             `json:"success"`
	Failure     Failure          `json:"failure,omitempty"`
	Username    string           `json:"username"`
	Outcome     BlackjackOutcome `json:"outcome,omitempty"`
	Bet         int64            `json:"bet"`
	UserCards   []int            `json:"userCards,omitempty"`
	DealerCards []int            `json:"dealerCards,omitempty"`
	UserTotal   int              `json:"userTotal"`
	DealerTotal int              `json:"dealerTotal"`
	Winnings    int64            `json:"winnings"`
	NewBalance  int64            `json:"newBalance"`
	IsAllIn     bool             `json:"isAllIn"`
	Finished    bool             `json:"finished"`
}

// NewBlackjackFailure builds a rejected result
func NewBlackjackFailure(username string, failure Failure) *BlackjackResult {
	return &BlackjackResult{Username: username, Failure: failure}
}
