package entities

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// SystemUsername is the account that economy-wide entries such as resets are attributed to.
const SystemUsername = "system"

// Account holds a user's balance and lifetime counters
type Account struct {
	Username       string    `json:"username"`
	Balance        int64     `json:"balance"`
	TotalDeposited int64     `json:"totalDeposited"`
	TotalWon       int64     `json:"totalWon"`
	TotalLost      int64     `json:"totalLost"`
	AllInWins      int64     `json:"allInWins"`
	AllInLosses    int64     `json:"allInLosses"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// NewAccount creates an empty account for the given username
func NewAccount(username string, now time.Time) *Account {
	return &Account{
		Username:    NormalizeUsername(username),
		LastUpdated: now,
	}
}

// Clone returns a copy of the account
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// CanAfford reports whether the account can cover the amount
func (a *Account) CanAfford(amount int64) bool {
	return a != nil && a.Balance >= amount
}

// Reset zeroes the balance and every counter except deposits
func (a *Account) Reset(now time.Time) {
	a.Balance = 0
	a.TotalWon = 0
	a.TotalLost = 0
	a.AllInWins = 0
	a.AllInLosses = 0
	a.LastUpdated = now
}

// NormalizeUsername returns the case-folded key for a chat username.
// A leading @ from mentions is dropped.
func NormalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	// Casers are stateful and cannot be shared between goroutines.
	return cases.Fold().String(username)
}
