package entities

// PurchaseResult is returned by marketplace purchases
type PurchaseResult struct {
	Success    bool        `json:"success"`
	Failure    Failure     `json:"failure,omitempty"`
	Username   string      `json:"username"`
	Action     string      `json:"action"`
	Cost       int64       `json:"cost"`
	NewBalance int64       `json:"newBalance"`
	Duel       *DuelResult `json:"duel,omitempty"`
}

// ActionSponsorDuel is the marketplace action that funds a house-backed duel
const ActionSponsorDuel = "sponsor_duel"
