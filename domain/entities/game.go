package entities

// GameKind identifies a wagering game
type GameKind string

const (
	GameCoinflip  GameKind = "coinflip"
	GameDice      GameKind = "dice"
	GameSlots     GameKind = "slots"
	GameRoulette  GameKind = "roulette"
	GameWheel     GameKind = "wheel"
	GameRPS       GameKind = "rps"
	GameBlackjack GameKind = "blackjack"
)

// DefaultMinBets returns the stock minimum bet table
func DefaultMinBets() map[GameKind]int64 {
	return map[GameKind]int64{
		GameCoinflip:  100,
		GameDice:      100,
		GameSlots:     200,
		GameRoulette:  150,
		GameWheel:     200,
		GameRPS:       100,
		GameBlackjack: 100,
	}
}

// PriceTable is the static game and marketplace configuration
type PriceTable struct {
	MinBets     map[GameKind]int64
	ActionCosts map[string]int64
}

// MinBet returns the minimum bet for a game and whether one is configured
func (p PriceTable) MinBet(game GameKind) (int64, bool) {
	v, ok := p.MinBets[game]
	return v, ok
}

// ActionCost returns the marketplace price of an action
func (p PriceTable) ActionCost(action string) (int64, bool) {
	v, ok := p.ActionCosts[action]
	return v, ok
}

// GameRequest is a single-shot wager
type GameRequest struct {
	Username string
	Game     GameKind
	Bet      int64
	Choice   string
}

// GameDetail carries the raw draws behind an outcome for rendering
type GameDetail struct {
	CoinSide   string   `json:"coinSide,omitempty"`
	UserRoll   int      `json:"userRoll,omitempty"`
	HouseRoll  int      `json:"houseRoll,omitempty"`
	Reels      []string `json:"reels,omitempty"`
	Number     *int     `json:"number,omitempty"`
	Color      string   `json:"color,omitempty"`
	Segment    string   `json:"segment,omitempty"`
	HousePick  string   `json:"housePick,omitempty"`
	Multiplier string   `json:"multiplier,omitempty"`
}

// GameResult is returned for every Play call
type GameResult struct {
	Success    bool       `json:"success"`
	Failure    Failure    `json:"failure,omitempty"`
	Game       GameKind   `json:"game"`
	Bet        int64      `json:"bet"`
	Choice     string     `json:"choice,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
	Detail     GameDetail `json:"detail"`
	Won        bool       `json:"won"`
	Push       bool       `json:"push"`
	Winnings   int64      `json:"winnings"`
	NewBalance int64      `json:"newBalance"`
	IsAllIn    bool       `json:"isAllIn"`
}

// NewGameFailure builds a rejected result
func NewGameFailure(req GameRequest, failure Failure) *GameResult {
	return &GameResult{
		Failure: failure,
		Game:    req.Game,
		Bet:     req.Bet,
		Choice:  req.Choice,
	}
}
