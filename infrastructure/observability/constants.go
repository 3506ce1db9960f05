package observability

// Metric name prefixes
const (
	MetricPrefix = "pointsbank"
)

// Metric names
const (
	// Ledger metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"
	BalanceTransactionAmount = MetricPrefix + ".balance.transaction_amount"

	// Game metrics
	GamesSettledTotal = MetricPrefix + ".games.settled_total"
	GamesWageredTotal = MetricPrefix + ".games.wagered_total"

	// Session and escrow metrics
	BlackjackSessionsActive = MetricPrefix + ".blackjack.sessions_active"
	DuelsPending            = MetricPrefix + ".duels.pending"
	DuelsResolvedTotal      = MetricPrefix + ".duels.resolved_total"

	// Marketplace metrics
	PurchasesTotal = MetricPrefix + ".marketplace.purchases_total"

	// Command metrics
	CommandsTotal = MetricPrefix + ".commands.total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelGame      = "game"
	LabelOutcome   = "outcome"
	LabelAction    = "action"
	LabelCommand   = "command"
	LabelFailure   = "failure"
)

// Outcome label values
const (
	OutcomeWin     = "win"
	OutcomeLoss    = "loss"
	OutcomePush    = "push"
	OutcomeExpired = "expired"
	OutcomeOK      = "ok"
)
