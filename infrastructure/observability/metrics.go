package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pointsbank/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the economy
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	balanceTransactionsCounter   metric.Int64Counter
	balanceAmountCounter         metric.Int64Counter
	gamesSettledCounter          metric.Int64Counter
	gamesWageredCounter          metric.Int64Counter
	duelsResolvedCounter         metric.Int64Counter
	purchasesCounter             metric.Int64Counter
	commandsCounter              metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the exporter selected by configuration
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return mp.markInitialized()
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		return mp.markInitialized()

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	if err := mp.InitializeWithReader(reader); err != nil {
		return err
	}
	otel.SetMeterProvider(mp.meterProvider)
	return nil
}

// InitializeWithReader wires the provider to an explicit reader, such as a manual reader in tests
func (mp *MetricsProvider) InitializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("pointsbank")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) markInitialized() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.initialized = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.balanceTransactionsCounter, err = mp.meter.Int64Counter(
		BalanceTransactionsTotal,
		metric.WithDescription("Total number of ledger entries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance transactions counter: %w", err)
	}

	mp.balanceAmountCounter, err = mp.meter.Int64Counter(
		BalanceTransactionAmount,
		metric.WithDescription("Points moved by ledger entries"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance amount counter: %w", err)
	}

	mp.gamesSettledCounter, err = mp.meter.Int64Counter(
		GamesSettledTotal,
		metric.WithDescription("Total number of settled games"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create games settled counter: %w", err)
	}

	mp.gamesWageredCounter, err = mp.meter.Int64Counter(
		GamesWageredTotal,
		metric.WithDescription("Points wagered on settled games"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create games wagered counter: %w", err)
	}

	mp.duelsResolvedCounter, err = mp.meter.Int64Counter(
		DuelsResolvedTotal,
		metric.WithDescription("Total number of resolved or expired duels"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create duels resolved counter: %w", err)
	}

	mp.purchasesCounter, err = mp.meter.Int64Counter(
		PurchasesTotal,
		metric.WithDescription("Total number of marketplace purchases"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create purchases counter: %w", err)
	}

	mp.commandsCounter, err = mp.meter.Int64Counter(
		CommandsTotal,
		metric.WithDescription("Total number of dispatched chat commands"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create commands counter: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordBalanceTransaction records one ledger entry
func (mp *MetricsProvider) RecordBalanceTransaction(transactionType string, amount int64) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelType, transactionType))
	mp.balanceTransactionsCounter.Add(context.Background(), 1, attrs)
	mp.balanceAmountCounter.Add(context.Background(), amount, attrs)
}

// RecordGameSettled records a settled game and the amount wagered on it
func (mp *MetricsProvider) RecordGameSettled(game, outcome string, bet int64) {
	if !mp.isEnabled() {
		return
	}

	mp.gamesSettledCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelGame, game),
			attribute.String(LabelOutcome, outcome),
		),
	)
	mp.gamesWageredCounter.Add(context.Background(), bet,
		metric.WithAttributes(attribute.String(LabelGame, game)),
	)
}

// ObserveInFlight registers gauges that read the open blackjack session and
// pending duel counts at collection time
func (mp *MetricsProvider) ObserveInFlight(sessions, duels func() int) error {
	if !mp.isEnabled() {
		return nil
	}

	_, err := mp.meter.Int64ObservableGauge(
		BlackjackSessionsActive,
		metric.WithDescription("Current number of open blackjack sessions"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(sessions()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create blackjack sessions gauge: %w", err)
	}

	_, err = mp.meter.Int64ObservableGauge(
		DuelsPending,
		metric.WithDescription("Current number of duels waiting for an answer"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(duels()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create pending duels gauge: %w", err)
	}
	return nil
}

// RecordDuel records a duel leaving the pending state
func (mp *MetricsProvider) RecordDuel(outcome string, sponsored bool) {
	if !mp.isEnabled() {
		return
	}

	mp.duelsResolvedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelOutcome, outcome),
			attribute.Bool("sponsored", sponsored),
		),
	)
}

// RecordPurchase records a marketplace purchase
func (mp *MetricsProvider) RecordPurchase(action string) {
	if !mp.isEnabled() {
		return
	}

	mp.purchasesCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelAction, action)),
	)
}

// RecordCommand records a dispatched command and its failure tag, "ok" on success
func (mp *MetricsProvider) RecordCommand(command, failure string) {
	if !mp.isEnabled() {
		return
	}

	if failure == "" {
		failure = OutcomeOK
	}
	mp.commandsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelCommand, command),
			attribute.String(LabelFailure, failure),
		),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// isEnabled checks if metrics are enabled and initialized. Safe on a nil provider.
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}

var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the process-wide metrics provider once
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) (*MetricsProvider, error) {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return globalMetrics, err
}

// GetMetrics returns the global metrics provider, nil before initialization
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
