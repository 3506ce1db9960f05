package cmd

import (
	"context"
	"fmt"

	"pointsbank/application"
	"pointsbank/config"
	"pointsbank/database"
	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/domain/random"
	"pointsbank/domain/services"
	"pointsbank/domain/utils"
	"pointsbank/events"
	"pointsbank/infrastructure"
	"pointsbank/infrastructure/leaderboard"
	"pointsbank/infrastructure/memstore"
	"pointsbank/infrastructure/observability"
	"pointsbank/infrastructure/snapshot"
	"pointsbank/repository"

	log "github.com/sirupsen/logrus"
)

const leaderboardRebuildLimit = 100000

// App holds the wired economy core
type App struct {
	Config   *config.Config
	Bus      *events.Bus
	Executor interfaces.LedgerExecutor
	Router   *application.CommandRouter
	Worker   *application.ExpiryWorker
	Metrics  *observability.MetricsProvider

	closers []func()
}

// Close releases everything Build opened, newest first
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Build wires storage, services and the command router from configuration.
// NATS forwarding is enabled only when NATS_SERVERS is set.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	log.Info("Initializing event bus...")
	app.Bus = events.NewBus()

	uowFactory, err := app.openStorage(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	metrics, err := observability.InitializeGlobalMetrics(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	app.Metrics = metrics

	var external application.ExternalPublisher
	if cfg.NATSServers != "" {
		publisher, err := app.connectNATS(ctx)
		if err != nil {
			app.Close()
			return nil, err
		}
		external = publisher
	}
	application.RegisterSubscriptions(app.Bus, metrics, external)

	rng, err := random.NewFromEntropy()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to seed random source: %w", err)
	}
	clock := utils.SystemClock{}
	prices := cfg.PriceTable()

	sessions := memstore.New[string, *entities.BlackjackSession]()
	duels := memstore.New[entities.DuelKey, *entities.PendingDuel]()
	if err := metrics.ObserveInFlight(sessions.Len, duels.Len); err != nil {
		log.WithError(err).Warn("Failed to register in-flight gauges")
	}

	log.Info("Initializing services...")
	app.Executor = services.NewLedgerExecutor(uowFactory, clock)
	gameService := services.NewGameService(app.Executor, rng, prices, app.Bus)
	blackjackService := services.NewBlackjackService(app.Executor, rng, prices, app.Bus, clock, sessions, services.BlackjackConfig{
		IdleTimeout:  cfg.BlackjackIdleTimeout,
		ExpiryPolicy: entities.BlackjackExpiryPolicy(cfg.BlackjackExpiryPolicy),
	})
	duelService := services.NewDuelService(app.Executor, rng, prices, app.Bus, clock, duels, services.DuelConfig{
		TTL: cfg.DuelTTL,
	})
	marketplaceService := services.NewMarketplaceService(app.Executor, duelService, prices, app.Bus, cfg.SponsoredDuelMultiplier)

	app.Router = application.NewCommandRouter(app.Executor, gameService, blackjackService, duelService, marketplaceService, cfg, metrics)
	if cfg.RedisURL != "" {
		board, err := app.connectLeaderboard(ctx)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Router.UseLeaderboard(board)
	}
	app.Worker = application.NewExpiryWorker(blackjackService, duelService, clock, cfg.BlackjackSweepInterval, cfg.DuelSweepInterval)

	log.WithFields(log.Fields{
		"storage": cfg.StorageBackend,
		"games":   gameService.Games(),
	}).Info("Economy core initialized")
	return app, nil
}

func (a *App) openStorage(ctx context.Context) (interfaces.UnitOfWorkFactory, error) {
	switch a.Config.StorageBackend {
	case config.StorageSnapshot:
		log.WithField("path", a.Config.SnapshotPath).Info("Opening ledger snapshot...")
		store, err := snapshot.Open(a.Config.SnapshotPath, a.Bus)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger snapshot: %w", err)
		}
		return store, nil

	default:
		log.Info("Connecting to database...")
		db, err := database.NewConnection(ctx, a.Config.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() {
			log.Info("Closing database connection...")
			db.Close()
		})
		return repository.NewUnitOfWorkFactory(db, a.Bus), nil
	}
}

func (a *App) connectNATS(ctx context.Context) (*infrastructure.NATSEventPublisher, error) {
	log.WithField("servers", a.Config.NATSServers).Info("Connecting to NATS...")
	client := infrastructure.NewNATSClient(a.Config.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	})

	mapper := infrastructure.NewEventSubjectMapper()
	if err := infrastructure.EnsureDomainEventStream(client, mapper); err != nil {
		return nil, fmt.Errorf("failed to ensure event stream: %w", err)
	}

	metrics := a.Metrics
	return infrastructure.NewNATSEventPublisher(client, mapper, func(eventType events.EventType) {
		metrics.RecordNATSMessagePublished(string(eventType))
	}), nil
}

// connectLeaderboard seeds the Redis projection from the ledger and keeps it
// current from the bus
func (a *App) connectLeaderboard(ctx context.Context) (*leaderboard.RedisLeaderboard, error) {
	log.Info("Connecting to Redis...")
	rdb, err := leaderboard.Connect(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Error("Error closing Redis connection")
		}
	})

	board := leaderboard.NewRedisLeaderboard(rdb, a.Config.LeaderboardKey)
	board.Subscribe(a.Bus)

	var accounts []*entities.Account
	err = a.Executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		var err error
		accounts, err = ledger.GetLeaderboard(ctx, leaderboardRebuildLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts for leaderboard: %w", err)
	}
	if err := board.Rebuild(ctx, accounts); err != nil {
		return nil, err
	}
	return board, nil
}
