package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"pointsbank/database"
	"pointsbank/domain/entities"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageSnapshot = "snapshot"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL" validate:"required_if=StorageBackend postgres"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Ledger storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"postgres" validate:"oneof=postgres snapshot"`
	SnapshotPath   string `env:"SNAPSHOT_PATH" envDefault:"data/ledger.json"`

	// Minimum bets per game
	MinBetCoinflip  int64 `env:"MIN_BET_COINFLIP" envDefault:"100" validate:"gt=0"`
	MinBetDice      int64 `env:"MIN_BET_DICE" envDefault:"100" validate:"gt=0"`
	MinBetSlots     int64 `env:"MIN_BET_SLOTS" envDefault:"200" validate:"gt=0"`
	MinBetRoulette  int64 `env:"MIN_BET_ROULETTE" envDefault:"150" validate:"gt=0"`
	MinBetWheel     int64 `env:"MIN_BET_WHEEL" envDefault:"200" validate:"gt=0"`
	MinBetRPS       int64 `env:"MIN_BET_RPS" envDefault:"100" validate:"gt=0"`
	MinBetBlackjack int64 `env:"MIN_BET_BLACKJACK" envDefault:"100" validate:"gt=0"`

	// Blackjack sessions
	BlackjackIdleTimeout   time.Duration `env:"BLACKJACK_IDLE_TIMEOUT" envDefault:"2m" validate:"gt=0"`
	BlackjackSweepInterval time.Duration `env:"BLACKJACK_SWEEP_INTERVAL" envDefault:"5m" validate:"gt=0"`
	BlackjackExpiryPolicy  string        `env:"BLACKJACK_EXPIRY_POLICY" envDefault:"forfeit" validate:"oneof=forfeit refund"`

	// Duels
	DuelTTL           time.Duration `env:"DUEL_TTL" envDefault:"2m" validate:"gt=0"`
	DuelSweepInterval time.Duration `env:"DUEL_SWEEP_INTERVAL" envDefault:"1m" validate:"gt=0"`

	// Marketplace: ACTION_COSTS=shoutout:500,sponsor_duel:1000
	ActionCosts             map[string]int64 `env:"ACTION_COSTS" envDefault:"sponsor_duel:1000" validate:"dive,gt=0"`
	SponsoredDuelMultiplier int64            `env:"SPONSORED_DUEL_MULTIPLIER" envDefault:"3" validate:"gt=0"`

	// Usernames allowed to run give and reset
	AdminUsernames []string `env:"ADMIN_USERNAMES"`
	CommandPrefix  string   `env:"COMMAND_PREFIX" envDefault:"!"`

	// NATS configuration (comma-separated, empty disables forwarding)
	NATSServers string `env:"NATS_SERVERS"`

	// Redis leaderboard projection (empty URL reads the leaderboard from the ledger)
	RedisURL       string `env:"REDIS_URL"`
	LeaderboardKey string `env:"LEADERBOARD_KEY" envDefault:"pointsbank:leaderboard" validate:"required"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelServiceName          string `env:"OTEL_SERVICE_NAME" envDefault:"pointsbank"`
	OTelExporterType         string `env:"OTEL_EXPORTER_TYPE" envDefault:"console" validate:"oneof=console otlp none"`
	OTelOTLPEndpoint         string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelExportIntervalMillis int    `env:"OTEL_EXPORT_INTERVAL_MILLIS" envDefault:"30000" validate:"gt=0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = Load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	admins := make([]string, 0, len(c.AdminUsernames))
	for _, a := range c.AdminUsernames {
		if a = entities.NormalizeUsername(a); a != "" {
			admins = append(admins, a)
		}
	}
	c.AdminUsernames = admins

	costs := make(map[string]int64, len(c.ActionCosts))
	for action, cost := range c.ActionCosts {
		costs[strings.ToLower(strings.TrimSpace(action))] = cost
	}
	c.ActionCosts = costs
}

// Validate checks field constraints and reports every violation at once
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required", e.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", e.Field(), e.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// PriceTable returns the configured minimum bets and action costs
func (c *Config) PriceTable() entities.PriceTable {
	return entities.PriceTable{
		MinBets: map[entities.GameKind]int64{
			entities.GameCoinflip:  c.MinBetCoinflip,
			entities.GameDice:      c.MinBetDice,
			entities.GameSlots:     c.MinBetSlots,
			entities.GameRoulette:  c.MinBetRoulette,
			entities.GameWheel:     c.MinBetWheel,
			entities.GameRPS:       c.MinBetRPS,
			entities.GameBlackjack: c.MinBetBlackjack,
		},
		ActionCosts: c.ActionCosts,
	}
}

// IsAdmin reports whether the normalized username may run admin commands
func (c *Config) IsAdmin(username string) bool {
	username = entities.NormalizeUsername(username)
	for _, a := range c.AdminUsernames {
		if a == username {
			return true
		}
	}
	return false
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a config with default values and an in-memory ledger
func NewTestConfig() *Config {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"ENVIRONMENT":     "test",
		"STORAGE_BACKEND": StorageSnapshot,
		"ADMIN_USERNAMES": "admin",
		"ACTION_COSTS":    "shoutout:500,sponsor_duel:1000",
	}})
	if err != nil {
		panic(fmt.Sprintf("invalid test config: %v", err))
	}
	cfg.SnapshotPath = ""
	return cfg
}
