package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"pointsbank/cmd"
	"pointsbank/cmd/debug"
	"pointsbank/config"
	"pointsbank/database"
	"pointsbank/domain/entities"
	"pointsbank/domain/random"
	"pointsbank/domain/utils"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	// Check for the game simulator
	if len(os.Args) > 1 && os.Args[1] == "simulate" {
		if err := handleSimulateCommand(os.Args[2:]); err != nil {
			log.Fatal("Simulation error: ", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Check for debug mode
	if len(os.Args) > 1 && os.Args[1] == "debug" {
		if err := runDebugMode(ctx, os.Args[2:]); err != nil {
			log.Fatal("Debug mode error: ", err)
		}
		return
	}

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: pointsbank migrate [up|down|status] [args...]")
	}

	databaseURL := config.Get().GetDatabaseURL()
	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp(databaseURL)
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(databaseURL, steps)
	case "status":
		return database.MigrateStatus(databaseURL)
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// runDebugMode opens an interactive shell against the configured ledger.
// The optional argument names the user commands run as.
func runDebugMode(ctx context.Context, args []string) error {
	cfg := config.Get()
	cmd.ConfigureLogging(cfg)

	user := "debug"
	if len(cfg.AdminUsernames) > 0 {
		user = cfg.AdminUsernames[0]
	}
	if len(args) > 0 {
		user = args[0]
	}

	app, err := cmd.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Close()

	return debug.NewShell(app.Router, app.Worker, user).Run(ctx)
}

// handleSimulateCommand runs: pointsbank simulate [game|all] [rounds] [bet] [seed]
func handleSimulateCommand(args []string) error {
	var game entities.GameKind
	if len(args) > 0 && args[0] != "all" {
		game = entities.GameKind(args[0])
	}

	rounds := 100_000
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid rounds %q: %w", args[1], err)
		}
		rounds = n
	}

	bet := int64(1_000)
	if len(args) > 2 {
		b, err := utils.ParseShortNotation(args[2])
		if err != nil {
			return err
		}
		bet = b
	}

	var seed int64
	if len(args) > 3 {
		s, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed %q: %w", args[3], err)
		}
		seed = s
	} else {
		s, err := random.NewSeed()
		if err != nil {
			return err
		}
		seed = s
	}

	return cmd.RunSimulation(context.Background(), game, rounds, bet, seed)
}
