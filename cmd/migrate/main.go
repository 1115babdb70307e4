package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"backend-flathunt/internal/config"
	"backend-flathunt/internal/db"
	"backend-flathunt/internal/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

type migrator struct {
	up   func(string, logger.Logger) error
	down func(string, int, logger.Logger) error
}

func main() {
	cfg := config.Load()
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		log = logger.NewNop()
	}
	defer func() { _ = log.Sync() }()

	os.Exit(run(os.Args[1:], cfg, log, migrator{up: db.MigrateUp, down: db.MigrateDown}, os.Stderr))
}

// run applies "up" or rolls back "down [steps]" against POSTGRES_URL.
func run(args []string, cfg config.Config, log logger.Logger, m migrator, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: migrate <up|down [steps]>")
		return exitFailure
	}

	switch args[0] {
	case "up":
		if err := m.up(cfg.PostgresURL, log); err != nil {
			fmt.Fprintf(stderr, "Migration up failed: %v\n", err)
			return exitFailure
		}
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				fmt.Fprintf(stderr, "Invalid steps: %q\n", args[1])
				return exitFailure
			}
			steps = n
		}
		if err := m.down(cfg.PostgresURL, steps, log); err != nil {
			fmt.Fprintf(stderr, "Migration down failed: %v\n", err)
			return exitFailure
		}
	default:
		fmt.Fprintf(stderr, "Invalid direction: %q (must be \"up\" or \"down\")\n", args[0])
		return exitFailure
	}
	return exitSuccess
}
