// Copyright 2026 The Roguelike Authors
// This file is part of roguelike.
//
// roguelike is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// roguelike is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with roguelike. If not, see <http://www.gnu.org/licenses/>.

// coresim is a small driver that registers a handful of illustrative game
// subsystems against the Integration Core and runs a tick loop, proving the
// five managers' contracts end to end outside of the test suite.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

var (
	tickIntervalFlag = &cli.DurationFlag{
		Name:  "tick-interval",
		Usage: "Wall-clock interval between Core ticks",
		Value: 200 * time.Millisecond,
	}
	rollbackCapacityFlag = &cli.IntFlag{
		Name:  "rollback-capacity",
		Usage: "Per-system rollback ring capacity (1-16)",
		Value: 8,
	}
	validationTicksFlag = &cli.Uint64Flag{
		Name:  "validation-ticks",
		Usage: "Validation Manager scheduled-run interval, in ticks (0 disables scheduled runs)",
		Value: 10,
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: trace, debug, info, warn, error, crit",
		Value: "info",
	}
	maxTicksFlag = &cli.Uint64Flag{
		Name:  "max-ticks",
		Usage: "Stop after this many ticks (0 runs until SIGINT/SIGTERM)",
		Value: 0,
	}
)

func main() {
	app := &cli.App{
		Name:  "coresim",
		Usage: "drive the Integration Core's five managers against demo subsystems",
		Flags: []cli.Flag{
			tickIntervalFlag,
			rollbackCapacityFlag,
			validationTicksFlag,
			logLevelFlag,
			maxTicksFlag,
		},
		Action: runDaemon,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseLogLevel maps the --log-level flag to go-ethereum's slog.Level
// constants.
func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}

func runDaemon(ctx *cli.Context) error {
	level, err := parseLogLevel(ctx.String(logLevelFlag.Name))
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, true)))

	cfg := &Config{
		TickInterval:     ctx.Duration(tickIntervalFlag.Name),
		RollbackCapacity: ctx.Int(rollbackCapacityFlag.Name),
		ValidationTicks:  ctx.Uint64(validationTicksFlag.Name),
		LogLevel:         ctx.String(logLevelFlag.Name),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	runID := uuid.New()
	runner := NewRunner(cfg, app, ctx.Uint64(maxTicksFlag.Name))

	if err := runner.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	log.Info("coresim started", "runID", runID, "tickInterval", cfg.TickInterval, "rollbackCapacity", cfg.RollbackCapacity)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig)
	case <-runner.Done():
		log.Info("coresim reached its configured tick limit")
	}

	if err := runner.Stop(); err != nil {
		return fmt.Errorf("failed to stop cleanly: %w", err)
	}
	log.Info("coresim stopped", "phase", app.Phase())
	log.Info("coresim health report", "report", app.HealthReport())
	return nil
}
