package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackpool/internal/shared"
)

func main() {
	shared.LoadDotEnv(".env")
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "trackpool",
		Usage:    "Resolve music sources into pools of playable tracks",
		Version:  "0.1.0",
		Flags:    rootFlags(),
		Before:   runner.load,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()
	runner.Close()

	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
		case errors.Is(err, shared.ErrRateLimited):
			logger.Error("rate limited, try again later", "retry_after", shared.RetryAfter(err))
			os.Exit(2)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
