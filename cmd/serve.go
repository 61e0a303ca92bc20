package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackpool/internal/server"
	"github.com/desertthunder/trackpool/internal/shared"
)

// Serve runs the HTTP API until the process is interrupted.
//
// The volatile tier lives as long as the server, so periodic maintenance sweeps it and prunes stale failed attempts.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := int(cmd.Int("port"))
	if port == 0 {
		port = r.config.Server.Port
	}

	pool := r.engine()

	scheduler, err := r.maintenance(ctx)
	if err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	api := server.NewAPI(pool, r.logger)
	srv := server.NewHTTPServer(net.JoinHostPort(host, strconv.Itoa(port)), api.Routes())
	return server.Serve(ctx, srv, r.logger)
}

// maintenance schedules cache upkeep. An empty schedule disables it.
func (r *Runner) maintenance(ctx context.Context) (*cron.Cron, error) {
	spec := strings.TrimSpace(r.config.Maintenance.SweepSchedule)
	if spec == "" {
		return nil, nil
	}

	logger := cronLogger{shared.WithLogger(r.logger, "component", "maintenance")}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(spec, func() { r.sweep(ctx) }); err != nil {
		return nil, fmt.Errorf("%w: maintenance.sweep_schedule: %v", shared.ErrInvalidConfig, err)
	}
	return c, nil
}

// sweep evicts expired volatile entries and prunes unresolved durable rows past their age.
func (r *Runner) sweep(ctx context.Context) {
	evicted := r.volatile().Sweep()

	var pruned int64
	if age := r.config.PruneUnresolvedAfter(); age > 0 && r.repo != nil {
		n, err := r.repo.PruneUnresolved(ctx, age)
		if err != nil {
			r.logger.Warn("failed to prune unresolved records", "error", err)
		}
		pruned = n
	}

	r.logger.Info("cache maintenance", "evicted", evicted, "pruned", pruned, "entries", r.volatile().Len())
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
