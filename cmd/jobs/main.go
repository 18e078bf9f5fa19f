// Command jobs runs the ranking maintenance tasks: one-shot, repeating,
// or as a long-lived scheduler driven by a schedule file.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/urfave/cli/v2"

	"github.com/okian/rankforge/internal/adapters/leaderboard"
	"github.com/okian/rankforge/internal/adapters/store"
	"github.com/okian/rankforge/internal/config"
	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/internal/domain/performance"
	"github.com/okian/rankforge/internal/jobs"
	"github.com/okian/rankforge/pkg/logger"
	"github.com/okian/rankforge/pkg/metrics"
)

const (
	metricsReadHeaderTimeout = 5 * time.Second
	redisDialTimeout         = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "rankforge-jobs",
		Usage: "score ranking and aggregation maintenance tasks",
		Commands: []*cli.Command{
			listCommand(),
			runCommand(),
			scheduleCommand(),
			topCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "command failed", logger.Error(err))
		os.Exit(1)
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list available tasks",
		Action: func(c *cli.Context) error {
			registry := jobs.NewRegistry()
			descriptions := registry.Descriptions()
			for _, name := range registry.Names() {
				fmt.Fprintf(c.App.Writer, "%-28s %s\n", name, descriptions[name])
			}
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run one task, optionally on a repeat interval",
		ArgsUsage: "<task> [task args...]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "re-run the task every interval until interrupted",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("expected a task name, try list")
			}
			name := c.Args().First()
			args := c.Args().Tail()

			deps, teardown, err := buildDeps(c.Context)
			if err != nil {
				return err
			}
			defer teardown()

			registry := jobs.NewRegistry()
			if err := registry.RunTask(c.Context, deps, name, args); err != nil {
				return err
			}

			interval := c.Duration("interval")
			if interval <= 0 {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-c.Context.Done():
					return nil
				case <-ticker.C:
					// Errors are logged by the registry; a repeating task
					// keeps its cadence through failures.
					_ = registry.RunTask(c.Context, deps, name, args)
				}
			}
		},
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "run the scheduler loop from a schedule file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "path to the JSON schedule file",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			scheduled, err := jobs.LoadSchedule(c.String("file"))
			if err != nil {
				return err
			}

			deps, teardown, err := buildDeps(c.Context)
			if err != nil {
				return err
			}
			defer teardown()

			jobs.NewRegistry().RunLoop(c.Context, deps, scheduled)
			return nil
		},
	}
}

func topCommand() *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "print the current leaderboard head for a mode",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "mode", Usage: "game mode (0-3)"},
			&cli.Int64Flag{Name: "limit", Value: 10, Usage: "number of entries"},
		},
		Action: func(c *cli.Context) error {
			mode := c.Int("mode")
			if mode < 0 || mode >= model.ModeCount {
				return fmt.Errorf("mode must be 0-%d", model.ModeCount-1)
			}

			cfg, err := config.Load(c.Context)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := redis.NewClient(&redis.Options{
				Addr:        cfg.RedisAddr,
				DB:          cfg.RedisDB,
				DialTimeout: redisDialTimeout,
			})
			defer client.Close()

			entries, err := leaderboard.New(client).TopPlayers(c.Context, model.Mode(mode), c.Int64("limit"))
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(c.App.Writer, "#%-5d user %-10d %.2fpp\n", e.Rank, e.UserID, e.PP)
			}
			return nil
		},
	}
}

// buildDeps wires the full dependency graph for task execution. The
// returned teardown closes every owned handle.
func buildDeps(ctx context.Context) (*jobs.Deps, func(), error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level, falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
	}

	db, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		DB:          cfg.RedisDB,
		DialTimeout: redisDialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	stopMetrics := startMetrics(ctx, log, cfg.MetricsAddr)

	deps := &jobs.Deps{
		Store: jobs.WrapStore(db),
		Cache: leaderboard.New(client),
		Calc:  performance.NewSimulator(),
		Flags: jobs.FlagsFromConfig(cfg),
		NewStore: func(ctx context.Context) (jobs.Store, func(), error) {
			fresh, err := store.New(ctx, cfg.PostgresDSN)
			if err != nil {
				return nil, nil, err
			}
			return jobs.WrapStore(fresh), func() { _ = fresh.Close() }, nil
		},
		Workers:  cfg.Workers,
		PageSize: cfg.PageSize,
		Logger:   log.Named("jobs"),
	}

	teardown := func() {
		stopMetrics()
		if err := client.Close(); err != nil {
			log.Error(ctx, "closing redis client", logger.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Error(ctx, "closing store", logger.Error(err))
		}
	}
	return deps, teardown, nil
}

// startMetrics exposes the Prometheus scrape endpoint when configured.
func startMetrics(ctx context.Context, log logger.Logger, addr string) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "serving metrics", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "metrics server failed", logger.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsReadHeaderTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
