// Command order-sweeper cancels fulfilled orders whose grace period has
// elapsed. With --once it sweeps a single batch and exits, for cron.
package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/application"
	orderpg "github.com/dmehra2102/Ticket-Allocation-System/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/storage/postgres"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/config"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/logging"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/shutdown"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a YAML config file (defaults to $"+config.EnvConfigPath+")")
		once       = pflag.Bool("once", false, "sweep one batch and exit")
		interval   = pflag.Duration("interval", 0, "sweep interval, overrides sweeper.interval")
		batchSize  = pflag.Int("batch-size", 0, "orders per sweep, overrides sweeper.batch_size")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Sweeper.Interval = *interval
	}
	if *batchSize > 0 {
		cfg.Sweeper.BatchSize = *batchSize
	}
	log := logging.New(cfg.LogLevel).With("component", "order-sweeper")

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	pool, err := postgres.Open(ctx, cfg.Postgres.URL, log)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := orderpg.NewRepository(log, pool)
	svc := application.NewService(log, repo)
	sweeper := application.NewSweeper(log, repo, svc, cfg.Sweeper.Interval, cfg.Sweeper.BatchSize)

	if *once {
		start := time.Now()
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Error("sweep failed", "cancelled", n, "err", err)
			os.Exit(1)
		}
		log.Info("sweep complete", "cancelled", n, "took", time.Since(start))
		return
	}

	if cfg.Sweeper.Interval <= 0 {
		log.Error("sweeper interval must be positive")
		os.Exit(1)
	}
	if err := sweeper.Run(ctx); err != nil {
		log.Error("sweeper stopped with error", "err", err)
		os.Exit(1)
	}
}
