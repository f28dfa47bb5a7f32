// Command sweeper runs a single maturity sweep and exits. It is meant for cron
// style schedulers; replicas of the API run the same sweep on SWEEP_INTERVAL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/mwork/rewards-api/internal/app"
	"github.com/mwork/rewards-api/internal/config"
	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/pkg/clock"
	"github.com/mwork/rewards-api/internal/pkg/database"
	"github.com/mwork/rewards-api/internal/pkg/logger"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.System{}

	stores, err := app.OpenStores(cfg, clk)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer stores.Close()

	locker, redisClient, err := app.NewLocker(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	rules, err := app.LoadRules(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load claim rules")
	}

	ledger := wallet.NewLedger(stores.Wallets, clk)
	// Releases do not move evidence, so no relocator is needed here.
	engine := claim.NewEngine(stores.Claims, ledger, rules, clk, nil).
		WithSweepBatchSize(cfg.SweepBatchSize)

	matured := claim.NewWorker(engine, locker, clk, cfg.SweepInterval).RunOnce(ctx)
	log.Info().Int("matured", matured).Msg("Sweep finished")
}
