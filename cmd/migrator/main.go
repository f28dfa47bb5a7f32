package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/mwork/rewards-api/internal/config"
	"github.com/mwork/rewards-api/internal/pkg/database"
	"github.com/mwork/rewards-api/internal/pkg/logger"
	"github.com/mwork/rewards-api/migrations"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Info().Str("store", cfg.StoreDriver).Msg("Store has no SQL schema, nothing to migrate")
		return
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	var version uint
	if *down > 0 {
		version, err = database.MigrateDown(db, migrations.FS, ".", *down)
	} else {
		version, err = database.Migrate(db, migrations.FS, ".")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Migration run failed")
	}

	log.Info().Uint("version", version).Msg("Migration run finished")
}
