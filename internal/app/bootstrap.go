// Package app wires configuration to concrete stores shared by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mwork/rewards-api/internal/config"
	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/pkg/clock"
	"github.com/mwork/rewards-api/internal/pkg/database"
	"github.com/mwork/rewards-api/internal/pkg/lock"
	"github.com/mwork/rewards-api/internal/pkg/storage"
	"github.com/mwork/rewards-api/internal/storage/boltstore"
	"github.com/mwork/rewards-api/internal/storage/postgres"
)

// Stores holds the repositories selected by STORE_DRIVER.
type Stores struct {
	Wallets wallet.Repository
	Claims  claim.Repository
	close   func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

func OpenStores(cfg *config.Config, clk clock.Clock) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := postgres.NewStore(db)
		return &Stores{
			Wallets: s.Wallets(),
			Claims:  s.Claims(),
			close:   func() { database.ClosePostgres(db) },
		}, nil

	case config.StoreDriverBolt:
		s, err := boltstore.Open(cfg.BoltPath, clk)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.BoltPath).Msg("Opened BoltDB store")
		return &Stores{
			Wallets: s.Wallets(),
			Claims:  s.Claims(),
			close: func() {
				if err := s.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing BoltDB store")
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// NewEvidenceStore returns the object store evidence lives in.
func NewEvidenceStore(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.EvidenceDriver {
	case config.EvidenceDriverR2:
		st, err := storage.NewR2Storage(ctx, storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			Endpoint:        cfg.R2Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.EvidenceDriverLocal:
		st, err := storage.NewLocalStorage(cfg.EvidenceLocalPath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown EVIDENCE_DRIVER %q", cfg.EvidenceDriver)
	}
}

// LoadRules reads CLAIM_RULES_FILE, or returns the built in table when unset.
func LoadRules(cfg *config.Config) (*claim.RuleTable, error) {
	if cfg.ClaimRulesFile == "" {
		return claim.DefaultRules(), nil
	}
	rules, err := claim.LoadRules(cfg.ClaimRulesFile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", cfg.ClaimRulesFile).Strs("categories", rules.Categories()).Msg("Loaded claim rules")
	return rules, nil
}

// NewLocker returns a Redis backed sweep lock when Redis is configured and an
// in-process one otherwise. The returned client may be nil.
func NewLocker(cfg *config.Config) (lock.Locker, *redis.Client, error) {
	client, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return lock.NewLocal(), nil, nil
	}
	return lock.NewRedisLocker(client), client, nil
}
