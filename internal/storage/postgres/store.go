// Package postgres implements the wallet and claim repositories on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
)

const (
	queryTimeout = 3 * time.Second
	unitTimeout  = 10 * time.Second

	uniqueViolation = "23505"
)

// Store owns the connection pool shared by the wallet and claim repositories.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Wallets returns the wallet repository view of the store.
func (s *Store) Wallets() wallet.Repository {
	return &walletRepo{s: s}
}

// Claims returns the claim repository view of the store.
func (s *Store) Claims() claim.Repository {
	return &claimRepo{s: s}
}

// runAtomic runs fn in a READ COMMITTED transaction. Row locks taken by fn
// serialise competing units; any error rolls everything back.
func (s *Store) runAtomic(ctx context.Context, fn func(ctx context.Context, tx *unit) error) error {
	ctx, cancel := context.WithTimeout(ctx, unitTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", wallet.ErrInternal, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Warn().Err(err).Msg("Rollback failed")
		}
	}()

	if err := fn(ctx, &unit{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", wallet.ErrInternal, err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
