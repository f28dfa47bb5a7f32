// Package boltstore implements the wallet and claim repositories on an embedded
// BoltDB file for single-node deployments and tests.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/pkg/clock"
)

var (
	bucketWallets          = []byte("wallets")
	bucketTransactions     = []byte("transactions")
	bucketUserTransactions = []byte("user_transactions")
	bucketClaims           = []byte("claims")
	bucketClaimsByOrder    = []byte("claims_by_order")

	allBuckets = [][]byte{
		bucketWallets,
		bucketTransactions,
		bucketUserTransactions,
		bucketClaims,
		bucketClaimsByOrder,
	}
)

// Store is a BoltDB file holding wallets, the transaction log and claims.
// Bolt allows one writer at a time, so every unit is fully serialised.
type Store struct {
	db    *bolt.DB
	clock clock.Clock
}

// Open opens (or creates) the database at path and ensures its buckets exist.
func Open(path string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.System{}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db, clock: clk}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Wallets() wallet.Repository {
	return &walletRepo{s: s}
}

func (s *Store) Claims() claim.Repository {
	return &claimRepo{s: s}
}

func (s *Store) update(ctx context.Context, fn func(u *unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&unit{tx: tx, clock: s.clock})
	})
}

func (s *Store) view(ctx context.Context, fn func(u *unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&unit{tx: tx, clock: s.clock})
	})
}

func put(b *bolt.Bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}
