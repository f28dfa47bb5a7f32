package boltstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/rewards-api/internal/domain/claim"
)

type claimRepo struct {
	s *Store
}

func (r *claimRepo) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx claim.Tx) error) error {
	return r.s.update(ctx, func(u *unit) error {
		return fn(ctx, u)
	})
}

func (r *claimRepo) Create(ctx context.Context, c *claim.Claim) error {
	return r.s.update(ctx, func(u *unit) error {
		byOrder := u.tx.Bucket(bucketClaimsByOrder)
		if byOrder.Get([]byte(c.OrderID)) != nil {
			return claim.ErrDuplicateOrder
		}
		if err := put(u.tx.Bucket(bucketClaims), []byte(c.ID.String()), c); err != nil {
			return fmt.Errorf("%w: insert claim: %v", claim.ErrInternal, err)
		}
		if err := byOrder.Put([]byte(c.OrderID), []byte(c.ID.String())); err != nil {
			return fmt.Errorf("%w: index claim: %v", claim.ErrInternal, err)
		}
		return nil
	})
}

func (r *claimRepo) GetByID(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	var out *claim.Claim
	err := r.s.view(ctx, func(u *unit) error {
		c, err := u.LockClaim(ctx, id)
		out = c
		return err
	})
	return out, err
}

func (r *claimRepo) ListByStatus(ctx context.Context, status claim.Status, limit, offset int) ([]*claim.Claim, error) {
	all, err := r.scan(ctx, func(c *claim.Claim) bool { return c.Status == status })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *claimRepo) ListByUser(ctx context.Context, userID string) ([]*claim.Claim, error) {
	all, err := r.scan(ctx, func(c *claim.Claim) bool { return c.UserID == userID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

func (r *claimRepo) ListDue(ctx context.Context, now time.Time, after *claim.DueCursor, limit int) ([]*claim.Claim, error) {
	all, err := r.scan(ctx, func(c *claim.Claim) bool { return c.IsDue(now) && !after.Before(c) })
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.ApprovedAt.Equal(*b.ApprovedAt) {
			return a.ID.String() < b.ID.String()
		}
		return a.ApprovedAt.Before(*b.ApprovedAt)
	})
	return page(all, limit, 0), nil
}

func (r *claimRepo) UpdateEvidenceRef(ctx context.Context, id uuid.UUID, oldRef, newRef string) error {
	return r.s.update(ctx, func(u *unit) error {
		c, err := u.LockClaim(ctx, id)
		if err != nil {
			return err
		}
		if c.EvidenceRef != oldRef {
			return claim.ErrClaimNotFound
		}
		c.EvidenceRef = newRef
		c.UpdatedAt = u.clock.Now()
		return u.UpdateClaim(ctx, c)
	})
}

func (r *claimRepo) scan(ctx context.Context, keep func(c *claim.Claim) bool) ([]*claim.Claim, error) {
	out := []*claim.Claim{}
	err := r.s.view(ctx, func(u *unit) error {
		return u.tx.Bucket(bucketClaims).ForEach(func(_, v []byte) error {
			c, err := decodeClaim(v)
			if err != nil {
				return err
			}
			if keep(c) {
				out = append(out, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func page(items []*claim.Claim, limit, offset int) []*claim.Claim {
	if offset >= len(items) {
		return []*claim.Claim{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
