package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/rewards-api/internal/domain/claim"
)

type claimRepo struct {
	s *Store
}

func (r *claimRepo) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx claim.Tx) error) error {
	return r.s.runAtomic(ctx, func(ctx context.Context, u *unit) error {
		return fn(ctx, u)
	})
}

func (r *claimRepo) Create(ctx context.Context, c *claim.Claim) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.s.db.NamedExecContext(ctx, `
		INSERT INTO claims (`+claimColumns+`)
		VALUES (:id, :user_id, :order_id, :order_amount, :category, :reward_coins, :maturity_days,
		        :evidence_ref, :status, :approved_at, :matured_at, :reviewer_id, :review_note,
		        :created_at, :updated_at)
	`, c)
	if err != nil {
		if isUniqueViolation(err, "claims_order_id_key") {
			return claim.ErrDuplicateOrder
		}
		return fmt.Errorf("%w: insert claim: %v", claim.ErrInternal, err)
	}
	return nil
}

func (r *claimRepo) GetByID(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c claim.Claim
	err := r.s.db.GetContext(ctx, &c, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, claim.ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get claim: %v", claim.ErrInternal, err)
	}
	return &c, nil
}

func (r *claimRepo) ListByStatus(ctx context.Context, status claim.Status, limit, offset int) ([]*claim.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []*claim.Claim
	err := r.s.db.SelectContext(ctx, &out, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list claims by status: %v", claim.ErrInternal, err)
	}
	return out, nil
}

func (r *claimRepo) ListByUser(ctx context.Context, userID string) ([]*claim.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []*claim.Claim
	err := r.s.db.SelectContext(ctx, &out, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list claims by user: %v", claim.ErrInternal, err)
	}
	return out, nil
}

func (r *claimRepo) ListDue(ctx context.Context, now time.Time, after *claim.DueCursor, limit int) ([]*claim.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT ` + claimColumns + `
		FROM claims
		WHERE status = 'approved'
		  AND approved_at + make_interval(days => maturity_days) <= $1`
	args := []interface{}{now}
	if after != nil {
		query += ` AND (approved_at, id) > ($2, $3)`
		args = append(args, after.ApprovedAt, after.ID)
	}
	query += fmt.Sprintf(` ORDER BY approved_at ASC, id ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var out []*claim.Claim
	if err := r.s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list due claims: %v", claim.ErrInternal, err)
	}
	return out, nil
}

func (r *claimRepo) UpdateEvidenceRef(ctx context.Context, id uuid.UUID, oldRef, newRef string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.s.db.ExecContext(ctx, `
		UPDATE claims
		SET evidence_ref = $3, updated_at = now()
		WHERE id = $1 AND evidence_ref = $2
	`, id, oldRef, newRef)
	if err != nil {
		return fmt.Errorf("%w: update evidence ref: %v", claim.ErrInternal, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", claim.ErrInternal, err)
	}
	if rows == 0 {
		return claim.ErrClaimNotFound
	}
	return nil
}
