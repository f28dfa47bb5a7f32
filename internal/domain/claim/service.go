package claim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/pkg/clock"
)

// maxOrderAmount is the largest value the claims.order_amount column holds.
var maxOrderAmount = decimal.RequireFromString("999999999999.99")

const (
	defaultSweepBatch = 100
	defaultPageLimit  = 20
	maxPageLimit      = 100
)

// RelocationQueue accepts evidence moves to run after a review commits.
type RelocationQueue interface {
	Enqueue(job RelocationJob) bool
}

// Engine runs the claim lifecycle: submission, review and maturity release.
type Engine struct {
	repo       Repository
	ledger     *wallet.Ledger
	rules      *RuleTable
	clock      clock.Clock
	relocator  RelocationQueue
	sweepBatch int
}

// NewEngine creates the claim engine. relocator may be nil, in which case
// evidence stays where it was uploaded.
func NewEngine(repo Repository, ledger *wallet.Ledger, rules *RuleTable, clk clock.Clock, relocator RelocationQueue) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{
		repo:       repo,
		ledger:     ledger,
		rules:      rules,
		clock:      clk,
		relocator:  relocator,
		sweepBatch: defaultSweepBatch,
	}
}

// WithSweepBatchSize sets how many due claims one sweep query loads.
func (e *Engine) WithSweepBatchSize(n int) *Engine {
	if n > 0 {
		e.sweepBatch = n
	}
	return e
}

// Rules returns the rule table the engine prices claims with.
func (e *Engine) Rules() *RuleTable {
	return e.rules
}

// Submit records a pending claim. Reward and maturity window are resolved here
// and never recomputed.
func (e *Engine) Submit(ctx context.Context, userID, orderID string, orderAmount decimal.Decimal, category, evidenceRef string) (*Claim, error) {
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	evidenceRef = strings.TrimSpace(evidenceRef)

	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidClaim)
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidClaim)
	}
	if evidenceRef == "" {
		return nil, fmt.Errorf("%w: evidence is required", ErrInvalidClaim)
	}
	if !orderAmount.IsPositive() {
		return nil, fmt.Errorf("%w: order amount must be positive", ErrInvalidClaim)
	}
	if !orderAmount.Equal(orderAmount.Truncate(2)) {
		return nil, fmt.Errorf("%w: order amount has more than two decimal places", ErrInvalidClaim)
	}
	if orderAmount.GreaterThan(maxOrderAmount) {
		return nil, fmt.Errorf("%w: order amount exceeds %s", ErrInvalidClaim, maxOrderAmount.StringFixed(2))
	}

	coins, days, err := e.rules.RewardFor(category, orderAmount)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	c := &Claim{
		ID:           uuid.New(),
		UserID:       userID,
		OrderID:      orderID,
		OrderAmount:  orderAmount,
		Category:     normalizeCategory(category),
		RewardCoins:  coins,
		MaturityDays: days,
		EvidenceRef:  evidenceRef,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	log.Info().
		Str("claim_id", c.ID.String()).
		Str("user_id", userID).
		Str("order_id", orderID).
		Str("category", c.Category).
		Int64("reward_coins", coins).
		Int("maturity_days", days).
		Msg("Claim submitted")
	return c, nil
}

// Approve marks a pending claim approved and credits its reward to the owner's
// locked balance in the same unit.
func (e *Engine) Approve(ctx context.Context, claimID uuid.UUID, reviewerID, note string) (*Claim, error) {
	var out *Claim
	err := e.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		c, err := e.review(ctx, tx, claimID, StatusApproved, reviewerID, note)
		if err != nil {
			return err
		}

		meta := wallet.Metadata{
			wallet.MetaClaimID:      c.ID.String(),
			wallet.MetaOrderID:      c.OrderID,
			wallet.MetaMaturityDays: strconv.Itoa(c.MaturityDays),
		}
		if _, err := e.ledger.CreditLockedTx(ctx, tx, c.UserID, c.RewardCoins, wallet.SourceAffiliate, ApprovedReference(c.ID), meta); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("claim_id", out.ID.String()).
		Str("user_id", out.UserID).
		Int64("reward_coins", out.RewardCoins).
		Msg("Claim approved")

	e.relocate(out, StatusPending, StatusApproved)
	return out, nil
}

// Reject closes a pending claim without any ledger effect.
func (e *Engine) Reject(ctx context.Context, claimID uuid.UUID, reviewerID, note string) (*Claim, error) {
	var out *Claim
	err := e.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		c, err := e.review(ctx, tx, claimID, StatusRejected, reviewerID, note)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("claim_id", out.ID.String()).Str("user_id", out.UserID).Msg("Claim rejected")

	e.relocate(out, StatusPending, StatusRejected)
	return out, nil
}

func (e *Engine) review(ctx context.Context, tx Tx, claimID uuid.UUID, to Status, reviewerID, note string) (*Claim, error) {
	c, err := tx.LockClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPending {
		return nil, fmt.Errorf("%w: claim is %s", ErrInvalidState, c.Status)
	}

	now := e.clock.Now()
	c.Status = to
	c.UpdatedAt = now
	if to == StatusApproved {
		c.ApprovedAt = &now
	}
	if reviewerID != "" {
		c.ReviewerID = &reviewerID
	}
	if note != "" {
		c.ReviewNote = &note
	}

	if err := tx.UpdateClaim(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SweepMaturity releases every approved claim whose maturity window has elapsed
// at now. Each claim is released in its own unit; a failing claim is logged and
// skipped, and the keyset cursor moves past it so it cannot hold back the
// claims queued behind it. It returns how many claims matured.
func (e *Engine) SweepMaturity(ctx context.Context, now time.Time) (int, error) {
	matured, failed := 0, 0
	var cursor *DueCursor
	for {
		if err := ctx.Err(); err != nil {
			return matured, err
		}

		due, err := e.repo.ListDue(ctx, now, cursor, e.sweepBatch)
		if err != nil {
			return matured, err
		}

		for _, c := range due {
			ok, err := e.matureOne(ctx, c.ID, now)
			if err != nil {
				failed++
				log.Error().
					Err(err).
					Str("claim_id", c.ID.String()).
					Str("user_id", c.UserID).
					Msg("Failed to mature claim")
				continue
			}
			if ok {
				matured++
			}
		}

		if len(due) < e.sweepBatch {
			break
		}
		cursor = CursorAfter(due[len(due)-1])
	}

	if matured > 0 || failed > 0 {
		log.Info().Int("matured", matured).Int("failed", failed).Time("as_of", now).Msg("Maturity sweep finished")
	}
	return matured, nil
}

func (e *Engine) matureOne(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	matured := false
	err := e.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.LockClaim(ctx, id)
		if err != nil {
			return err
		}
		// Another sweeper may have released it since the query.
		if !c.IsDue(now) {
			return nil
		}

		c.Status = StatusMatured
		c.MaturedAt = &now
		c.UpdatedAt = now
		if err := tx.UpdateClaim(ctx, c); err != nil {
			return err
		}

		meta := wallet.Metadata{
			wallet.MetaClaimID: c.ID.String(),
			wallet.MetaOrderID: c.OrderID,
		}
		if _, err := e.ledger.ReleaseLockedTx(ctx, tx, c.UserID, c.RewardCoins, MaturedReference(c.ID), meta); err != nil {
			return err
		}
		matured = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return matured, nil
}

// ListPending returns the review queue, oldest first.
func (e *Engine) ListPending(ctx context.Context, limit, offset int) ([]*Claim, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return e.repo.ListByStatus(ctx, StatusPending, limit, offset)
}

// ListForUser returns the user's claims, newest first.
func (e *Engine) ListForUser(ctx context.Context, userID string) ([]*Claim, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidClaim)
	}
	return e.repo.ListByUser(ctx, userID)
}

func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return e.repo.GetByID(ctx, id)
}

func (e *Engine) relocate(c *Claim, from, to Status) {
	if e.relocator == nil || c.EvidenceRef == "" {
		return
	}
	job := RelocationJob{ClaimID: c.ID, Ref: c.EvidenceRef, From: from, To: to}
	if !e.relocator.Enqueue(job) {
		log.Warn().Str("claim_id", c.ID.String()).Msg("Evidence relocation not scheduled")
	}
}

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidClaim) || errors.Is(err, ErrUnknownCategory)
}
