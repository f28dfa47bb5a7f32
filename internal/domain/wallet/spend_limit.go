package wallet

// DefaultSpendPercent is the share of the unlocked balance that may be spent.
const DefaultSpendPercent = 60

// SpendPolicy decides whether a proposed debit may go ahead. Implementations must
// be pure: no I/O, no mutation of w.
type SpendPolicy interface {
	Authorize(w *Wallet, requested int64) error
}

// PercentPolicy caps cumulative spend at floor(unlocked * Percent / 100).
type PercentPolicy struct {
	Percent int64
}

func NewPercentPolicy(percent int) PercentPolicy {
	if percent <= 0 || percent > 100 {
		percent = DefaultSpendPercent
	}
	return PercentPolicy{Percent: int64(percent)}
}

// Ceiling returns the spendable ceiling for w. Integer division floors for
// non-negative balances.
func (p PercentPolicy) Ceiling(w *Wallet) int64 {
	if w.UnlockedBalance <= 0 {
		return 0
	}
	return w.UnlockedBalance * p.Percent / 100
}

// Remaining returns how much more may be spent, never below zero.
func (p PercentPolicy) Remaining(w *Wallet) int64 {
	rest := p.Ceiling(w) - w.TotalSpent
	if rest < 0 {
		return 0
	}
	return rest
}

func (p PercentPolicy) Authorize(w *Wallet, requested int64) error {
	if requested <= 0 {
		return ErrInvalidAmount
	}
	if w.TotalSpent+requested > p.Ceiling(w) {
		return ErrSpendLimitExceeded
	}
	return nil
}
