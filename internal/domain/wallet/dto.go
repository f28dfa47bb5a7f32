package wallet

import "time"

type SpendRequest struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	ReferenceID string `json:"reference_id" validate:"required,max=128"`
	Description string `json:"description" validate:"max=255"`
}

type AdjustRequest struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Direction   string `json:"direction" validate:"required,direction"`
	Reason      string `json:"reason" validate:"required,max=255"`
	ReferenceID string `json:"reference_id" validate:"max=128"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,wallet_status"`
}

type BalanceResponse struct {
	UserID          string    `json:"user_id"`
	UnlockedBalance int64     `json:"unlocked_balance"`
	LockedBalance   int64     `json:"locked_balance"`
	TotalEarned     int64     `json:"total_earned"`
	TotalSpent      int64     `json:"total_spent"`
	Breakdown       Breakdown `json:"breakdown"`
	Status          Status    `json:"status"`
	SpendCeiling    int64     `json:"spend_ceiling"`
	SpendRemaining  int64     `json:"spend_remaining"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewBalanceResponse(w *Wallet, policy PercentPolicy) BalanceResponse {
	return BalanceResponse{
		UserID:          w.UserID,
		UnlockedBalance: w.UnlockedBalance,
		LockedBalance:   w.LockedBalance,
		TotalEarned:     w.TotalEarned,
		TotalSpent:      w.TotalSpent,
		Breakdown:       w.Breakdown,
		Status:          w.Status,
		SpendCeiling:    policy.Ceiling(w),
		SpendRemaining:  policy.Remaining(w),
		UpdatedAt:       w.UpdatedAt,
	}
}

type TransactionResponse struct {
	Transaction *Transaction    `json:"transaction"`
	Balance     BalanceResponse `json:"balance"`
}
