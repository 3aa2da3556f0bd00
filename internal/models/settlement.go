package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
)

// SettlementStatus is the lifecycle state of a settlement.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementCancelled SettlementStatus = "cancelled"
)

// Settlement represents a payment between two users to clear debts.
// Only confirmed settlements reduce outstanding balances.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to. Empty for personal settlements.
	GroupID string

	// FromUserID is the user who paid (debtor settling up).
	FromUserID string

	// ToUserID is the user who received payment (creditor being paid).
	ToUserID string

	Amount   decimal.Decimal
	Currency string
	Status   SettlementStatus

	// Note is an optional description for the settlement.
	Note string

	CreatedAt time.Time

	// ConfirmedAt is set exactly once, when the settlement is confirmed.
	ConfirmedAt *time.Time
}

// Confirm moves a pending settlement to confirmed. Only the receiver may
// confirm, and a confirmed settlement cannot be confirmed again.
func (s *Settlement) Confirm(actorID string, at time.Time) error {
	if actorID != s.ToUserID {
		return apperr.New(apperr.KindNotAuthorized, "you can only confirm settlements made to you")
	}
	switch s.Status {
	case SettlementConfirmed:
		return apperr.ErrAlreadyConfirmed
	case SettlementCancelled:
		return apperr.New(apperr.KindInvalidState, "settlement %s was cancelled", s.ID)
	}
	s.Status = SettlementConfirmed
	s.ConfirmedAt = &at
	return nil
}

// Cancel moves a pending settlement to cancelled. Either party may cancel.
func (s *Settlement) Cancel(actorID string) error {
	if actorID != s.FromUserID && actorID != s.ToUserID {
		return apperr.New(apperr.KindNotAuthorized, "only the payer or receiver can cancel a settlement")
	}
	if s.Status != SettlementPending {
		return apperr.New(apperr.KindInvalidState, "cannot cancel a %s settlement", s.Status)
	}
	s.Status = SettlementCancelled
	return nil
}

// PaymentApplication records part of a payment consumed against one split.
type PaymentApplication struct {
	ID        string
	PaymentID string
	ExpenseID string
	UserID    string
	Amount    decimal.Decimal
	CreatedAt time.Time
}
