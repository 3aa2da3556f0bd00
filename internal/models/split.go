package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/verification"
)

// SplitType controls how an expense amount is divided.
type SplitType string

const (
	SplitEqual      SplitType = "equal"
	SplitExact      SplitType = "exact"
	SplitPercentage SplitType = "percentage"
)

// ParseSplitType converts a wire string into a SplitType.
// An empty string defaults to an equal split.
func ParseSplitType(s string) (SplitType, error) {
	switch SplitType(s) {
	case "":
		return SplitEqual, nil
	case SplitEqual, SplitExact, SplitPercentage:
		return SplitType(s), nil
	default:
		return "", apperr.New(apperr.KindInvalidSplit, "unknown split type %q", s)
	}
}

// Expense is an amount paid by one user and shared among participants.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	Title       string
	Description string

	Amount   decimal.Decimal
	Currency string

	// PayerID is the user who paid for the expense.
	PayerID string

	// GroupID is empty for personal expenses.
	GroupID string

	SplitType SplitType

	// Splits are kept in creation order.
	Splits []ExpenseSplit

	// Verification is mutated only through Verification.SetStatus.
	Verification *verification.State

	CreatedAt   time.Time
	ExpenseDate time.Time
}

// IsApproved reports whether every involved user accepted the expense.
func (e *Expense) IsApproved() bool {
	return e.Verification != nil && e.Verification.Approved()
}

// Participants returns the user IDs of every split, in split order.
func (e *Expense) Participants() []string {
	users := make([]string, len(e.Splits))
	for i, s := range e.Splits {
		users[i] = s.UserID
	}
	return users
}

// IsInvolved reports whether userID paid for or shares the expense.
func (e *Expense) IsInvolved(userID string) bool {
	if e.PayerID == userID {
		return true
	}
	for _, s := range e.Splits {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// ExpenseSplit is one user's share of an expense.
type ExpenseSplit struct {
	ExpenseID string
	UserID    string

	// Amount is the share originally assigned. It never changes after creation.
	Amount decimal.Decimal

	// Settled is the part of Amount already paid through payment applications.
	Settled decimal.Decimal

	// Percentage is only set for percentage splits.
	Percentage *decimal.Decimal

	// Seq orders splits by creation; assigned by the store.
	Seq int64
}

// Remaining is the amount still owed on the split.
func (s ExpenseSplit) Remaining() decimal.Decimal {
	return s.Amount.Sub(s.Settled)
}
