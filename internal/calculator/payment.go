package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
)

// PayableSplit is a split that a payment can be applied to.
type PayableSplit struct {
	ExpenseID string
	UserID    string
	Remaining decimal.Decimal
}

// Allocation is the part of a payment consumed by one split.
type Allocation struct {
	ExpenseID        string
	UserID           string
	Applied          decimal.Decimal
	RemainingOnSplit decimal.Decimal
}

// GlobalPlan is the outcome of settling everything between two users.
type GlobalPlan struct {
	// Net is what the payer owed the receiver before the payment.
	Net decimal.Decimal
	// Effective is the part of the requested amount that was used.
	Effective decimal.Decimal
	// Offsets consume the receiver's splits owed back to the payer.
	Offsets []Allocation
	// Payments consume the payer's splits owed to the receiver.
	Payments  []Allocation
	Unapplied decimal.Decimal
}

// AllocatePayment walks splits in the given order and greedily consumes
// min(remaining payment, split remaining) from each until the payment or the
// splits run out. Splits with nothing remaining are skipped.
// It returns the allocations and the part of amount left unapplied.
func AllocatePayment(amount decimal.Decimal, splits []PayableSplit) ([]Allocation, decimal.Decimal) {
	left := amount
	var out []Allocation
	for _, s := range splits {
		if !left.IsPositive() {
			break
		}
		if !s.Remaining.IsPositive() {
			continue
		}
		applied := decimal.Min(left, s.Remaining)
		left = left.Sub(applied)
		out = append(out, Allocation{
			ExpenseID:        s.ExpenseID,
			UserID:           s.UserID,
			Applied:          applied,
			RemainingOnSplit: s.Remaining.Sub(applied),
		})
	}
	return out, left
}

// PlanGlobalPayment settles up between a payer and a receiver in one go.
//
// owed are the payer's splits on expenses the receiver paid; offset are the
// receiver's splits on expenses the payer paid. Both must be in creation
// order. The pair is netted first; the payment is capped at the net amount.
// Every offset split is consumed in full and the same total plus the effective
// payment is consumed from the owed splits.
func PlanGlobalPayment(amount decimal.Decimal, owed, offset []PayableSplit) (*GlobalPlan, error) {
	if !amount.IsPositive() {
		return nil, apperr.ErrInvalidAmount
	}
	owedTotal := sumRemaining(owed)
	offsetTotal := sumRemaining(offset)
	net := owedTotal.Sub(offsetTotal)
	if !net.IsPositive() {
		return nil, apperr.New(apperr.KindNoOutstandingDebt, "net balance is %s, nothing to pay", net.StringFixed(2))
	}

	effective := decimal.Min(amount, net)
	offsets, _ := AllocatePayment(offsetTotal, offset)
	payments, _ := AllocatePayment(offsetTotal.Add(effective), owed)

	return &GlobalPlan{
		Net:       net,
		Effective: effective,
		Offsets:   offsets,
		Payments:  payments,
		Unapplied: amount.Sub(effective),
	}, nil
}

func sumRemaining(splits []PayableSplit) decimal.Decimal {
	total := decimal.Zero
	for _, s := range splits {
		if s.Remaining.IsPositive() {
			total = total.Add(s.Remaining)
		}
	}
	return total
}
