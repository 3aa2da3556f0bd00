package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Share is one participant's requested part of an expense.
// Amount is required for exact splits, Percentage for percentage splits;
// both are ignored for equal splits.
type Share struct {
	UserID     string
	Amount     *decimal.Decimal
	Percentage *decimal.Decimal
}

// PersonSplit is the calculated share for one participant.
type PersonSplit struct {
	UserID     string
	Amount     decimal.Decimal
	Percentage *decimal.Decimal
}

// CalculateSplits divides amount among shares according to splitType.
// The returned splits keep the order of shares and always sum to amount.
//
// Equal and percentage shares are rounded down to the cent. Leftover cents go
// to the payer's split when the payer participates, otherwise one cent each to
// participants in order.
func CalculateSplits(amount decimal.Decimal, payerID string, splitType models.SplitType, shares []Share) ([]PersonSplit, error) {
	if !amount.IsPositive() || !isCents(amount) {
		return nil, apperr.New(apperr.KindInvalidAmount, "expense amount must be positive with at most 2 decimal places, got %s", amount)
	}
	if len(shares) == 0 {
		return nil, apperr.New(apperr.KindInvalidSplit, "must have at least one participant")
	}
	seen := make(map[string]bool, len(shares))
	for _, s := range shares {
		if s.UserID == "" {
			return nil, apperr.New(apperr.KindInvalidSplit, "participant user_id required")
		}
		if seen[s.UserID] {
			return nil, apperr.New(apperr.KindInvalidSplit, "participant %s listed twice", s.UserID)
		}
		seen[s.UserID] = true
	}

	switch splitType {
	case models.SplitEqual:
		return equalSplits(amount, payerID, shares), nil
	case models.SplitExact:
		return exactSplits(amount, payerID, shares)
	case models.SplitPercentage:
		return percentageSplits(amount, payerID, shares)
	default:
		return nil, apperr.New(apperr.KindInvalidSplit, "unknown split type %q", splitType)
	}
}

func equalSplits(amount decimal.Decimal, payerID string, shares []Share) []PersonSplit {
	share, remainder := toCents(amount).QuoRem(decimal.NewFromInt(int64(len(shares))), 0)
	cents := make([]decimal.Decimal, len(shares))
	for i := range cents {
		cents[i] = share
	}
	distributeRemainder(cents, remainder.IntPart(), payerID, shares)
	return buildSplits(shares, cents, false)
}

func exactSplits(amount decimal.Decimal, payerID string, shares []Share) ([]PersonSplit, error) {
	sum := decimal.Zero
	out := make([]PersonSplit, len(shares))
	for i, s := range shares {
		if s.Amount == nil {
			return nil, apperr.New(apperr.KindInvalidSplit, "exact split for %s requires an amount", s.UserID)
		}
		if s.Amount.IsNegative() || !isCents(*s.Amount) {
			return nil, apperr.New(apperr.KindInvalidSplit, "exact split for %s has invalid amount %s", s.UserID, s.Amount)
		}
		if s.Amount.IsZero() && s.UserID != payerID {
			return nil, apperr.New(apperr.KindInvalidSplit, "exact split for %s must be positive", s.UserID)
		}
		sum = sum.Add(*s.Amount)
		out[i] = PersonSplit{UserID: s.UserID, Amount: *s.Amount}
	}
	if !sum.Equal(amount) {
		return nil, apperr.New(apperr.KindInvalidSplit, "exact splits sum to %s, expense amount is %s", sum.StringFixed(2), amount.StringFixed(2))
	}
	return out, nil
}

func percentageSplits(amount decimal.Decimal, payerID string, shares []Share) ([]PersonSplit, error) {
	total := toCents(amount)
	sumPct := decimal.Zero
	cents := make([]decimal.Decimal, len(shares))
	assigned := decimal.Zero
	for i, s := range shares {
		if s.Percentage == nil {
			return nil, apperr.New(apperr.KindInvalidSplit, "percentage split for %s requires a percentage", s.UserID)
		}
		pct := *s.Percentage
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return nil, apperr.New(apperr.KindInvalidSplit, "percentage for %s must be in (0, 100], got %s", s.UserID, pct)
		}
		sumPct = sumPct.Add(pct)
		cents[i], _ = total.Mul(pct).QuoRem(hundred, 0)
		assigned = assigned.Add(cents[i])
	}
	if !sumPct.Equal(hundred) {
		return nil, apperr.New(apperr.KindInvalidSplit, "percentages sum to %s, want 100", sumPct)
	}
	distributeRemainder(cents, total.Sub(assigned).IntPart(), payerID, shares)
	return buildSplits(shares, cents, true), nil
}

// distributeRemainder hands out leftover cents. The remainder is always
// smaller than the number of shares.
func distributeRemainder(cents []decimal.Decimal, remainder int64, payerID string, shares []Share) {
	if remainder <= 0 {
		return
	}
	for i, s := range shares {
		if s.UserID == payerID {
			cents[i] = cents[i].Add(decimal.NewFromInt(remainder))
			return
		}
	}
	for i := 0; remainder > 0; i = (i + 1) % len(cents) {
		cents[i] = cents[i].Add(decimal.NewFromInt(1))
		remainder--
	}
}

func buildSplits(shares []Share, cents []decimal.Decimal, keepPercentage bool) []PersonSplit {
	out := make([]PersonSplit, len(shares))
	for i, s := range shares {
		out[i] = PersonSplit{
			UserID: s.UserID,
			Amount: cents[i].Shift(-2),
		}
		if keepPercentage && s.Percentage != nil {
			pct := *s.Percentage
			out[i].Percentage = &pct
		}
	}
	return out
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

// toCents scales d to whole cents without leaving decimal arithmetic.
func toCents(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2)
}
