// Package service implements the Connect handlers of the ledger.
package service

import (
	"context"
	"errors"
	"regexp"
	"sort"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
)

var errUnauthenticated = errors.New("caller identity missing from request")

// callerID returns the authenticated user of the request.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}
	return userID, nil
}

// toConnectError maps ledger error kinds onto Connect codes. Anything
// unclassified is an internal error.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	switch apperr.KindOf(err) {
	case apperr.KindInvalidStatus, apperr.KindInvalidAmount, apperr.KindInvalidSplit:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case apperr.KindReceiverNotFound, apperr.KindUserNotFound, apperr.KindExpenseNotFound,
		apperr.KindSettlementNotFound, apperr.KindGroupNotFound:
		return connect.NewError(connect.CodeNotFound, err)
	case apperr.KindNotInvolved, apperr.KindNotAuthorized, apperr.KindNotAMember:
		return connect.NewError(connect.CodePermissionDenied, err)
	case apperr.KindAlreadyConfirmed, apperr.KindInvalidState, apperr.KindNoOutstandingDebt, apperr.KindInvalidGroup:
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// plainDecimal is the wire form of amounts and percentages: digits with an
// optional fraction, no sign or exponent.
var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// maxAmount is the largest amount a NUMERIC(14, 2) column holds.
var maxAmount = decimal.RequireFromString("999999999999.99")

func parseDecimal(s string) (decimal.Decimal, bool) {
	if !plainDecimal.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	return d, err == nil
}

// parseAmount reads a positive money amount with at most two decimal places.
func parseAmount(s string) (decimal.Decimal, error) {
	amount, ok := parseDecimal(s)
	if !ok {
		return decimal.Zero, apperr.New(apperr.KindInvalidAmount, "cannot parse amount %q", s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperr.New(apperr.KindInvalidAmount, "amount must be positive, got %s", s)
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, apperr.New(apperr.KindInvalidAmount, "amount %s has more than 2 decimal places", s)
	}
	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, apperr.New(apperr.KindInvalidAmount, "amount %s exceeds %s", s, maxAmount.StringFixed(2))
	}
	return amount, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toExpenseProto(e *models.Expense) *rpc.Expense {
	out := &rpc.Expense{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Amount:      money(e.Amount),
		Currency:    e.Currency,
		PayerID:     e.PayerID,
		GroupID:     e.GroupID,
		SplitType:   string(e.SplitType),
		Splits:      make([]*rpc.Split, len(e.Splits)),
		IsApproved:  e.IsApproved(),
		CreatedAt:   e.CreatedAt,
		ExpenseDate: e.ExpenseDate,
	}
	for i, s := range e.Splits {
		split := &rpc.Split{
			UserID:    s.UserID,
			Amount:    money(s.Amount),
			Settled:   money(s.Settled),
			Remaining: money(s.Remaining()),
		}
		if s.Percentage != nil {
			split.Percentage = s.Percentage.String()
		}
		out.Splits[i] = split
	}
	if e.Verification != nil {
		for _, userID := range e.Verification.Involved() {
			status, _ := e.Verification.Status(userID)
			out.Verification = append(out.Verification, &rpc.VerificationEntry{UserID: userID, Status: string(status)})
		}
	}
	return out
}

func toExpenseProtos(expenses []*models.Expense) []*rpc.Expense {
	out := make([]*rpc.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseProto(e)
	}
	return out
}

func toSettlementProto(s *models.Settlement) *rpc.Settlement {
	return &rpc.Settlement{
		ID:          s.ID,
		GroupID:     s.GroupID,
		FromUserID:  s.FromUserID,
		ToUserID:    s.ToUserID,
		Amount:      money(s.Amount),
		Currency:    s.Currency,
		Status:      string(s.Status),
		Note:        s.Note,
		CreatedAt:   s.CreatedAt,
		ConfirmedAt: s.ConfirmedAt,
	}
}

// uniqueSorted returns the distinct values of ids in sorted order.
func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
