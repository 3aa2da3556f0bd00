package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/verification"
)

// ExpenseService implements the ExpenseService Connect service.
type ExpenseService struct {
	store           storage.Store
	defaultCurrency string
}

// NewExpenseService creates a new ExpenseService with the given storage.
// Expenses that name no currency are tagged with defaultCurrency.
func NewExpenseService(store storage.Store, defaultCurrency string) *ExpenseService {
	return &ExpenseService{store: store, defaultCurrency: defaultCurrency}
}

// CreateExpense records an expense paid by the caller and splits it among the
// participants. The payer starts accepted, everyone else pending.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[rpc.CreateExpenseRequest]) (*connect.Response[rpc.CreateExpenseResponse], error) {
	payerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	slog.Info("CreateExpense request received", "payer_id", payerID, "group_id", msg.GroupID, "split_type", msg.SplitType)

	if strings.TrimSpace(msg.Title) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("title is required"))
	}
	amount, err := parseAmount(msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}
	splitType, err := models.ParseSplitType(msg.SplitType)
	if err != nil {
		return nil, toConnectError(err)
	}

	var group *models.Group
	if msg.GroupID != "" {
		group, err = activeGroupOf(ctx, s.store, msg.GroupID, payerID)
		if err != nil {
			slog.Error("CreateExpense group check failed", "group_id", msg.GroupID, "error", err)
			return nil, toConnectError(err)
		}
	}

	shares, err := parseShares(msg.Splits)
	if err != nil {
		return nil, toConnectError(err)
	}
	if len(shares) == 0 && splitType == models.SplitEqual && group != nil {
		for _, member := range group.Members {
			shares = append(shares, calculator.Share{UserID: member})
		}
	}

	if err := s.checkParticipants(ctx, shares, group); err != nil {
		slog.Error("CreateExpense participant validation failed", "error", err)
		return nil, toConnectError(err)
	}

	var expenseDate time.Time
	if msg.ExpenseDate != "" {
		expenseDate, err = time.Parse(time.RFC3339, msg.ExpenseDate)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("expense_date must be RFC 3339: %w", err))
		}
	}

	splits, err := calculator.CalculateSplits(amount, payerID, splitType, shares)
	if err != nil {
		slog.Error("CalculateSplits failed during CreateExpense", "error", err)
		return nil, toConnectError(err)
	}

	expense := &models.Expense{
		Title:       strings.TrimSpace(msg.Title),
		Description: msg.Description,
		Amount:      amount,
		Currency:    currencyOr(msg.Currency, s.defaultCurrency),
		PayerID:     payerID,
		GroupID:     msg.GroupID,
		SplitType:   splitType,
		Splits:      make([]models.ExpenseSplit, len(splits)),
		ExpenseDate: expenseDate.UTC(),
	}
	for i, split := range splits {
		expense.Splits[i] = models.ExpenseSplit{
			UserID:     split.UserID,
			Amount:     split.Amount,
			Settled:    decimal.Zero,
			Percentage: split.Percentage,
		}
	}
	expense.Verification = verification.New(payerID, expense.Participants())

	// Save to storage (generates ID and CreatedAt)
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("CreateExpense failed", "error", err)
		return nil, toConnectError(err)
	}
	metrics.ExpensesCreated.WithLabelValues(string(splitType)).Inc()

	slog.Info("Expense created",
		"expense_id", expense.ID,
		"amount", money(expense.Amount),
		"currency", expense.Currency,
		"splits_count", len(expense.Splits),
	)

	return connect.NewResponse(&rpc.CreateExpenseResponse{Expense: toExpenseProto(expense)}), nil
}

// GetExpense returns one expense. The caller must be involved in it or belong
// to its group.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[rpc.GetExpenseRequest]) (*connect.Response[rpc.GetExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetExpense request received", "expense_id", req.Msg.ExpenseID)

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		slog.Error("GetExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	if !expense.IsInvolved(userID) {
		allowed := false
		if expense.GroupID != "" {
			group, err := s.store.GetGroup(ctx, expense.GroupID)
			if err != nil {
				return nil, toConnectError(err)
			}
			allowed = group.HasMember(userID)
		}
		if !allowed {
			return nil, toConnectError(apperr.New(apperr.KindNotAuthorized, "you are not allowed to view expense %s", expense.ID))
		}
	}

	return connect.NewResponse(&rpc.GetExpenseResponse{Expense: toExpenseProto(expense)}), nil
}

// ListExpenses returns the expenses the caller is involved in, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[rpc.ListExpensesRequest]) (*connect.Response[rpc.ListExpensesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListExpenses request received", "group_id", req.Msg.GroupID)

	expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{UserID: userID, GroupID: req.Msg.GroupID})
	if err != nil {
		slog.Error("ListExpenses failed", "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&rpc.ListExpensesResponse{Expenses: toExpenseProtos(expenses)}), nil
}

// SetVerificationStatus records the caller's verdict on an expense and
// returns the recomputed approval flag.
func (s *ExpenseService) SetVerificationStatus(ctx context.Context, req *connect.Request[rpc.SetVerificationStatusRequest]) (*connect.Response[rpc.SetVerificationStatusResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SetVerificationStatus request received", "expense_id", req.Msg.ExpenseID, "status", req.Msg.Status)

	status, err := verification.ParseStatus(req.Msg.Status)
	if err != nil {
		return nil, toConnectError(err)
	}

	expense, err := s.store.UpdateVerification(ctx, req.Msg.ExpenseID, func(e *models.Expense) error {
		return e.Verification.SetStatus(userID, status)
	})
	if err != nil {
		slog.Error("SetVerificationStatus failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}
	metrics.VerificationVotes.WithLabelValues(string(status)).Inc()

	slog.Info("Verification status updated",
		"expense_id", expense.ID,
		"user_id", userID,
		"status", status,
		"is_approved", expense.IsApproved(),
	)

	return connect.NewResponse(&rpc.SetVerificationStatusResponse{
		NewStatus:  string(status),
		IsApproved: expense.IsApproved(),
	}), nil
}

// ListPendingVerifications returns the expenses still waiting for the
// caller's verdict.
func (s *ExpenseService) ListPendingVerifications(ctx context.Context, req *connect.Request[rpc.ListPendingVerificationsRequest]) (*connect.Response[rpc.ListPendingVerificationsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListPendingVerifications request received")

	expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{UserID: userID})
	if err != nil {
		slog.Error("ListPendingVerifications failed", "error", err)
		return nil, toConnectError(err)
	}

	var pending []*models.Expense
	for _, e := range expenses {
		if status, ok := e.Verification.Status(userID); ok && status == verification.StatusPending {
			pending = append(pending, e)
		}
	}

	return connect.NewResponse(&rpc.ListPendingVerificationsResponse{Expenses: toExpenseProtos(pending)}), nil
}

// checkParticipants verifies every share names a known user and, inside a
// group, a member of it.
func (s *ExpenseService) checkParticipants(ctx context.Context, shares []calculator.Share, group *models.Group) error {
	ids := make([]string, len(shares))
	for i, share := range shares {
		ids[i] = share.UserID
	}
	users, err := s.store.GetUsersByIDs(ctx, uniqueSorted(ids))
	if err != nil {
		return err
	}
	for _, share := range shares {
		if share.UserID == "" {
			return apperr.New(apperr.KindInvalidSplit, "split is missing a user_id")
		}
		if _, ok := users[share.UserID]; !ok {
			return apperr.New(apperr.KindUserNotFound, "user %s not found", share.UserID)
		}
		if group != nil && !group.HasMember(share.UserID) {
			return apperr.New(apperr.KindInvalidSplit, "user %s is not a member of group %s", share.UserID, group.ID)
		}
	}
	return nil
}

// parseShares converts the wire splits into calculator shares. Amount and
// percentage are only parsed when present; the calculator decides which one
// the split type requires.
func parseShares(inputs []*rpc.SplitInput) ([]calculator.Share, error) {
	shares := make([]calculator.Share, 0, len(inputs))
	for _, in := range inputs {
		if in == nil {
			continue
		}
		share := calculator.Share{UserID: in.UserID}
		if in.Amount != "" {
			d, ok := parseDecimal(in.Amount)
			if !ok {
				return nil, apperr.New(apperr.KindInvalidSplit, "cannot parse split amount %q for user %s", in.Amount, in.UserID)
			}
			share.Amount = &d
		}
		if in.Percentage != "" {
			d, ok := parseDecimal(in.Percentage)
			if !ok {
				return nil, apperr.New(apperr.KindInvalidSplit, "cannot parse split percentage %q for user %s", in.Percentage, in.UserID)
			}
			share.Percentage = &d
		}
		shares = append(shares, share)
	}
	return shares, nil
}

// activeGroupOf loads a group that is active and has userID as a member.
func activeGroupOf(ctx context.Context, store storage.Store, groupID, userID string) (*models.Group, error) {
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.Active {
		return nil, apperr.New(apperr.KindInvalidGroup, "group %s is archived", groupID)
	}
	if !group.HasMember(userID) {
		return nil, apperr.ErrNotAMember
	}
	return group, nil
}
