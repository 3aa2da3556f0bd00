package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	store storage.Store
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// GetGroup returns a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[rpc.GetGroupRequest]) (*connect.Response[rpc.GetGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("GetGroup request received", "group_id", groupID)

	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group_id required"))
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		slog.Error("GetGroup failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}
	if !group.HasMember(userID) {
		return nil, toConnectError(apperr.ErrNotAMember)
	}

	out, err := s.toGroupProto(ctx, group)
	if err != nil {
		slog.Error("GetGroup failed - could not total expenses", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "name", group.Name)
	return connect.NewResponse(&rpc.GetGroupResponse{Group: out}), nil
}

// ListGroups returns the caller's groups, newest first. Archived groups are
// included.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[rpc.ListGroupsRequest]) (*connect.Response[rpc.ListGroupsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListGroups request received", "user_id", userID)

	groups, err := s.store.ListGroups(ctx, userID)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*rpc.Group, len(groups))
	for i, group := range groups {
		if out[i], err = s.toGroupProto(ctx, group); err != nil {
			slog.Error("ListGroups failed - could not total expenses", "group_id", group.ID, "error", err)
			return nil, toConnectError(err)
		}
	}

	slog.Info("ListGroups successful", "count", len(out))
	return connect.NewResponse(&rpc.ListGroupsResponse{Groups: out}), nil
}

// toGroupProto converts a group and totals every expense logged in it per
// currency, approved or not.
func (s *GroupService) toGroupProto(ctx context.Context, group *models.Group) (*rpc.Group, error) {
	expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{GroupID: group.ID})
	if err != nil {
		return nil, err
	}
	totals := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		totals[e.Currency] = totals[e.Currency].Add(e.Amount)
	}
	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	out := &rpc.Group{
		ID:            group.ID,
		Name:          group.Name,
		Active:        group.Active,
		Members:       group.Members,
		MemberCount:   len(group.Members),
		ExpenseTotals: make([]*rpc.CurrencyAmount, len(currencies)),
		CreatedAt:     group.CreatedAt,
	}
	for i, c := range currencies {
		out.ExpenseTotals[i] = &rpc.CurrencyAmount{Currency: c, Amount: money(totals[c])}
	}
	return out, nil
}

// GetGroupBalances calculates balances across all approved expenses and
// confirmed settlements in a group.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[rpc.GetGroupBalancesRequest]) (*connect.Response[rpc.GetGroupBalancesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("GetGroupBalances request received", "group_id", groupID)

	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group_id required"))
	}
	if err := requireMember(ctx, s.store, groupID, userID); err != nil {
		slog.Error("GetGroupBalances failed - membership check", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	edges, err := debtGraph(ctx, s.store,
		storage.ExpenseFilter{GroupID: groupID, ApprovedOnly: true},
		storage.SettlementFilter{GroupID: groupID, ConfirmedOnly: true},
	)
	if err != nil {
		slog.Error("GetGroupBalances failed - could not load ledger", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}
	memberBalances := calculator.MemberBalances(edges)

	// Convert to wire messages
	balances := make([]*rpc.MemberBalance, len(memberBalances))
	for i, bal := range memberBalances {
		balances[i] = &rpc.MemberBalance{
			UserID:     bal.UserID,
			Currency:   bal.Currency,
			TotalOwed:  money(bal.TotalOwed),
			TotalOwing: money(bal.TotalOwing),
			NetBalance: money(bal.NetBalance),
		}
	}

	debts := make([]*rpc.Debt, len(edges))
	for i, debt := range edges {
		debts[i] = &rpc.Debt{
			FromUserID: debt.From,
			ToUserID:   debt.To,
			Amount:     money(debt.Amount),
			Currency:   debt.Currency,
		}
	}

	slog.Info("GetGroupBalances successful",
		"group_id", groupID,
		"members_count", len(memberBalances),
		"debts_count", len(edges),
	)

	return connect.NewResponse(&rpc.GetGroupBalancesResponse{
		GroupID:        groupID,
		MemberBalances: balances,
		Debts:          debts,
	}), nil
}

// ListGroupExpenses returns every expense of a group, newest first.
func (s *GroupService) ListGroupExpenses(ctx context.Context, req *connect.Request[rpc.ListGroupExpensesRequest]) (*connect.Response[rpc.ListGroupExpensesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("ListGroupExpenses request received", "group_id", groupID)

	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group_id required"))
	}
	if err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, toConnectError(err)
	}

	expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{GroupID: groupID})
	if err != nil {
		slog.Error("ListGroupExpenses failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&rpc.ListGroupExpensesResponse{Expenses: toExpenseProtos(expenses)}), nil
}

// requireMember fails with NotAMember unless userID belongs to the group.
// Archived groups stay readable by their members.
func requireMember(ctx context.Context, store storage.Store, groupID, userID string) error {
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.HasMember(userID) {
		return apperr.ErrNotAMember
	}
	return nil
}
