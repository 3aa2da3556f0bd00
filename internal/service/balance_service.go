package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

// BalanceService implements the BalanceService Connect service.
type BalanceService struct {
	store           storage.Store
	defaultCurrency string
}

// NewBalanceService creates a new BalanceService with the given storage.
func NewBalanceService(store storage.Store, defaultCurrency string) *BalanceService {
	return &BalanceService{store: store, defaultCurrency: defaultCurrency}
}

// GetBalanceReport returns the caller's debts and credits, one report per
// currency. Without a group_id every approved expense and confirmed
// settlement involving the caller counts; with one, only the group's.
func (s *BalanceService) GetBalanceReport(ctx context.Context, req *connect.Request[rpc.GetBalanceReportRequest]) (*connect.Response[rpc.GetBalanceReportResponse], error) {
	viewerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("GetBalanceReport request received", "viewer_id", viewerID, "group_id", groupID)

	expenseFilter := storage.ExpenseFilter{UserID: viewerID, ApprovedOnly: true}
	settlementFilter := storage.SettlementFilter{UserID: viewerID, ConfirmedOnly: true}
	if groupID != "" {
		if err := requireMember(ctx, s.store, groupID, viewerID); err != nil {
			slog.Error("GetBalanceReport membership check failed", "group_id", groupID, "error", err)
			return nil, toConnectError(err)
		}
		expenseFilter = storage.ExpenseFilter{GroupID: groupID, ApprovedOnly: true}
		settlementFilter = storage.SettlementFilter{GroupID: groupID, ConfirmedOnly: true}
	}

	edges, err := debtGraph(ctx, s.store, expenseFilter, settlementFilter)
	if err != nil {
		slog.Error("GetBalanceReport failed", "error", err)
		return nil, toConnectError(err)
	}
	reports := calculator.BuildReports(viewerID, edges, s.defaultCurrency)

	var ids []string
	for _, r := range reports {
		for _, c := range r.Debts {
			ids = append(ids, c.UserID)
		}
		for _, c := range r.Credits {
			ids = append(ids, c.UserID)
		}
	}
	users, err := s.store.GetUsersByIDs(ctx, uniqueSorted(ids))
	if err != nil {
		slog.Error("GetBalanceReport failed - could not resolve users", "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*rpc.BalanceReport, len(reports))
	for i, r := range reports {
		out[i] = &rpc.BalanceReport{
			ViewerID:          r.ViewerID,
			Currency:          r.Currency,
			Debts:             toCounterparties(r.Debts, users),
			Credits:           toCounterparties(r.Credits, users),
			TotalOwedByViewer: money(r.TotalOwedByViewer),
			TotalOwedToViewer: money(r.TotalOwedToViewer),
			NetBalance:        money(r.NetBalance),
		}
	}

	slog.Info("GetBalanceReport successful", "viewer_id", viewerID, "reports_count", len(out), "edges_count", len(edges))

	return connect.NewResponse(&rpc.GetBalanceReportResponse{Reports: out}), nil
}

// debtGraph loads a snapshot of expenses and settlements and nets it.
func debtGraph(ctx context.Context, store storage.Store, ef storage.ExpenseFilter, sf storage.SettlementFilter) ([]calculator.DebtEdge, error) {
	expenses, err := store.ListExpenses(ctx, ef)
	if err != nil {
		return nil, err
	}
	settlements, err := store.ListSettlements(ctx, sf)
	if err != nil {
		return nil, err
	}
	return calculator.NetDebts(toBalanceExpenses(expenses), toBalanceSettlements(settlements)), nil
}

func toBalanceExpenses(expenses []*models.Expense) []calculator.ExpenseForBalance {
	out := make([]calculator.ExpenseForBalance, len(expenses))
	for i, e := range expenses {
		splits := make([]calculator.SplitForBalance, len(e.Splits))
		for j, sp := range e.Splits {
			splits[j] = calculator.SplitForBalance{UserID: sp.UserID, Remaining: sp.Remaining()}
		}
		out[i] = calculator.ExpenseForBalance{
			ID:       e.ID,
			PayerID:  e.PayerID,
			Currency: e.Currency,
			Approved: e.IsApproved(),
			Splits:   splits,
		}
	}
	return out
}

func toBalanceSettlements(settlements []*models.Settlement) []calculator.SettlementForBalance {
	out := make([]calculator.SettlementForBalance, len(settlements))
	for i, st := range settlements {
		out[i] = calculator.SettlementForBalance{
			FromUserID: st.FromUserID,
			ToUserID:   st.ToUserID,
			Amount:     st.Amount,
			Currency:   st.Currency,
			Confirmed:  st.Status == models.SettlementConfirmed,
		}
	}
	return out
}

func toCounterparties(lines []calculator.Counterparty, users map[string]*models.User) []*rpc.Counterparty {
	out := make([]*rpc.Counterparty, len(lines))
	for i, c := range lines {
		out[i] = &rpc.Counterparty{UserID: c.UserID, Amount: money(c.Amount)}
		if u, ok := users[c.UserID]; ok {
			out[i].DisplayName = u.DisplayName
		}
	}
	return out
}
