package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
)

// SettlementService implements the SettlementService Connect service.
type SettlementService struct {
	store           storage.Store
	defaultCurrency string
	now             func() time.Time
	pairs           *pairLocks
}

// NewSettlementService creates a new SettlementService with the given storage.
func NewSettlementService(store storage.Store, defaultCurrency string) *SettlementService {
	return &SettlementService{
		store:           store,
		defaultCurrency: defaultCurrency,
		now:             time.Now,
		pairs:           newPairLocks(),
	}
}

// CreateSettlement records a payment from the caller to another user.
// With auto_confirm the settlement is stored already confirmed.
func (s *SettlementService) CreateSettlement(ctx context.Context, req *connect.Request[rpc.CreateSettlementRequest]) (*connect.Response[rpc.CreateSettlementResponse], error) {
	fromID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	slog.Info("CreateSettlement request received", "from_user_id", fromID, "to_user_id", msg.ToUserID, "group_id", msg.GroupID)

	amount, err := parseAmount(msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}
	if msg.ToUserID == fromID {
		return nil, toConnectError(apperr.New(apperr.KindInvalidAmount, "cannot settle with yourself"))
	}
	if _, err := s.store.GetUser(ctx, msg.ToUserID); err != nil {
		slog.Error("CreateSettlement receiver lookup failed", "to_user_id", msg.ToUserID, "error", err)
		return nil, toConnectError(err)
	}

	if msg.GroupID != "" {
		group, err := activeGroupOf(ctx, s.store, msg.GroupID, fromID)
		if err != nil {
			slog.Error("CreateSettlement group check failed", "group_id", msg.GroupID, "error", err)
			return nil, toConnectError(err)
		}
		if !group.HasMember(msg.ToUserID) {
			return nil, toConnectError(apperr.New(apperr.KindNotAMember, "user %s is not a member of group %s", msg.ToUserID, msg.GroupID))
		}
	}

	settlement := &models.Settlement{
		GroupID:    msg.GroupID,
		FromUserID: fromID,
		ToUserID:   msg.ToUserID,
		Amount:     amount,
		Currency:   currencyOr(msg.Currency, s.defaultCurrency),
		Status:     models.SettlementPending,
		Note:       msg.Note,
	}
	if msg.AutoConfirm {
		now := s.now().UTC()
		settlement.Status = models.SettlementConfirmed
		settlement.ConfirmedAt = &now
	}

	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		slog.Error("CreateSettlement failed", "error", err)
		return nil, toConnectError(err)
	}
	metrics.SettlementTransitions.WithLabelValues(string(settlement.Status)).Inc()

	slog.Info("Settlement created",
		"settlement_id", settlement.ID,
		"amount", money(settlement.Amount),
		"currency", settlement.Currency,
		"status", settlement.Status,
	)

	return connect.NewResponse(&rpc.CreateSettlementResponse{Settlement: toSettlementProto(settlement)}), nil
}

// ConfirmSettlement marks a pending settlement made to the caller as received.
func (s *SettlementService) ConfirmSettlement(ctx context.Context, req *connect.Request[rpc.ConfirmSettlementRequest]) (*connect.Response[rpc.ConfirmSettlementResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ConfirmSettlement request received", "settlement_id", req.Msg.SettlementID)

	settlement, err := s.store.UpdateSettlement(ctx, req.Msg.SettlementID, func(st *models.Settlement) error {
		return st.Confirm(userID, s.now().UTC())
	})
	if err != nil {
		slog.Error("ConfirmSettlement failed", "settlement_id", req.Msg.SettlementID, "error", err)
		return nil, toConnectError(err)
	}
	metrics.SettlementTransitions.WithLabelValues(string(settlement.Status)).Inc()

	slog.Info("Settlement confirmed", "settlement_id", settlement.ID)

	return connect.NewResponse(&rpc.ConfirmSettlementResponse{Settlement: toSettlementProto(settlement)}), nil
}

// CancelSettlement withdraws a pending settlement. Either party may cancel.
func (s *SettlementService) CancelSettlement(ctx context.Context, req *connect.Request[rpc.CancelSettlementRequest]) (*connect.Response[rpc.CancelSettlementResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CancelSettlement request received", "settlement_id", req.Msg.SettlementID)

	settlement, err := s.store.UpdateSettlement(ctx, req.Msg.SettlementID, func(st *models.Settlement) error {
		return st.Cancel(userID)
	})
	if err != nil {
		slog.Error("CancelSettlement failed", "settlement_id", req.Msg.SettlementID, "error", err)
		return nil, toConnectError(err)
	}
	metrics.SettlementTransitions.WithLabelValues(string(settlement.Status)).Inc()

	slog.Info("Settlement cancelled", "settlement_id", settlement.ID)

	return connect.NewResponse(&rpc.CancelSettlementResponse{Settlement: toSettlementProto(settlement)}), nil
}

// ListSettlements returns the settlements the caller is a party to, newest first.
func (s *SettlementService) ListSettlements(ctx context.Context, req *connect.Request[rpc.ListSettlementsRequest]) (*connect.Response[rpc.ListSettlementsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListSettlements request received", "group_id", req.Msg.GroupID)

	settlements, err := s.store.ListSettlements(ctx, storage.SettlementFilter{UserID: userID, GroupID: req.Msg.GroupID})
	if err != nil {
		slog.Error("ListSettlements failed", "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*rpc.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = toSettlementProto(st)
	}
	return connect.NewResponse(&rpc.ListSettlementsResponse{Settlements: out}), nil
}

// ApplyPayment consumes a payment from the caller to the receiver against the
// caller's open splits.
//
// In individual mode the caller's splits on expenses the receiver paid are
// consumed in creation order. In global mode the pair is netted over approved
// expenses first: the receiver's splits owed back to the caller are offset in
// full and the payment is capped at the net amount.
func (s *SettlementService) ApplyPayment(ctx context.Context, req *connect.Request[rpc.ApplyPaymentRequest]) (*connect.Response[rpc.ApplyPaymentResponse], error) {
	payerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	slog.Info("ApplyPayment request received",
		"payer_id", payerID,
		"receiver_id", msg.ReceiverID,
		"amount", msg.Amount,
		"mode", msg.Mode,
	)

	amount, err := parseAmount(msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}
	mode := msg.Mode
	if mode == "" {
		mode = rpc.PaymentModeIndividual
	}
	if mode != rpc.PaymentModeIndividual && mode != rpc.PaymentModeGlobal {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("mode must be individual or global"))
	}
	if _, err := s.store.GetUser(ctx, msg.ReceiverID); err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			err = apperr.New(apperr.KindReceiverNotFound, "receiver %s not found", msg.ReceiverID)
		}
		return nil, toConnectError(err)
	}
	if msg.ReceiverID == payerID {
		return nil, toConnectError(apperr.New(apperr.KindInvalidAmount, "cannot pay yourself"))
	}
	if msg.ExpenseID != "" {
		if mode == rpc.PaymentModeGlobal {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("expense_id only applies to individual payments"))
		}
		if err := s.checkPayableExpense(ctx, msg.ExpenseID, payerID, msg.ReceiverID); err != nil {
			return nil, toConnectError(err)
		}
	}
	currency := currencyOr(msg.Currency, s.defaultCurrency)

	unlock := s.pairs.lock(payerID, msg.ReceiverID)
	defer unlock()

	paymentID := uuid.New().String()
	var (
		allocations []calculator.Allocation
		unapplied   decimal.Decimal
	)
	_, err = s.store.ApplyPayment(ctx, payerID, msg.ReceiverID, func(pair storage.PairSplits) ([]models.PaymentApplication, error) {
		if mode == rpc.PaymentModeGlobal {
			plan, err := calculator.PlanGlobalPayment(amount,
				payable(pair.Owed, approvedIn(currency)),
				payable(pair.Offset, approvedIn(currency)))
			if err != nil {
				return nil, err
			}
			allocations = append(append([]calculator.Allocation{}, plan.Offsets...), plan.Payments...)
			unapplied = plan.Unapplied
		} else {
			keep := notRejectedIn(currency)
			if msg.ExpenseID != "" {
				keep = forExpense(msg.ExpenseID)
			}
			allocations, unapplied = calculator.AllocatePayment(amount, payable(pair.Owed, keep))
		}
		return toApplications(paymentID, allocations), nil
	})
	if err != nil {
		slog.Error("ApplyPayment failed", "payer_id", payerID, "receiver_id", msg.ReceiverID, "error", err)
		return nil, toConnectError(err)
	}
	metrics.PaymentsApplied.WithLabelValues(mode).Inc()
	metrics.PaymentApplications.Add(float64(len(allocations)))

	applied := amount.Sub(unapplied)
	slog.Info("Payment applied",
		"payment_id", paymentID,
		"mode", mode,
		"applied_total", money(applied),
		"unapplied", money(unapplied),
		"applications", len(allocations),
	)

	out := make([]*rpc.PaymentApplication, len(allocations))
	for i, a := range allocations {
		out[i] = &rpc.PaymentApplication{
			ExpenseID:        a.ExpenseID,
			UserID:           a.UserID,
			AmountApplied:    money(a.Applied),
			RemainingOnSplit: money(a.RemainingOnSplit),
		}
	}
	return connect.NewResponse(&rpc.ApplyPaymentResponse{
		PaymentID:    paymentID,
		Applications: out,
		AppliedTotal: money(applied),
		Unapplied:    money(unapplied),
	}), nil
}

// checkPayableExpense verifies the expense exists, was paid by the receiver
// and has a split for the payer.
func (s *SettlementService) checkPayableExpense(ctx context.Context, expenseID, payerID, receiverID string) error {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if expense.PayerID != receiverID {
		return apperr.New(apperr.KindNotInvolved, "expense %s was not paid by %s", expenseID, receiverID)
	}
	if expense.Verification != nil && expense.Verification.Rejected() {
		return apperr.New(apperr.KindInvalidState, "expense %s was rejected", expenseID)
	}
	for _, split := range expense.Splits {
		if split.UserID == payerID {
			return nil
		}
	}
	return apperr.New(apperr.KindNotInvolved, "you have no split on expense %s", expenseID)
}

func payable(splits []storage.OpenSplit, keep func(storage.OpenSplit) bool) []calculator.PayableSplit {
	var out []calculator.PayableSplit
	for _, sp := range splits {
		if keep(sp) {
			out = append(out, calculator.PayableSplit{
				ExpenseID: sp.ExpenseID,
				UserID:    sp.UserID,
				Remaining: sp.Remaining,
			})
		}
	}
	return out
}

// notRejectedIn keeps pending and approved splits of one currency.
func notRejectedIn(currency string) func(storage.OpenSplit) bool {
	return func(sp storage.OpenSplit) bool { return !sp.Rejected && sp.Currency == currency }
}

func approvedIn(currency string) func(storage.OpenSplit) bool {
	return func(sp storage.OpenSplit) bool { return sp.Approved && sp.Currency == currency }
}

func forExpense(expenseID string) func(storage.OpenSplit) bool {
	return func(sp storage.OpenSplit) bool { return !sp.Rejected && sp.ExpenseID == expenseID }
}

func toApplications(paymentID string, allocations []calculator.Allocation) []models.PaymentApplication {
	apps := make([]models.PaymentApplication, len(allocations))
	for i, a := range allocations {
		apps[i] = models.PaymentApplication{
			PaymentID: paymentID,
			ExpenseID: a.ExpenseID,
			UserID:    a.UserID,
			Amount:    a.Applied,
		}
	}
	return apps
}

func currencyOr(requested, fallback string) string {
	if c := strings.ToUpper(strings.TrimSpace(requested)); c != "" {
		return c
	}
	return fallback
}

// pairLocks serializes payments between the same two users, in either
// direction.
type pairLocks struct {
	mu    sync.Mutex
	locks map[[2]string]*pairLock
}

type pairLock struct {
	sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[[2]string]*pairLock)}
}

// lock blocks until the pair is free and returns the matching unlock.
func (p *pairLocks) lock(a, b string) func() {
	if a > b {
		a, b = b, a
	}
	key := [2]string{a, b}

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
