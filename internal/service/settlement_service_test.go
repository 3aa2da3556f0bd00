package service

import (
	"context"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/rpc"
)

func TestSettlement_ConfirmClearsDebt(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	// bob owes alice 50, alice owes bob 20: net bob owes alice 30.
	env.exactExpense(t, "alice", "bob", "50.00")
	env.exactExpense(t, "bob", "alice", "20.00")

	reports := env.report(t, "bob", "")
	require.Len(t, reports[0].Debts, 1)
	assert.Equal(t, "30.00", reports[0].Debts[0].Amount)

	created, err := env.settlements.CreateSettlement(ctx, as("bob", &rpc.CreateSettlementRequest{
		ToUserID: "alice",
		Amount:   "30.00",
		Note:     "venmo",
	}))
	require.NoError(t, err)
	settlement := created.Msg.Settlement
	assert.Equal(t, "pending", settlement.Status)
	assert.Equal(t, "bob", settlement.FromUserID)
	assert.Equal(t, "USD", settlement.Currency)
	assert.Nil(t, settlement.ConfirmedAt)

	// Pending settlements do not reduce the balance.
	reports = env.report(t, "bob", "")
	require.Len(t, reports[0].Debts, 1)

	_, err = env.settlements.ConfirmSettlement(ctx, as("bob", &rpc.ConfirmSettlementRequest{SettlementID: settlement.ID}))
	assertCode(t, connect.CodePermissionDenied, err)

	confirmed, err := env.settlements.ConfirmSettlement(ctx, as("alice", &rpc.ConfirmSettlementRequest{SettlementID: settlement.ID}))
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Msg.Settlement.Status)
	require.NotNil(t, confirmed.Msg.Settlement.ConfirmedAt)
	confirmedAt := *confirmed.Msg.Settlement.ConfirmedAt

	reports = env.report(t, "bob", "")
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Debts)
	assert.Equal(t, "0.00", reports[0].NetBalance)

	_, err = env.settlements.ConfirmSettlement(ctx, as("alice", &rpc.ConfirmSettlementRequest{SettlementID: settlement.ID}))
	assertCode(t, connect.CodeFailedPrecondition, err)

	list, err := env.settlements.ListSettlements(ctx, as("alice", &rpc.ListSettlementsRequest{}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Settlements, 1)
	require.NotNil(t, list.Msg.Settlements[0].ConfirmedAt)
	assert.WithinDuration(t, confirmedAt, *list.Msg.Settlements[0].ConfirmedAt, time.Second, "confirmed_at must not move")
}

func TestSettlement_OverpaymentNotCredited(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	env.exactExpense(t, "alice", "bob", "10.00")

	_, err := env.settlements.CreateSettlement(ctx, as("bob", &rpc.CreateSettlementRequest{
		ToUserID:    "alice",
		Amount:      "25.00",
		AutoConfirm: true,
	}))
	require.NoError(t, err)

	for _, viewer := range []string{"alice", "bob"} {
		reports := env.report(t, viewer, "")
		require.Len(t, reports, 1)
		assert.Empty(t, reports[0].Debts, viewer)
		assert.Empty(t, reports[0].Credits, viewer)
	}
}

func TestSettlement_Cancel(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created, err := env.settlements.CreateSettlement(ctx, as("bob", &rpc.CreateSettlementRequest{ToUserID: "alice", Amount: "5"}))
	require.NoError(t, err)
	id := created.Msg.Settlement.ID

	_, err = env.settlements.CancelSettlement(ctx, as("dave", &rpc.CancelSettlementRequest{SettlementID: id}))
	assertCode(t, connect.CodePermissionDenied, err)

	cancelled, err := env.settlements.CancelSettlement(ctx, as("alice", &rpc.CancelSettlementRequest{SettlementID: id}))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Msg.Settlement.Status)

	_, err = env.settlements.CancelSettlement(ctx, as("bob", &rpc.CancelSettlementRequest{SettlementID: id}))
	assertCode(t, connect.CodeFailedPrecondition, err)

	_, err = env.settlements.ConfirmSettlement(ctx, as("alice", &rpc.ConfirmSettlementRequest{SettlementID: id}))
	assertCode(t, connect.CodeFailedPrecondition, err)

	_, err = env.settlements.ConfirmSettlement(ctx, as("alice", &rpc.ConfirmSettlementRequest{SettlementID: "missing"}))
	assertCode(t, connect.CodeNotFound, err)
}

func TestCreateSettlement_Validation(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, true, "alice", "bob")
	archived := env.createGroup(t, false, "alice", "bob")

	tests := []struct {
		name string
		req  *rpc.CreateSettlementRequest
		want connect.Code
	}{
		{"negative amount", &rpc.CreateSettlementRequest{ToUserID: "alice", Amount: "-1"}, connect.CodeInvalidArgument},
		{"exponent amount", &rpc.CreateSettlementRequest{ToUserID: "alice", Amount: "1e1"}, connect.CodeInvalidArgument},
		{"self settlement", &rpc.CreateSettlementRequest{ToUserID: "bob", Amount: "1"}, connect.CodeInvalidArgument},
		{"unknown receiver", &rpc.CreateSettlementRequest{ToUserID: "mallory", Amount: "1"}, connect.CodeNotFound},
		{"receiver outside group", &rpc.CreateSettlementRequest{ToUserID: "carol", Amount: "1", GroupID: groupID}, connect.CodePermissionDenied},
		{"archived group", &rpc.CreateSettlementRequest{ToUserID: "alice", Amount: "1", GroupID: archived}, connect.CodeFailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.settlements.CreateSettlement(context.Background(), as("bob", tt.req))
			assertCode(t, tt.want, err)
		})
	}

	t.Run("payer outside group", func(t *testing.T) {
		_, err := env.settlements.CreateSettlement(context.Background(), as("carol", &rpc.CreateSettlementRequest{
			ToUserID: "alice", Amount: "1", GroupID: groupID,
		}))
		assertCode(t, connect.CodePermissionDenied, err)
	})
}

func TestListSettlements(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "alice", "bob")

	_, err := env.settlements.CreateSettlement(ctx, as("bob", &rpc.CreateSettlementRequest{ToUserID: "alice", Amount: "5"}))
	require.NoError(t, err)
	_, err = env.settlements.CreateSettlement(ctx, as("alice", &rpc.CreateSettlementRequest{ToUserID: "bob", Amount: "7", GroupID: groupID}))
	require.NoError(t, err)

	list := func(user, group string) []*rpc.Settlement {
		resp, err := env.settlements.ListSettlements(ctx, as(user, &rpc.ListSettlementsRequest{GroupID: group}))
		require.NoError(t, err)
		return resp.Msg.Settlements
	}

	all := list("bob", "")
	require.Len(t, all, 2)
	assert.Equal(t, "7.00", all[0].Amount, "newest first")

	inGroup := list("bob", groupID)
	require.Len(t, inGroup, 1)
	assert.Equal(t, groupID, inGroup[0].GroupID)

	assert.Empty(t, list("dave", ""))
}

func TestApplyPayment_Individual(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	first := env.exactExpense(t, "alice", "bob", "10.00")
	second := env.exactExpense(t, "alice", "bob", "30.00")

	resp, err := env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "25.00"}))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Msg.PaymentID)
	assert.Equal(t, "25.00", resp.Msg.AppliedTotal)
	assert.Equal(t, "0.00", resp.Msg.Unapplied)
	require.Len(t, resp.Msg.Applications, 2)
	assert.Equal(t, first.ID, resp.Msg.Applications[0].ExpenseID)
	assert.Equal(t, "10.00", resp.Msg.Applications[0].AmountApplied)
	assert.Equal(t, "0.00", resp.Msg.Applications[0].RemainingOnSplit)
	assert.Equal(t, second.ID, resp.Msg.Applications[1].ExpenseID)
	assert.Equal(t, "15.00", resp.Msg.Applications[1].AmountApplied)
	assert.Equal(t, "15.00", resp.Msg.Applications[1].RemainingOnSplit)

	apps, err := env.store.ListPaymentApplications(ctx, resp.Msg.PaymentID)
	require.NoError(t, err)
	assert.Len(t, apps, 2)

	got, err := env.expenses.GetExpense(ctx, as("bob", &rpc.GetExpenseRequest{ExpenseID: second.ID}))
	require.NoError(t, err)
	split := splitOf(t, got.Msg.Expense, "bob")
	assert.Equal(t, "30.00", split.Amount, "original share is kept")
	assert.Equal(t, "15.00", split.Settled)
	assert.Equal(t, "15.00", split.Remaining)

	reports := env.report(t, "bob", "")
	require.Len(t, reports[0].Debts, 1)
	assert.Equal(t, "15.00", reports[0].Debts[0].Amount)

	// Paying more than is owed leaves the rest unapplied.
	resp, err = env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "100.00"}))
	require.NoError(t, err)
	assert.Equal(t, "15.00", resp.Msg.AppliedTotal)
	assert.Equal(t, "85.00", resp.Msg.Unapplied)

	reports = env.report(t, "bob", "")
	assert.Empty(t, reports[0].Debts)

	// Nothing left to pay: the whole amount comes back.
	resp, err = env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "5.00"}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Applications)
	assert.Equal(t, "5.00", resp.Msg.Unapplied)
}

func TestApplyPayment_SkipsRejectedExpenses(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	rejected := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:    "10.00",
		SplitType: "exact",
		Splits:    []*rpc.SplitInput{{UserID: "bob", Amount: "10.00"}},
	})
	_, err := env.expenses.SetVerificationStatus(ctx, as("bob", &rpc.SetVerificationStatusRequest{
		ExpenseID: rejected.ID,
		Status:    "rejected",
	}))
	require.NoError(t, err)

	// Pending expenses can still be paid down before everyone has voted.
	pending := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:    "20.00",
		SplitType: "exact",
		Splits:    []*rpc.SplitInput{{UserID: "bob", Amount: "20.00"}},
	})

	resp, err := env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "25.00"}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Applications, 1)
	assert.Equal(t, pending.ID, resp.Msg.Applications[0].ExpenseID)
	assert.Equal(t, "20.00", resp.Msg.AppliedTotal)
	assert.Equal(t, "5.00", resp.Msg.Unapplied)

	_, err = env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "5.00",
		ExpenseID:  rejected.ID,
	}))
	assertCode(t, connect.CodeFailedPrecondition, err)

	got, err := env.expenses.GetExpense(ctx, as("bob", &rpc.GetExpenseRequest{ExpenseID: rejected.ID}))
	require.NoError(t, err)
	assert.Equal(t, "0.00", splitOf(t, got.Msg.Expense, "bob").Settled)
}

func TestApplyPayment_ConcurrentPayments(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	expense := env.exactExpense(t, "alice", "bob", "10.00")

	results := make([]*rpc.ApplyPaymentResponse, 20)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			resp, err := env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "1.00"}))
			if err != nil {
				return err
			}
			results[i] = resp.Msg
			return nil
		})
	}
	require.NoError(t, g.Wait())

	applied, unapplied := decimal.Zero, decimal.Zero
	paid := 0
	for _, r := range results {
		a := decimal.RequireFromString(r.AppliedTotal)
		applied = applied.Add(a)
		unapplied = unapplied.Add(decimal.RequireFromString(r.Unapplied))
		if a.IsPositive() {
			paid++
		}
	}
	assert.Equal(t, "10.00", money(applied))
	assert.Equal(t, "10.00", money(unapplied))
	assert.Equal(t, 10, paid)

	got, err := env.expenses.GetExpense(ctx, as("bob", &rpc.GetExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)
	split := splitOf(t, got.Msg.Expense, "bob")
	assert.Equal(t, "10.00", split.Settled)
	assert.Equal(t, "0.00", split.Remaining)
}

func TestApplyPayment_SingleExpenseAndCurrency(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	first := env.exactExpense(t, "alice", "bob", "10.00")
	second := env.exactExpense(t, "alice", "bob", "30.00")
	euros := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:    "8.00",
		Currency:  "EUR",
		SplitType: "exact",
		Splits:    []*rpc.SplitInput{{UserID: "bob", Amount: "8.00"}},
	})

	resp, err := env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "5.00",
		ExpenseID:  second.ID,
	}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Applications, 1)
	assert.Equal(t, second.ID, resp.Msg.Applications[0].ExpenseID)
	assert.Equal(t, "25.00", resp.Msg.Applications[0].RemainingOnSplit)

	resp, err = env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "100.00",
		Currency:   "eur",
	}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Applications, 1)
	assert.Equal(t, euros.ID, resp.Msg.Applications[0].ExpenseID)
	assert.Equal(t, "8.00", resp.Msg.AppliedTotal)
	assert.Equal(t, "92.00", resp.Msg.Unapplied)

	got, err := env.expenses.GetExpense(ctx, as("bob", &rpc.GetExpenseRequest{ExpenseID: first.ID}))
	require.NoError(t, err)
	assert.Equal(t, "0.00", splitOf(t, got.Msg.Expense, "bob").Settled, "USD split untouched")

	// carol paid nothing for bob.
	carols := env.createExpense(t, "carol", &rpc.CreateExpenseRequest{
		Amount: "4.00",
		Splits: []*rpc.SplitInput{{UserID: "carol"}, {UserID: "dave"}},
	})
	_, err = env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "1.00",
		ExpenseID:  carols.ID,
	}))
	assertCode(t, connect.CodePermissionDenied, err)

	_, err = env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "1.00",
		ExpenseID:  "missing",
	}))
	assertCode(t, connect.CodeNotFound, err)
}

func TestApplyPayment_Global(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	owed := env.exactExpense(t, "alice", "bob", "50.00")
	offset := env.exactExpense(t, "bob", "alice", "20.00")

	resp, err := env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "10.00",
		Mode:       rpc.PaymentModeGlobal,
	}))
	require.NoError(t, err)
	assert.Equal(t, "10.00", resp.Msg.AppliedTotal)
	assert.Equal(t, "0.00", resp.Msg.Unapplied)
	require.Len(t, resp.Msg.Applications, 2)

	assert.Equal(t, offset.ID, resp.Msg.Applications[0].ExpenseID)
	assert.Equal(t, "alice", resp.Msg.Applications[0].UserID)
	assert.Equal(t, "20.00", resp.Msg.Applications[0].AmountApplied)
	assert.Equal(t, "0.00", resp.Msg.Applications[0].RemainingOnSplit)

	assert.Equal(t, owed.ID, resp.Msg.Applications[1].ExpenseID)
	assert.Equal(t, "bob", resp.Msg.Applications[1].UserID)
	assert.Equal(t, "30.00", resp.Msg.Applications[1].AmountApplied)
	assert.Equal(t, "20.00", resp.Msg.Applications[1].RemainingOnSplit)

	reports := env.report(t, "bob", "")
	require.Len(t, reports[0].Debts, 1)
	assert.Equal(t, "20.00", reports[0].Debts[0].Amount)
	assert.Empty(t, reports[0].Credits)

	// The payment is capped at the net balance.
	resp, err = env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "100.00",
		Mode:       rpc.PaymentModeGlobal,
	}))
	require.NoError(t, err)
	assert.Equal(t, "20.00", resp.Msg.AppliedTotal)
	assert.Equal(t, "80.00", resp.Msg.Unapplied)

	_, err = env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "1.00",
		Mode:       rpc.PaymentModeGlobal,
	}))
	assertCode(t, connect.CodeFailedPrecondition, err)
}

func TestApplyPayment_GlobalIgnoresUnapproved(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:    "40.00",
		SplitType: "exact",
		Splits:    []*rpc.SplitInput{{UserID: "bob", Amount: "40.00"}},
	})

	_, err := env.settlements.ApplyPayment(ctx, as("bob", &rpc.ApplyPaymentRequest{
		ReceiverID: "alice",
		Amount:     "10.00",
		Mode:       rpc.PaymentModeGlobal,
	}))
	assertCode(t, connect.CodeFailedPrecondition, err)
}

func TestApplyPayment_Validation(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name string
		req  *rpc.ApplyPaymentRequest
		want connect.Code
	}{
		{"zero amount", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "0"}, connect.CodeInvalidArgument},
		{"unparsable amount", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "lots"}, connect.CodeInvalidArgument},
		{"unknown receiver", &rpc.ApplyPaymentRequest{ReceiverID: "mallory", Amount: "1"}, connect.CodeNotFound},
		{"pay yourself", &rpc.ApplyPaymentRequest{ReceiverID: "bob", Amount: "1"}, connect.CodeInvalidArgument},
		{"unknown mode", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "1", Mode: "all"}, connect.CodeInvalidArgument},
		{"global with expense", &rpc.ApplyPaymentRequest{ReceiverID: "alice", Amount: "1", Mode: rpc.PaymentModeGlobal, ExpenseID: "x"}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.settlements.ApplyPayment(context.Background(), as("bob", tt.req))
			assertCode(t, tt.want, err)
		})
	}
}
