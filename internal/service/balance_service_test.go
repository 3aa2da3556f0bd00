package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/rpc"
)

func TestGetBalanceReport_NetsPairs(t *testing.T) {
	env := setupTestServer(t)

	// alice owes bob 50, bob owes alice 20.
	env.exactExpense(t, "bob", "alice", "50.00")
	env.exactExpense(t, "alice", "bob", "20.00")

	alice := env.report(t, "alice", "")
	require.Len(t, alice, 1)
	require.Len(t, alice[0].Debts, 1)
	assert.Equal(t, "bob", alice[0].Debts[0].UserID)
	assert.Equal(t, "Bob", alice[0].Debts[0].DisplayName)
	assert.Equal(t, "30.00", alice[0].Debts[0].Amount)
	assert.Empty(t, alice[0].Credits)
	assert.Equal(t, "30.00", alice[0].TotalOwedByViewer)
	assert.Equal(t, "0.00", alice[0].TotalOwedToViewer)
	assert.Equal(t, "-30.00", alice[0].NetBalance)

	bob := env.report(t, "bob", "")
	require.Len(t, bob, 1)
	assert.Empty(t, bob[0].Debts)
	require.Len(t, bob[0].Credits, 1)
	assert.Equal(t, "alice", bob[0].Credits[0].UserID)
	assert.Equal(t, "30.00", bob[0].NetBalance)
}

func TestGetBalanceReport_EmptyViewer(t *testing.T) {
	env := setupTestServer(t)

	reports := env.report(t, "dave", "")
	require.Len(t, reports, 1)
	assert.Equal(t, "dave", reports[0].ViewerID)
	assert.Equal(t, "USD", reports[0].Currency)
	assert.Empty(t, reports[0].Debts)
	assert.Empty(t, reports[0].Credits)
	assert.Equal(t, "0.00", reports[0].NetBalance)
}

func TestGetBalanceReport_PerCurrency(t *testing.T) {
	env := setupTestServer(t)

	env.exactExpense(t, "alice", "bob", "10.00")
	euros := env.createExpense(t, "bob", &rpc.CreateExpenseRequest{
		Amount:    "25.00",
		Currency:  "EUR",
		SplitType: "exact",
		Splits:    []*rpc.SplitInput{{UserID: "alice", Amount: "25.00"}},
	})
	env.approve(t, euros)

	reports := env.report(t, "bob", "")
	require.Len(t, reports, 2)

	assert.Equal(t, "EUR", reports[0].Currency)
	assert.Equal(t, "25.00", reports[0].NetBalance)
	assert.Equal(t, "USD", reports[1].Currency)
	assert.Equal(t, "-10.00", reports[1].NetBalance)
}

func TestGetBalanceReport_GroupScope(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "alice", "bob", "carol")

	grouped := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:  "60.00",
		GroupID: groupID,
		Splits:  []*rpc.SplitInput{{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}},
	})
	env.approve(t, grouped)
	env.exactExpense(t, "alice", "bob", "5.00")

	_, err := env.settlements.CreateSettlement(ctx, as("carol", &rpc.CreateSettlementRequest{
		ToUserID:    "alice",
		Amount:      "20.00",
		GroupID:     groupID,
		AutoConfirm: true,
	}))
	require.NoError(t, err)

	reports := env.report(t, "alice", groupID)
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Credits, 1)
	assert.Equal(t, "bob", reports[0].Credits[0].UserID)
	assert.Equal(t, "20.00", reports[0].Credits[0].Amount)

	// The personal expense only shows up in the global report.
	global := env.report(t, "alice", "")
	require.Len(t, global[0].Credits, 1)
	assert.Equal(t, "25.00", global[0].Credits[0].Amount)

	_, err = env.balances.GetBalanceReport(ctx, as("dave", &rpc.GetBalanceReportRequest{GroupID: groupID}))
	assertCode(t, connect.CodePermissionDenied, err)

	_, err = env.balances.GetBalanceReport(ctx, as("alice", &rpc.GetBalanceReportRequest{GroupID: "missing"}))
	assertCode(t, connect.CodeNotFound, err)
}
