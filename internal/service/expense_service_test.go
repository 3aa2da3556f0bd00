package service

import (
	"context"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/rpc"
)

func statusOf(expense *rpc.Expense, userID string) string {
	for _, v := range expense.Verification {
		if v.UserID == userID {
			return v.Status
		}
	}
	return ""
}

func TestCreateExpense_EqualSplitApproval(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	expense := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Title:  "Groceries",
		Amount: "90.00",
		Splits: []*rpc.SplitInput{{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}},
	})

	assert.NotEmpty(t, expense.ID)
	assert.Equal(t, "equal", expense.SplitType)
	assert.Equal(t, "USD", expense.Currency)
	require.Len(t, expense.Splits, 3)
	for _, s := range expense.Splits {
		assert.Equal(t, "30.00", s.Amount)
		assert.Equal(t, "0.00", s.Settled)
		assert.Equal(t, "30.00", s.Remaining)
	}
	assert.Equal(t, "accepted", statusOf(expense, "alice"))
	assert.Equal(t, "pending", statusOf(expense, "bob"))
	assert.Equal(t, "pending", statusOf(expense, "carol"))
	assert.False(t, expense.IsApproved)

	// Unapproved expenses do not count towards balances.
	reports := env.report(t, "bob", "")
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Debts)

	resp, err := env.expenses.SetVerificationStatus(ctx, as("bob", &rpc.SetVerificationStatusRequest{ExpenseID: expense.ID, Status: "accepted"}))
	require.NoError(t, err)
	assert.Equal(t, "accepted", resp.Msg.NewStatus)
	assert.False(t, resp.Msg.IsApproved)

	resp, err = env.expenses.SetVerificationStatus(ctx, as("carol", &rpc.SetVerificationStatusRequest{ExpenseID: expense.ID, Status: "accepted"}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.IsApproved)

	for _, ower := range []string{"bob", "carol"} {
		reports := env.report(t, ower, "")
		require.Len(t, reports, 1)
		require.Len(t, reports[0].Debts, 1)
		assert.Equal(t, "alice", reports[0].Debts[0].UserID)
		assert.Equal(t, "Alice", reports[0].Debts[0].DisplayName)
		assert.Equal(t, "30.00", reports[0].Debts[0].Amount)
		assert.Equal(t, "-30.00", reports[0].NetBalance)
	}

	reports = env.report(t, "alice", "")
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Credits, 2)
	assert.Equal(t, "60.00", reports[0].TotalOwedToViewer)
	assert.Equal(t, "60.00", reports[0].NetBalance)
}

func TestCreateExpense_EqualDerivesGroupMembers(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, true, "alice", "bob", "carol")

	expense := env.createExpense(t, "bob", &rpc.CreateExpenseRequest{
		Amount:  "10.00",
		GroupID: groupID,
	})

	assert.Equal(t, groupID, expense.GroupID)
	require.Len(t, expense.Splits, 3)
	assert.Equal(t, "3.33", splitOf(t, expense, "alice").Amount)
	assert.Equal(t, "3.34", splitOf(t, expense, "bob").Amount)
	assert.Equal(t, "3.33", splitOf(t, expense, "carol").Amount)
}

func TestCreateExpense_ExactAndPercentage(t *testing.T) {
	env := setupTestServer(t)

	exact := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:    "50.00",
		Currency:  "eur",
		SplitType: "exact",
		Splits: []*rpc.SplitInput{
			{UserID: "alice", Amount: "10.00"},
			{UserID: "bob", Amount: "40.00"},
		},
		ExpenseDate: "2026-03-01T12:00:00Z",
	})
	assert.Equal(t, "EUR", exact.Currency)
	assert.Equal(t, "40.00", splitOf(t, exact, "bob").Amount)
	assert.True(t, exact.ExpenseDate.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	pct := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:    "10.00",
		SplitType: "percentage",
		Splits: []*rpc.SplitInput{
			{UserID: "alice", Percentage: "33.33"},
			{UserID: "bob", Percentage: "33.33"},
			{UserID: "carol", Percentage: "33.34"},
		},
	})
	assert.Equal(t, "3.34", splitOf(t, pct, "alice").Amount)
	assert.Equal(t, "3.33", splitOf(t, pct, "bob").Amount)
	assert.Equal(t, "33.33", splitOf(t, pct, "bob").Percentage)
	assert.Equal(t, "3.33", splitOf(t, pct, "carol").Amount)
}

func TestCreateExpense_Validation(t *testing.T) {
	env := setupTestServer(t)
	active := env.createGroup(t, true, "alice", "bob")
	archived := env.createGroup(t, false, "alice", "bob")

	tests := []struct {
		name string
		req  *rpc.CreateExpenseRequest
		want connect.Code
	}{
		{
			name: "missing title",
			req:  &rpc.CreateExpenseRequest{Title: " ", Amount: "10", Splits: []*rpc.SplitInput{{UserID: "bob"}}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "zero amount",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "0", Splits: []*rpc.SplitInput{{UserID: "bob"}}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unparsable amount",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "ten", Splits: []*rpc.SplitInput{{UserID: "bob"}}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "sub-cent amount",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "1.005", Splits: []*rpc.SplitInput{{UserID: "bob"}}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "exponent amount",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "3e1", Splits: []*rpc.SplitInput{{UserID: "bob"}}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "amount above cap",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "100000000000000000000.00", Splits: []*rpc.SplitInput{{UserID: "bob"}}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "exponent split amount",
			req: &rpc.CreateExpenseRequest{Title: "x", Amount: "10", SplitType: "exact", Splits: []*rpc.SplitInput{
				{UserID: "bob", Amount: "1e1"},
			}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unknown split type",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "10", SplitType: "shares", Splits: []*rpc.SplitInput{{UserID: "bob"}}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "no participants",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "10"},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "duplicate participant",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "10", Splits: []*rpc.SplitInput{{UserID: "bob"}, {UserID: "bob"}}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unknown participant",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "10", Splits: []*rpc.SplitInput{{UserID: "mallory"}}},
			want: connect.CodeNotFound,
		},
		{
			name: "exact splits do not sum",
			req: &rpc.CreateExpenseRequest{Title: "x", Amount: "10", SplitType: "exact", Splits: []*rpc.SplitInput{
				{UserID: "alice", Amount: "4"}, {UserID: "bob", Amount: "5"},
			}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "percentages do not total 100",
			req: &rpc.CreateExpenseRequest{Title: "x", Amount: "10", SplitType: "percentage", Splits: []*rpc.SplitInput{
				{UserID: "alice", Percentage: "50"}, {UserID: "bob", Percentage: "40"},
			}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "bad expense date",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "10", Splits: []*rpc.SplitInput{{UserID: "bob"}}, ExpenseDate: "yesterday"},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unknown group",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "10", GroupID: "nope"},
			want: connect.CodeNotFound,
		},
		{
			name: "archived group",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "10", GroupID: archived},
			want: connect.CodeFailedPrecondition,
		},
		{
			name: "participant outside group",
			req:  &rpc.CreateExpenseRequest{Title: "x", Amount: "10", GroupID: active, Splits: []*rpc.SplitInput{{UserID: "carol"}}},
			want: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.expenses.CreateExpense(context.Background(), as("alice", tt.req))
			assertCode(t, tt.want, err)
		})
	}

	t.Run("caller outside group", func(t *testing.T) {
		_, err := env.expenses.CreateExpense(context.Background(), as("carol", &rpc.CreateExpenseRequest{
			Title: "x", Amount: "10", GroupID: active,
		}))
		assertCode(t, connect.CodePermissionDenied, err)
	})
}

func TestGetExpense_Access(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "alice", "bob", "dave")

	expense := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:  "20.00",
		GroupID: groupID,
		Splits:  []*rpc.SplitInput{{UserID: "alice"}, {UserID: "bob"}},
	})

	resp, err := env.expenses.GetExpense(ctx, as("bob", &rpc.GetExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)
	assert.Equal(t, expense.ID, resp.Msg.Expense.ID)
	assert.Equal(t, "Dinner", resp.Msg.Expense.Title)

	// dave has no split but belongs to the group.
	_, err = env.expenses.GetExpense(ctx, as("dave", &rpc.GetExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)

	_, err = env.expenses.GetExpense(ctx, as("carol", &rpc.GetExpenseRequest{ExpenseID: expense.ID}))
	assertCode(t, connect.CodePermissionDenied, err)

	_, err = env.expenses.GetExpense(ctx, as("alice", &rpc.GetExpenseRequest{ExpenseID: "missing"}))
	assertCode(t, connect.CodeNotFound, err)
}

func TestSetVerificationStatus(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	expense := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount: "30.00",
		Splits: []*rpc.SplitInput{{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}},
	})
	set := func(user, status string) (*rpc.SetVerificationStatusResponse, error) {
		resp, err := env.expenses.SetVerificationStatus(ctx, as(user, &rpc.SetVerificationStatusRequest{ExpenseID: expense.ID, Status: status}))
		if err != nil {
			return nil, err
		}
		return resp.Msg, nil
	}

	_, err := set("bob", "maybe")
	assertCode(t, connect.CodeInvalidArgument, err)

	_, err = set("dave", "accepted")
	assertCode(t, connect.CodePermissionDenied, err)

	_, err = env.expenses.SetVerificationStatus(ctx, as("bob", &rpc.SetVerificationStatusRequest{ExpenseID: "missing", Status: "accepted"}))
	assertCode(t, connect.CodeNotFound, err)

	// A single rejection vetoes approval.
	resp, err := set("bob", "rejected")
	require.NoError(t, err)
	assert.Equal(t, "rejected", resp.NewStatus)
	assert.False(t, resp.IsApproved)

	resp, err = set("carol", "accepted")
	require.NoError(t, err)
	assert.False(t, resp.IsApproved)

	resp, err = set("bob", "accepted")
	require.NoError(t, err)
	assert.True(t, resp.IsApproved)

	// Moving back to pending revokes approval.
	resp, err = set("carol", "pending")
	require.NoError(t, err)
	assert.False(t, resp.IsApproved)

	got, err := env.expenses.GetExpense(ctx, as("alice", &rpc.GetExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)
	assert.Equal(t, "accepted", statusOf(got.Msg.Expense, "bob"))
	assert.Equal(t, "pending", statusOf(got.Msg.Expense, "carol"))
	assert.False(t, got.Msg.Expense.IsApproved)
}

func TestListPendingVerifications(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	first := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Title:  "Taxi",
		Amount: "12.00",
		Splits: []*rpc.SplitInput{{UserID: "alice"}, {UserID: "bob"}},
	})
	env.createExpense(t, "carol", &rpc.CreateExpenseRequest{
		Title:  "Museum",
		Amount: "40.00",
		Splits: []*rpc.SplitInput{{UserID: "carol"}, {UserID: "bob"}},
	})

	pending := func(user string) []*rpc.Expense {
		resp, err := env.expenses.ListPendingVerifications(ctx, as(user, &rpc.ListPendingVerificationsRequest{}))
		require.NoError(t, err)
		return resp.Msg.Expenses
	}

	assert.Len(t, pending("bob"), 2)
	assert.Empty(t, pending("alice"))

	_, err := env.expenses.SetVerificationStatus(ctx, as("bob", &rpc.SetVerificationStatusRequest{ExpenseID: first.ID, Status: "rejected"}))
	require.NoError(t, err)

	left := pending("bob")
	require.Len(t, left, 1)
	assert.Equal(t, "Museum", left[0].Title)
}

func TestListExpenses(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "alice", "bob")

	personal := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Title:  "Coffee",
		Amount: "6.00",
		Splits: []*rpc.SplitInput{{UserID: "alice"}, {UserID: "bob"}},
	})
	grouped := env.createExpense(t, "bob", &rpc.CreateExpenseRequest{
		Title:   "Rent",
		Amount:  "100.00",
		GroupID: groupID,
	})
	env.createExpense(t, "carol", &rpc.CreateExpenseRequest{
		Title:  "Unrelated",
		Amount: "5.00",
		Splits: []*rpc.SplitInput{{UserID: "dave"}},
	})

	resp, err := env.expenses.ListExpenses(ctx, as("alice", &rpc.ListExpensesRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Expenses, 2)
	assert.Equal(t, grouped.ID, resp.Msg.Expenses[0].ID, "newest first")
	assert.Equal(t, personal.ID, resp.Msg.Expenses[1].ID)

	resp, err = env.expenses.ListExpenses(ctx, as("alice", &rpc.ListExpensesRequest{GroupID: groupID}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Expenses, 1)
	assert.Equal(t, grouped.ID, resp.Msg.Expenses[0].ID)

	resp, err = env.expenses.ListExpenses(ctx, as("dave", &rpc.ListExpensesRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Expenses, 1)
	assert.Equal(t, "Unrelated", resp.Msg.Expenses[0].Title)
}
