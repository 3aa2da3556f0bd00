package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/rpc"
)

func TestGetGroupBalances(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "alice", "bob", "carol")

	// P=alice pays 90 split three ways; bob pays 15 for carol.
	dinner := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Amount:  "90.00",
		GroupID: groupID,
	})
	env.approve(t, dinner)
	taxi := env.createExpense(t, "bob", &rpc.CreateExpenseRequest{
		Amount:    "15.00",
		GroupID:   groupID,
		SplitType: "exact",
		Splits:    []*rpc.SplitInput{{UserID: "carol", Amount: "15.00"}},
	})
	env.approve(t, taxi)

	// Pending expenses are left out.
	env.createExpense(t, "carol", &rpc.CreateExpenseRequest{
		Amount:  "300.00",
		GroupID: groupID,
	})

	resp, err := env.groups.GetGroupBalances(ctx, as("carol", &rpc.GetGroupBalancesRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Equal(t, groupID, resp.Msg.GroupID)

	require.Len(t, resp.Msg.Debts, 3)
	assert.Equal(t, &rpc.Debt{FromUserID: "bob", ToUserID: "alice", Amount: "30.00", Currency: "USD"}, resp.Msg.Debts[0])
	assert.Equal(t, &rpc.Debt{FromUserID: "carol", ToUserID: "alice", Amount: "30.00", Currency: "USD"}, resp.Msg.Debts[1])
	assert.Equal(t, &rpc.Debt{FromUserID: "carol", ToUserID: "bob", Amount: "15.00", Currency: "USD"}, resp.Msg.Debts[2])

	require.Len(t, resp.Msg.MemberBalances, 3)
	net := make(map[string]string)
	for _, b := range resp.Msg.MemberBalances {
		net[b.UserID] = b.NetBalance
	}
	assert.Equal(t, map[string]string{"alice": "60.00", "bob": "-15.00", "carol": "-45.00"}, net)
}

func TestGetGroupBalances_Access(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "alice", "bob")
	archived := env.createGroup(t, false, "alice", "bob")

	_, err := env.groups.GetGroupBalances(ctx, as("alice", &rpc.GetGroupBalancesRequest{}))
	assertCode(t, connect.CodeInvalidArgument, err)

	_, err = env.groups.GetGroupBalances(ctx, as("carol", &rpc.GetGroupBalancesRequest{GroupID: groupID}))
	assertCode(t, connect.CodePermissionDenied, err)

	_, err = env.groups.GetGroupBalances(ctx, as("alice", &rpc.GetGroupBalancesRequest{GroupID: "missing"}))
	assertCode(t, connect.CodeNotFound, err)

	// Archived groups stay readable.
	resp, err := env.groups.GetGroupBalances(ctx, as("bob", &rpc.GetGroupBalancesRequest{GroupID: archived}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Debts)
}

func TestListGroupExpenses(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "alice", "bob", "carol")

	// carol is a member without a split on this one.
	rent := env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Title:   "Rent",
		Amount:  "100.00",
		GroupID: groupID,
		Splits:  []*rpc.SplitInput{{UserID: "alice"}, {UserID: "bob"}},
	})
	env.createExpense(t, "alice", &rpc.CreateExpenseRequest{
		Title:  "Personal",
		Amount: "10.00",
		Splits: []*rpc.SplitInput{{UserID: "bob"}},
	})

	resp, err := env.groups.ListGroupExpenses(ctx, as("carol", &rpc.ListGroupExpensesRequest{GroupID: groupID}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Expenses, 1)
	assert.Equal(t, rent.ID, resp.Msg.Expenses[0].ID)

	_, err = env.groups.ListGroupExpenses(ctx, as("dave", &rpc.ListGroupExpensesRequest{GroupID: groupID}))
	assertCode(t, connect.CodePermissionDenied, err)

	_, err = env.groups.ListGroupExpenses(ctx, as("dave", &rpc.ListGroupExpensesRequest{}))
	assertCode(t, connect.CodeInvalidArgument, err)
}

func TestGetGroup(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "carol", "alice", "bob")

	env.createExpense(t, "alice", &rpc.CreateExpenseRequest{Amount: "30.00", GroupID: groupID})
	env.createExpense(t, "bob", &rpc.CreateExpenseRequest{Amount: "12.50", GroupID: groupID})
	env.createExpense(t, "carol", &rpc.CreateExpenseRequest{Amount: "8.00", Currency: "EUR", GroupID: groupID})
	env.createExpense(t, "alice", &rpc.CreateExpenseRequest{Amount: "99.00", Splits: []*rpc.SplitInput{{UserID: "bob"}}})

	resp, err := env.groups.GetGroup(ctx, as("bob", &rpc.GetGroupRequest{GroupID: groupID}))
	require.NoError(t, err)

	group := resp.Msg.Group
	assert.Equal(t, groupID, group.ID)
	assert.Equal(t, "Trip", group.Name)
	assert.True(t, group.Active)
	assert.Equal(t, []string{"alice", "bob", "carol"}, group.Members)
	assert.Equal(t, 3, group.MemberCount)
	assert.Equal(t, []*rpc.CurrencyAmount{
		{Currency: "EUR", Amount: "8.00"},
		{Currency: "USD", Amount: "42.50"},
	}, group.ExpenseTotals)
}

func TestGetGroup_Access(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	groupID := env.createGroup(t, true, "alice", "bob")
	archived := env.createGroup(t, false, "alice", "bob")

	_, err := env.groups.GetGroup(ctx, as("alice", &rpc.GetGroupRequest{GroupID: "nonexistent-id"}))
	assertCode(t, connect.CodeNotFound, err)

	_, err = env.groups.GetGroup(ctx, as("alice", &rpc.GetGroupRequest{}))
	assertCode(t, connect.CodeInvalidArgument, err)

	_, err = env.groups.GetGroup(ctx, as("carol", &rpc.GetGroupRequest{GroupID: groupID}))
	assertCode(t, connect.CodePermissionDenied, err)

	resp, err := env.groups.GetGroup(ctx, as("alice", &rpc.GetGroupRequest{GroupID: archived}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Group.Active)
	assert.Empty(t, resp.Msg.Group.ExpenseTotals)
}

func TestListGroups(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	flat := env.createGroup(t, true, "alice", "bob")
	trip := env.createGroup(t, false, "bob", "carol")
	env.createGroup(t, true, "carol", "dave")

	env.createExpense(t, "alice", &rpc.CreateExpenseRequest{Amount: "20.00", GroupID: flat})

	resp, err := env.groups.ListGroups(ctx, as("bob", &rpc.ListGroupsRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Groups, 2)

	byID := make(map[string]*rpc.Group)
	for _, g := range resp.Msg.Groups {
		assert.NotEmpty(t, g.Members, "group %s has no members", g.ID)
		assert.Equal(t, len(g.Members), g.MemberCount)
		byID[g.ID] = g
	}
	require.Contains(t, byID, flat)
	require.Contains(t, byID, trip)
	assert.Equal(t, []*rpc.CurrencyAmount{{Currency: "USD", Amount: "20.00"}}, byID[flat].ExpenseTotals)
	assert.False(t, byID[trip].Active)
}

func TestListGroups_Empty(t *testing.T) {
	env := setupTestServer(t)
	env.createGroup(t, true, "alice", "bob")

	resp, err := env.groups.ListGroups(context.Background(), as("dave", &rpc.ListGroupsRequest{}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Groups)
}
