package rpc

import "time"

// Expense is the wire form of an expense with its splits and verification.
type Expense struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description,omitempty"`
	Amount       string               `json:"amount"`
	Currency     string               `json:"currency"`
	PayerID      string               `json:"payer_id"`
	GroupID      string               `json:"group_id,omitempty"`
	SplitType    string               `json:"split_type"`
	Splits       []*Split             `json:"splits"`
	Verification []*VerificationEntry `json:"verification"`
	IsApproved   bool                 `json:"is_approved"`
	CreatedAt    time.Time            `json:"created_at"`
	ExpenseDate  time.Time            `json:"expense_date"`
}

// Split is one participant's share of an expense.
type Split struct {
	UserID     string `json:"user_id"`
	Amount     string `json:"amount"`
	Settled    string `json:"settled"`
	Remaining  string `json:"remaining"`
	Percentage string `json:"percentage,omitempty"`
}

// VerificationEntry is one involved user's verdict.
type VerificationEntry struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// SplitInput is a requested share. Amount is used by exact splits and
// Percentage by percentage splits.
type SplitInput struct {
	UserID     string `json:"user_id"`
	Amount     string `json:"amount,omitempty"`
	Percentage string `json:"percentage,omitempty"`
}

type CreateExpenseRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Amount      string        `json:"amount"`
	Currency    string        `json:"currency,omitempty"`
	GroupID     string        `json:"group_id,omitempty"`
	SplitType   string        `json:"split_type,omitempty"`
	Splits      []*SplitInput `json:"splits,omitempty"`
	// ExpenseDate is RFC 3339; empty means now.
	ExpenseDate string `json:"expense_date,omitempty"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListExpensesRequest struct {
	GroupID string `json:"group_id,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type SetVerificationStatusRequest struct {
	ExpenseID string `json:"expense_id"`
	Status    string `json:"status"`
}

type SetVerificationStatusResponse struct {
	NewStatus  string `json:"new_status"`
	IsApproved bool   `json:"is_approved"`
}

type ListPendingVerificationsRequest struct{}

type ListPendingVerificationsResponse struct {
	Expenses []*Expense `json:"expenses"`
}

// Settlement is the wire form of a settlement.
type Settlement struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id,omitempty"`
	FromUserID  string     `json:"from_user_id"`
	ToUserID    string     `json:"to_user_id"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

type CreateSettlementRequest struct {
	ToUserID    string `json:"to_user_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	Note        string `json:"note,omitempty"`
	AutoConfirm bool   `json:"auto_confirm,omitempty"`
}

type CreateSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type ConfirmSettlementRequest struct {
	SettlementID string `json:"settlement_id"`
}

type ConfirmSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type CancelSettlementRequest struct {
	SettlementID string `json:"settlement_id"`
}

type CancelSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"group_id,omitempty"`
}

type ListSettlementsResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

// Payment modes.
const (
	PaymentModeIndividual = "individual"
	PaymentModeGlobal     = "global"
)

type ApplyPaymentRequest struct {
	ReceiverID string `json:"receiver_id"`
	Amount     string `json:"amount"`
	// Currency selects which balance is paid; empty means the server default.
	// Ignored when ExpenseID is set.
	Currency string `json:"currency,omitempty"`
	// ExpenseID restricts an individual payment to one expense.
	ExpenseID string `json:"expense_id,omitempty"`
	// Mode is individual (default) or global.
	Mode string `json:"mode,omitempty"`
}

// PaymentApplication is the part of a payment consumed by one split.
type PaymentApplication struct {
	ExpenseID        string `json:"expense_id"`
	UserID           string `json:"user_id"`
	AmountApplied    string `json:"amount_applied"`
	RemainingOnSplit string `json:"remaining_on_split"`
}

type ApplyPaymentResponse struct {
	PaymentID    string                `json:"payment_id"`
	Applications []*PaymentApplication `json:"applications"`
	AppliedTotal string                `json:"applied_total"`
	Unapplied    string                `json:"unapplied"`
}

// Counterparty is a user the viewer owes or is owed by.
type Counterparty struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Amount      string `json:"amount"`
}

// BalanceReport is the viewer's position in one currency.
type BalanceReport struct {
	ViewerID          string          `json:"viewer_id"`
	Currency          string          `json:"currency"`
	Debts             []*Counterparty `json:"debts"`
	Credits           []*Counterparty `json:"credits"`
	TotalOwedByViewer string          `json:"total_owed_by_viewer"`
	TotalOwedToViewer string          `json:"total_owed_to_viewer"`
	NetBalance        string          `json:"net_balance"`
}

type GetBalanceReportRequest struct {
	GroupID string `json:"group_id,omitempty"`
}

type GetBalanceReportResponse struct {
	Reports []*BalanceReport `json:"reports"`
}

// MemberBalance is one group member's totals in one currency.
type MemberBalance struct {
	UserID     string `json:"user_id"`
	Currency   string `json:"currency"`
	TotalOwed  string `json:"total_owed"`
	TotalOwing string `json:"total_owing"`
	NetBalance string `json:"net_balance"`
}

// Debt is one edge of the outstanding debt graph.
type Debt struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupBalancesResponse struct {
	GroupID        string           `json:"group_id"`
	MemberBalances []*MemberBalance `json:"member_balances"`
	Debts          []*Debt          `json:"debts"`
}

type ListGroupExpensesRequest struct {
	GroupID string `json:"group_id"`
}

type ListGroupExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

// Group is the wire form of a group with its membership and spending.
type Group struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Active        bool              `json:"active"`
	Members       []string          `json:"members"`
	MemberCount   int               `json:"member_count"`
	ExpenseTotals []*CurrencyAmount `json:"expense_totals"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CurrencyAmount is an amount tagged with its currency.
type CurrencyAmount struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}
