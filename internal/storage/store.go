// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// ExpenseFilter narrows ListExpenses. Zero fields do not filter.
type ExpenseFilter struct {
	// UserID keeps expenses the user paid for or has a split on.
	UserID string
	// GroupID keeps expenses of one group.
	GroupID string
	// ApprovedOnly keeps expenses every involved user accepted.
	ApprovedOnly bool
}

// SettlementFilter narrows ListSettlements. Zero fields do not filter.
type SettlementFilter struct {
	// UserID keeps settlements where the user is either party.
	UserID string
	// GroupID keeps settlements tagged with one group.
	GroupID string
	// ConfirmedOnly keeps confirmed settlements.
	ConfirmedOnly bool
}

// OpenSplit is a split with something still owed, together with the
// expense facts a payment needs to decide whether to consume it.
type OpenSplit struct {
	ExpenseID string
	UserID    string
	PayerID   string
	Currency  string
	Approved  bool
	// Rejected is set once any involved user has rejected the expense.
	Rejected  bool
	Remaining decimal.Decimal
}

// PairSplits are the open splits between a debtor and a creditor, each slice
// in creation order (expense created_at, then split seq).
type PairSplits struct {
	// Owed are the debtor's splits on expenses the creditor paid.
	Owed []OpenSplit
	// Offset are the creditor's splits on expenses the debtor paid.
	Offset []OpenSplit
}

// PaymentFunc decides how a payment is applied given the open splits of a
// pair. It runs inside the store transaction; returning an error aborts it.
type PaymentFunc func(splits PairSplits) ([]models.PaymentApplication, error)

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	// CreateUser persists a user. The ID is generated if empty.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser returns apperr.ErrUserNotFound if the user does not exist.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// GetUsersByIDs returns the users that exist, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	// CreateGroup persists a group and its members.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup returns apperr.ErrGroupNotFound if the group does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroups returns the groups userID belongs to, newest first.
	ListGroups(ctx context.Context, userID string) ([]*models.Group, error)

	// CreateExpense persists an expense with its splits and verification state
	// in one transaction. Split sequence numbers are assigned by the store.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense returns apperr.ErrExpenseNotFound if the expense does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns matching expenses, newest first.
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]*models.Expense, error)

	// UpdateVerification loads the expense, lets fn change its verification
	// state and persists the statuses and the approval flag atomically.
	UpdateVerification(ctx context.Context, expenseID string, fn func(*models.Expense) error) (*models.Expense, error)

	// CreateSettlement persists a settlement. The ID is generated if empty.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error

	// GetSettlement returns apperr.ErrSettlementNotFound if it does not exist.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// UpdateSettlement loads the settlement, lets fn transition it and
	// persists the new status atomically.
	UpdateSettlement(ctx context.Context, settlementID string, fn func(*models.Settlement) error) (*models.Settlement, error)

	// ListSettlements returns matching settlements, newest first.
	ListSettlements(ctx context.Context, filter SettlementFilter) ([]*models.Settlement, error)

	// ApplyPayment loads the open splits between debtor and creditor with the
	// rows locked, asks fn for the applications and records them: each one
	// increments its split's settled amount and is written as an audit row.
	ApplyPayment(ctx context.Context, debtorID, creditorID string, fn PaymentFunc) ([]models.PaymentApplication, error)

	// ListPaymentApplications returns the audit rows of one payment.
	ListPaymentApplications(ctx context.Context, paymentID string) ([]models.PaymentApplication, error)

	// Close releases any resources held by the store.
	Close() error
}
