package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/verification"
)

type expenseRow struct {
	ID          string          `db:"id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	Currency    string          `db:"currency"`
	PayerID     string          `db:"payer_id"`
	GroupID     sql.NullString  `db:"group_id"`
	SplitType   string          `db:"split_type"`
	IsApproved  bool            `db:"is_approved"`
	CreatedAt   int64           `db:"created_at"`
	ExpenseDate int64           `db:"expense_date"`
}

type splitRow struct {
	Seq        int64               `db:"seq"`
	ExpenseID  string              `db:"expense_id"`
	UserID     string              `db:"user_id"`
	Amount     decimal.Decimal     `db:"amount"`
	Settled    decimal.Decimal     `db:"settled"`
	Percentage decimal.NullDecimal `db:"percentage"`
}

type verificationRow struct {
	ExpenseID string `db:"expense_id"`
	UserID    string `db:"user_id"`
	Status    string `db:"status"`
}

const expenseColumns = `e.id, e.title, e.description, e.amount, e.currency, e.payer_id, e.group_id,
	e.split_type, e.is_approved, e.created_at, e.expense_date`

// CreateExpense persists a new expense with its splits and verification state.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = s.now().UTC()
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = expense.CreatedAt
	}
	if expense.Verification == nil {
		expense.Verification = verification.New(expense.PayerID, expense.Participants())
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, title, description, amount, currency, payer_id, group_id,
				split_type, is_approved, created_at, expense_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, expense.Title, expense.Description, expense.Amount.StringFixed(2), expense.Currency,
			expense.PayerID, nullString(expense.GroupID), string(expense.SplitType),
			expense.IsApproved(), expense.CreatedAt.Unix(), expense.ExpenseDate.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		for i := range expense.Splits {
			split := &expense.Splits[i]
			split.ExpenseID = expense.ID
			if split.Settled.IsZero() {
				split.Settled = decimal.Zero
			}

			var pct decimal.NullDecimal
			if split.Percentage != nil {
				pct = decimal.NewNullDecimal(*split.Percentage)
			}

			res, err := tx.ExecContext(ctx,
				`INSERT INTO expense_splits (expense_id, user_id, amount, settled, percentage)
				 VALUES (?, ?, ?, ?, ?)`,
				split.ExpenseID, split.UserID, split.Amount.StringFixed(2), split.Settled.StringFixed(2), pct,
			)
			if err != nil {
				return fmt.Errorf("failed to insert expense split: %w", err)
			}
			if split.Seq, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to read split sequence: %w", err)
			}
		}

		return saveVerification(ctx, tx, expense)
	})
}

// GetExpense retrieves an expense by ID, including splits and verification.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.db, expenseID)
}

// ListExpenses retrieves the expenses matching filter, newest first.
func (s *SQLiteStore) ListExpenses(ctx context.Context, filter storage.ExpenseFilter) ([]*models.Expense, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != "" {
		where = append(where, `(e.payer_id = ? OR EXISTS (
			SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = ?))`)
		args = append(args, filter.UserID, filter.UserID)
	}
	if filter.GroupID != "" {
		where = append(where, `e.group_id = ?`)
		args = append(args, filter.GroupID)
	}
	if filter.ApprovedOnly {
		where = append(where, `e.is_approved = 1`)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses e`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY e.created_at DESC, e.rowid DESC`

	var rows []expenseRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return loadExpenses(ctx, s.db, rows)
}

// UpdateVerification applies fn to the expense and persists the resulting
// verification statuses and approval flag in one transaction.
func (s *SQLiteStore) UpdateVerification(ctx context.Context, expenseID string, fn func(*models.Expense) error) (*models.Expense, error) {
	var expense *models.Expense
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		expense, err = getExpense(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		if err := fn(expense); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE expenses SET is_approved = ? WHERE id = ?`,
			expense.IsApproved(), expense.ID,
		); err != nil {
			return fmt.Errorf("failed to update approval: %w", err)
		}
		return saveVerification(ctx, tx, expense)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

func saveVerification(ctx context.Context, q dbExecutor, expense *models.Expense) error {
	for user, status := range expense.Verification.Snapshot() {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO expense_verifications (expense_id, user_id, status) VALUES (?, ?, ?)
			 ON CONFLICT (expense_id, user_id) DO UPDATE SET status = excluded.status`,
			expense.ID, user, string(status),
		); err != nil {
			return fmt.Errorf("failed to save verification status: %w", err)
		}
	}
	return nil
}

func getExpense(ctx context.Context, q dbExecutor, expenseID string) (*models.Expense, error) {
	var row expenseRow
	err := q.GetContext(ctx, &row,
		`SELECT `+expenseColumns+` FROM expenses e WHERE e.id = ?`, expenseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindExpenseNotFound, "expense not found: %s", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	expenses, err := loadExpenses(ctx, q, []expenseRow{row})
	if err != nil {
		return nil, err
	}
	return expenses[0], nil
}

// loadExpenses attaches splits and verification state to expense rows,
// keeping the order of rows.
func loadExpenses(ctx context.Context, q dbExecutor, rows []expenseRow) ([]*models.Expense, error) {
	expenses := make([]*models.Expense, 0, len(rows))
	if len(rows) == 0 {
		return expenses, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	splitQuery, args, err := sqlx.In(
		`SELECT seq, expense_id, user_id, amount, settled, percentage
		 FROM expense_splits WHERE expense_id IN (?) ORDER BY seq`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build splits query: %w", err)
	}
	var splits []splitRow
	if err := q.SelectContext(ctx, &splits, splitQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to get expense splits: %w", err)
	}

	verQuery, args, err := sqlx.In(
		`SELECT expense_id, user_id, status FROM expense_verifications WHERE expense_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build verification query: %w", err)
	}
	var verifications []verificationRow
	if err := q.SelectContext(ctx, &verifications, verQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to get verification statuses: %w", err)
	}

	splitsByExpense := make(map[string][]models.ExpenseSplit, len(rows))
	for _, sr := range splits {
		split := models.ExpenseSplit{
			ExpenseID: sr.ExpenseID,
			UserID:    sr.UserID,
			Amount:    sr.Amount,
			Settled:   sr.Settled,
			Seq:       sr.Seq,
		}
		if sr.Percentage.Valid {
			pct := sr.Percentage.Decimal
			split.Percentage = &pct
		}
		splitsByExpense[sr.ExpenseID] = append(splitsByExpense[sr.ExpenseID], split)
	}

	statuses := make(map[string]map[string]verification.Status, len(rows))
	for _, vr := range verifications {
		if statuses[vr.ExpenseID] == nil {
			statuses[vr.ExpenseID] = make(map[string]verification.Status)
		}
		statuses[vr.ExpenseID][vr.UserID] = verification.Status(vr.Status)
	}

	for _, r := range rows {
		expense := &models.Expense{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Amount:      r.Amount,
			Currency:    r.Currency,
			PayerID:     r.PayerID,
			GroupID:     r.GroupID.String,
			SplitType:   models.SplitType(r.SplitType),
			Splits:      splitsByExpense[r.ID],
			CreatedAt:   fromUnix(r.CreatedAt),
			ExpenseDate: fromUnix(r.ExpenseDate),
		}
		state, err := verification.Restore(expense.PayerID, expense.Participants(), statuses[r.ID])
		if err != nil {
			return nil, fmt.Errorf("corrupt verification state for expense %s: %w", r.ID, err)
		}
		expense.Verification = state
		expenses = append(expenses, expense)
	}
	return expenses, nil
}
