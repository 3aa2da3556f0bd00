package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/verification"
)

const expenseColumns = `e.id, e.title, e.description, e.amount::text, e.currency, e.payer_id, e.group_id,
	e.split_type, e.created_at, e.expense_date`

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var (
		e         models.Expense
		amount    string
		groupID   *string
		splitType string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &amount, &e.Currency, &e.PayerID, &groupID,
		&splitType, &e.CreatedAt, &e.ExpenseDate); err != nil {
		return nil, err
	}
	var err error
	if e.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	e.GroupID = deref(groupID)
	e.SplitType = models.SplitType(splitType)
	return &e, nil
}

// CreateExpense persists an expense, its splits and verification statuses.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
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

	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO expenses (id, title, description, amount, currency, payer_id, group_id,
				split_type, is_approved, created_at, expense_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			expense.ID, expense.Title, expense.Description, expense.Amount.StringFixed(2), expense.Currency,
			expense.PayerID, nullable(expense.GroupID), string(expense.SplitType), expense.IsApproved(),
			expense.CreatedAt, expense.ExpenseDate,
		); err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		for i := range expense.Splits {
			split := &expense.Splits[i]
			split.ExpenseID = expense.ID

			var pct *string
			if split.Percentage != nil {
				v := split.Percentage.String()
				pct = &v
			}
			if err := tx.QueryRow(ctx,
				`INSERT INTO expense_splits (expense_id, user_id, amount, settled, percentage)
				 VALUES ($1, $2, $3, $4, $5) RETURNING seq`,
				split.ExpenseID, split.UserID, split.Amount.StringFixed(2), split.Settled.StringFixed(2), pct,
			).Scan(&split.Seq); err != nil {
				return fmt.Errorf("failed to insert expense split: %w", err)
			}
		}

		return saveVerification(ctx, tx, expense)
	})
}

// GetExpense retrieves an expense with its splits and verification state.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.pool, expenseID, false)
}

// ListExpenses retrieves expenses matching filter, newest first.
func (s *Store) ListExpenses(ctx context.Context, filter storage.ExpenseFilter) ([]*models.Expense, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf(`(e.payer_id = $%d OR EXISTS (
			SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = $%d))`, len(args), len(args)))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		where = append(where, fmt.Sprintf(`e.group_id = $%d`, len(args)))
	}
	if filter.ApprovedOnly {
		where = append(where, `e.is_approved`)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses e`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY e.created_at DESC, e.seq DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	expenses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Expense, error) {
		return scanExpense(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan expenses: %w", err)
	}
	if err := attachDetails(ctx, s.pool, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// UpdateVerification locks the expense row, applies fn and persists the
// statuses together with the recomputed approval flag.
func (s *Store) UpdateVerification(ctx context.Context, expenseID string, fn func(*models.Expense) error) (*models.Expense, error) {
	var expense *models.Expense
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		expense, err = getExpense(ctx, tx, expenseID, true)
		if err != nil {
			return err
		}
		if err := fn(expense); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE expenses SET is_approved = $1 WHERE id = $2`, expense.IsApproved(), expense.ID,
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

func saveVerification(ctx context.Context, tx pgx.Tx, expense *models.Expense) error {
	batch := &pgx.Batch{}
	for user, status := range expense.Verification.Snapshot() {
		batch.Queue(
			`INSERT INTO expense_verifications (expense_id, user_id, status) VALUES ($1, $2, $3)
			 ON CONFLICT (expense_id, user_id) DO UPDATE SET status = EXCLUDED.status`,
			expense.ID, user, string(status),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save verification statuses: %w", err)
	}
	return nil
}

func getExpense(ctx context.Context, q querier, expenseID string, forUpdate bool) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses e WHERE e.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	expense, err := scanExpense(q.QueryRow(ctx, query, expenseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindExpenseNotFound, "expense not found: %s", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	if err := attachDetails(ctx, q, []*models.Expense{expense}); err != nil {
		return nil, err
	}
	return expense, nil
}

// attachDetails loads splits and verification statuses for expenses.
func attachDetails(ctx context.Context, q querier, expenses []*models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}
	ids := make([]string, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
	}

	rows, err := q.Query(ctx,
		`SELECT seq, expense_id, user_id, amount::text, settled::text, percentage::text
		 FROM expense_splits WHERE expense_id = ANY($1) ORDER BY seq`, ids)
	if err != nil {
		return fmt.Errorf("failed to get expense splits: %w", err)
	}
	splits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ExpenseSplit, error) {
		var (
			split           models.ExpenseSplit
			amount, settled string
			pct             *string
		)
		if err := row.Scan(&split.Seq, &split.ExpenseID, &split.UserID, &amount, &settled, &pct); err != nil {
			return split, err
		}
		var err error
		if split.Amount, err = parseDecimal("split amount", amount); err != nil {
			return split, err
		}
		if split.Settled, err = parseDecimal("split settled", settled); err != nil {
			return split, err
		}
		if pct != nil {
			p, err := parseDecimal("split percentage", *pct)
			if err != nil {
				return split, err
			}
			split.Percentage = &p
		}
		return split, nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan expense splits: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT expense_id, user_id, status FROM expense_verifications WHERE expense_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to get verification statuses: %w", err)
	}
	type statusRow struct {
		ExpenseID string `db:"expense_id"`
		UserID    string `db:"user_id"`
		Status    string `db:"status"`
	}
	statusRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[statusRow])
	if err != nil {
		return fmt.Errorf("failed to scan verification statuses: %w", err)
	}

	byExpense := make(map[string][]models.ExpenseSplit, len(expenses))
	for _, sp := range splits {
		byExpense[sp.ExpenseID] = append(byExpense[sp.ExpenseID], sp)
	}
	statuses := make(map[string]map[string]verification.Status, len(expenses))
	for _, r := range statusRows {
		if statuses[r.ExpenseID] == nil {
			statuses[r.ExpenseID] = make(map[string]verification.Status)
		}
		statuses[r.ExpenseID][r.UserID] = verification.Status(r.Status)
	}

	for _, e := range expenses {
		e.Splits = byExpense[e.ID]
		state, err := verification.Restore(e.PayerID, e.Participants(), statuses[e.ID])
		if err != nil {
			return fmt.Errorf("corrupt verification state for expense %s: %w", e.ID, err)
		}
		e.Verification = state
	}
	return nil
}
