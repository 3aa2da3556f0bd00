package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

type pairSplitRow struct {
	ExpenseID  string          `db:"expense_id"`
	UserID     string          `db:"user_id"`
	Amount     decimal.Decimal `db:"amount"`
	Settled    decimal.Decimal `db:"settled"`
	PayerID    string          `db:"payer_id"`
	Currency   string          `db:"currency"`
	IsApproved bool            `db:"is_approved"`
	IsRejected bool            `db:"is_rejected"`
}

type applicationRow struct {
	ID        string          `db:"id"`
	PaymentID string          `db:"payment_id"`
	ExpenseID string          `db:"expense_id"`
	UserID    string          `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt int64           `db:"created_at"`
}

type splitKey struct{ expenseID, userID string }

// ApplyPayment records a payment against the open splits between debtor and
// creditor. The single connection serializes this with every other write.
func (s *SQLiteStore) ApplyPayment(ctx context.Context, debtorID, creditorID string, fn storage.PaymentFunc) ([]models.PaymentApplication, error) {
	var applied []models.PaymentApplication
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var rows []pairSplitRow
		if err := tx.SelectContext(ctx, &rows,
			`SELECT s.expense_id, s.user_id, s.amount, s.settled, e.payer_id, e.currency, e.is_approved,
			        EXISTS (SELECT 1 FROM expense_verifications v WHERE v.expense_id = e.id AND v.status = 'rejected') AS is_rejected
			 FROM expense_splits s
			 JOIN expenses e ON e.id = s.expense_id
			 WHERE (s.user_id = ? AND e.payer_id = ?) OR (s.user_id = ? AND e.payer_id = ?)
			 ORDER BY e.created_at, s.seq`,
			debtorID, creditorID, creditorID, debtorID,
		); err != nil {
			return fmt.Errorf("failed to load open splits: %w", err)
		}

		var pair storage.PairSplits
		splits := make(map[splitKey]pairSplitRow, len(rows))
		for _, r := range rows {
			remaining := r.Amount.Sub(r.Settled)
			if !remaining.IsPositive() {
				continue
			}
			splits[splitKey{r.ExpenseID, r.UserID}] = r
			open := storage.OpenSplit{
				ExpenseID: r.ExpenseID,
				UserID:    r.UserID,
				PayerID:   r.PayerID,
				Currency:  r.Currency,
				Approved:  r.IsApproved,
				Rejected:  r.IsRejected,
				Remaining: remaining,
			}
			if r.UserID == debtorID {
				pair.Owed = append(pair.Owed, open)
			} else {
				pair.Offset = append(pair.Offset, open)
			}
		}

		apps, err := fn(pair)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		for i := range apps {
			app := &apps[i]
			key := splitKey{app.ExpenseID, app.UserID}
			split, ok := splits[key]
			if !ok {
				return fmt.Errorf("split %s/%s is not open between %s and %s", app.ExpenseID, app.UserID, debtorID, creditorID)
			}
			settled := split.Settled.Add(app.Amount)
			if !app.Amount.IsPositive() || settled.GreaterThan(split.Amount) {
				return fmt.Errorf("cannot apply %s to split %s/%s with %s remaining",
					app.Amount, app.ExpenseID, app.UserID, split.Amount.Sub(split.Settled))
			}
			if app.ID == "" {
				app.ID = uuid.New().String()
			}
			if app.CreatedAt.IsZero() {
				app.CreatedAt = now
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE expense_splits SET settled = ? WHERE expense_id = ? AND user_id = ?`,
				settled.StringFixed(2), app.ExpenseID, app.UserID,
			); err != nil {
				return fmt.Errorf("failed to update split: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO payment_applications (id, payment_id, expense_id, user_id, amount, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				app.ID, app.PaymentID, app.ExpenseID, app.UserID, app.Amount.StringFixed(2), app.CreatedAt.Unix(),
			); err != nil {
				return fmt.Errorf("failed to insert payment application: %w", err)
			}

			split.Settled = settled
			splits[key] = split
		}
		applied = apps
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// ListPaymentApplications retrieves the audit rows written for one payment.
func (s *SQLiteStore) ListPaymentApplications(ctx context.Context, paymentID string) ([]models.PaymentApplication, error) {
	var rows []applicationRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, payment_id, expense_id, user_id, amount, created_at
		 FROM payment_applications WHERE payment_id = ? ORDER BY rowid`, paymentID,
	); err != nil {
		return nil, fmt.Errorf("failed to list payment applications: %w", err)
	}

	apps := make([]models.PaymentApplication, len(rows))
	for i, r := range rows {
		apps[i] = models.PaymentApplication{
			ID:        r.ID,
			PaymentID: r.PaymentID,
			ExpenseID: r.ExpenseID,
			UserID:    r.UserID,
			Amount:    r.Amount,
			CreatedAt: fromUnix(r.CreatedAt),
		}
	}
	return apps, nil
}
