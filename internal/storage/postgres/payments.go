package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

type splitKey struct{ expenseID, userID string }

type pairSplit struct {
	open    storage.OpenSplit
	amount  decimal.Decimal
	settled decimal.Decimal
}

// ApplyPayment locks every split between debtor and creditor in a fixed order,
// lets fn pick the applications and records them in the same transaction.
func (s *Store) ApplyPayment(ctx context.Context, debtorID, creditorID string, fn storage.PaymentFunc) ([]models.PaymentApplication, error) {
	var applied []models.PaymentApplication
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT s.expense_id, s.user_id, s.amount::text, s.settled::text, e.payer_id, e.currency, e.is_approved,
			        EXISTS (SELECT 1 FROM expense_verifications v WHERE v.expense_id = e.id AND v.status = 'rejected') AS is_rejected
			 FROM expense_splits s
			 JOIN expenses e ON e.id = s.expense_id
			 WHERE (s.user_id = $1 AND e.payer_id = $2) OR (s.user_id = $2 AND e.payer_id = $1)
			 ORDER BY e.created_at, s.seq
			 FOR UPDATE OF s`,
			debtorID, creditorID,
		)
		if err != nil {
			return fmt.Errorf("failed to lock open splits: %w", err)
		}
		splits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pairSplit, error) {
			var (
				ps              pairSplit
				amount, settled string
			)
			if err := row.Scan(&ps.open.ExpenseID, &ps.open.UserID, &amount, &settled,
				&ps.open.PayerID, &ps.open.Currency, &ps.open.Approved, &ps.open.Rejected); err != nil {
				return ps, err
			}
			var err error
			if ps.amount, err = parseDecimal("split amount", amount); err != nil {
				return ps, err
			}
			if ps.settled, err = parseDecimal("split settled", settled); err != nil {
				return ps, err
			}
			ps.open.Remaining = ps.amount.Sub(ps.settled)
			return ps, nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan open splits: %w", err)
		}

		var pair storage.PairSplits
		byKey := make(map[splitKey]pairSplit, len(splits))
		for _, ps := range splits {
			if !ps.open.Remaining.IsPositive() {
				continue
			}
			byKey[splitKey{ps.open.ExpenseID, ps.open.UserID}] = ps
			if ps.open.UserID == debtorID {
				pair.Owed = append(pair.Owed, ps.open)
			} else {
				pair.Offset = append(pair.Offset, ps.open)
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
			ps, ok := byKey[key]
			if !ok {
				return fmt.Errorf("split %s/%s is not open between %s and %s", app.ExpenseID, app.UserID, debtorID, creditorID)
			}
			settled := ps.settled.Add(app.Amount)
			if !app.Amount.IsPositive() || settled.GreaterThan(ps.amount) {
				return fmt.Errorf("cannot apply %s to split %s/%s with %s remaining",
					app.Amount, app.ExpenseID, app.UserID, ps.amount.Sub(ps.settled))
			}
			if app.ID == "" {
				app.ID = uuid.New().String()
			}
			if app.CreatedAt.IsZero() {
				app.CreatedAt = now
			}

			if _, err := tx.Exec(ctx,
				`UPDATE expense_splits SET settled = $1 WHERE expense_id = $2 AND user_id = $3`,
				settled.StringFixed(2), app.ExpenseID, app.UserID,
			); err != nil {
				return fmt.Errorf("failed to update split: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO payment_applications (id, payment_id, expense_id, user_id, amount, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				app.ID, app.PaymentID, app.ExpenseID, app.UserID, app.Amount.StringFixed(2), app.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert payment application: %w", err)
			}

			ps.settled = settled
			byKey[key] = ps
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
func (s *Store) ListPaymentApplications(ctx context.Context, paymentID string) ([]models.PaymentApplication, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, payment_id, expense_id, user_id, amount::text, created_at
		 FROM payment_applications WHERE payment_id = $1 ORDER BY seq`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment applications: %w", err)
	}
	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PaymentApplication, error) {
		var (
			app    models.PaymentApplication
			amount string
		)
		if err := row.Scan(&app.ID, &app.PaymentID, &app.ExpenseID, &app.UserID, &amount, &app.CreatedAt); err != nil {
			return app, err
		}
		var err error
		app.Amount, err = parseDecimal("applied amount", amount)
		return app, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment applications: %w", err)
	}
	return apps, nil
}
