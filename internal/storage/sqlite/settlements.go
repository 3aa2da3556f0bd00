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
)

type settlementRow struct {
	ID          string          `db:"id"`
	GroupID     sql.NullString  `db:"group_id"`
	FromUserID  string          `db:"from_user_id"`
	ToUserID    string          `db:"to_user_id"`
	Amount      decimal.Decimal `db:"amount"`
	Currency    string          `db:"currency"`
	Status      string          `db:"status"`
	Note        sql.NullString  `db:"note"`
	CreatedAt   int64           `db:"created_at"`
	ConfirmedAt sql.NullInt64   `db:"confirmed_at"`
}

func (r settlementRow) toModel() *models.Settlement {
	settlement := &models.Settlement{
		ID:         r.ID,
		GroupID:    r.GroupID.String,
		FromUserID: r.FromUserID,
		ToUserID:   r.ToUserID,
		Amount:     r.Amount,
		Currency:   r.Currency,
		Status:     models.SettlementStatus(r.Status),
		Note:       r.Note.String,
		CreatedAt:  fromUnix(r.CreatedAt),
	}
	if r.ConfirmedAt.Valid {
		at := fromUnix(r.ConfirmedAt.Int64)
		settlement.ConfirmedAt = &at
	}
	return settlement
}

const settlementColumns = `id, group_id, from_user_id, to_user_id, amount, currency, status, note, created_at, confirmed_at`

// CreateSettlement persists a new settlement to the database.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	// Generate ID if not set
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = s.now().UTC()
	}
	if settlement.Status == "" {
		settlement.Status = models.SettlementPending
	}

	var confirmedAt sql.NullInt64
	if settlement.ConfirmedAt != nil {
		confirmedAt = sql.NullInt64{Int64: settlement.ConfirmedAt.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlements (`+settlementColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, nullString(settlement.GroupID), settlement.FromUserID, settlement.ToUserID,
		settlement.Amount.StringFixed(2), settlement.Currency, string(settlement.Status),
		nullString(settlement.Note), settlement.CreatedAt.Unix(), confirmedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	return getSettlement(ctx, s.db, settlementID)
}

// UpdateSettlement applies fn to the settlement and persists its status and
// confirmation time in one transaction.
func (s *SQLiteStore) UpdateSettlement(ctx context.Context, settlementID string, fn func(*models.Settlement) error) (*models.Settlement, error) {
	var settlement *models.Settlement
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		settlement, err = getSettlement(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if err := fn(settlement); err != nil {
			return err
		}

		var confirmedAt sql.NullInt64
		if settlement.ConfirmedAt != nil {
			confirmedAt = sql.NullInt64{Int64: settlement.ConfirmedAt.Unix(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE settlements SET status = ?, confirmed_at = ? WHERE id = ?`,
			string(settlement.Status), confirmedAt, settlement.ID,
		); err != nil {
			return fmt.Errorf("failed to update settlement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// ListSettlements retrieves the settlements matching filter, newest first.
func (s *SQLiteStore) ListSettlements(ctx context.Context, filter storage.SettlementFilter) ([]*models.Settlement, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != "" {
		where = append(where, `(from_user_id = ? OR to_user_id = ?)`)
		args = append(args, filter.UserID, filter.UserID)
	}
	if filter.GroupID != "" {
		where = append(where, `group_id = ?`)
		args = append(args, filter.GroupID)
	}
	if filter.ConfirmedOnly {
		where = append(where, `status = ?`)
		args = append(args, string(models.SettlementConfirmed))
	}

	query := `SELECT ` + settlementColumns + ` FROM settlements`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	var rows []settlementRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}

	settlements := make([]*models.Settlement, len(rows))
	for i, r := range rows {
		settlements[i] = r.toModel()
	}
	return settlements, nil
}

func getSettlement(ctx context.Context, q dbExecutor, settlementID string) (*models.Settlement, error) {
	var row settlementRow
	err := q.GetContext(ctx, &row,
		`SELECT `+settlementColumns+` FROM settlements WHERE id = ?`, settlementID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindSettlementNotFound, "settlement not found: %s", settlementID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return row.toModel(), nil
}
