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
)

const settlementColumns = `id, group_id, from_user_id, to_user_id, amount::text, currency, status, note, created_at, confirmed_at`

func scanSettlement(row pgx.Row) (*models.Settlement, error) {
	var (
		st            models.Settlement
		groupID, note *string
		amount        string
		status        string
	)
	if err := row.Scan(&st.ID, &groupID, &st.FromUserID, &st.ToUserID, &amount, &st.Currency,
		&status, &note, &st.CreatedAt, &st.ConfirmedAt); err != nil {
		return nil, err
	}
	var err error
	if st.Amount, err = parseDecimal("settlement amount", amount); err != nil {
		return nil, err
	}
	st.GroupID = deref(groupID)
	st.Note = deref(note)
	st.Status = models.SettlementStatus(status)
	return &st, nil
}

// CreateSettlement persists a new settlement.
func (s *Store) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = s.now().UTC()
	}
	if settlement.Status == "" {
		settlement.Status = models.SettlementPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount, currency, status, note, created_at, confirmed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		settlement.ID, nullable(settlement.GroupID), settlement.FromUserID, settlement.ToUserID,
		settlement.Amount.StringFixed(2), settlement.Currency, string(settlement.Status),
		nullable(settlement.Note), settlement.CreatedAt, settlement.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *Store) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	return getSettlement(ctx, s.pool, settlementID, false)
}

// UpdateSettlement locks the settlement row, applies fn and persists the
// resulting status.
func (s *Store) UpdateSettlement(ctx context.Context, settlementID string, fn func(*models.Settlement) error) (*models.Settlement, error) {
	var settlement *models.Settlement
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		settlement, err = getSettlement(ctx, tx, settlementID, true)
		if err != nil {
			return err
		}
		if err := fn(settlement); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE settlements SET status = $1, confirmed_at = $2 WHERE id = $3`,
			string(settlement.Status), settlement.ConfirmedAt, settlement.ID,
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

// ListSettlements retrieves settlements matching filter, newest first.
func (s *Store) ListSettlements(ctx context.Context, filter storage.SettlementFilter) ([]*models.Settlement, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf(`(from_user_id = $%d OR to_user_id = $%d)`, len(args), len(args)))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		where = append(where, fmt.Sprintf(`group_id = $%d`, len(args)))
	}
	if filter.ConfirmedOnly {
		args = append(args, string(models.SettlementConfirmed))
		where = append(where, fmt.Sprintf(`status = $%d`, len(args)))
	}

	query := `SELECT ` + settlementColumns + ` FROM settlements`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	settlements, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Settlement, error) {
		return scanSettlement(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan settlements: %w", err)
	}
	return settlements, nil
}

func getSettlement(ctx context.Context, q querier, settlementID string, forUpdate bool) (*models.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	settlement, err := scanSettlement(q.QueryRow(ctx, query, settlementID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindSettlementNotFound, "settlement not found: %s", settlementID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}
