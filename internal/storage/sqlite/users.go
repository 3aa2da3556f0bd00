package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
)

type userRow struct {
	ID          string `db:"id"`
	DisplayName string `db:"display_name"`
	Email       string `db:"email"`
	CreatedAt   int64  `db:"created_at"`
}

func (r userRow) toModel() *models.User {
	return &models.User{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Email:       r.Email,
		CreatedAt:   fromUnix(r.CreatedAt),
	}
}

type groupRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Active    bool   `db:"active"`
	CreatedAt int64  `db:"created_at"`
}

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, email, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.DisplayName, user.Email, user.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, display_name, email, created_at FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindUserNotFound, "user not found: %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return row.toModel(), nil
}

// GetUsersByIDs retrieves multiple users by their IDs.
// Users that don't exist are omitted from the result.
func (s *SQLiteStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	query, args, err := sqlx.In(`SELECT id, display_name, email, created_at FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build users query: %w", err)
	}

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	for _, r := range rows {
		users[r.ID] = r.toModel()
	}
	return users, nil
}

// CreateGroup persists a new group and its members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = s.now().UTC()
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, name, active, created_at) VALUES (?, ?, ?, ?)`,
			group.ID, group.Name, group.Active, group.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		for _, member := range group.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`,
				group.ID, member,
			); err != nil {
				return fmt.Errorf("failed to insert group member: %w", err)
			}
		}
		return nil
	})
}

// GetGroup retrieves a group by ID, including its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getGroup(ctx, s.db, groupID)
}

// ListGroups returns the groups userID belongs to, newest first.
func (s *SQLiteStore) ListGroups(ctx context.Context, userID string) ([]*models.Group, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT g.id FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.created_at DESC, g.rowid DESC`, userID,
	); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		group, err := getGroup(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func getGroup(ctx context.Context, q dbExecutor, groupID string) (*models.Group, error) {
	var row groupRow
	err := q.GetContext(ctx, &row,
		`SELECT id, name, active, created_at FROM groups WHERE id = ?`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindGroupNotFound, "group not found: %s", groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	group := &models.Group{
		ID:        row.ID,
		Name:      row.Name,
		Active:    row.Active,
		CreatedAt: fromUnix(row.CreatedAt),
	}
	if err := q.SelectContext(ctx, &group.Members,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`, groupID,
	); err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	return group, nil
}
