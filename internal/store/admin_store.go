package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// AdminStore backs the role gate in front of account management and audit
// views. Roles are a flat array per admin; super admins pass every check.
type AdminStore struct {
	db DB
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

type adminRow struct {
	IsSuper bool           `db:"is_super"`
	Roles   pq.StringArray `db:"roles"`
}

func (s *AdminStore) Get(ctx context.Context, userID string) (isAdmin, isSuper bool, roles []string, err error) {
	var row adminRow
	err = s.db.GetContext(ctx, &row, `
		SELECT is_super, roles
		FROM admins
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil, nil
		}
		return false, false, nil, err
	}
	return true, row.IsSuper, []string(row.Roles), nil
}

func (s *AdminStore) Grant(ctx context.Context, tx Execer, userID string, isSuper bool, roles []string, createdBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admins (user_id, is_super, roles, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET is_super = EXCLUDED.is_super, roles = EXCLUDED.roles
	`, userID, isSuper, pq.Array(roles), createdBy)
	return err
}

func (s *AdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM admins`)
	return count > 0, err
}
