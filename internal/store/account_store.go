package store

import (
	"context"

	"cashbook/internal/models"
)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, id, name, currency string, openingBalance int64) error {
	query := `
		INSERT INTO accounts (id, name, currency, opening_balance, active, version)
		VALUES ($1, $2, $3, $4, TRUE, 0)
	`
	_, err := tx.ExecContext(ctx, query, id, name, currency, openingBalance)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, currency, opening_balance, active, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) List(ctx context.Context) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, currency, opening_balance, active, version, created_at, updated_at
		FROM accounts
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BumpVersion is the optimistic write guard. The conditional update succeeds
// only when the caller still holds the version it read; zero affected rows
// means another posting won the race. The bump must share a transaction with
// the movement and posting inserts.
func (s *AccountStore) BumpVersion(ctx context.Context, tx Execer, accountID string, expectedVersion int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, accountID, expectedVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AccountStore) SetActive(ctx context.Context, tx Execer, accountID string, active bool) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET active = $1, updated_at = NOW()
		WHERE id = $2
	`, active, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
