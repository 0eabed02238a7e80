package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cashbook/internal/models"
)

// PostingStore is the append-only transaction log. Rows are inserted exactly
// once and never updated or deleted.
type PostingStore struct {
	db DB
}

func NewPostingStore(db DB) *PostingStore {
	return &PostingStore{db: db}
}

type PostingInput struct {
	ID            string
	AccountID     string
	MovementID    string
	BusinessDate  string
	Kind          string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	CreatedAt     time.Time
}

func (s *PostingStore) Insert(ctx context.Context, tx Execer, input PostingInput) error {
	query := `
		INSERT INTO postings (id, account_id, movement_id, business_date, kind, amount, balance_before, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.AccountID, input.MovementID, input.BusinessDate, input.Kind,
		input.Amount, input.BalanceBefore, input.BalanceAfter, input.CreatedAt,
	)
	return err
}

// LatestBefore returns the most recent posting strictly before the
// (businessDate, tieBreak) point under (business_date, created_at) order.
// The id column is a final tie-break so ordering stays stable when two
// postings share both keys.
func (s *PostingStore) LatestBefore(ctx context.Context, q Getter, accountID, businessDate string, tieBreak time.Time) (models.Posting, bool, error) {
	var row models.Posting
	err := q.GetContext(ctx, &row, `
		SELECT id, account_id, movement_id, business_date, kind, amount, balance_before, balance_after, created_at
		FROM postings
		WHERE account_id = $1
		  AND (business_date < $2 OR (business_date = $2 AND created_at < $3))
		ORDER BY business_date DESC, created_at DESC, id DESC
		LIMIT 1
	`, accountID, businessDate, tieBreak)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Posting{}, false, nil
		}
		return models.Posting{}, false, err
	}
	return row, true, nil
}

// ListByAccount returns the whole log for one account in replay order.
func (s *PostingStore) ListByAccount(ctx context.Context, accountID string) ([]models.Posting, error) {
	var rows []models.Posting
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, movement_id, business_date, kind, amount, balance_before, balance_after, created_at
		FROM postings
		WHERE account_id = $1
		ORDER BY business_date ASC, created_at ASC, id ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
