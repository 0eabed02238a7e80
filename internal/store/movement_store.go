package store

import (
	"context"
	"time"

	"cashbook/internal/models"
)

type MovementStore struct {
	db DB
}

func NewMovementStore(db DB) *MovementStore {
	return &MovementStore{db: db}
}

type MovementInput struct {
	ID                   string
	VoucherNo            string
	BusinessDate         string
	Kind                 string
	AccountID            string
	Amount               int64
	Category             *string
	Counterparty         *string
	Memo                 *string
	Extra                string
	CreatedBy            string
	CreatedAt            time.Time
	IsReversal           bool
	ReversalOfMovementID *string
}

func (s *MovementStore) Insert(ctx context.Context, tx Execer, input MovementInput) error {
	query := `
		INSERT INTO movements (id, voucher_no, business_date, kind, account_id, amount,
		                       category, counterparty, memo, extra, created_by, created_at,
		                       is_reversal, reversal_of_movement_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.VoucherNo, input.BusinessDate, input.Kind, input.AccountID, input.Amount,
		input.Category, input.Counterparty, input.Memo, input.Extra, input.CreatedBy, input.CreatedAt,
		input.IsReversal, input.ReversalOfMovementID,
	)
	return err
}

func (s *MovementStore) GetByID(ctx context.Context, movementID string) (models.Movement, error) {
	var row models.Movement
	err := s.db.GetContext(ctx, &row, `
		SELECT id, voucher_no, business_date, kind, account_id, amount,
		       category, counterparty, memo, extra, created_by, created_at,
		       is_reversal, reversal_of_movement_id, is_reversed, reversed_by_movement_id
		FROM movements
		WHERE id = $1
	`, movementID)
	if err != nil {
		return models.Movement{}, err
	}
	return row, nil
}

// MarkReversed links the original movement to its reversal. The is_reversed
// condition makes the update a second guard against double reversal when two
// reversals race past the service-level check.
func (s *MovementStore) MarkReversed(ctx context.Context, tx Execer, originalID, reversalID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE movements
		SET is_reversed = TRUE, reversed_by_movement_id = $2
		WHERE id = $1 AND is_reversed = FALSE
	`, originalID, reversalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MovementStore) List(ctx context.Context, accountID, businessDate string, limit, offset int) ([]models.Movement, error) {
	query := `
		SELECT id, voucher_no, business_date, kind, account_id, amount,
		       category, counterparty, memo, extra, created_by, created_at,
		       is_reversal, reversal_of_movement_id, is_reversed, reversed_by_movement_id
		FROM movements
		WHERE 1 = 1
	`
	args := []any{}
	if accountID != "" {
		args = append(args, accountID)
		query += ` AND account_id = $` + itoa(len(args))
	}
	if businessDate != "" {
		args = append(args, businessDate)
		query += ` AND business_date = $` + itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY business_date DESC, created_at DESC LIMIT $` + itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + itoa(len(args))

	var rows []models.Movement
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByDate counts movements on one business date. The voucher allocator
// no longer derives numbers from this count; it survives as a drift check
// for the reconcile report.
func (s *MovementStore) CountByDate(ctx context.Context, businessDate string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM movements
		WHERE business_date = $1
	`, businessDate)
	return count, err
}
