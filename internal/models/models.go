package models

import "time"

const (
	KindIncome  = "income"
	KindExpense = "expense"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Account is the single mutable point of contention in the ledger. The
// version column exists to force a write conflict between concurrent
// postings; balances are always derived from the posting log plus the
// immutable opening balance.
type Account struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Currency       string    `db:"currency" json:"currency"`
	OpeningBalance int64     `db:"opening_balance" json:"opening_balance"`
	Active         bool      `db:"active" json:"active"`
	Version        int64     `db:"version" json:"version"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Movement is a business-level cash-flow record. Amounts are positive
// integer minor units; direction is carried by Kind, not sign. A reversed
// movement is never edited in place: the reversal linkage fields point both
// ways between the original and the compensating movement.
type Movement struct {
	ID                   string    `db:"id" json:"id"`
	VoucherNo            string    `db:"voucher_no" json:"voucher_no"`
	BusinessDate         string    `db:"business_date" json:"business_date"`
	Kind                 string    `db:"kind" json:"kind"`
	AccountID            string    `db:"account_id" json:"account_id"`
	Amount               int64     `db:"amount" json:"amount"`
	Category             *string   `db:"category" json:"category,omitempty"`
	Counterparty         *string   `db:"counterparty" json:"counterparty,omitempty"`
	Memo                 *string   `db:"memo" json:"memo,omitempty"`
	Extra                string    `db:"extra" json:"extra"`
	CreatedBy            string    `db:"created_by" json:"created_by"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	IsReversal           bool      `db:"is_reversal" json:"is_reversal"`
	ReversalOfMovementID *string   `db:"reversal_of_movement_id" json:"reversal_of_movement_id,omitempty"`
	IsReversed           bool      `db:"is_reversed" json:"is_reversed"`
	ReversedByMovementID *string   `db:"reversed_by_movement_id" json:"reversed_by_movement_id,omitempty"`
}

// Posting is the append-only ledger record of a movement's effect on one
// account. balance_before and balance_after are fixed at insert time under
// the account guard and never recomputed.
type Posting struct {
	ID            string    `db:"id" json:"id"`
	AccountID     string    `db:"account_id" json:"account_id"`
	MovementID    string    `db:"movement_id" json:"movement_id"`
	BusinessDate  string    `db:"business_date" json:"business_date"`
	Kind          string    `db:"kind" json:"kind"`
	Amount        int64     `db:"amount" json:"amount"`
	BalanceBefore int64     `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Data       string    `db:"data" json:"data"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
