package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashbook/internal/db"
	"cashbook/internal/models"
	"cashbook/internal/money"
	"cashbook/internal/store"
	"cashbook/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// maxConflictAttempts bounds retries after a lost version race. Anything
// other than ErrConcurrentModification surfaces immediately.
const maxConflictAttempts = 5

type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	BumpVersion(ctx context.Context, tx store.Execer, accountID string, expectedVersion int64) (int64, error)
}

type MovementStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.MovementInput) error
	GetByID(ctx context.Context, movementID string) (models.Movement, error)
	MarkReversed(ctx context.Context, tx store.Execer, originalID, reversalID string) (int64, error)
}

type PostingStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.PostingInput) error
	LatestBefore(ctx context.Context, q store.Getter, accountID, businessDate string, tieBreak time.Time) (models.Posting, bool, error)
	ListByAccount(ctx context.Context, accountID string) ([]models.Posting, error)
}

type SequenceStore interface {
	Next(ctx context.Context, tx store.Getter, seqDate string) (int64, error)
}

type BalanceHub interface {
	BroadcastBalance(accountID string, update websocket.BalanceUpdate)
}

// LedgerService is the write path of the ledger: post a cash movement,
// reverse a posted one. Each successful call appends exactly one movement
// and one posting and bumps the account version once, all in one database
// transaction.
type LedgerService struct {
	txRunner  db.TxRunner
	accounts  AccountStore
	movements MovementStore
	postings  PostingStore
	balances  *BalanceResolver
	vouchers  *VoucherAllocator
	hub       BalanceHub
	log       *zap.Logger
	now       func() time.Time
}

func NewLedgerService(txRunner db.TxRunner, accounts AccountStore, movements MovementStore, postings PostingStore, sequences SequenceStore, hub BalanceHub, log *zap.Logger, voucherPrefix string) *LedgerService {
	return &LedgerService{
		txRunner:  txRunner,
		accounts:  accounts,
		movements: movements,
		postings:  postings,
		balances:  NewBalanceResolver(postings),
		vouchers:  NewVoucherAllocator(voucherPrefix, sequences),
		hub:       hub,
		log:       log,
		now:       time.Now,
	}
}

type PostMovementRequest struct {
	AccountID    string
	BusinessDate string
	Kind         string
	Amount       int64
	Category     *string
	Counterparty *string
	Memo         *string
	Extra        map[string]string
	VoucherNo    string
	CreatedBy    string
}

type PostMovementResult struct {
	MovementID   string
	VoucherNo    string
	BalanceAfter int64
}

func (s *LedgerService) PostMovement(ctx context.Context, req PostMovementRequest) (PostMovementResult, error) {
	if req.Amount <= 0 {
		return PostMovementResult{}, ErrInvalidAmount
	}
	if req.Kind != models.KindIncome && req.Kind != models.KindExpense {
		return PostMovementResult{}, ErrInvalidKind
	}
	if _, err := time.Parse(dateLayout, req.BusinessDate); err != nil {
		return PostMovementResult{}, ErrInvalidBusinessDate
	}
	return s.postWithRetry(ctx, postingSpec{
		accountID:    req.AccountID,
		businessDate: req.BusinessDate,
		kind:         req.Kind,
		amount:       req.Amount,
		category:     req.Category,
		counterparty: req.Counterparty,
		memo:         req.Memo,
		extra:        encodeExtra(req.Extra),
		voucherNo:    req.VoucherNo,
		createdBy:    req.CreatedBy,
	})
}

type ReverseMovementRequest struct {
	MovementID string
	Reason     string
	CreatedBy  string
}

type ReverseMovementResult struct {
	ReversalMovementID string
	ReversalVoucherNo  string
	OriginalVoucherNo  string
	BalanceAfter       int64
}

// ReverseMovement posts a mirror-image movement against the same account
// and links it to the original. The original keeps its amount, date and
// kind untouched; the reversal is dated with the current date because it is
// a new correction, not a retroactive edit.
func (s *LedgerService) ReverseMovement(ctx context.Context, req ReverseMovementRequest) (ReverseMovementResult, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return ReverseMovementResult{}, ErrReasonRequired
	}
	original, err := s.movements.GetByID(ctx, req.MovementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReverseMovementResult{}, ErrMovementNotFound
		}
		return ReverseMovementResult{}, err
	}
	if original.IsReversal {
		return ReverseMovementResult{}, ErrReversalOfReversal
	}
	if original.IsReversed {
		return ReverseMovementResult{}, ErrAlreadyReversed
	}
	memo := fmt.Sprintf("reversal of %s: %s", original.VoucherNo, req.Reason)
	result, err := s.postWithRetry(ctx, postingSpec{
		accountID:    original.AccountID,
		businessDate: s.now().UTC().Format(dateLayout),
		kind:         flipKind(original.Kind),
		amount:       original.Amount,
		memo:         &memo,
		extra:        "{}",
		createdBy:    req.CreatedBy,
		isReversal:   true,
		reversalOf:   original.ID,
	})
	if err != nil {
		return ReverseMovementResult{}, err
	}
	return ReverseMovementResult{
		ReversalMovementID: result.MovementID,
		ReversalVoucherNo:  result.VoucherNo,
		OriginalVoucherNo:  original.VoucherNo,
		BalanceAfter:       result.BalanceAfter,
	}, nil
}

type postingSpec struct {
	accountID    string
	businessDate string
	kind         string
	amount       int64
	category     *string
	counterparty *string
	memo         *string
	extra        string
	voucherNo    string
	createdBy    string
	isReversal   bool
	reversalOf   string
}

func (s *LedgerService) postWithRetry(ctx context.Context, spec postingSpec) (PostMovementResult, error) {
	for attempt := 1; ; attempt++ {
		account, err := s.accounts.GetByID(ctx, spec.accountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return PostMovementResult{}, ErrAccountNotFound
			}
			return PostMovementResult{}, err
		}
		// Reversals skip the active check: a correction must remain
		// possible after an account is closed.
		if !account.Active && !spec.isReversal {
			return PostMovementResult{}, ErrAccountInactive
		}
		result, err := s.post(ctx, account, spec)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrConcurrentModification) && attempt < maxConflictAttempts {
			s.log.Warn("posting lost version race, retrying",
				zap.String("account_id", spec.accountID),
				zap.Int("attempt", attempt))
			db.SleepWithBackoff(attempt)
			continue
		}
		return PostMovementResult{}, err
	}
}

// post runs the guarded critical section: bump the account version, resolve
// the balance immediately before this posting, validate sufficiency, then
// append movement and posting. All writes commit or roll back together.
func (s *LedgerService) post(ctx context.Context, account models.Account, spec postingSpec) (PostMovementResult, error) {
	movementID := uuid.NewString()
	createdAt := s.now().UTC()
	var voucherNo string
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		affected, err := s.accounts.BumpVersion(ctx, tx, account.ID, account.Version)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrConcurrentModification
		}
		balanceBefore, err := s.balances.BalanceBefore(ctx, tx, account, spec.businessDate, createdAt)
		if err != nil {
			return err
		}
		if spec.kind == models.KindExpense {
			if balanceBefore < spec.amount {
				return &InsufficientBalanceError{Balance: balanceBefore, Required: spec.amount}
			}
			balanceAfter = balanceBefore - spec.amount
		} else {
			balanceAfter = balanceBefore + spec.amount
		}
		voucherNo = spec.voucherNo
		if voucherNo == "" {
			voucherNo, err = s.vouchers.Next(ctx, tx, spec.businessDate)
			if err != nil {
				return err
			}
		}
		var reversalOf *string
		if spec.reversalOf != "" {
			reversalOf = &spec.reversalOf
		}
		if err := s.movements.Insert(ctx, tx, store.MovementInput{
			ID:                   movementID,
			VoucherNo:            voucherNo,
			BusinessDate:         spec.businessDate,
			Kind:                 spec.kind,
			AccountID:            account.ID,
			Amount:               spec.amount,
			Category:             spec.category,
			Counterparty:         spec.counterparty,
			Memo:                 spec.memo,
			Extra:                spec.extra,
			CreatedBy:            spec.createdBy,
			CreatedAt:            createdAt,
			IsReversal:           spec.isReversal,
			ReversalOfMovementID: reversalOf,
		}); err != nil {
			return err
		}
		if err := s.postings.Insert(ctx, tx, store.PostingInput{
			ID:            uuid.NewString(),
			AccountID:     account.ID,
			MovementID:    movementID,
			BusinessDate:  spec.businessDate,
			Kind:          spec.kind,
			Amount:        spec.amount,
			BalanceBefore: balanceBefore,
			BalanceAfter:  balanceAfter,
			CreatedAt:     createdAt,
		}); err != nil {
			return err
		}
		if spec.reversalOf != "" {
			marked, err := s.movements.MarkReversed(ctx, tx, spec.reversalOf, movementID)
			if err != nil {
				return err
			}
			if marked == 0 {
				return ErrAlreadyReversed
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return PostMovementResult{}, ErrDuplicateVoucher
		}
		return PostMovementResult{}, err
	}
	s.hub.BroadcastBalance(account.ID, websocket.BalanceUpdate{
		AccountID: account.ID,
		Balance:   money.FormatMinor(balanceAfter),
		VoucherNo: voucherNo,
	})
	s.log.Info("movement posted",
		zap.String("movement_id", movementID),
		zap.String("voucher_no", voucherNo),
		zap.String("account_id", account.ID),
		zap.String("kind", spec.kind),
		zap.Int64("amount", spec.amount))
	return PostMovementResult{MovementID: movementID, VoucherNo: voucherNo, BalanceAfter: balanceAfter}, nil
}

func flipKind(kind string) string {
	if kind == models.KindIncome {
		return models.KindExpense
	}
	return models.KindIncome
}

func encodeExtra(extra map[string]string) string {
	if len(extra) == 0 {
		return "{}"
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
