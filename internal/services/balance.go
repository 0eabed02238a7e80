package services

import (
	"context"
	"time"

	"cashbook/internal/models"
	"cashbook/internal/store"
)

// endOfTime is a tie-break later than any real posting timestamp, used when
// a whole business date should be included.
var endOfTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// BalanceResolver derives balances from the posting log. There is no stored
// "current balance" column anywhere; the log plus the account's opening
// balance is the only source of truth.
type BalanceResolver struct {
	postings PostingStore
}

func NewBalanceResolver(postings PostingStore) *BalanceResolver {
	return &BalanceResolver{postings: postings}
}

// BalanceBefore returns the account balance immediately before the
// (businessDate, tieBreak) point: the balance_after of the latest earlier
// posting, or the opening balance when the log is empty up to that point.
func (r *BalanceResolver) BalanceBefore(ctx context.Context, q store.Getter, account models.Account, businessDate string, tieBreak time.Time) (int64, error) {
	latest, found, err := r.postings.LatestBefore(ctx, q, account.ID, businessDate, tieBreak)
	if err != nil {
		return 0, err
	}
	if !found {
		return account.OpeningBalance, nil
	}
	return latest.BalanceAfter, nil
}

// AsOf returns the balance at the end of the given business date.
func (r *BalanceResolver) AsOf(ctx context.Context, q store.Getter, account models.Account, businessDate string) (int64, error) {
	return r.BalanceBefore(ctx, q, account, businessDate, endOfTime)
}

// Replay refolds the entire log for one account. The result must always
// agree with the balance_after of the latest posting; the reconcile report
// surfaces any drift.
func (r *BalanceResolver) Replay(ctx context.Context, account models.Account) (int64, error) {
	postings, err := r.postings.ListByAccount(ctx, account.ID)
	if err != nil {
		return 0, err
	}
	balance := account.OpeningBalance
	for _, posting := range postings {
		if posting.Kind == models.KindIncome {
			balance += posting.Amount
		} else {
			balance -= posting.Amount
		}
	}
	return balance, nil
}
