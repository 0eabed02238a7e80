package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"
)

func TestPostingStoreInsert(t *testing.T) {
	ctx := context.Background()
	calls := 0
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO postings") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 9 {
				t.Fatalf("expected 9 args, got %d", len(args))
			}
			calls++
			return stubResult{rows: 1}, nil
		},
	}
	postings := NewPostingStore(stubDB{})
	err := postings.Insert(ctx, execer, PostingInput{
		ID:            "p1",
		AccountID:     "acc1",
		MovementID:    "m1",
		BusinessDate:  "2025-01-10",
		Kind:          "income",
		Amount:        2000,
		BalanceBefore: 10000,
		BalanceAfter:  12000,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 insert, got %d", calls)
	}
}

func TestPostingStoreLatestBeforeNoRows(t *testing.T) {
	ctx := context.Background()
	postings := NewPostingStore(stubDB{})
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY business_date DESC, created_at DESC") {
				t.Fatalf("latest-before query is not ordered newest first: %s", query)
			}
			return sql.ErrNoRows
		},
	}
	_, found, err := postings.LatestBefore(ctx, getter, "acc1", "2025-01-10", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected no posting to be found")
	}
}

func TestPostingStoreLatestBeforeCutoffArgs(t *testing.T) {
	ctx := context.Background()
	tieBreak := time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)
	postings := NewPostingStore(stubDB{})
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if len(args) != 3 || args[0] != "acc1" || args[1] != "2025-01-10" || args[2] != tieBreak {
				t.Fatalf("unexpected args: %#v", args)
			}
			return nil
		},
	}
	if _, _, err := postings.LatestBefore(ctx, getter, "acc1", "2025-01-10", tieBreak); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
