package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestMovementStoreMarkReversedIsConditional(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "is_reversed = FALSE") {
				t.Fatalf("mark-reversed query must guard against double reversal: %s", query)
			}
			if len(args) != 2 || args[0] != "orig" || args[1] != "rev" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	movements := NewMovementStore(stubDB{})
	affected, err := movements.MarkReversed(ctx, execer, "orig", "rev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 affected row, got %d", affected)
	}
}

func TestMovementStoreListBuildsFilters(t *testing.T) {
	ctx := context.Background()
	var gotQuery string
	var gotArgs []any
	movements := NewMovementStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			gotQuery = query
			gotArgs = args
			return nil
		},
	})
	if _, err := movements.List(ctx, "acc1", "2025-01-10", 20, 40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "account_id = $1") || !strings.Contains(gotQuery, "business_date = $2") {
		t.Fatalf("filters missing from query: %s", gotQuery)
	}
	if len(gotArgs) != 4 || gotArgs[0] != "acc1" || gotArgs[1] != "2025-01-10" || gotArgs[2] != 20 || gotArgs[3] != 40 {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestMovementStoreListWithoutFilters(t *testing.T) {
	ctx := context.Background()
	var gotArgs []any
	movements := NewMovementStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			gotArgs = args
			return nil
		},
	})
	if _, err := movements.List(ctx, "", "", 50, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotArgs) != 2 {
		t.Fatalf("expected only limit and offset args, got %#v", gotArgs)
	}
}

func TestMovementStoreCountByDate(t *testing.T) {
	ctx := context.Background()
	movements := NewMovementStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM movements") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*int64) = 4
			return nil
		},
	})
	count, err := movements.CountByDate(ctx, "2025-01-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 4 {
		t.Fatalf("unexpected count: %d", count)
	}
}
