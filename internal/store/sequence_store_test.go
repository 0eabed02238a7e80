package store

import (
	"context"
	"strings"
	"testing"
)

func TestSequenceStoreNext(t *testing.T) {
	ctx := context.Background()
	sequences := NewSequenceStore(stubDB{})
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ON CONFLICT (seq_date) DO UPDATE") {
				t.Fatalf("allocation must be a single-statement upsert: %s", query)
			}
			if len(args) != 1 || args[0] != "2025-01-10" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*int64) = 3
			return nil
		},
	}
	counter, err := sequences.Next(ctx, getter, "2025-01-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counter != 3 {
		t.Fatalf("unexpected counter: %d", counter)
	}
}
