package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"cashbook/internal/models"
	"cashbook/internal/store"

	"go.uber.org/zap"
)

// ledgerState is an in-memory backend shared by the fake stores so the
// service can be driven through whole scenarios without a database.
type ledgerState struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	movements map[string]models.Movement
	postings  []models.Posting
	counters  map[string]int64
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		accounts:  make(map[string]models.Account),
		movements: make(map[string]models.Movement),
		counters:  make(map[string]int64),
	}
}

func (st *ledgerState) addAccount(id string, opening int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.accounts[id] = models.Account{ID: id, Name: id, Currency: "CNY", OpeningBalance: opening, Active: true}
}

func (st *ledgerState) setActive(id string, active bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	account := st.accounts[id]
	account.Active = active
	st.accounts[id] = account
}

func (st *ledgerState) account(id string) models.Account {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.accounts[id]
}

func (st *ledgerState) movement(id string) models.Movement {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.movements[id]
}

type fakeAccounts struct{ state *ledgerState }

func (f *fakeAccounts) GetByID(_ context.Context, accountID string) (models.Account, error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	account, ok := f.state.accounts[accountID]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return account, nil
}

func (f *fakeAccounts) BumpVersion(_ context.Context, _ store.Execer, accountID string, expectedVersion int64) (int64, error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	account, ok := f.state.accounts[accountID]
	if !ok || account.Version != expectedVersion {
		return 0, nil
	}
	account.Version++
	f.state.accounts[accountID] = account
	return 1, nil
}

type fakeMovements struct{ state *ledgerState }

func (f *fakeMovements) Insert(_ context.Context, _ store.Execer, input store.MovementInput) error {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	f.state.movements[input.ID] = models.Movement{
		ID:                   input.ID,
		VoucherNo:            input.VoucherNo,
		BusinessDate:         input.BusinessDate,
		Kind:                 input.Kind,
		AccountID:            input.AccountID,
		Amount:               input.Amount,
		Category:             input.Category,
		Counterparty:         input.Counterparty,
		Memo:                 input.Memo,
		Extra:                input.Extra,
		CreatedBy:            input.CreatedBy,
		CreatedAt:            input.CreatedAt,
		IsReversal:           input.IsReversal,
		ReversalOfMovementID: input.ReversalOfMovementID,
	}
	return nil
}

func (f *fakeMovements) GetByID(_ context.Context, movementID string) (models.Movement, error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	movement, ok := f.state.movements[movementID]
	if !ok {
		return models.Movement{}, sql.ErrNoRows
	}
	return movement, nil
}

func (f *fakeMovements) MarkReversed(_ context.Context, _ store.Execer, originalID, reversalID string) (int64, error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	movement, ok := f.state.movements[originalID]
	if !ok || movement.IsReversed {
		return 0, nil
	}
	movement.IsReversed = true
	movement.ReversedByMovementID = &reversalID
	f.state.movements[originalID] = movement
	return 1, nil
}

type fakePostings struct{ state *ledgerState }

func (f *fakePostings) Insert(_ context.Context, _ store.Execer, input store.PostingInput) error {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	f.state.postings = append(f.state.postings, models.Posting{
		ID:            input.ID,
		AccountID:     input.AccountID,
		MovementID:    input.MovementID,
		BusinessDate:  input.BusinessDate,
		Kind:          input.Kind,
		Amount:        input.Amount,
		BalanceBefore: input.BalanceBefore,
		BalanceAfter:  input.BalanceAfter,
		CreatedAt:     input.CreatedAt,
	})
	return nil
}

func (f *fakePostings) LatestBefore(_ context.Context, _ store.Getter, accountID, businessDate string, tieBreak time.Time) (models.Posting, bool, error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	var best models.Posting
	found := false
	for _, posting := range f.state.postings {
		if posting.AccountID != accountID {
			continue
		}
		before := posting.BusinessDate < businessDate ||
			(posting.BusinessDate == businessDate && posting.CreatedAt.Before(tieBreak))
		if !before {
			continue
		}
		if !found || postingLess(best, posting) {
			best = posting
			found = true
		}
	}
	return best, found, nil
}

func (f *fakePostings) ListByAccount(_ context.Context, accountID string) ([]models.Posting, error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	var rows []models.Posting
	for _, posting := range f.state.postings {
		if posting.AccountID == accountID {
			rows = append(rows, posting)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return postingLess(rows[i], rows[j]) })
	return rows, nil
}

func postingLess(a, b models.Posting) bool {
	if a.BusinessDate != b.BusinessDate {
		return a.BusinessDate < b.BusinessDate
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

type fakeSequences struct{ state *ledgerState }

func (f *fakeSequences) Next(_ context.Context, _ store.Getter, seqDate string) (int64, error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	f.state.counters[seqDate]++
	return f.state.counters[seqDate], nil
}

// fakeClock hands out strictly increasing timestamps so created_at tie-breaks
// behave the same way they do against a real database.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newScenarioService(t *testing.T) (*LedgerService, *ledgerState, *BalanceResolver) {
	t.Helper()
	state := newLedgerState()
	svc := NewLedgerService(&fakeTxRunner{}, &fakeAccounts{state}, &fakeMovements{state}, &fakePostings{state}, &fakeSequences{state}, &stubHub{}, zap.NewNop(), "JZ")
	clock := &fakeClock{t: time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return svc, state, NewBalanceResolver(&fakePostings{state})
}

func mustPost(t *testing.T, svc *LedgerService, req PostMovementRequest) PostMovementResult {
	t.Helper()
	result, err := svc.PostMovement(context.Background(), req)
	if err != nil {
		t.Fatalf("posting failed: %v", err)
	}
	return result
}

func TestDailyCashbookScenario(t *testing.T) {
	ctx := context.Background()
	svc, state, resolver := newScenarioService(t)
	state.addAccount("cash", 10000)

	income := mustPost(t, svc, PostMovementRequest{
		AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindIncome, Amount: 2000, CreatedBy: "u1",
	})
	if income.BalanceAfter != 12000 || income.VoucherNo != "JZ20250110-001" {
		t.Fatalf("unexpected first posting: %+v", income)
	}

	expense := mustPost(t, svc, PostMovementRequest{
		AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindExpense, Amount: 5000, CreatedBy: "u1",
	})
	if expense.BalanceAfter != 7000 || expense.VoucherNo != "JZ20250110-002" {
		t.Fatalf("unexpected second posting: %+v", expense)
	}

	_, err := svc.PostMovement(ctx, PostMovementRequest{
		AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindExpense, Amount: 8000, CreatedBy: "u1",
	})
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if insufficient.Balance != 7000 || insufficient.Required != 8000 {
		t.Fatalf("unexpected figures: %+v", insufficient)
	}
	if balance, _ := resolver.AsOf(ctx, nil, state.account("cash"), "2025-01-10"); balance != 7000 {
		t.Fatalf("failed posting must not move the balance, got %d", balance)
	}

	reversal, err := svc.ReverseMovement(ctx, ReverseMovementRequest{
		MovementID: income.MovementID, Reason: "entered twice", CreatedBy: "u2",
	})
	if err != nil {
		t.Fatalf("reversal failed: %v", err)
	}
	if reversal.BalanceAfter != 5000 || reversal.OriginalVoucherNo != income.VoucherNo {
		t.Fatalf("unexpected reversal result: %+v", reversal)
	}

	original := state.movement(income.MovementID)
	if !original.IsReversed || original.ReversedByMovementID == nil || *original.ReversedByMovementID != reversal.ReversalMovementID {
		t.Fatalf("original not linked to its reversal: %+v", original)
	}
	mirror := state.movement(reversal.ReversalMovementID)
	if !mirror.IsReversal || mirror.Kind != models.KindExpense || mirror.Amount != 2000 {
		t.Fatalf("reversal is not a mirror of the original: %+v", mirror)
	}
	if mirror.ReversalOfMovementID == nil || *mirror.ReversalOfMovementID != income.MovementID {
		t.Fatalf("reversal missing backlink: %+v", mirror)
	}
}

func TestReversalGuardsEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, state, _ := newScenarioService(t)
	state.addAccount("cash", 10000)

	income := mustPost(t, svc, PostMovementRequest{
		AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindIncome, Amount: 2000, CreatedBy: "u1",
	})
	reversal, err := svc.ReverseMovement(ctx, ReverseMovementRequest{
		MovementID: income.MovementID, Reason: "typo", CreatedBy: "u1",
	})
	if err != nil {
		t.Fatalf("reversal failed: %v", err)
	}

	if _, err := svc.ReverseMovement(ctx, ReverseMovementRequest{
		MovementID: income.MovementID, Reason: "again", CreatedBy: "u1",
	}); !errors.Is(err, ErrAlreadyReversed) {
		t.Fatalf("expected ErrAlreadyReversed, got %v", err)
	}

	if _, err := svc.ReverseMovement(ctx, ReverseMovementRequest{
		MovementID: reversal.ReversalMovementID, Reason: "undo the undo", CreatedBy: "u1",
	}); !errors.Is(err, ErrReversalOfReversal) {
		t.Fatalf("expected ErrReversalOfReversal, got %v", err)
	}
}

func TestReversalAllowedOnInactiveAccount(t *testing.T) {
	ctx := context.Background()
	svc, state, _ := newScenarioService(t)
	state.addAccount("cash", 10000)

	income := mustPost(t, svc, PostMovementRequest{
		AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindIncome, Amount: 2000, CreatedBy: "u1",
	})
	state.setActive("cash", false)

	if _, err := svc.PostMovement(ctx, PostMovementRequest{
		AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindIncome, Amount: 100, CreatedBy: "u1",
	}); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if _, err := svc.ReverseMovement(ctx, ReverseMovementRequest{
		MovementID: income.MovementID, Reason: "closing correction", CreatedBy: "u1",
	}); err != nil {
		t.Fatalf("reversal must still work on a closed account: %v", err)
	}
}

func TestVoucherNumbersSequentialAcrossAccounts(t *testing.T) {
	svc, state, _ := newScenarioService(t)
	state.addAccount("cash", 10000)
	state.addAccount("bank", 50000)

	want := []string{"JZ20250110-001", "JZ20250110-002", "JZ20250110-003", "JZ20250111-001"}
	got := []string{
		mustPost(t, svc, PostMovementRequest{AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindIncome, Amount: 100, CreatedBy: "u1"}).VoucherNo,
		mustPost(t, svc, PostMovementRequest{AccountID: "bank", BusinessDate: "2025-01-10", Kind: models.KindExpense, Amount: 200, CreatedBy: "u1"}).VoucherNo,
		mustPost(t, svc, PostMovementRequest{AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindIncome, Amount: 300, CreatedBy: "u1"}).VoucherNo,
		mustPost(t, svc, PostMovementRequest{AccountID: "cash", BusinessDate: "2025-01-11", Kind: models.KindIncome, Amount: 400, CreatedBy: "u1"}).VoucherNo,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("voucher %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestConcurrentExpensesAllowOnlyOne(t *testing.T) {
	ctx := context.Background()
	svc, state, resolver := newScenarioService(t)
	state.addAccount("cash", 1000)

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.PostMovement(ctx, PostMovementRequest{
				AccountID: "cash", BusinessDate: "2025-01-10", Kind: models.KindExpense, Amount: 800, CreatedBy: "u1",
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var insufficient *InsufficientBalanceError
		if !errors.As(err, &insufficient) && !errors.Is(err, ErrConcurrentModification) {
			t.Fatalf("unexpected failure mode: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one withdrawal to succeed, got %d", successes)
	}
	if balance, _ := resolver.AsOf(ctx, nil, state.account("cash"), "2025-01-10"); balance != 200 {
		t.Fatalf("unexpected final balance: %d", balance)
	}
}

func TestReplayAgreesWithLatestPosting(t *testing.T) {
	ctx := context.Background()
	svc, state, resolver := newScenarioService(t)
	state.addAccount("cash", 10000)

	amounts := []struct {
		kind   string
		amount int64
	}{
		{models.KindIncome, 2500},
		{models.KindExpense, 1200},
		{models.KindIncome, 40},
		{models.KindExpense, 7000},
	}
	for _, a := range amounts {
		mustPost(t, svc, PostMovementRequest{
			AccountID: "cash", BusinessDate: "2025-01-10", Kind: a.kind, Amount: a.amount, CreatedBy: "u1",
		})
	}

	account := state.account("cash")
	latest, err := resolver.AsOf(ctx, nil, account, "2025-01-10")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	replayed, err := resolver.Replay(ctx, account)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if latest != replayed || latest != 4340 {
		t.Fatalf("latest %d and replayed %d must both equal 4340", latest, replayed)
	}
	if account.Version != int64(len(amounts)) {
		t.Fatalf("expected one version bump per posting, got %d", account.Version)
	}
}
