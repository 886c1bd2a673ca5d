package balance_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/roflfaucet/roflchat/internal/balance"
	"github.com/roflfaucet/roflchat/internal/database"
)

// memoryStore is an in-memory database.Store for ledger tests.
type memoryStore struct {
	mu  sync.Mutex
	txs []database.Transaction
}

func (s *memoryStore) Ping(ctx context.Context) error { return nil }

func (s *memoryStore) AppendTransaction(ctx context.Context, tx *database.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = int64(len(s.txs) + 1)
	s.txs = append(s.txs, *tx)
	return nil
}

func (s *memoryStore) SumBalance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, tx := range s.txs {
		if tx.Type == database.TxEarn {
			sum += tx.Amount
		} else {
			sum -= tx.Amount
		}
	}
	return sum, nil
}

func (s *memoryStore) RecentTransactions(ctx context.Context, limit int) ([]database.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]database.Transaction(nil), s.txs...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memoryStore) MarkSeen(ctx context.Context, entries []database.SeenMessage) error { return nil }
func (s *memoryStore) IsSeen(ctx context.Context, key string) (bool, error)               { return false, nil }
func (s *memoryStore) PruneSeen(ctx context.Context, olderThan time.Time) (int64, error)  { return 0, nil }
func (s *memoryStore) RunSQLMaintenance(ctx context.Context) error                        { return nil }

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func newGuest(t *testing.T) (*balance.Client, *memoryStore) {
	t.Helper()
	store := &memoryStore{}
	c, err := balance.NewGuestClient(store, nil)
	if err != nil {
		t.Fatalf("NewGuestClient failed: %v", err)
	}
	return c, store
}

func TestGuestLedgerRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newGuest(t)
	ctx := context.Background()

	if v, err := c.Get(ctx); err != nil || v != 0 {
		t.Fatalf("initial balance = %v/%v, want 0", v, err)
	}

	if v, err := c.Add(ctx, 30, "faucet", "hourly claim"); err != nil || v != 30 {
		t.Fatalf("Add = %v/%v, want 30", v, err)
	}
	if v, err := c.Subtract(ctx, 10, "slots", "spin"); err != nil || v != 20 {
		t.Fatalf("Subtract = %v/%v, want 20", v, err)
	}
}

func TestGuestBalanceNeverGoesNegative(t *testing.T) {
	t.Parallel()

	c, store := newGuest(t)
	ctx := context.Background()

	if _, err := c.Add(ctx, 5, "faucet", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	v, err := c.Subtract(ctx, 6, "slots", "spin")
	if !errors.Is(err, balance.ErrInsufficientBalance) {
		t.Fatalf("Subtract = %v, want ErrInsufficientBalance", err)
	}
	if v != 5 {
		t.Errorf("returned balance = %v, want unchanged 5", v)
	}
	// The rejected debit records nothing.
	if store.count() != 1 {
		t.Errorf("ledger holds %d transactions, want 1", store.count())
	}
}

func TestRejectsNonPositiveAmounts(t *testing.T) {
	t.Parallel()

	c, _ := newGuest(t)
	ctx := context.Background()

	if _, err := c.Add(ctx, 0, "faucet", ""); err == nil {
		t.Errorf("Add(0) succeeded")
	}
	if _, err := c.Subtract(ctx, -3, "slots", ""); err == nil {
		t.Errorf("Subtract(-3) succeeded")
	}
}

func TestMemberRemoteGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "u-1" {
			t.Errorf("user_id = %q, want u-1", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "balance": 42.5})
	}))
	t.Cleanup(srv.Close)

	c, err := balance.NewMemberClient(srv.URL, "u-1", 0, nil)
	if err != nil {
		t.Fatalf("NewMemberClient failed: %v", err)
	}
	if c.Guest() {
		t.Fatalf("member client reports guest mode")
	}

	v, err := c.Get(context.Background())
	if err != nil || v != 42.5 {
		t.Errorf("Get = %v/%v, want 42.5", v, err)
	}
}

func TestMemberRemoteAdjustSignsAmount(t *testing.T) {
	t.Parallel()

	var bodies []map[string]any
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "new_balance": 10})
	}))
	t.Cleanup(srv.Close)

	c, err := balance.NewMemberClient(srv.URL, "u-1", 0, nil)
	if err != nil {
		t.Fatalf("NewMemberClient failed: %v", err)
	}
	ctx := context.Background()

	if _, err := c.Add(ctx, 7, "tip", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := c.Subtract(ctx, 3, "slots", ""); err != nil {
		t.Fatalf("Subtract failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("got %d mutations, want 2", len(bodies))
	}
	if bodies[0]["amount"].(float64) != 7 {
		t.Errorf("credit amount = %v, want 7", bodies[0]["amount"])
	}
	if bodies[1]["amount"].(float64) != -3 {
		t.Errorf("debit amount = %v, want -3", bodies[1]["amount"])
	}
}

func TestMemberFailureIsSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := balance.NewMemberClient(srv.URL, "u-1", 0, nil)
	if err != nil {
		t.Fatalf("NewMemberClient failed: %v", err)
	}

	// A remote failure must be an error, never a silent zero or a fallback
	// to a local ledger.
	if _, err := c.Get(context.Background()); err == nil {
		t.Errorf("Get against failing endpoint succeeded")
	}
}
