package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"pennywise-server/src/models"

	"github.com/rs/zerolog"
)

type fakeProvider struct {
	snapshots  []models.AccountSnapshot
	pages      map[string]models.SyncPage
	errs       map[string]error
	gotCursors []string
}

func (p *fakeProvider) GetAccounts(_ context.Context, _ string) ([]models.AccountSnapshot, error) {
	return p.snapshots, nil
}

func (p *fakeProvider) SyncTransactions(_ context.Context, _ string, cursor string) (*models.SyncPage, error) {
	p.gotCursors = append(p.gotCursors, cursor)
	if err, ok := p.errs[cursor]; ok {
		return nil, err
	}
	page, ok := p.pages[cursor]
	if !ok {
		return nil, errors.New("no page for cursor " + cursor)
	}
	return &page, nil
}

type fakeStore struct {
	accounts   []models.Account
	states     map[int64]models.SyncState
	txns       map[string]models.Transaction
	deletedIDs []string
	nextAccID  int64
	nextTxID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states: make(map[int64]models.SyncState),
		txns:   make(map[string]models.Transaction),
	}
}

func (s *fakeStore) UpsertAccounts(_ context.Context, itemRowID int64, snapshots []models.AccountSnapshot) error {
	for _, snap := range snapshots {
		exists := false
		for _, acc := range s.accounts {
			if acc.AccountID == snap.AccountID {
				exists = true
				break
			}
		}
		if !exists {
			s.nextAccID++
			s.accounts = append(s.accounts, models.Account{
				ID:        s.nextAccID,
				ItemID:    itemRowID,
				AccountID: snap.AccountID,
				Name:      snap.Name,
			})
		}
	}
	return nil
}

func (s *fakeStore) ListAccounts(_ context.Context, _ int64) ([]models.Account, error) {
	return s.accounts, nil
}

func (s *fakeStore) GetSyncState(_ context.Context, accountID int64) (*models.SyncState, error) {
	state, ok := s.states[accountID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *fakeStore) UpsertSyncState(_ context.Context, state models.SyncState) error {
	s.states[state.AccountID] = state
	return nil
}

func (s *fakeStore) UpsertTransactions(_ context.Context, _ int64, deltas []models.TransactionDelta) (map[string]int, error) {
	counts := make(map[string]int)
	for _, d := range deltas {
		id := s.txns[d.TransactionID].ID
		if id == 0 {
			s.nextTxID++
			id = s.nextTxID
		}
		s.txns[d.TransactionID] = models.Transaction{
			ID:            id,
			TransactionID: d.TransactionID,
			Amount:        d.Amount,
			Name:          d.Name,
			Date:          d.Date,
			Pending:       d.Pending,
		}
		counts[d.AccountID]++
	}
	return counts, nil
}

func (s *fakeStore) DeleteTransactions(_ context.Context, externalIDs []string) error {
	for _, id := range externalIDs {
		delete(s.txns, id)
		s.deletedIDs = append(s.deletedIDs, id)
	}
	return nil
}

func (s *fakeStore) GetTransactionsByExternalIDs(_ context.Context, externalIDs []string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, id := range externalIDs {
		if t, ok := s.txns[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func delta(txID, accID string, amount float64) models.TransactionDelta {
	return models.TransactionDelta{
		TransactionID: txID,
		AccountID:     accID,
		Amount:        amount,
		Name:          "txn " + txID,
		Date:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testItem() models.Item {
	return models.Item{ID: 7, UserID: 1, ItemID: "item_ext", AccessToken: "token"}
}

func TestSyncItemFirstSyncSinglePage(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []models.AccountSnapshot{{AccountID: "acc_ext_1", Name: "Checking"}},
		pages: map[string]models.SyncPage{
			"": {
				Added:      []models.TransactionDelta{delta("tx_1", "acc_ext_1", 12.5)},
				NextCursor: "c1",
				HasMore:    false,
			},
		},
	}
	store := newFakeStore()
	engine := NewEngine(provider, store, zerolog.Nop())

	res, err := engine.SyncItem(context.Background(), testItem())
	if err != nil {
		t.Fatalf("SyncItem failed: %v", err)
	}

	if res.AccountsTouched != 1 || res.TransactionsSynced != 1 {
		t.Errorf("got result %+v, want 1 account and 1 transaction", res)
	}
	if len(res.Synced) != 1 || res.Synced[0].TransactionID != "tx_1" {
		t.Errorf("got synced %+v, want tx_1", res.Synced)
	}

	state := store.states[1]
	if state.Cursor != "c1" {
		t.Errorf("got cursor %q, want c1", state.Cursor)
	}
	if state.Status != models.SyncStatusComplete {
		t.Errorf("got status %q, want complete", state.Status)
	}
	if state.TransactionsSynced != 1 {
		t.Errorf("got count %d, want 1", state.TransactionsSynced)
	}
}

func TestSyncItemFailureKeepsCursorAtLastGoodPage(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []models.AccountSnapshot{{AccountID: "acc_ext_1", Name: "Checking"}},
		pages: map[string]models.SyncPage{
			"": {
				Added:      []models.TransactionDelta{delta("tx_1", "acc_ext_1", 10)},
				NextCursor: "c1",
				HasMore:    true,
			},
		},
		errs: map[string]error{"c1": errors.New("provider unavailable")},
	}
	store := newFakeStore()
	engine := NewEngine(provider, store, zerolog.Nop())

	if _, err := engine.SyncItem(context.Background(), testItem()); err == nil {
		t.Fatal("want error, got nil")
	}

	state := store.states[1]
	if state.Cursor != "c1" {
		t.Errorf("got cursor %q, want cursor of last applied page c1", state.Cursor)
	}
	if state.Status != models.SyncStatusError {
		t.Errorf("got status %q, want error", state.Status)
	}
	if state.LastError == "" {
		t.Error("want last_error recorded")
	}
	if state.TransactionsSynced != 1 {
		t.Errorf("got count %d, want 1 from the applied page", state.TransactionsSynced)
	}

	// Re-run resumes from the persisted cursor and never re-reads page 1.
	delete(provider.errs, "c1")
	provider.pages["c1"] = models.SyncPage{
		Added:      []models.TransactionDelta{delta("tx_2", "acc_ext_1", 20)},
		NextCursor: "c2",
		HasMore:    false,
	}
	provider.gotCursors = nil

	res, err := engine.SyncItem(context.Background(), testItem())
	if err != nil {
		t.Fatalf("re-run failed: %v", err)
	}
	if len(provider.gotCursors) != 1 || provider.gotCursors[0] != "c1" {
		t.Errorf("re-run requested cursors %v, want [c1]", provider.gotCursors)
	}
	if res.TransactionsSynced != 1 {
		t.Errorf("re-run synced %d transactions, want 1", res.TransactionsSynced)
	}

	state = store.states[1]
	if state.Cursor != "c2" || state.Status != models.SyncStatusComplete {
		t.Errorf("got state %+v, want cursor c2 complete", state)
	}
	if state.TransactionsSynced != 2 {
		t.Errorf("got cumulative count %d, want 2", state.TransactionsSynced)
	}
}

func TestSyncItemUnknownRemovalsAreNoOps(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []models.AccountSnapshot{{AccountID: "acc_ext_1", Name: "Checking"}},
		pages: map[string]models.SyncPage{
			"": {
				RemovedIDs: []string{"never_seen"},
				NextCursor: "c1",
				HasMore:    false,
			},
		},
	}
	store := newFakeStore()
	engine := NewEngine(provider, store, zerolog.Nop())

	res, err := engine.SyncItem(context.Background(), testItem())
	if err != nil {
		t.Fatalf("SyncItem failed: %v", err)
	}
	if res.TransactionsSynced != 0 {
		t.Errorf("got %d transactions, want 0", res.TransactionsSynced)
	}
	if store.states[1].Status != models.SyncStatusComplete {
		t.Errorf("got status %q, want complete", store.states[1].Status)
	}
}

func TestSyncItemAccountsShareCursorWithOwnCounts(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []models.AccountSnapshot{
			{AccountID: "acc_ext_1", Name: "Checking"},
			{AccountID: "acc_ext_2", Name: "Savings"},
		},
		pages: map[string]models.SyncPage{
			"": {
				Added: []models.TransactionDelta{
					delta("tx_1", "acc_ext_1", 10),
					delta("tx_2", "acc_ext_1", 20),
					delta("tx_3", "acc_ext_2", 30),
				},
				NextCursor: "c1",
				HasMore:    false,
			},
		},
	}
	store := newFakeStore()
	engine := NewEngine(provider, store, zerolog.Nop())

	res, err := engine.SyncItem(context.Background(), testItem())
	if err != nil {
		t.Fatalf("SyncItem failed: %v", err)
	}
	if res.AccountsTouched != 2 || res.TransactionsSynced != 3 {
		t.Errorf("got result %+v, want 2 accounts and 3 transactions", res)
	}

	s1, s2 := store.states[1], store.states[2]
	if s1.Cursor != s2.Cursor || s1.Cursor != "c1" {
		t.Errorf("accounts diverged: cursor %q vs %q, want both c1", s1.Cursor, s2.Cursor)
	}
	if s1.TransactionsSynced != 2 {
		t.Errorf("account 1: got count %d, want 2", s1.TransactionsSynced)
	}
	if s2.TransactionsSynced != 1 {
		t.Errorf("account 2: got count %d, want 1", s2.TransactionsSynced)
	}
}

func TestSyncItemDropsDeltasForUnknownAccounts(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []models.AccountSnapshot{{AccountID: "acc_ext_1", Name: "Checking"}},
		pages: map[string]models.SyncPage{
			"": {
				Added: []models.TransactionDelta{
					delta("tx_1", "acc_ext_1", 10),
					delta("tx_2", "acc_ext_unknown", 20),
				},
				NextCursor: "c1",
				HasMore:    false,
			},
		},
	}
	store := newFakeStore()
	engine := NewEngine(provider, store, zerolog.Nop())

	res, err := engine.SyncItem(context.Background(), testItem())
	if err != nil {
		t.Fatalf("SyncItem failed: %v", err)
	}

	// The orphan delta must not be credited anywhere: not to the total,
	// and not to a phantom state row.
	if res.TransactionsSynced != 1 {
		t.Errorf("got total %d, want 1", res.TransactionsSynced)
	}
	if len(store.states) != 1 {
		t.Errorf("got %d state rows, want only the tracked account", len(store.states))
	}
	if got := store.states[1].TransactionsSynced; got != 1 {
		t.Errorf("account 1: got count %d, want 1", got)
	}
	if _, ok := store.states[0]; ok {
		t.Error("state row recorded under zero account id")
	}
}

func TestSyncItemModifiedDeltasCountAsSynced(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []models.AccountSnapshot{{AccountID: "acc_ext_1", Name: "Checking"}},
		pages: map[string]models.SyncPage{
			"": {
				Added:      []models.TransactionDelta{delta("tx_1", "acc_ext_1", 10)},
				Modified:   []models.TransactionDelta{delta("tx_0", "acc_ext_1", 99)},
				NextCursor: "c1",
				HasMore:    false,
			},
		},
	}
	store := newFakeStore()
	store.txns["tx_0"] = models.Transaction{ID: 100, TransactionID: "tx_0", Amount: 50}
	engine := NewEngine(provider, store, zerolog.Nop())

	res, err := engine.SyncItem(context.Background(), testItem())
	if err != nil {
		t.Fatalf("SyncItem failed: %v", err)
	}
	if res.TransactionsSynced != 2 {
		t.Errorf("got %d, want added+modified = 2", res.TransactionsSynced)
	}
	if len(res.Synced) != 2 {
		t.Errorf("got %d synced transactions, want 2", len(res.Synced))
	}
	if store.txns["tx_0"].Amount != 99 {
		t.Errorf("modified transaction not applied, amount %v", store.txns["tx_0"].Amount)
	}
}
