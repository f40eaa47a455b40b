package budgets

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"pennywise-server/src/classify"
	"pennywise-server/src/models"

	"github.com/rs/zerolog"
)

// budgetCompleter answers per-budget classification calls from a fixed
// table: budget name -> transaction ids that match. A budget mapped to
// a nil set fails the whole call.
type budgetCompleter struct {
	matches map[string]map[string]bool
	failing map[string]bool
}

func (c *budgetCompleter) Complete(_ context.Context, instruction, input string) (string, error) {
	var budgetName string
	for name := range c.matches {
		if strings.Contains(instruction, `Budget "`+name+`"`) {
			budgetName = name
			break
		}
	}
	for name := range c.failing {
		if strings.Contains(instruction, `Budget "`+name+`"`) {
			return "", errors.New("classifier unavailable")
		}
	}

	var items []classify.Item
	if err := json.Unmarshal([]byte(input), &items); err != nil {
		return "", err
	}
	results := make([]classify.Result, len(items))
	for i, item := range items {
		results[i] = classify.Result{ID: item.ID, Match: c.matches[budgetName][item.ID]}
	}
	out, _ := json.Marshal(results)
	return string(out), nil
}

type fakeMembershipStore struct {
	txnsByUser  map[int64][]models.Transaction
	memberships map[int64]map[int64]struct{}
	replaced    map[int64][]int64
	added       map[int64][]int64
	removed     map[int64][]int64
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{
		txnsByUser:  make(map[int64][]models.Transaction),
		memberships: make(map[int64]map[int64]struct{}),
		replaced:    make(map[int64][]int64),
		added:       make(map[int64][]int64),
		removed:     make(map[int64][]int64),
	}
}

func (s *fakeMembershipStore) GetTransactionsForUser(_ context.Context, userID int64) ([]models.Transaction, error) {
	return s.txnsByUser[userID], nil
}

func (s *fakeMembershipStore) ReplaceTransactionBudgets(_ context.Context, transactionRowID int64, budgetIDs []int64) error {
	sorted := append([]int64(nil), budgetIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	s.replaced[transactionRowID] = sorted
	return nil
}

func (s *fakeMembershipStore) GetBudgetMembership(_ context.Context, budgetID int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	for id := range s.memberships[budgetID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *fakeMembershipStore) AddBudgetMembership(_ context.Context, budgetID int64, transactionRowIDs []int64) error {
	s.added[budgetID] = append(s.added[budgetID], transactionRowIDs...)
	return nil
}

func (s *fakeMembershipStore) RemoveBudgetMembership(_ context.Context, budgetID int64, transactionRowIDs []int64) error {
	s.removed[budgetID] = append(s.removed[budgetID], transactionRowIDs...)
	return nil
}

func testLabeler(c classify.Completer, store *fakeMembershipStore) *Labeler {
	return &Labeler{
		pipeline:    classify.NewPipeline(c, zerolog.Nop()),
		store:       store,
		batchSize:   10,
		concurrency: 2,
		log:         zerolog.Nop(),
	}
}

func txn(rowID int64, extID, name string) models.Transaction {
	return models.Transaction{
		ID:            rowID,
		TransactionID: extID,
		Name:          name,
		Amount:        10,
		Date:          time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func budget(id int64, name string) models.Budget {
	return models.Budget{ID: id, UserID: 1, Name: name, FilterPrompt: "spend on " + name}
}

func TestLabelTransactionsBudgetsAreNotExclusive(t *testing.T) {
	completer := &budgetCompleter{
		matches: map[string]map[string]bool{
			"Coffee":     {"tx_1": true},
			"Fuel":       {"tx_2": true},
			"Eating Out": {"tx_1": true},
		},
	}
	store := newFakeMembershipStore()
	labeler := testLabeler(completer, store)

	txns := []models.Transaction{txn(1, "tx_1", "Starbucks"), txn(2, "tx_2", "Shell")}
	budgets := []models.Budget{budget(1, "Coffee"), budget(2, "Fuel"), budget(3, "Eating Out")}

	if err := labeler.LabelTransactions(context.Background(), txns, budgets); err != nil {
		t.Fatalf("LabelTransactions failed: %v", err)
	}

	if got := store.replaced[1]; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("transaction 1: got budgets %v, want [1 3]", got)
	}
	if got := store.replaced[2]; len(got) != 1 || got[0] != 2 {
		t.Errorf("transaction 2: got budgets %v, want [2]", got)
	}
}

func TestLabelTransactionsFailedBudgetKeepsExistingMembership(t *testing.T) {
	completer := &budgetCompleter{
		matches: map[string]map[string]bool{"Fuel": {"tx_1": true}},
		failing: map[string]bool{"Coffee": true},
	}
	store := newFakeMembershipStore()
	labeler := testLabeler(completer, store)

	existing := txn(1, "tx_1", "Starbucks")
	existing.BudgetIDs = []int64{1}
	budgets := []models.Budget{budget(1, "Coffee"), budget(2, "Fuel")}

	if err := labeler.LabelTransactions(context.Background(), []models.Transaction{existing}, budgets); err != nil {
		t.Fatalf("one budget's failure must not abort labeling: %v", err)
	}

	// The failed budget's verdict is unknown, so its membership stays;
	// the succeeded budget's match is added.
	if got := store.replaced[1]; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("got budgets %v, want [1 2]", got)
	}
}

func TestLabelTransactionsDropsDeletedBudgets(t *testing.T) {
	completer := &budgetCompleter{
		matches: map[string]map[string]bool{"Coffee": {}},
	}
	store := newFakeMembershipStore()
	labeler := testLabeler(completer, store)

	stale := txn(1, "tx_1", "Starbucks")
	stale.BudgetIDs = []int64{9}

	err := labeler.LabelTransactions(context.Background(), []models.Transaction{stale}, []models.Budget{budget(1, "Coffee")})
	if err != nil {
		t.Fatalf("LabelTransactions failed: %v", err)
	}
	if got := store.replaced[1]; len(got) != 0 {
		t.Errorf("got budgets %v, want membership of deleted budget 9 dropped", got)
	}
}

func TestLabelTransactionsEmptyBudgetSetClears(t *testing.T) {
	store := newFakeMembershipStore()
	labeler := testLabeler(&budgetCompleter{}, store)

	member := txn(1, "tx_1", "Starbucks")
	member.BudgetIDs = []int64{1, 2}

	if err := labeler.LabelTransactions(context.Background(), []models.Transaction{member}, nil); err != nil {
		t.Fatalf("LabelTransactions failed: %v", err)
	}
	got, ok := store.replaced[1]
	if !ok {
		t.Fatal("membership was never written")
	}
	if len(got) != 0 {
		t.Errorf("got budgets %v, want all cleared", got)
	}
}

func TestLabelSingleBudgetWritesOnlyChanges(t *testing.T) {
	completer := &budgetCompleter{
		matches: map[string]map[string]bool{
			"Coffee": {"tx_1": true, "tx_3": true},
		},
	}
	store := newFakeMembershipStore()
	store.txnsByUser[1] = []models.Transaction{
		txn(1, "tx_1", "Starbucks"),
		txn(2, "tx_2", "Shell"),
		txn(3, "tx_3", "Blue Bottle"),
	}
	store.memberships[1] = map[int64]struct{}{1: {}, 2: {}}
	labeler := testLabeler(completer, store)

	matched, err := labeler.LabelSingleBudget(context.Background(), 1, budget(1, "Coffee"))
	if err != nil {
		t.Fatalf("LabelSingleBudget failed: %v", err)
	}
	if matched != 2 {
		t.Errorf("got %d matches, want 2", matched)
	}
	if got := store.added[1]; len(got) != 1 || got[0] != 3 {
		t.Errorf("got added %v, want [3]", got)
	}
	if got := store.removed[1]; len(got) != 1 || got[0] != 2 {
		t.Errorf("got removed %v, want [2]", got)
	}
	if len(store.replaced) != 0 {
		t.Errorf("unexpected full membership rewrite: %v", store.replaced)
	}
}

func TestLabelSingleBudgetNoTransactions(t *testing.T) {
	store := newFakeMembershipStore()
	labeler := testLabeler(&budgetCompleter{}, store)

	matched, err := labeler.LabelSingleBudget(context.Background(), 42, budget(1, "Coffee"))
	if err != nil {
		t.Fatalf("LabelSingleBudget failed: %v", err)
	}
	if matched != 0 {
		t.Errorf("got %d matches, want 0", matched)
	}
}
