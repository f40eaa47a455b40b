package budgets

import (
	"context"
	"fmt"

	"pennywise-server/src/classify"
	db "pennywise-server/src/db/sql"
	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// membershipStore is the persistence boundary for budget labeling.
type membershipStore interface {
	GetTransactionsForUser(ctx context.Context, userID int64) ([]models.Transaction, error)
	ReplaceTransactionBudgets(ctx context.Context, transactionRowID int64, budgetIDs []int64) error
	GetBudgetMembership(ctx context.Context, budgetID int64) (map[int64]struct{}, error)
	AddBudgetMembership(ctx context.Context, budgetID int64, transactionRowIDs []int64) error
	RemoveBudgetMembership(ctx context.Context, budgetID int64, transactionRowIDs []int64) error
}

type pgMembershipStore struct {
	pool *pgxpool.Pool
}

func (s pgMembershipStore) GetTransactionsForUser(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return db.GetTransactionsForUser(ctx, s.pool, userID)
}

func (s pgMembershipStore) ReplaceTransactionBudgets(ctx context.Context, transactionRowID int64, budgetIDs []int64) error {
	return db.ReplaceTransactionBudgets(ctx, s.pool, transactionRowID, budgetIDs)
}

func (s pgMembershipStore) GetBudgetMembership(ctx context.Context, budgetID int64) (map[int64]struct{}, error) {
	return db.GetBudgetMembership(ctx, s.pool, budgetID)
}

func (s pgMembershipStore) AddBudgetMembership(ctx context.Context, budgetID int64, transactionRowIDs []int64) error {
	return db.AddBudgetMembership(ctx, s.pool, budgetID, transactionRowIDs)
}

func (s pgMembershipStore) RemoveBudgetMembership(ctx context.Context, budgetID int64, transactionRowIDs []int64) error {
	return db.RemoveBudgetMembership(ctx, s.pool, budgetID, transactionRowIDs)
}

// Labeler assigns budget memberships by running the classification
// pipeline once per budget filter. Budgets are not mutually exclusive:
// a transaction may match zero, one, or many of them.
type Labeler struct {
	pipeline    *classify.Pipeline
	store       membershipStore
	batchSize   int
	concurrency int
	log         zerolog.Logger
}

func NewLabeler(pipeline *classify.Pipeline, pool *pgxpool.Pool, batchSize, concurrency int, log zerolog.Logger) *Labeler {
	return &Labeler{
		pipeline:    pipeline,
		store:       pgMembershipStore{pool: pool},
		batchSize:   batchSize,
		concurrency: concurrency,
		log:         log,
	}
}

func budgetInstruction(b models.Budget) string {
	return "Decide for each transaction whether it belongs to the budget described below.\n" +
		"Budget \"" + b.Name + "\": " + b.FilterPrompt + "\n" +
		"Set \"match\" to true only when the transaction clearly fits this budget."
}

// LabelTransactions classifies the given transactions against every
// budget and persists the resulting memberships. One budget's failure
// is logged and skipped so it cannot block labeling for the others; a
// failed budget's existing memberships are left untouched. An empty
// budget set is a valid terminal state that clears every transaction's
// membership.
func (l *Labeler) LabelTransactions(ctx context.Context, txns []models.Transaction, budgets []models.Budget) error {
	if len(txns) == 0 {
		return nil
	}

	rowIDs := make(map[string]int64, len(txns))
	for _, t := range txns {
		rowIDs[t.TransactionID] = t.ID
	}

	items := classify.ItemsFromTransactions(txns)
	succeeded := make(map[int64]bool, len(budgets))
	matches := make(map[int64]map[int64]struct{}, len(txns))

	for _, budget := range budgets {
		results, err := l.pipeline.Classify(ctx, items, budgetInstruction(budget), l.batchSize, l.concurrency)
		if err != nil {
			l.log.Error().Err(err).
				Int64("budget_id", budget.ID).
				Str("budget", budget.Name).
				Msg("budget labeling failed, skipping budget")
			continue
		}
		succeeded[budget.ID] = true

		for _, r := range results {
			if !r.Match {
				continue
			}
			rowID := rowIDs[r.ID]
			if matches[rowID] == nil {
				matches[rowID] = make(map[int64]struct{})
			}
			matches[rowID][budget.ID] = struct{}{}
			l.log.Debug().
				Int64("budget_id", budget.ID).
				Str("transaction_id", r.ID).
				Str("rationale", r.Rationale).
				Msg("budget match")
		}
	}

	active := make(map[int64]bool, len(budgets))
	for _, b := range budgets {
		active[b.ID] = true
	}

	for _, t := range txns {
		final := make([]int64, 0, len(budgets))
		// Verdicts from budgets that failed to classify are unknown;
		// keep those memberships as they are. Memberships of deleted
		// budgets drop out here.
		for _, id := range t.BudgetIDs {
			if active[id] && !succeeded[id] {
				final = append(final, id)
			}
		}
		for id := range matches[t.ID] {
			final = append(final, id)
		}
		if err := l.store.ReplaceTransactionBudgets(ctx, t.ID, final); err != nil {
			return fmt.Errorf("persist budget membership for transaction %d: %w", t.ID, err)
		}
	}
	return nil
}

// LabelSingleBudget classifies all of one user's transactions against
// a single budget and writes only the rows whose membership actually
// changed. Returns the number of matching transactions.
func (l *Labeler) LabelSingleBudget(ctx context.Context, userID int64, budget models.Budget) (int, error) {
	txns, err := l.store.GetTransactionsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load transactions for user %d: %w", userID, err)
	}
	if len(txns) == 0 {
		return 0, nil
	}

	rowIDs := make(map[string]int64, len(txns))
	for _, t := range txns {
		rowIDs[t.TransactionID] = t.ID
	}

	results, err := l.pipeline.Classify(ctx, classify.ItemsFromTransactions(txns), budgetInstruction(budget), l.batchSize, l.concurrency)
	if err != nil {
		return 0, fmt.Errorf("classify budget %q: %w", budget.Name, err)
	}

	matched := make(map[int64]struct{})
	for _, r := range results {
		if r.Match {
			matched[rowIDs[r.ID]] = struct{}{}
		}
	}

	current, err := l.store.GetBudgetMembership(ctx, budget.ID)
	if err != nil {
		return 0, fmt.Errorf("load membership for budget %d: %w", budget.ID, err)
	}

	var added, removed []int64
	for id := range matched {
		if _, ok := current[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range current {
		if _, ok := matched[id]; !ok {
			removed = append(removed, id)
		}
	}

	if err := l.store.AddBudgetMembership(ctx, budget.ID, added); err != nil {
		return 0, fmt.Errorf("add membership for budget %d: %w", budget.ID, err)
	}
	if err := l.store.RemoveBudgetMembership(ctx, budget.ID, removed); err != nil {
		return 0, fmt.Errorf("remove membership for budget %d: %w", budget.ID, err)
	}

	l.log.Info().
		Int64("budget_id", budget.ID).
		Int("matched", len(matched)).
		Int("added", len(added)).
		Int("removed", len(removed)).
		Msg("single budget labeling complete")

	return len(matched), nil
}
