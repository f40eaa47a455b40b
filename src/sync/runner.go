package sync

import (
	"context"
	"fmt"

	"pennywise-server/src/budgets"
	"pennywise-server/src/classify"
	db "pennywise-server/src/db/sql"
	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Runner chains the full per-connection pipeline: incremental sync,
// then the categorization pass, then budget labeling over whatever the
// sync produced. Its SyncAndClassify satisfies SyncFunc, so batch runs
// and background jobs share the exact same path.
type Runner struct {
	engine      *Engine
	pipeline    *classify.Pipeline
	labeler     *budgets.Labeler
	pool        *pgxpool.Pool
	batchSize   int
	concurrency int
	log         zerolog.Logger
}

func NewRunner(engine *Engine, pipeline *classify.Pipeline, labeler *budgets.Labeler, pool *pgxpool.Pool, batchSize, concurrency int, log zerolog.Logger) *Runner {
	return &Runner{
		engine:      engine,
		pipeline:    pipeline,
		labeler:     labeler,
		pool:        pool,
		batchSize:   batchSize,
		concurrency: concurrency,
		log:         log,
	}
}

func (r *Runner) SyncAndClassify(ctx context.Context, item models.Item) (Result, error) {
	res, err := r.engine.SyncItem(ctx, item)
	if err != nil {
		return res, err
	}
	if len(res.Synced) == 0 {
		return res, nil
	}

	if err := classify.CategorizeTransactions(ctx, r.pool, r.pipeline, res.Synced, r.batchSize, r.concurrency); err != nil {
		return res, fmt.Errorf("categorization pass for item %d: %w", item.ID, err)
	}

	userBudgets, err := db.GetAllBudgetsForUser(ctx, r.pool, item.UserID)
	if err != nil {
		return res, fmt.Errorf("load budgets for user %d: %w", item.UserID, err)
	}
	if err := r.labeler.LabelTransactions(ctx, res.Synced, userBudgets); err != nil {
		return res, fmt.Errorf("budget labeling for item %d: %w", item.ID, err)
	}

	return res, nil
}
