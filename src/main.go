package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"

	"pennywise-server/src/api"
	"pennywise-server/src/budgets"
	"pennywise-server/src/classify"
	"pennywise-server/src/config"
	"pennywise-server/src/db"
	dbsql "pennywise-server/src/db/sql"
	"pennywise-server/src/handlers"
	"pennywise-server/src/jobs"
	"pennywise-server/src/logger"
	plaidclient "pennywise-server/src/plaid"
	syncpkg "pennywise-server/src/sync"
	"pennywise-server/src/util"
)

func main() {
	syncAll := flag.Bool("sync-all", false, "run a one-shot batch sync for every user, then exit")
	syncEnv := flag.String("env", "", "restrict batch sync to connections in this environment (sandbox/production)")
	parallel := flag.Bool("parallel", false, "sync users concurrently during batch sync")
	failOnError := flag.Bool("fail-on-error", false, "exit non-zero if any connection fails during batch sync")
	flag.Parse()

	cfg := config.Load()
	zlog := logger.New()

	// Connect to database
	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB connection failed: %v", err)
	}
	defer pool.Close()

	cache, err := db.NewCache()
	if err != nil {
		log.Fatalf("cache init failed: %v", err)
	}
	util.InitWebhookCache(cache)

	plaidAPI := plaidclient.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
	provider := plaidclient.NewProvider(plaidAPI)
	store := syncpkg.NewPgStore(pool)

	completer, err := classify.NewGeminiCompleter(context.Background(), cfg.GeminiModel)
	if err != nil {
		log.Fatalf("classifier init failed: %v", err)
	}
	pipeline := classify.NewPipeline(completer, zlog)
	labeler := budgets.NewLabeler(pipeline, pool, cfg.ClassifyBatchSize, cfg.ClassifyConcurrency, zlog)
	engine := syncpkg.NewEngine(provider, store, zlog)
	runner := syncpkg.NewRunner(engine, pipeline, labeler, pool, cfg.ClassifyBatchSize, cfg.ClassifyConcurrency, zlog)

	if *syncAll {
		opts := syncpkg.Options{
			Environment:    *syncEnv,
			Parallel:       *parallel,
			FailOnError:    *failOnError,
			IgnoredUserIDs: cfg.SyncIgnoredUserIDs,
		}
		summary, err := syncpkg.SyncAllUsers(context.Background(), store, runner.SyncAndClassify, opts, zlog)
		out, _ := json.Marshal(summary)
		os.Stdout.Write(append(out, '\n'))
		if err != nil {
			log.Fatalf("batch sync failed: %v", err)
		}
		return
	}

	// Background worker for webhook-triggered syncs
	queue := jobs.NewQueue(64, zlog)
	queue.Start(context.Background(), func(ctx context.Context, job *jobs.SyncItemJob) error {
		item, err := dbsql.GetItemByID(ctx, pool, job.UserID, job.ItemRowID)
		if err != nil {
			return err
		}
		if _, err := runner.SyncAndClassify(ctx, *item); err != nil {
			return err
		}
		cache.DelPrefix(handlers.TransactionCachePrefix(job.UserID))
		return nil
	})
	defer queue.Close()

	// Router
	router := api.NewRouter(api.Deps{
		Pool:        pool,
		PlaidClient: plaidAPI,
		Cache:       cache,
		Runner:      runner,
		Store:       store,
		Labeler:     labeler,
		Publisher:   queue,
		Config:      cfg,
		Log:         zlog,
	})

	log.Println("API server running on port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}
