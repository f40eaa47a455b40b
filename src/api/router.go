package api

import (
	"net/http"

	"pennywise-server/src/budgets"
	"pennywise-server/src/config"
	"pennywise-server/src/db"
	"pennywise-server/src/handlers"
	"pennywise-server/src/jobs"
	"pennywise-server/src/middleware"
	syncpkg "pennywise-server/src/sync"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/rs/zerolog"
)

type Deps struct {
	Pool        *pgxpool.Pool
	PlaidClient *plaid.APIClient
	Cache       db.Cache
	Runner      *syncpkg.Runner
	Store       *syncpkg.PgStore
	Labeler     *budgets.Labeler
	Publisher   jobs.Publisher
	Config      config.Config
	Log         zerolog.Logger
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(d.Config.AllowedOrigins))
	r.Use(middleware.DemoModeMiddleware(d.Config.IsDemo))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", handlers.Login(d.Pool))
		r.Post("/register", handlers.Register(d.Pool))
		r.Post("/webhook", handlers.Webhook(d.PlaidClient, d.Pool, d.Publisher))

		// Protected routes
		r.With(middleware.JWTAuthMiddleware).Group(func(r chi.Router) {
			// User
			r.Get("/user/{user_id}", handlers.GetUser(d.Pool))
			r.Delete("/user", handlers.DeleteUser(d.Pool))

			// Connections
			r.Post("/items/link-token", handlers.CreateLinkToken(d.PlaidClient))
			r.Post("/items/exchange", handlers.ExchangePublicToken(d.PlaidClient, d.Pool, d.Config.PlaidEnv))
			r.Get("/items", handlers.GetItems(d.Pool))
			r.Get("/items/{item_id}/accounts", handlers.GetAccounts(d.Pool))
			r.Post("/items/{item_id}/sync", handlers.SyncItem(d.Runner, d.Pool, d.Cache))
			r.Delete("/items/{item_id}", handlers.DeleteItem(d.PlaidClient, d.Pool))

			// Transactions
			r.Get("/transactions", handlers.GetTransactions(d.Pool, d.Cache))
			r.Put("/transactions/{transaction_id}", handlers.UpdateTransactionCategory(d.Pool, d.Cache))
			r.Delete("/transactions/{transaction_id}", handlers.DeleteTransaction(d.Pool, d.Cache))

			// Budgets
			r.Post("/budgets", handlers.CreateBudget(d.Pool))
			r.Get("/budgets", handlers.GetAllBudgetsForUser(d.Pool))
			r.Get("/budgets/{budget_id}", handlers.GetBudgetByID(d.Pool))
			r.Get("/budgets/{budget_id}/summary", handlers.GetBudgetSummary(d.Pool))
			r.Put("/budgets/{budget_id}", handlers.UpdateBudget(d.Pool))
			r.Delete("/budgets/{budget_id}", handlers.DeleteBudget(d.Pool))
			r.Post("/budgets/{budget_id}/label", handlers.LabelBudget(d.Labeler, d.Pool))
			r.Post("/budgets/label-all", handlers.LabelAllBudgets(d.Labeler, d.Pool))
		})

		// Super Admin Routes
		r.With(middleware.JWTAuthMiddleware, middleware.SuperAdminMiddleware).Group(func(r chi.Router) {
			r.Post("/admin/sync-all", handlers.SyncAllUsers(d.Runner, d.Store, d.Cache, d.Config.SyncIgnoredUserIDs, d.Log))
		})
	})

	return r
}
