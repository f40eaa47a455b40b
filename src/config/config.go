package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	GeminiModel string

	// Classification pipeline knobs. Batch size bounds how many
	// transactions go into one classifier call; concurrency bounds how
	// many calls are in flight at once.
	ClassifyBatchSize   int
	ClassifyConcurrency int

	// SyncIgnoredUserIDs are internal/demo users excluded from batch
	// syncs. Parsed once here so the batch service never touches the
	// process environment.
	SyncIgnoredUserIDs map[int64]struct{}

	AllowedOrigins []string
	IsDemo         bool
}

func Load() Config {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		PlaidClientID:       getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:         getEnv("PLAID_SECRET", ""),
		PlaidEnv:            getEnv("PLAID_ENV", "sandbox"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ClassifyBatchSize:   getEnvInt("CLASSIFY_BATCH_SIZE", 50),
		ClassifyConcurrency: getEnvInt("CLASSIFY_CONCURRENCY", 5),
		SyncIgnoredUserIDs:  parseIDSet(getEnv("SYNC_IGNORED_USER_IDS", "")),
		AllowedOrigins:      splitCSV(getEnv("ALLOWED_ORIGINS", "")),
		IsDemo:              getEnv("DEMO_MODE", "false") == "true",
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.PlaidClientID == "" || cfg.PlaidSecret == "" {
		log.Fatal("PLAID_CLIENT_ID and PLAID_SECRET are required")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Fatalf("%s must be a positive integer, got %q", key, value)
	}
	return n
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDSet(s string) map[int64]struct{} {
	ids := make(map[int64]struct{})
	for _, p := range splitCSV(s) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			log.Fatalf("SYNC_IGNORED_USER_IDS contains a non-numeric entry: %q", p)
		}
		ids[id] = struct{}{}
	}
	return ids
}
