package sync

import (
	"context"

	"pennywise-server/src/models"
)

// Provider is the upstream account-aggregation boundary the engine
// consumes: an incremental transactions endpoint driven by an opaque
// cursor, and an account/balance listing endpoint.
type Provider interface {
	// GetAccounts returns the provider's current account metadata and
	// balances for one connection.
	GetAccounts(ctx context.Context, accessToken string) ([]models.AccountSnapshot, error)

	// SyncTransactions returns one page of transaction deltas after the
	// given cursor. An empty cursor requests the full history.
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*models.SyncPage, error)
}
