package models

import "time"

// SyncPage is one page of the upstream incremental-sync response,
// normalized away from the provider's wire types.
type SyncPage struct {
	Added      []TransactionDelta
	Modified   []TransactionDelta
	RemovedIDs []string
	NextCursor string
	HasMore    bool
}

// TransactionDelta is one added or modified transaction as reported by
// the provider. AccountID here is the provider's external account id.
type TransactionDelta struct {
	TransactionID string
	AccountID     string
	Amount        float64
	Name          string
	MerchantName  *string
	Date          time.Time
	Pending       bool
}

// AccountSnapshot is the provider's current view of one account,
// refreshed on every sync independently of the cursor.
type AccountSnapshot struct {
	AccountID        string
	Name             string
	OfficialName     string
	Mask             string
	Type             string
	Subtype          string
	CurrentBalance   float64
	AvailableBalance float64
}
