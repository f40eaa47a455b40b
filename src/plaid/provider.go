package plaid

import (
	"context"
	"fmt"
	"time"

	"pennywise-server/src/models"

	"github.com/plaid/plaid-go/v41/plaid"
)

// Provider adapts the Plaid SDK to the sync engine's upstream
// boundary, normalizing the wire types away at the edge.
type Provider struct {
	client *plaid.APIClient
}

func NewProvider(client *plaid.APIClient) *Provider {
	return &Provider{client: client}
}

func (p *Provider) GetAccounts(ctx context.Context, accessToken string) ([]models.AccountSnapshot, error) {
	request := plaid.NewAccountsGetRequest(accessToken)
	resp, _, err := p.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
	if err != nil {
		return nil, fmt.Errorf("accounts get: %w", err)
	}

	accounts := resp.GetAccounts()
	snapshots := make([]models.AccountSnapshot, 0, len(accounts))
	for _, acc := range accounts {
		balances := acc.GetBalances()
		snapshots = append(snapshots, models.AccountSnapshot{
			AccountID:        acc.GetAccountId(),
			Name:             acc.GetName(),
			OfficialName:     acc.GetOfficialName(),
			Mask:             acc.GetMask(),
			Type:             string(acc.GetType()),
			Subtype:          string(acc.GetSubtype()),
			CurrentBalance:   balances.GetCurrent(),
			AvailableBalance: balances.GetAvailable(),
		})
	}
	return snapshots, nil
}

func (p *Provider) SyncTransactions(ctx context.Context, accessToken, cursor string) (*models.SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}

	resp, _, err := p.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return nil, fmt.Errorf("transactions sync: %w", err)
	}

	page := &models.SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	for _, t := range resp.GetAdded() {
		page.Added = append(page.Added, normalizeTransaction(t))
	}
	for _, t := range resp.GetModified() {
		page.Modified = append(page.Modified, normalizeTransaction(t))
	}
	for _, r := range resp.GetRemoved() {
		page.RemovedIDs = append(page.RemovedIDs, r.GetTransactionId())
	}
	return page, nil
}

func normalizeTransaction(t plaid.Transaction) models.TransactionDelta {
	var merchant *string
	if name, ok := t.GetMerchantNameOk(); ok && name != nil && *name != "" {
		merchant = name
	}
	// The provider sends dates as YYYY-MM-DD strings.
	date, _ := time.Parse("2006-01-02", t.GetDate())
	return models.TransactionDelta{
		TransactionID: t.GetTransactionId(),
		AccountID:     t.GetAccountId(),
		Amount:        t.GetAmount(),
		Name:          t.GetName(),
		MerchantName:  merchant,
		Date:          date,
		Pending:       t.GetPending(),
	}
}
