package classify

import (
	"errors"

	"pennywise-server/src/models"
)

// ErrResponseTruncated is returned by a Completer when the model
// reports that its output was cut off for length. The pipeline never
// retries it with the same parameters.
var ErrResponseTruncated = errors.New("classifier response truncated")

// ErrBatchTooLarge is the pipeline-level error for a truncated batch:
// the caller must reduce the batch size or item scope, re-sending the
// same batch would truncate again.
var ErrBatchTooLarge = errors.New("classification batch too large")

// Item is one transaction as presented to the classifier.
type Item struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// Result is the classifier's verdict for one item. Depending on the
// instruction it carries either an assigned category or a boolean
// match. The rationale is logged for observability and never
// persisted. Results are discarded after the caller merges them.
type Result struct {
	ID        string `json:"id"`
	Match     bool   `json:"match"`
	Category  string `json:"category"`
	Rationale string `json:"rationale"`
}

// ItemsFromTransactions converts stored transactions into classifier
// items, keyed by the provider transaction id.
func ItemsFromTransactions(txns []models.Transaction) []Item {
	items := make([]Item, len(txns))
	for i, t := range txns {
		desc := t.Name
		if t.MerchantName != nil && *t.MerchantName != "" && *t.MerchantName != t.Name {
			desc = *t.MerchantName + " - " + t.Name
		}
		items[i] = Item{
			ID:          t.TransactionID,
			Description: desc,
			Amount:      t.Amount,
			Date:        t.Date.Format("2006-01-02"),
		}
	}
	return items
}
