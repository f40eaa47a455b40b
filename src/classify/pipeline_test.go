package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pennywise-server/src/models"

	"github.com/rs/zerolog"
)

type completerFunc func(ctx context.Context, instruction, input string) (string, error)

func (f completerFunc) Complete(ctx context.Context, instruction, input string) (string, error) {
	return f(ctx, instruction, input)
}

// echoCompleter answers every item in the batch with a deterministic
// result derived from its id.
func echoCompleter(t *testing.T) Completer {
	t.Helper()
	return completerFunc(func(_ context.Context, _, input string) (string, error) {
		var batch []Item
		if err := json.Unmarshal([]byte(input), &batch); err != nil {
			t.Fatalf("completer received invalid batch payload: %v", err)
		}
		results := make([]Result, len(batch))
		for i, item := range batch {
			results[i] = Result{ID: item.ID, Category: "cat-" + item.ID}
		}
		out, _ := json.Marshal(results)
		return string(out), nil
	})
}

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{ID: fmt.Sprintf("tx_%d", i), Description: "desc", Date: "2026-01-02"}
	}
	return items
}

func TestClassifyPreservesInputOrder(t *testing.T) {
	p := NewPipeline(echoCompleter(t), zerolog.Nop())

	items := makeItems(10)
	results, err := p.Classify(context.Background(), items, "task", 3, 2)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.ID != items[i].ID {
			t.Errorf("result %d: got id %q, want %q", i, r.ID, items[i].ID)
		}
	}
}

func TestClassifySingleBatchSkipsPartitioning(t *testing.T) {
	var calls int32
	c := completerFunc(func(_ context.Context, _, input string) (string, error) {
		atomic.AddInt32(&calls, 1)
		var batch []Item
		if err := json.Unmarshal([]byte(input), &batch); err != nil {
			return "", err
		}
		results := make([]Result, len(batch))
		for i, item := range batch {
			results[i] = Result{ID: item.ID}
		}
		out, _ := json.Marshal(results)
		return string(out), nil
	})
	p := NewPipeline(c, zerolog.Nop())

	if _, err := p.Classify(context.Background(), makeItems(5), "task", 50, 5); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("got %d completer calls, want 1", calls)
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	p := NewPipeline(echoCompleter(t), zerolog.Nop())
	results, err := p.Classify(context.Background(), nil, "task", 10, 2)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if results != nil {
		t.Errorf("got %v, want nil", results)
	}
}

func TestClassifyRejectsBadParameters(t *testing.T) {
	p := NewPipeline(echoCompleter(t), zerolog.Nop())
	if _, err := p.Classify(context.Background(), makeItems(1), "task", 0, 2); err == nil {
		t.Error("batch size 0: want error, got nil")
	}
	if _, err := p.Classify(context.Background(), makeItems(1), "task", 10, 0); err == nil {
		t.Error("concurrency 0: want error, got nil")
	}
}

func TestClassifyTruncationBecomesBatchTooLarge(t *testing.T) {
	c := completerFunc(func(_ context.Context, _, _ string) (string, error) {
		return "", ErrResponseTruncated
	})
	p := NewPipeline(c, zerolog.Nop())

	results, err := p.Classify(context.Background(), makeItems(4), "task", 2, 2)
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("got %v, want ErrBatchTooLarge", err)
	}
	if results != nil {
		t.Errorf("got partial results %v, want none", results)
	}
}

func TestClassifyOneBatchFailureAbortsAll(t *testing.T) {
	var calls int32
	c := completerFunc(func(_ context.Context, _, input string) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 2 {
			return "", errors.New("rate limited")
		}
		var batch []Item
		if err := json.Unmarshal([]byte(input), &batch); err != nil {
			return "", err
		}
		results := make([]Result, len(batch))
		for i, item := range batch {
			results[i] = Result{ID: item.ID}
		}
		out, _ := json.Marshal(results)
		return string(out), nil
	})
	p := NewPipeline(c, zerolog.Nop())

	results, err := p.Classify(context.Background(), makeItems(6), "task", 2, 1)
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if results != nil {
		t.Errorf("got partial results %v, want none", results)
	}
}

func TestParseResultsValidation(t *testing.T) {
	batch := []Item{{ID: "a"}, {ID: "b"}}

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "valid",
			raw:  `[{"id":"a","match":true},{"id":"b","match":false}]`,
		},
		{
			name: "reorders to batch order",
			raw:  `[{"id":"b"},{"id":"a"}]`,
		},
		{
			name: "fenced output",
			raw:  "```json\n[{\"id\":\"a\"},{\"id\":\"b\"}]\n```",
		},
		{
			name: "leading prose",
			raw:  "Here are the results:\n[{\"id\":\"a\"},{\"id\":\"b\"}]",
		},
		{
			name:    "not an array",
			raw:     `{"id":"a"}`,
			wantErr: true,
		},
		{
			name:    "missing item",
			raw:     `[{"id":"a"}]`,
			wantErr: true,
		},
		{
			name:    "duplicate id",
			raw:     `[{"id":"a"},{"id":"a"}]`,
			wantErr: true,
		},
		{
			name:    "empty id",
			raw:     `[{"id":""},{"id":"b"}]`,
			wantErr: true,
		},
		{
			name:    "unknown extra id",
			raw:     `[{"id":"a"},{"id":"c"}]`,
			wantErr: true,
		},
		{
			name:    "unknown id alongside a complete batch",
			raw:     `[{"id":"a"},{"id":"b"},{"id":"c"}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := parseResults(tt.raw, batch)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseResults failed: %v", err)
			}
			for i, r := range results {
				if r.ID != batch[i].ID {
					t.Errorf("result %d: got id %q, want %q", i, r.ID, batch[i].ID)
				}
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"raw array", `[{"id":"a"}]`, `[{"id":"a"}]`},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"bare fence", "```\n[1,2]\n```", "[1,2]"},
		{"surrounding prose", "Sure! [1,2] Hope that helps.", "[1,2]"},
		{"whitespace", "  \n[1]\n  ", "[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestItemsFromTransactions(t *testing.T) {
	merchant := "Starbucks"
	same := "Transfer"
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	txns := []models.Transaction{
		{ID: 1, TransactionID: "tx_a", Name: "STARBUCKS #123", MerchantName: &merchant, Amount: 4.5, Date: date},
		{ID: 2, TransactionID: "tx_b", Name: "Transfer", MerchantName: &same, Amount: 100, Date: date},
	}

	items := ItemsFromTransactions(txns)
	if items[0].Description != "Starbucks - STARBUCKS #123" {
		t.Errorf("got description %q", items[0].Description)
	}
	if items[1].Description != "Transfer" {
		t.Errorf("merchant equal to name should not repeat, got %q", items[1].Description)
	}
	if items[0].Date != "2026-03-15" {
		t.Errorf("got date %q, want 2026-03-15", items[0].Date)
	}
}
