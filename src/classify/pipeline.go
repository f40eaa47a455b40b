package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Completer is a single request/response call to the external
// text-classification service: it takes a natural-language instruction
// plus a JSON payload of items and returns the raw model output.
type Completer interface {
	Complete(ctx context.Context, instruction string, input string) (string, error)
}

// Pipeline splits arbitrary-size item sets into fixed-size batches and
// dispatches a bounded number of classifier calls concurrently.
type Pipeline struct {
	completer Completer
	log       zerolog.Logger
}

func NewPipeline(completer Completer, log zerolog.Logger) *Pipeline {
	return &Pipeline{completer: completer, log: log}
}

// Classify runs the instruction over every item and returns one result
// per item in the original input order.
//
// Batches are processed in groups of at most `concurrency` in-flight
// calls; a group must fully finish before the next starts, which caps
// peak load on the external rate limiter. The call is all-or-nothing:
// any batch's failure aborts the invocation and no partial results are
// returned. A truncated batch surfaces as ErrBatchTooLarge.
func (p *Pipeline) Classify(ctx context.Context, items []Item, instruction string, batchSize, concurrency int) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("classify: batch size must be positive, got %d", batchSize)
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("classify: concurrency must be positive, got %d", concurrency)
	}

	if len(items) <= batchSize {
		return p.classifyBatch(ctx, items, instruction)
	}

	var batches [][]Item
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}

	// Results are slotted by original batch index, so merge order is
	// input order regardless of completion order.
	resultsByBatch := make([][]Result, len(batches))

	for group := 0; group < len(batches); group += concurrency {
		end := group + concurrency
		if end > len(batches) {
			end = len(batches)
		}

		var wg sync.WaitGroup
		groupErrs := make([]error, end-group)
		for i := group; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := p.classifyBatch(ctx, batches[i], instruction)
				if err != nil {
					groupErrs[i-group] = fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
					return
				}
				resultsByBatch[i] = res
			}(i)
		}
		wg.Wait()

		for _, err := range groupErrs {
			if err != nil {
				return nil, err
			}
		}
		p.log.Debug().
			Int("batches_done", end).
			Int("batches_total", len(batches)).
			Msg("classification group complete")
	}

	merged := make([]Result, 0, len(items))
	for _, res := range resultsByBatch {
		merged = append(merged, res...)
	}
	return merged, nil
}

func (p *Pipeline) classifyBatch(ctx context.Context, batch []Item, instruction string) ([]Result, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("serialize batch: %w", err)
	}

	raw, err := p.completer.Complete(ctx, instruction, string(payload))
	if errors.Is(err, ErrResponseTruncated) {
		return nil, fmt.Errorf("%w: %d items truncated the response, reduce batch size or scope", ErrBatchTooLarge, len(batch))
	}
	if err != nil {
		return nil, fmt.Errorf("classifier call: %w", err)
	}

	return parseResults(raw, batch)
}

// parseResults validates the model output against the sent batch: it
// must be a JSON array with exactly one result per item id. Anything
// else is treated like a transport failure.
func parseResults(raw string, batch []Item) ([]Result, error) {
	clean := cleanModelJSON(raw)

	var parsed []Result
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("classifier response is not a JSON array: %w", err)
	}

	sent := make(map[string]bool, len(batch))
	for _, item := range batch {
		sent[item.ID] = true
	}

	byID := make(map[string]Result, len(parsed))
	for _, r := range parsed {
		if r.ID == "" {
			return nil, fmt.Errorf("classifier response contains a result without an id")
		}
		if !sent[r.ID] {
			return nil, fmt.Errorf("classifier response contains unknown id %q", r.ID)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("classifier response contains duplicate id %q", r.ID)
		}
		byID[r.ID] = r
	}

	results := make([]Result, 0, len(batch))
	for _, item := range batch {
		r, ok := byID[item.ID]
		if !ok {
			return nil, fmt.Errorf("classifier response is missing item %q", item.ID)
		}
		results = append(results, r)
	}
	return results, nil
}
