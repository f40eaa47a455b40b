package classify

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiCompleter sends one classification batch per GenerateContent
// call. No streaming; a length-truncated candidate is reported as
// ErrResponseTruncated instead of returning the partial text.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiCompleter(ctx context.Context, model string) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, instruction string, input string) (string, error) {
	contents := genai.Text(buildPrompt(instruction, input))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return "", ErrResponseTruncated
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return rawText, nil
}

// buildPrompt injects the caller's instruction into the fixed template
// the response parser expects.
func buildPrompt(instruction, input string) string {
	return "You are a transaction classifier for a personal finance app.\n\n" +
		"Task:\n" +
		instruction + "\n\n" +
		"The input below is a JSON array of transactions, each with \"id\", \"description\", \"amount\" and \"date\".\n\n" +
		"For EVERY input item output exactly one object with these fields:\n" +
		"- \"id\": string, copied verbatim from the input item\n" +
		"- \"match\": boolean, true when the item satisfies the task, false otherwise\n" +
		"- \"category\": string, the assigned category if the task asks for one, otherwise \"\"\n" +
		"- \"rationale\": string, one short sentence\n\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"[\" and end with \"]\".\n\n" +
		"Transactions:\n" +
		input
}

// cleanModelJSON strips Markdown fences and surrounding junk when the
// model ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost array if extra text survived.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
