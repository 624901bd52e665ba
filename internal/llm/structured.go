package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput marks a structured inference result that could not be
// decoded against the requested schema. Callers treat it the same as any
// other upstream inference failure: no update this turn.
var ErrMalformedOutput = errors.New("malformed structured output")

const jsonDirective = "Return a single JSON object matching the schema exactly. " +
	"No markdown fences, no commentary, only JSON."

// GenerateObject runs the client with instructions that demand strict JSON
// output and decodes the reply into out.
func GenerateObject(ctx context.Context, c Client, instructions, input string, out interface{}) error {
	msgs := []Message{
		{Role: "system", Content: instructions + "\n\n" + jsonDirective},
		{Role: "user", Content: input},
	}
	resp, err := c.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("structured generation: %w", err)
	}
	raw := extractJSON(resp.Content)
	if raw == "" {
		return fmt.Errorf("%w: no JSON object in reply", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// extractJSON tolerates models that wrap their JSON in code fences or prose.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
