// Package inference sends structured-output prompts to a language model and
// decodes the single JSON object it answers with.
package inference

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidResponse is returned when the model output is not a JSON object
// carrying every requested key.
var ErrInvalidResponse = eris.New("inference: invalid response")

// Request is one structured-output prompt.
type Request struct {
	// Phase labels the call in logs and cost attribution.
	Phase     string
	System    string
	Prompt    string
	MaxTokens int64
	// Keys lists the top-level keys the response must contain.
	Keys []string
}

// Response holds the decoded top-level fields of the answer.
type Response map[string]json.RawMessage

// Service answers structured-output prompts.
type Service interface {
	Infer(ctx context.Context, req Request) (Response, error)
}

// Decode parses model text into a Response and checks the required keys.
func Decode(text string, keys []string) (Response, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.Wrap(ErrInvalidResponse, "empty output")
	}

	var resp Response
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, eris.Wrapf(ErrInvalidResponse, "decode object: %v", err)
	}
	if resp == nil {
		return nil, eris.Wrap(ErrInvalidResponse, "output is not an object")
	}
	for _, k := range keys {
		if _, ok := resp[k]; !ok {
			return nil, eris.Wrapf(ErrInvalidResponse, "missing key %q", k)
		}
	}
	return resp, nil
}

// cleanJSON strips markdown fences and any prose around the outermost object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
