// Package llm wraps the chat-completion model used to plan, analyze and
// write research reports.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("llm: API key is not set")
	// ErrEmptyResponse is returned when the model answered with no content.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrNoChoices is returned when the completion carries no choices.
	ErrNoChoices = errors.New("llm: no completion choices returned")
)

// Client produces a single completion for a system and a user prompt.
// With jsonMode the model is asked to answer with a JSON object.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error)
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\s*```$")

// StripFences removes a surrounding Markdown code fence, if any.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// ParseJSON decodes a model answer into v, tolerating ```json fences.
func ParseJSON(text string, v any) error {
	body := StripFences(text)
	if body == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("llm: decode JSON answer: %w", err)
	}
	return nil
}
