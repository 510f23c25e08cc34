// ABOUTME: Remote API key validation against the Anthropic Messages API
// ABOUTME: Distinguishes rejected keys (401) from transport and server errors

package credentials

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAnthropicBaseURL is the production Anthropic API endpoint
const DefaultAnthropicBaseURL = "https://api.anthropic.com"

// defaultValidateTimeout bounds a single validation request
const defaultValidateTimeout = 10 * time.Second

// validationBody is the cheapest possible Messages API request: one token
// against the smallest model. The response content is irrelevant, only the
// status code matters.
const validationBody = `{"model":"claude-3-haiku-20240307","max_tokens":1,"messages":[{"role":"user","content":"test"}]}`

// Validator checks whether an API key is accepted by the provider
type Validator interface {
	// Validate returns (true, nil) for an accepted key, (false, nil) for a
	// rejected key, and (false, err) when validity could not be determined.
	Validate(ctx context.Context, apiKey string) (bool, error)
}

// AnthropicValidator validates keys with a minimal real request.
// It owns its own HTTP client and never runs inside a database transaction.
type AnthropicValidator struct {
	baseURL string
	client  *http.Client
}

// NewAnthropicValidator creates a validator for the given endpoint.
// An empty baseURL selects the production API; a non-positive timeout
// selects the default.
func NewAnthropicValidator(baseURL string, timeout time.Duration) *AnthropicValidator {
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	if timeout <= 0 {
		timeout = defaultValidateTimeout
	}
	return &AnthropicValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Validate probes the Messages API with the given key
func (v *AnthropicValidator) Validate(ctx context.Context, apiKey string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/messages", strings.NewReader(validationBody))
	if err != nil {
		return false, fmt.Errorf("building validation request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("validation request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected validation response status %d", resp.StatusCode)
	}
}

// Ensure AnthropicValidator implements Validator.
var _ Validator = (*AnthropicValidator)(nil)
