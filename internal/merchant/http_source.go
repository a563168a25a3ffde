package merchant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/cvforge/payinit/internal/errors"
)

// maxSecretResponseBytes bounds how much of a secret function response is read.
const maxSecretResponseBytes = 64 << 10

// secretResponseSchema is the accepted shape of a secret function response.
const secretResponseSchema = `{
	"type": "object",
	"required": ["value"],
	"properties": {
		"value": {"type": "string", "minLength": 1}
	}
}`

// HTTPSource reads secrets from an HTTP secret function.
// It POSTs {"name": "<secret>"} with a bearer key and expects {"value": "<secret value>"}.
// NewHTTPSource should be used to create instances of HTTPSource.
type HTTPSource struct {
	endpoint string
	apiKey   string
	client   *http.Client
	schema   *gojsonschema.Schema
}

// NewHTTPSource creates an HTTPSource for endpoint.
// A nil client is replaced by one with a 10 second timeout.
func NewHTTPSource(endpoint string, apiKey string, client *http.Client) (*HTTPSource, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("secret endpoint cannot be empty")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(secretResponseSchema))
	if err != nil {
		return nil, fmt.Errorf("compile secret response schema: %w", err)
	}

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &HTTPSource{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
		schema:   schema,
	}, nil
}

// Secret implements Source.
func (s *HTTPSource) Secret(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("encode secret request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create secret request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: call secret function: %w", errors.ErrConfigServiceUnreachable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: secret '%s' not found", errors.ErrConfigMissing, name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: secret function status %d", errors.ErrConfigServiceUnreachable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSecretResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read secret response: %w", errors.ErrConfigServiceUnreachable, err)
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: malformed secret response: %w", errors.ErrConfigServiceUnreachable, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return "", fmt.Errorf("%w: secret '%s': %s", errors.ErrConfigMissing, name, strings.Join(details, "; "))
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("%w: decode secret response: %w", errors.ErrConfigServiceUnreachable, err)
	}

	if strings.TrimSpace(payload.Value) == "" {
		return "", fmt.Errorf("%w: secret '%s' is empty", errors.ErrConfigMissing, name)
	}

	return payload.Value, nil
}
