// Package merchant resolves the merchant configuration required to initialize the payment SDK.
package merchant

import (
	"context"
	"fmt"
	"strings"

	"github.com/cvforge/payinit/internal/errors"
)

// Source resolves named secrets from a configuration store.
// Implementations classify failures as errors.ErrConfigMissing (the store answered without a usable value)
// or errors.ErrConfigServiceUnreachable (the store could not be reached or misbehaved).
type Source interface {
	Secret(ctx context.Context, name string) (string, error)
}

// StaticSource serves secrets from memory.
type StaticSource map[string]string

// Secret implements Source.
func (s StaticSource) Secret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v, ok := s[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: secret '%s'", errors.ErrConfigMissing, name)
	}
	return v, nil
}
