package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cvforge/payinit/internal/errors"
)

// OpenBaoConfig locates a KV v2 secret in OpenBao (or Vault).
type OpenBaoConfig struct {
	// Addr is the server address, e.g. https://bao.internal:8200.
	Addr string

	// Token authenticates requests (X-Vault-Token).
	Token string

	// Mount is the KV v2 mount path, defaults to "secret".
	Mount string

	// Path is the secret path below the mount.
	Path string

	// Namespace is sent as X-Vault-Namespace when set.
	Namespace string
}

// OpenBaoSource reads secrets as keys of a single OpenBao KV v2 secret.
// NewOpenBaoSource should be used to create instances of OpenBaoSource.
type OpenBaoSource struct {
	cfg    OpenBaoConfig
	client *http.Client
}

// NewOpenBaoSource creates an OpenBaoSource, a nil client is replaced by one with a 5 second timeout.
func NewOpenBaoSource(cfg OpenBaoConfig, client *http.Client) (*OpenBaoSource, error) {
	cfg.Addr = strings.TrimRight(strings.TrimSpace(cfg.Addr), "/")
	cfg.Path = strings.Trim(strings.TrimSpace(cfg.Path), "/")
	cfg.Mount = strings.Trim(strings.TrimSpace(cfg.Mount), "/")
	cfg.Namespace = strings.TrimSpace(cfg.Namespace)

	if cfg.Addr == "" {
		return nil, fmt.Errorf("openbao address cannot be empty")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("openbao token cannot be empty")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("openbao secret path cannot be empty")
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}

	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	return &OpenBaoSource{cfg: cfg, client: client}, nil
}

// Secret implements Source.
func (s *OpenBaoSource) Secret(ctx context.Context, name string) (string, error) {
	values, err := s.read(ctx)
	if err != nil {
		return "", err
	}

	v, ok := values[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: key '%s' in openbao path '%s'", errors.ErrConfigMissing, name, s.cfg.Path)
	}

	return v, nil
}

func (s *OpenBaoSource) read(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/v1/%s/data/%s", s.cfg.Addr, s.cfg.Mount, s.cfg.Path),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create OpenBao request: %w", err)
	}

	req.Header.Set("X-Vault-Token", s.cfg.Token)
	if s.cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", s.cfg.Namespace)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: call OpenBao: %w", errors.ErrConfigServiceUnreachable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: openbao path '%s' not found", errors.ErrConfigMissing, s.cfg.Path)
	default:
		return nil, fmt.Errorf("%w: openbao status %d", errors.ErrConfigServiceUnreachable, resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode OpenBao response: %w", errors.ErrConfigServiceUnreachable, err)
	}

	out := make(map[string]string, len(payload.Data.Data))
	for k, v := range payload.Data.Data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case fmt.Stringer:
			out[k] = val.String()
		default:
			// Non scalar values cannot be a merchant id.
		}
	}

	return out, nil
}
