package host

import (
	"context"
	"fmt"
	"net/http"
)

// HTTPProber probes script URLs with a HEAD request.
// Servers which refuse HEAD (405, 501) are considered reachable, any 5xx or transport error is not.
type HTTPProber struct {
	Client *http.Client
}

// NewHTTPProber returns a prober using client, or http.DefaultClient when client is nil.
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{Client: client}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("probe '%s': %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed, resp.StatusCode == http.StatusNotImplemented:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("probe '%s': status %d", url, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("probe '%s': not found", url)
	default:
		return nil
	}
}
