package access

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CertsPath is the well-known key-set path under the provider's team domain
const CertsPath = "/cdn-cgi/access/certs"

// maxKeySetBytes caps the key-set document read from the provider
const maxKeySetBytes = 1 << 20

// HTTPFetcher retrieves the raw key-set document from the provider
type HTTPFetcher struct {
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests are bounded by timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CertsURL joins the provider base URL with the certs path
func CertsURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + CertsPath
}

// Fetch GETs the key set published under baseURL. No retry is attempted.
func (f *HTTPFetcher) Fetch(ctx context.Context, baseURL string) ([]byte, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, newFailure(KindConfigurationMissing, "provider URL is not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, CertsURL(baseURL), nil)
	if err != nil {
		return nil, newFailure(KindConfigurationMissing, "invalid provider URL", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, newFailure(KindNetworkError, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newFailure(KindNetworkError, fmt.Sprintf("status code %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, newFailure(KindNetworkError, "failed to read body", err)
	}

	return body, nil
}
