package ipfscache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway resolves ipfs:// URIs by rewriting them onto a configured
// HTTP gateway (e.g. https://ipfs.io/ipfs/) and issuing a plain GET,
// matching spec.md's characterization of the gateway as a single
// content-addressed byte fetch with no pinning or DHT participation.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway builds an HTTPGateway rooted at baseURL, e.g.
// "https://ipfs.io/ipfs". Trailing slashes are trimmed.
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch resolves uri, which may be an ipfs://<cid>[/path] URI or a bare
// CID, against the configured gateway.
func (g *HTTPGateway) Fetch(ctx context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "ipfs://")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("ipfscache: build request for %q: %w", uri, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfscache: fetch %q: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfscache: fetch %q: gateway returned %s", uri, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ipfscache: read body for %q: %w", uri, err)
	}
	return body, nil
}
