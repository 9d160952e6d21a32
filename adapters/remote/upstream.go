// Package remote provides the HTTP client that forwards metered
// requests to their paid provider backends.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxbridge/voxbridge/ports"
)

// UpstreamClient posts request bodies to per-endpoint provider URLs.
type UpstreamClient struct {
	client    *http.Client
	endpoints map[string]string // endpoint name -> URL
	headers   map[string]string // e.g. provider API key header
}

// UpstreamConfig contains configuration for the upstream client.
type UpstreamConfig struct {
	Endpoints map[string]string
	Headers   map[string]string
	Timeout   time.Duration
}

// NewUpstreamClient creates a new provider HTTP client.
func NewUpstreamClient(cfg UpstreamConfig) *UpstreamClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &UpstreamClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		endpoints: cfg.Endpoints,
		headers:   cfg.Headers,
	}
}

// Invoke posts the body to the endpoint's provider backend.
func (u *UpstreamClient) Invoke(ctx context.Context, endpoint string, body []byte) (ports.ProviderResponse, error) {
	url, ok := u.endpoints[endpoint]
	if !ok {
		return ports.ProviderResponse{}, fmt.Errorf("no provider configured for endpoint %q", endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range u.headers {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("read provider response: %w", err)
	}

	out := ports.ProviderResponse{
		Status: resp.StatusCode,
		Body:   respBody,
		Header: map[string]string{},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Header["Content-Type"] = ct
	}
	return out, nil
}

// Ensure interface compliance.
var _ ports.Upstream = (*UpstreamClient)(nil)
