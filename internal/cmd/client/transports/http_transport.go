package transports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rzbill/bifrost/internal/node"
)

// HTTPTransport implements NodeTransport against the JSON endpoints. The
// node name is not exposed there, and watching polls.
type HTTPTransport struct {
	base   string
	client *http.Client
	// PollInterval paces WatchMetadataVersion.
	PollInterval time.Duration
}

func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPTransport{base: strings.TrimRight(baseURL, "/"), client: client, PollInterval: 500 * time.Millisecond}
}

func (t *HTTPTransport) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

func (t *HTTPTransport) MetadataVersion(ctx context.Context) (uint64, error) {
	var body struct {
		Version uint64 `json:"version"`
	}
	code, err := t.getJSON(ctx, "/v1/bifrost/version", &body)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK {
		return 0, fmt.Errorf("version: http %d", code)
	}
	return body.Version, nil
}

func (t *HTTPTransport) Ident(ctx context.Context) (Ident, error) {
	var body struct {
		NodeStatus string `json:"node_status"`
	}
	// 503 still carries the node status.
	code, err := t.getJSON(ctx, "/v1/healthz", &body)
	if err != nil {
		return Ident{}, err
	}
	if code != http.StatusOK && code != http.StatusServiceUnavailable {
		return Ident{}, fmt.Errorf("healthz: http %d", code)
	}
	v, err := t.MetadataVersion(ctx)
	if err != nil {
		return Ident{}, err
	}
	return Ident{Status: body.NodeStatus, StatusCode: int32(node.ParseStatus(body.NodeStatus)), MetadataVersion: v}, nil
}

func (t *HTTPTransport) WatchMetadataVersion(ctx context.Context, fn func(uint64) error) error {
	var last uint64
	ticker := time.NewTicker(t.PollInterval)
	defer ticker.Stop()
	for {
		v, err := t.MetadataVersion(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if v > last {
			if err := fn(v); err != nil {
				return err
			}
			last = v
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
