// Package probe issues the liveness check the heartbeat scheduler runs
// against each monitored node.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nodewatch/nodewatch/internal/nwerr"
)

// rpcRequest is the JSON-RPC 2.0 envelope sent to every monitored node. The
// monitor is content-agnostic past "did it answer" — method and params are
// fixed, id is always 1.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

var probeBody = mustMarshal(rpcRequest{
	JSONRPC: "2.0",
	Method:  "net_version",
	Params:  []any{},
	ID:      1,
})

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Client issues liveness probes. The zero value is not usable — create
// instances with New.
type Client struct {
	httpClient *http.Client
}

// New creates a Client. The given http.Client should have no built-in
// Timeout set — each Probe call is bounded by the context passed to it
// (one heartbeat interval), not by a fixed per-client timeout, since the
// scheduler is the only thing that knows the interval.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Probe sends one JSON-RPC liveness request to address and reports whether
// it succeeded. Success is "HTTP 2xx and a JSON-decodable body" — the
// monitor does not inspect the RPC response's semantics. Any transport
// error, non-2xx status, malformed body, or context deadline exceeded
// (bounded by the caller to one heartbeat interval) counts as failure.
func (c *Client) Probe(ctx context.Context, address string) error {
	url := fmt.Sprintf("http://%s/", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(probeBody))
	if err != nil {
		return fmt.Errorf("%w: build request for %s: %s", nwerr.ErrProbe, address, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", nwerr.ErrProbe, address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", nwerr.ErrProbe, address, resp.StatusCode)
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %s returned unparseable body: %s", nwerr.ErrProbe, address, err)
	}

	return nil
}
