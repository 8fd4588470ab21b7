// Package discovery lets clients on the same host locate a running monitor,
// or find a free control port to bind one, by probing a well-known TCP port
// range.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nodewatch/nodewatch/internal/nwerr"
)

// PortRangeStart and PortRangeEnd bound the well-known control port range,
// [PortRangeStart, PortRangeEnd) — 99 candidate ports.
const (
	PortRangeStart = 9545
	PortRangeEnd   = 9644

	// scanTimeout bounds each per-port probe during ScanForMonitor so an
	// unresponsive (but open) port does not stall the whole scan.
	scanTimeout = 500 * time.Millisecond
)

// ScanForMonitor probes every port in the well-known range with GET /status
// and returns the first one that answers with a 2xx response decodable as
// the status array. Returns ErrDiscovery if nothing in the range responds.
func ScanForMonitor(ctx context.Context) (int, error) {
	client := &http.Client{Timeout: scanTimeout}

	for port := PortRangeStart; port < PortRangeEnd; port++ {
		url := fmt.Sprintf("http://127.0.0.1:%d/status", port)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}

		resp, err := client.Do(req)
		if err != nil {
			continue
		}

		ok := resp.StatusCode >= 200 && resp.StatusCode < 300
		var body []json.RawMessage
		decodeErr := json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()

		// A monitor's /status answers with a JSON array (possibly empty).
		// Anything else on the port — another HTTP service, a JSON object,
		// null — is not a monitor.
		if ok && decodeErr == nil && body != nil {
			return port, nil
		}
	}

	return 0, fmt.Errorf("%w: no monitor responding in [%d, %d)", nwerr.ErrDiscovery, PortRangeStart, PortRangeEnd)
}

// GetFirstAvailablePortForMonitor returns the first port in the well-known
// range with no TCP listener currently bound, tested by attempting to bind
// and immediately releasing. Fails if every port in the range is occupied.
func GetFirstAvailablePortForMonitor() (int, error) {
	for port := PortRangeStart; port < PortRangeEnd; port++ {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("%w: no free port in [%d, %d)", nwerr.ErrDiscovery, PortRangeStart, PortRangeEnd)
}
