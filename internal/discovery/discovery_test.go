package discovery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodewatch/nodewatch/internal/nwerr"
)

func TestGetFirstAvailablePortForMonitor_ReturnsPortInRange(t *testing.T) {
	port, err := GetFirstAvailablePortForMonitor()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, port, PortRangeStart)
	assert.Less(t, port, PortRangeEnd)

	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err, "the returned port must actually be free")
	ln.Close()
}

func TestGetFirstAvailablePortForMonitor_SkipsOccupiedPorts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(PortRangeStart))
	require.NoError(t, err)
	defer ln.Close()

	port, err := GetFirstAvailablePortForMonitor()
	require.NoError(t, err)
	assert.NotEqual(t, PortRangeStart, port)
}

func TestScanForMonitor_NoneRespondingFails(t *testing.T) {
	_, err := ScanForMonitor(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, nwerr.ErrDiscovery))
}

func TestScanForMonitor_SkipsNonMonitorResponder(t *testing.T) {
	// An HTTP service in the range whose /status is not a JSON array must not
	// be mistaken for a monitor.
	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(PortRangeStart))
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})}
	go srv.Serve(ln)
	defer srv.Close()

	_, err = ScanForMonitor(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, nwerr.ErrDiscovery))
}

func TestScanForMonitor_FindsRespondingPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(PortRangeStart+1))
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})}
	go srv.Serve(ln)
	defer srv.Close()

	port, err := ScanForMonitor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PortRangeStart+1, port)
}
