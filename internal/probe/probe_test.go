package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodewatch/nodewatch/internal/nwerr"
)

func TestProbe_SuccessOn2xxJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","result":"0x1","id":1}`))
	}))
	defer srv.Close()

	address := strings.TrimPrefix(srv.URL, "http://")
	c := New(srv.Client())

	err := c.Probe(context.Background(), address)
	assert.NoError(t, err)
}

func TestProbe_FailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	address := strings.TrimPrefix(srv.URL, "http://")
	c := New(srv.Client())

	err := c.Probe(context.Background(), address)
	require.Error(t, err)
	assert.True(t, errors.Is(err, nwerr.ErrProbe))
}

func TestProbe_FailsOnUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	address := strings.TrimPrefix(srv.URL, "http://")
	c := New(srv.Client())

	err := c.Probe(context.Background(), address)
	require.Error(t, err)
	assert.True(t, errors.Is(err, nwerr.ErrProbe))
}

func TestProbe_FailsOnUnreachableAddress(t *testing.T) {
	c := New(nil)
	err := c.Probe(context.Background(), "127.0.0.1:1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, nwerr.ErrProbe))
}

func TestProbe_FailsOnContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	address := strings.TrimPrefix(srv.URL, "http://")
	c := New(srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	err := c.Probe(ctx, address)
	require.Error(t, err)
	assert.True(t, errors.Is(err, nwerr.ErrProbe))
}
