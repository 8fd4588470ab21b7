package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nodewatch/nodewatch/internal/metrics"
	"github.com/nodewatch/nodewatch/internal/record"
	"github.com/nodewatch/nodewatch/internal/revive"
)

// fakeProber lets tests script per-address outcomes without a real server.
type fakeProber struct {
	mu      sync.Mutex
	failing map[string]bool
}

func newFakeProber() *fakeProber {
	return &fakeProber{failing: make(map[string]bool)}
}

func (f *fakeProber) setFailing(address string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[address] = failing
}

func (f *fakeProber) Probe(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[address] {
		return fmt.Errorf("fake probe failure for %s", address)
	}
	return nil
}

// fakePublisher records every snapshot broadcast so tests can assert on it.
type fakePublisher struct {
	mu        sync.Mutex
	snapshots [][]record.View
}

func (p *fakePublisher) BroadcastStatus(snapshot []record.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snapshot)
}

func (p *fakePublisher) last() []record.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snapshots) == 0 {
		return nil
	}
	return p.snapshots[len(p.snapshots)-1]
}

func TestTick_AppliesOutcomesAndPublishesSnapshot(t *testing.T) {
	registry := record.NewRegistry()
	registry.Add(&record.Node{Address: "a:1", ReviveCmd: "/bin/restart", Alive: true})
	registry.Add(&record.Node{Address: "b:1", ReviveCmd: "/bin/restart", Alive: true})

	prober := newFakeProber()
	prober.setFailing("b:1", true)

	pub := &fakePublisher{}
	logger := zap.NewNop()

	s, err := New(registry, prober, revive.New(logger), metrics.New(), pub, time.Second, 3, logger)
	require.NoError(t, err)

	s.tick(context.Background())

	snap := registry.Snapshot()
	require.Len(t, snap, 2)
	assert.True(t, snap[0].Alive)
	assert.False(t, snap[1].Alive)

	last := pub.last()
	require.NotNil(t, last)
	assert.Equal(t, snap, last)
}

func TestTick_DispatchesRevivalAtTolerance(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "revived")
	registry := record.NewRegistry()
	n := &record.Node{Address: "a:1", ReviveCmd: "touch", ReviveArgs: marker}
	registry.Add(n)

	prober := newFakeProber()
	prober.setFailing("a:1", true)

	pub := &fakePublisher{}
	logger := zap.NewNop()

	s, err := New(registry, prober, revive.New(logger), metrics.New(), pub, time.Second, 2, logger)
	require.NoError(t, err)

	s.tick(context.Background())
	s.tick(context.Background())

	snap := registry.Snapshot()
	require.Len(t, snap, 1)
	assert.False(t, snap[0].Alive)
	assert.Equal(t, 2, n.Failures)
	assert.Equal(t, 1, n.RevivalAttempts)

	// Revival is dispatched via the shell and runs asynchronously; the
	// second tick reaches tolerance, so `touch <marker>` must eventually run.
	require.Eventually(t, func() bool {
		_, statErr := os.Stat(marker)
		return statErr == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTick_NoNodesIsNoop(t *testing.T) {
	registry := record.NewRegistry()
	prober := newFakeProber()
	pub := &fakePublisher{}
	logger := zap.NewNop()

	s, err := New(registry, prober, revive.New(logger), metrics.New(), pub, time.Second, 3, logger)
	require.NoError(t, err)

	s.tick(context.Background())

	assert.Nil(t, pub.last())
}
