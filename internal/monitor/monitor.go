// Package monitor ties the daemon's subordinates together: the config
// store, the node registry, the control server, and the heartbeat
// scheduler. It owns the daemon's start-up and shutdown ordering.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nodewatch/nodewatch/internal/configstore"
	"github.com/nodewatch/nodewatch/internal/control"
	"github.com/nodewatch/nodewatch/internal/discovery"
	"github.com/nodewatch/nodewatch/internal/metrics"
	"github.com/nodewatch/nodewatch/internal/nwerr"
	"github.com/nodewatch/nodewatch/internal/probe"
	"github.com/nodewatch/nodewatch/internal/record"
	"github.com/nodewatch/nodewatch/internal/revive"
	"github.com/nodewatch/nodewatch/internal/scheduler"
)

// Config holds everything Monitor needs to start, validated before any I/O
// happens.
type Config struct {
	// HeartbeatInterval is the period between probe ticks. Must be positive.
	HeartbeatInterval time.Duration

	// FailureTolerance is the number of consecutive probe failures before a
	// node is revived. Must be positive.
	FailureTolerance int

	// ConfigPath is the line-delimited JSON file the monitor loads its
	// initial node set from and appends new nodes to.
	ConfigPath string

	// Port is the control server's TCP port. Zero means auto-discover a
	// free port from the well-known range (see internal/discovery).
	Port int

	Logger *zap.Logger
}

func (c Config) validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat interval must be positive, got %s", nwerr.ErrValidation, c.HeartbeatInterval)
	}
	if c.FailureTolerance <= 0 {
		return fmt.Errorf("%w: failure tolerance must be positive, got %d", nwerr.ErrValidation, c.FailureTolerance)
	}
	if c.ConfigPath == "" {
		return fmt.Errorf("%w: config path is required", nwerr.ErrValidation)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be in [1, 65535] or 0 for auto-discovery, got %d", nwerr.ErrValidation, c.Port)
	}
	if c.Logger == nil {
		return fmt.Errorf("%w: logger is required", nwerr.ErrValidation)
	}
	return nil
}

// Monitor is the running daemon: registry, store, control server, and
// scheduler wired together and owned by one lifecycle.
type Monitor struct {
	cfg      Config
	logger   *zap.Logger
	registry *record.Registry
	store    *configstore.Store
	metrics  *metrics.Metrics
	control  *control.Server
	sched    *scheduler.Scheduler

	stopOnce sync.Once
	stopped  atomic.Bool
}

// New validates cfg and constructs a Monitor. No I/O happens here — Start
// does the config load and network binds.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:    cfg,
		logger: cfg.Logger.Named("monitor"),
	}, nil
}

// Start loads the initial node set, binds the control server (auto-picking
// a port from the well-known discovery range if cfg.Port is 0), and starts
// the heartbeat scheduler. If any subordinate fails to start, the ones that
// already started are stopped before Start returns its error.
func (m *Monitor) Start(ctx context.Context) error {
	if _, err := os.Stat(m.cfg.ConfigPath); os.IsNotExist(err) {
		if err := os.WriteFile(m.cfg.ConfigPath, nil, 0o644); err != nil {
			return fmt.Errorf("%w: create config %s: %s", nwerr.ErrConfigWrite, m.cfg.ConfigPath, err)
		}
	}

	records, err := configstore.Load(m.cfg.ConfigPath)
	if err != nil {
		return err
	}

	m.registry = record.NewRegistry()
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: %s record %d: %s", nwerr.ErrConfigParse, m.cfg.ConfigPath, i, err)
		}
		m.registry.Add(&record.Node{
			Address:    rec.Address,
			ReviveCmd:  rec.ReviveCmd,
			ReviveArgs: rec.ReviveArgs,
			Alive:      true,
		})
	}
	m.store = configstore.New(m.cfg.ConfigPath)
	m.metrics = metrics.New()

	port := m.cfg.Port
	if port == 0 {
		port, err = discovery.GetFirstAvailablePortForMonitor()
		if err != nil {
			return err
		}
	}

	m.control = control.New(m.registry, m.store, m.metrics, m.logger)
	if err := m.control.Start(port); err != nil {
		return err
	}

	prober := probe.New(&http.Client{})
	reviver := revive.New(m.logger)
	sched, err := scheduler.New(m.registry, prober, reviver, m.metrics, m.control, m.cfg.HeartbeatInterval, m.cfg.FailureTolerance, m.logger)
	if err != nil {
		_ = m.control.Stop(context.Background())
		return err
	}
	if err := sched.Start(ctx); err != nil {
		_ = m.control.Stop(context.Background())
		return err
	}
	m.sched = sched

	m.logger.Info("monitor started",
		zap.Int("port", port),
		zap.Int("nodes", m.registry.Len()),
		zap.Duration("heartbeat_interval", m.cfg.HeartbeatInterval),
		zap.Int("failure_tolerance", m.cfg.FailureTolerance),
	)
	return nil
}

// Port returns the control server's bound port. Valid only after Start
// succeeds.
func (m *Monitor) Port() int {
	if m.control == nil {
		return 0
	}
	return m.control.Port()
}

// Stop shuts the scheduler and control server down. Idempotent — subsequent
// calls after the first are no-ops.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.stopped.Load() {
		return nil
	}

	var stopErr error
	m.stopOnce.Do(func() {
		m.stopped.Store(true)

		if m.sched != nil {
			if err := m.sched.Stop(); err != nil {
				stopErr = err
			}
		}
		if m.control != nil {
			if err := m.control.Stop(ctx); err != nil && stopErr == nil {
				stopErr = err
			}
		}
		m.logger.Info("monitor stopped")
	})
	return stopErr
}
