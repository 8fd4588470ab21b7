// Package scheduler drives the heartbeat loop: on every tick it probes all
// registered nodes concurrently, applies the results to the registry in one
// atomic batch, dispatches any revivals the batch produced, and publishes
// the resulting snapshot.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/nodewatch/nodewatch/internal/metrics"
	"github.com/nodewatch/nodewatch/internal/record"
	"github.com/nodewatch/nodewatch/internal/revive"
)

// Prober probes one node's liveness. Satisfied by *probe.Client; an
// interface here so ticks can be tested against a fake.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// Publisher receives the fleet snapshot after every settled tick. Satisfied
// by *control.Server.
type Publisher interface {
	BroadcastStatus(snapshot []record.View)
}

// Scheduler runs the heartbeat on a fixed interval, never overlapping ticks.
// If a tick is still running when the next one is due, gocron's singleton
// mode reschedules rather than queues it: a slow tick skips, it never
// stacks up.
type Scheduler struct {
	registry *record.Registry
	prober   Prober
	reviver  *revive.Dispatcher
	metrics  *metrics.Metrics
	pub      Publisher
	logger   *zap.Logger

	interval  time.Duration
	tolerance int

	sched gocron.Scheduler
}

// New builds a Scheduler. interval is the heartbeat period; tolerance is the
// number of consecutive failures before a node is revived.
func New(
	registry *record.Registry,
	prober Prober,
	reviver *revive.Dispatcher,
	m *metrics.Metrics,
	pub Publisher,
	interval time.Duration,
	tolerance int,
	logger *zap.Logger,
) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		registry:  registry,
		prober:    prober,
		reviver:   reviver,
		metrics:   m,
		pub:       pub,
		logger:    logger.Named("scheduler"),
		interval:  interval,
		tolerance: tolerance,
		sched:     sched,
	}, nil
}

// Start registers the heartbeat job and begins running it. The first tick
// fires after one interval has elapsed, not immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.tick(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	s.sched.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval), zap.Int("tolerance", s.tolerance))
	return nil
}

// Stop halts the scheduler, letting any in-flight tick finish.
func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

// tick probes every registered node concurrently, applies the batch of
// outcomes atomically, dispatches any revivals the batch produced, and
// publishes the resulting snapshot. Each probe is bounded by one heartbeat
// interval so a hung node can never stall the next tick.
func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	nodes := s.registry.NodesForTick()
	if len(nodes) == 0 {
		return
	}

	outcomes := make([]record.Outcome, len(nodes))
	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func(i int, n *record.Node) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, s.interval)
			defer cancel()

			err := s.prober.Probe(probeCtx, n.Address)
			ok := err == nil
			outcomes[i] = record.Outcome{Node: n, OK: ok}
			s.metrics.ObserveProbe(n.Address, ok)
			if err != nil {
				s.logger.Debug("probe failed", zap.String("address", n.Address), zap.Error(err))
			}
		}(i, n)
	}
	wg.Wait()

	jobs := s.registry.ApplyOutcomes(outcomes, s.tolerance)

	for _, n := range nodes {
		s.metrics.SetNodeState(n.Address, n.Alive, n.Failures)
	}

	for _, job := range jobs {
		spawnErr := s.reviver.Dispatch(job.ID, job.Address, job.ReviveCmd, job.ReviveArgs)
		s.metrics.ObserveRevival(job.Address, spawnErr)
		if spawnErr != nil {
			s.logger.Error("revival dispatch failed", zap.String("address", job.Address), zap.Error(spawnErr))
		}
	}

	s.metrics.ObserveTick(time.Since(start))
	s.pub.BroadcastStatus(s.registry.Snapshot())
}
