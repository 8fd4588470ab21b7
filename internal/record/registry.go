package record

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome pairs a node pointer with the result of one probe against it.
// Produced by the scheduler's fan-out phase, consumed by ApplyOutcomes.
type Outcome struct {
	Node *Node
	OK   bool
}

// ReviveJob describes a node whose failure count just crossed the tolerance
// threshold and needs a revival command dispatched. It is a value copy, safe
// to use after the registry lock is released.
type ReviveJob struct {
	ID         uuid.UUID
	Address    string
	ReviveCmd  string
	ReviveArgs string
}

// Registry is the concurrency-safe, ordered set of monitored nodes. It is
// the sole shared mutable state in the daemon: readers (GET /status, the
// WebSocket stream) take a read-side snapshot; writers (tick
// apply, POST /add) hold the lock only for the duration of the mutation.
//
// The zero value is not usable — create instances with NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	nodes []*Node
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a new node to the registry, in insertion order. Safe to call
// concurrently with ticks and reads — a node added mid-tick is not included
// in that tick's snapshot (see NodesForTick), only the next one. If n.ID is
// the zero UUID, Add assigns a fresh random one.
func (r *Registry) Add(n *Node) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, n)
}

// Len returns the current number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// NodesForTick returns a stable snapshot of the current node pointers, for
// the scheduler to fan probes out against. The slice is a copy; nodes
// appended after this call are invisible to the in-flight tick.
func (r *Registry) NodesForTick() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Snapshot returns the public view of every registered node, in insertion
// order, as of the instant the lock was held. Readers never observe a torn
// update — each View is built while the write lock for any concurrent
// mutation is unavailable.
func (r *Registry) Snapshot() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]View, len(r.nodes))
	for i, n := range r.nodes {
		out[i] = n.view()
	}
	return out
}

// ApplyOutcomes applies a batch of probe outcomes atomically: all updates in
// the batch are made under a single write-lock critical section, so /status
// readers never see a tick half-applied. Each node's update depends only on
// its own outcome — arrival order within the batch does not affect the
// resulting state.
//
// A node crosses into revival when its Failures counter reaches tolerance
// and it has not already been revived for this failure streak; such nodes
// are returned as ReviveJobs for the caller to dispatch outside the lock.
func (r *Registry) ApplyOutcomes(outcomes []Outcome, tolerance int) []ReviveJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var jobs []ReviveJob
	for _, o := range outcomes {
		n := o.Node
		n.LastProbeAt = now

		if o.OK {
			n.Failures = 0
			n.Alive = true
			n.Revived = false
			continue
		}

		n.Failures++
		n.Alive = false
		if n.Failures == tolerance && !n.Revived {
			n.Revived = true
			n.RevivalAttempts++
			jobs = append(jobs, ReviveJob{
				ID:         n.ID,
				Address:    n.Address,
				ReviveCmd:  n.ReviveCmd,
				ReviveArgs: n.ReviveArgs,
			})
		}
	}
	return jobs
}
