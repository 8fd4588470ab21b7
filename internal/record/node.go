// Package record holds the in-memory representation of monitored nodes and
// the concurrency-safe registry that the heartbeat scheduler and the control
// server share.
//
// The registry is the sole piece of shared mutable state in the daemon.
// Readers take a snapshot under a read lock; the apply
// phase of a heartbeat tick and POST /add take the write lock only for the
// duration of the mutation — all network I/O (probing, revival spawn,
// config file writes) happens outside the lock.
package record

import (
	"time"

	"github.com/google/uuid"
)

// Node is the central entity: the in-memory representation of one monitored
// blockchain node and its failure state.
type Node struct {
	// ID uniquely identifies this node for the lifetime of the process,
	// independent of Address — GET /status and revival log lines carry it,
	// so two records with the same address can be told apart. It is not
	// persisted: a restart assigns fresh IDs.
	ID uuid.UUID

	// Address is the node's host:port JSON-RPC endpoint. Immutable after
	// creation — read concurrently by the scheduler without locking.
	Address string

	// ReviveCmd is the executable invoked on revival.
	ReviveCmd string

	// ReviveArgs is passed to ReviveCmd as exactly one argv element.
	ReviveArgs string

	// Failures is the count of consecutive probe failures since the last
	// success. Reset to 0 on any success. Guarded by Registry.mu.
	Failures int

	// Alive is true iff the most recent probe succeeded. Distinct from
	// Failures == 0: a node can be Alive == false after a single failure,
	// before the tolerance threshold is crossed. Guarded by Registry.mu.
	Alive bool

	// Revived is set when a revival has been dispatched since the last
	// success, and cleared on the next success. Prevents repeated revival
	// dispatch while a node keeps failing. Guarded by Registry.mu.
	Revived bool

	// LastProbeAt is the time the most recent probe outcome was applied.
	// Not exposed through /status, /metrics or logs; no invariant depends
	// on it.
	LastProbeAt time.Time

	// RevivalAttempts counts every revival dispatch (successful spawn or
	// not) over the node's lifetime. Not exposed through /status, /metrics
	// or logs.
	RevivalAttempts int
}

// View is the public, wire-safe projection of a Node — the shape returned by
// GET /status and broadcast over the WebSocket status stream.
type View struct {
	ID         uuid.UUID `json:"id"`
	Address    string    `json:"address"`
	ReviveCmd  string    `json:"reviveCmd"`
	ReviveArgs string    `json:"reviveArgs"`
	Alive      bool      `json:"alive"`
}

func (n *Node) view() View {
	return View{
		ID:         n.ID,
		Address:    n.Address,
		ReviveCmd:  n.ReviveCmd,
		ReviveArgs: n.ReviveArgs,
		Alive:      n.Alive,
	}
}
