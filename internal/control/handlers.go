package control

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nodewatch/nodewatch/internal/configstore"
	"github.com/nodewatch/nodewatch/internal/record"
)

// handleStatus serves GET /status: a bare JSON array snapshot of every
// tracked node, per the control surface's wire format — no envelope.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot())
}

// handleHealthz serves GET /healthz: a liveness probe for the monitor
// process itself, independent of any tracked node's state.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

// handleStatusStream upgrades GET /status/stream to a WebSocket connection
// that receives a fresh status snapshot after every settled heartbeat tick.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	client, err := newStatusClient(s.hub, w, r, s.logger)
	if err != nil {
		s.logger.Warn("status stream upgrade failed", zap.Error(err))
		return
	}
	client.run()
}

type addRequest struct {
	Nodes []configstore.Record `json:"nodes"`
}

// handleAdd serves POST /add. The whole batch is validated before any
// record is written: either every node is well-formed and gets appended, or
// none are. Append failures partway through a batch keep whatever records
// already reached the config file and the in-memory registry — config
// durability is never rolled back, so a caller can retry just the failed
// tail.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errBadRequest(w, "malformed request body: "+err.Error())
		return
	}

	for i, n := range req.Nodes {
		if err := n.Validate(); err != nil {
			errBadRequest(w, fmt.Sprintf("node %d: %s", i, err.Error()))
			return
		}
	}

	if len(req.Nodes) == 0 {
		writeJSON(w, http.StatusOK, []record.View{})
		return
	}

	added := make([]record.View, 0, len(req.Nodes))
	for i, n := range req.Nodes {
		if err := s.store.Append(n); err != nil {
			s.logger.Error("config append failed mid-batch",
				zap.Int("index", i), zap.String("address", n.Address), zap.Error(err))
			errInternal(w, fmt.Sprintf("failed writing node %d (%s): %s", i, n.Address, err.Error()))
			return
		}

		node := &record.Node{
			Address:    n.Address,
			ReviveCmd:  n.ReviveCmd,
			ReviveArgs: n.ReviveArgs,
			Alive:      true,
		}
		s.registry.Add(node)
		added = append(added, record.View{
			ID:         node.ID,
			Address:    node.Address,
			ReviveCmd:  node.ReviveCmd,
			ReviveArgs: node.ReviveArgs,
			Alive:      node.Alive,
		})
	}

	writeJSON(w, http.StatusOK, added)
}
