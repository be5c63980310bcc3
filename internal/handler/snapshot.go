package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorber/veckopeng/internal/auth"
	"github.com/gorber/veckopeng/internal/model"
	"github.com/gorber/veckopeng/internal/realtime"
	"github.com/gorber/veckopeng/internal/store"
)

// SnapshotHandler serves the sync protocol: clients pull the full shared
// state, apply optimistic local updates, push minimal patches, and resync
// from whatever the server returns.
type SnapshotHandler struct {
	ledger *store.LedgerStore
	hub    *realtime.Hub
	logger *slog.Logger
}

func NewSnapshotHandler(ls *store.LedgerStore, hub *realtime.Hub, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{ledger: ls, hub: hub, logger: logger}
}

func (h *SnapshotHandler) Pull(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ledger.Snapshot()
	if err != nil {
		h.logger.Error("pull snapshot", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ProposePartial merges a client patch. Field edits ride on the household
// trust model and need no actor, but a task status change in the patch is
// held to the same transition table as the task endpoint, so the acting
// member (when the device sent one) is passed down to the merge.
func (h *SnapshotHandler) ProposePartial(w http.ResponseWriter, r *http.Request) {
	var patch model.SnapshotPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if patch.Members == nil && patch.Tasks == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patch must include members or tasks"})
		return
	}

	var actor *model.Member
	if a, ok := auth.ActorFromContext(r.Context()); ok {
		actor = &model.Member{ID: a.MemberID, Role: a.Role}
	}

	merged, err := h.ledger.MergePartial(patch, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(realtime.NewEvent("snapshot", "merged", "", nil))
	}

	writeJSON(w, http.StatusOK, merged)
}
