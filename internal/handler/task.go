package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorber/veckopeng/internal/auth"
	"github.com/gorber/veckopeng/internal/ledger"
	"github.com/gorber/veckopeng/internal/middleware"
	"github.com/gorber/veckopeng/internal/model"
	"github.com/gorber/veckopeng/internal/realtime"
	"github.com/gorber/veckopeng/internal/store"
)

type TaskHandler struct {
	tasks     *store.TaskStore
	approvals *store.LedgerStore
	hub       *realtime.Hub
	logger    *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, ls *store.LedgerStore, hub *realtime.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, approvals: ls, hub: hub, logger: logger}
}

func (h *TaskHandler) broadcast(ev realtime.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type taskCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
	AssignedTo  string `json:"assigned_to"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a parent can create tasks"})
		return
	}

	var req taskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	task, err := h.tasks.Create(store.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(realtime.NewEvent("task", "created", task.ID, nil))

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var tasks []model.Task
	var err error

	if assignee := r.URL.Query().Get("assigned_to"); assignee != "" {
		tasks, err = h.tasks.ListByAssignee(assignee)
	} else {
		tasks, err = h.tasks.List()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type taskPatchRequest struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	Reward      *int64            `json:"reward"`
	AssignedTo  *string           `json:"assigned_to"`
	Status      *model.TaskStatus `json:"status"`
}

// Update handles field edits and the non-approval status transitions.
// Approval has its own endpoint; a completed status here is rejected.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "acting member required"})
		return
	}

	var req taskPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	editsFields := req.Title != nil || req.Description != nil || req.Reward != nil || req.AssignedTo != nil
	if editsFields && actor.Role != model.RoleParent {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a parent can edit task fields"})
		return
	}

	if req.Status != nil {
		existing, err := h.tasks.GetByID(id)
		if err != nil {
			writeError(w, err)
			return
		}
		if existing == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		member := model.Member{ID: actor.MemberID, Role: actor.Role}
		if _, err := ledger.Transition(*existing, *req.Status, member); err != nil {
			writeError(w, err)
			return
		}
		if *req.Status == model.TaskCompleted {
			// Legal for a parent, but the credit must go through the
			// approval transaction, not a field patch.
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "use the approve endpoint to complete a task"})
			return
		}
	}

	task, err := h.tasks.UpdateFields(id, store.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		AssignedTo:  req.AssignedTo,
		Status:      req.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(realtime.NewEvent("task", "updated", id, nil))

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)

	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a parent can delete tasks"})
		return
	}

	existing, err := h.tasks.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	if err := h.tasks.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(realtime.NewEvent("task", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

// Approve runs the approval transaction: waiting_for_approval -> completed
// plus the reward credit, atomically. A lost race comes back as a conflict,
// never as a second credit.
func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "acting member required"})
		return
	}

	task, member, err := h.approvals.Approve(id, actor.MemberID)
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			middleware.ApprovalConflictsTotal.Inc()
		}
		writeError(w, err)
		return
	}

	middleware.ApprovalsTotal.Inc()
	h.broadcast(realtime.NewEvent("task", "approved", id, map[string]any{"member_id": member.ID}))

	writeJSON(w, http.StatusOK, map[string]any{
		"task":   task,
		"member": member,
	})
}
