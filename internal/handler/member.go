package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/gorber/veckopeng/internal/auth"
	"github.com/gorber/veckopeng/internal/model"
	"github.com/gorber/veckopeng/internal/payment"
	"github.com/gorber/veckopeng/internal/realtime"
	"github.com/gorber/veckopeng/internal/store"
)

type MemberHandler struct {
	members *store.MemberStore
	hub     *realtime.Hub
	logger  *slog.Logger
}

func NewMemberHandler(ms *store.MemberStore, hub *realtime.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: ms, hub: hub, logger: logger}
}

func (h *MemberHandler) broadcast(ev realtime.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type memberCreateRequest struct {
	Name            string              `json:"name"`
	Role            model.Role          `json:"role"`
	PIN             string              `json:"pin"`
	Avatar          string              `json:"avatar"`
	PaymentHandle   string              `json:"payment_handle"`
	PaymentMethod   model.PaymentMethod `json:"payment_method"`
	Currency        string              `json:"currency"`
	WeeklyAllowance *int64              `json:"weekly_allowance"`
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	count, err := h.members.Count()
	if err != nil {
		h.logger.Error("count members", "error", err)
		writeError(w, err)
		return
	}
	if count == 0 {
		// First-run setup: no actor can exist yet, but the very first
		// member must be a parent so someone can administer the family.
		if req.Role != model.RoleParent {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "the first family member must be a parent"})
			return
		}
	} else if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a parent can add family members"})
		return
	}

	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pin must be exactly 4 digits"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to hash pin"})
		return
	}

	member, err := h.members.Create(store.NewMember{
		Name:            req.Name,
		Role:            req.Role,
		PINHash:         string(hash),
		Avatar:          req.Avatar,
		PaymentHandle:   req.PaymentHandle,
		PaymentMethod:   req.PaymentMethod,
		Currency:        req.Currency,
		WeeklyAllowance: req.WeeklyAllowance,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(realtime.NewEvent("member", "created", member.ID, nil))

	writeJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type memberPatchRequest struct {
	Name            *string              `json:"name"`
	Avatar          *string              `json:"avatar"`
	PaymentHandle   *string              `json:"payment_handle"`
	PaymentMethod   *model.PaymentMethod `json:"payment_method"`
	Currency        *string              `json:"currency"`
	WeeklyAllowance *int64               `json:"weekly_allowance"`
	Balance         *int64               `json:"balance"`
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "acting member required"})
		return
	}

	var req memberPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	// Members may edit themselves; only a parent may edit others, and only
	// a parent may use the balance override.
	if actor.Role != model.RoleParent && actor.MemberID != id {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a parent can edit other members"})
		return
	}
	if req.Balance != nil && actor.Role != model.RoleParent {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a parent can override a balance"})
		return
	}

	member, err := h.members.UpdateFields(id, store.MemberPatch{
		Name:            req.Name,
		Avatar:          req.Avatar,
		PaymentHandle:   req.PaymentHandle,
		PaymentMethod:   req.PaymentMethod,
		Currency:        req.Currency,
		WeeklyAllowance: req.WeeklyAllowance,
		Balance:         req.Balance,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(realtime.NewEvent("member", "updated", id, nil))

	writeJSON(w, http.StatusOK, member)
}

// Delete removes a member along with their tasks. A completed task's credit
// lives on the member row, so it disappears with them.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)

	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a parent can remove family members"})
		return
	}

	if err := h.members.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(realtime.NewEvent("member", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

// MarkPaid zeroes a member's balance after the parent has paid out
// through an external app.
func (h *MemberHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)

	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a parent can mark a balance paid"})
		return
	}

	member, err := h.members.MarkPaid(id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(realtime.NewEvent("member", "paid", id, nil))

	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	hash, err := h.members.GetPINHash(id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// PaymentLink builds a deep link that pays out the member's current balance
// via their configured payment app. Read-only: the balance itself is reset
// separately with MarkPaid once the payment went through.
func (h *MemberHandler) PaymentLink(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)

	member, err := h.members.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}

	link, err := payment.LinkFor(*member)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url":      link,
		"currency": member.Currency,
	})
}
