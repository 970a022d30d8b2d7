// internal/app/features/groups/requests.go
package groups

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/huddle/internal/app/features/errors"
	"github.com/dalemusser/huddle/internal/app/membership"
	"github.com/dalemusser/huddle/internal/app/system/timeouts"
	"github.com/dalemusser/huddle/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type requestJoinResponse struct {
	GroupID        primitive.ObjectID  `json:"group_id"`
	Outcome        membership.Outcome  `json:"outcome"`
	RequestID      *primitive.ObjectID `json:"request_id,omitempty"`
	AlreadyPending bool                `json:"already_pending"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

// HandleRequestJoin files a join request for a private group.
//
// POST /groups/{id}/request-join
func (h *Handler) HandleRequestJoin(w http.ResponseWriter, r *http.Request) {
	gid, err := idParam(r, "id", "group")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid := caller(r)
	res, err := h.Engine.RequestJoinPrivate(ctx, gid, uid)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	resp := requestJoinResponse{GroupID: gid, Outcome: res.Outcome, AlreadyPending: res.AlreadyPending}
	status := http.StatusOK
	if res.Outcome == membership.OutcomePending {
		resp.RequestID = &res.RequestID
		if !res.AlreadyPending {
			status = http.StatusCreated
			h.AuditLog.JoinRequested(ctx, r, uid, gid, res.RequestID)
		}
	}
	uierrors.JSON(w, status, resp)
}

// ServePendingRequests lists a group's pending requests. Owner only.
//
// GET /groups/{id}/requests
func (h *Handler) ServePendingRequests(w http.ResponseWriter, r *http.Request) {
	gid, err := idParam(r, "id", "group")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reqs, err := h.Engine.ListPendingRequests(ctx, gid, caller(r))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

// HandleDecision approves or declines a pending request. Owner only.
//
// POST /groups/requests/{id}/decision  {decision}
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	rid, err := idParam(r, "id", "request")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in decisionRequest
	if err := uierrors.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decision: bad body", err, "request body must be JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	owner := caller(r)
	jr, err := h.Engine.DecideRequest(ctx, rid, owner, in.Decision)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.RequestDecided(ctx, r, owner, jr.GroupID, jr.UserID, jr.Status == models.RequestApproved)
	uierrors.JSON(w, http.StatusOK, jr)
}
