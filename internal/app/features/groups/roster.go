// internal/app/features/groups/roster.go
package groups

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/huddle/internal/app/features/errors"
	"github.com/dalemusser/huddle/internal/app/membership"
	"github.com/dalemusser/huddle/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type outcomeResponse struct {
	GroupID primitive.ObjectID `json:"group_id"`
	Outcome membership.Outcome `json:"outcome"`
}

type banishRequest struct {
	UserID primitive.ObjectID `json:"user_id"`
}

type transferRequest struct {
	NewOwnerID primitive.ObjectID `json:"new_owner_id"`
}

// HandleJoinOpen adds the caller to an open group.
//
// POST /groups/{id}/join-open
func (h *Handler) HandleJoinOpen(w http.ResponseWriter, r *http.Request) {
	gid, err := idParam(r, "id", "group")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid := caller(r)
	out, err := h.Engine.JoinOpen(ctx, gid, uid)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if out == membership.OutcomeJoined {
		h.AuditLog.GroupJoined(ctx, r, uid, gid)
	}
	uierrors.JSON(w, http.StatusOK, outcomeResponse{GroupID: gid, Outcome: out})
}

// HandleLeave removes the caller from a group.
//
// POST /groups/{id}/leave
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	gid, err := idParam(r, "id", "group")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid := caller(r)
	if err := h.Engine.Leave(ctx, gid, uid); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.GroupLeft(ctx, r, uid, gid)
	uierrors.JSON(w, http.StatusOK, map[string]any{"left": true, "group_id": gid})
}

// HandleBanish bans a member. Owner only.
//
// POST /groups/{id}/banish  {user_id}
func (h *Handler) HandleBanish(w http.ResponseWriter, r *http.Request) {
	gid, err := idParam(r, "id", "group")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in banishRequest
	if err := uierrors.Decode(r, &in); err != nil || in.UserID.IsZero() {
		h.ErrLog.LogBadRequest(w, r, "banish: bad body", err, "user_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	owner := caller(r)
	out, err := h.Engine.Banish(ctx, gid, owner, in.UserID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if out == membership.OutcomeBanned {
		h.AuditLog.MemberBanned(ctx, r, owner, gid, in.UserID)
	}
	uierrors.JSON(w, http.StatusOK, outcomeResponse{GroupID: gid, Outcome: out})
}

// HandleTransfer hands ownership to another member. Owner only.
//
// POST /groups/{id}/transfer  {new_owner_id}
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	gid, err := idParam(r, "id", "group")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in transferRequest
	if err := uierrors.Decode(r, &in); err != nil || in.NewOwnerID.IsZero() {
		h.ErrLog.LogBadRequest(w, r, "transfer: bad body", err, "new_owner_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	from := caller(r)
	if err := h.Engine.TransferOwnership(ctx, gid, from, in.NewOwnerID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if from != in.NewOwnerID {
		h.AuditLog.OwnerTransferred(ctx, r, from, gid, in.NewOwnerID)
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"group_id": gid, "owner_id": in.NewOwnerID})
}
