// internal/app/features/groups/lifecycle.go
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

type createRequest struct {
	Name      string               `json:"name"`
	Kind      string               `json:"kind"`
	Capacity  int                  `json:"capacity"`
	MemberIDs []primitive.ObjectID `json:"member_ids"`
}

type groupList struct {
	Groups []models.Group `json:"groups"`
}

// HandleCreate creates a group owned by the caller.
//
// POST /groups  {name, kind, capacity, member_ids}
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in createRequest
	if err := uierrors.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "create group: bad body", err, "request body must be JSON with hex member ids")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	owner := caller(r)
	g, err := h.Engine.CreateGroup(ctx, owner, membership.NewGroup{
		Name:      in.Name,
		Kind:      in.Kind,
		Capacity:  in.Capacity,
		MemberIDs: in.MemberIDs,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.GroupCreated(ctx, r, owner, g.ID, g.Kind, g.Capacity)
	uierrors.JSON(w, http.StatusCreated, g)
}

// ServeOpenList lists every open group.
//
// GET /groups/public
func (h *Handler) ServeOpenList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	gs, err := h.Engine.ListOpenGroups(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, groupList{Groups: gs})
}

// ServeMemberList lists the caller's groups.
//
// GET /groups/mine
func (h *Handler) ServeMemberList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	gs, err := h.Engine.ListMemberGroups(ctx, caller(r))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, groupList{Groups: gs})
}

// HandleDelete deletes a group whose only member is its owner.
//
// DELETE /groups/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	gid, err := idParam(r, "id", "group")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid := caller(r)
	if err := h.Engine.DeleteGroup(ctx, gid, uid); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.GroupDeleted(ctx, r, uid, gid)
	uierrors.JSON(w, http.StatusOK, map[string]any{"deleted": true, "group_id": gid})
}
