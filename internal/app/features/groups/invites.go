// internal/app/features/groups/invites.go
package groups

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/huddle/internal/app/features/errors"
	"github.com/dalemusser/huddle/internal/app/membership"
	"github.com/dalemusser/huddle/internal/app/system/timeouts"
)

type createInviteRequest struct {
	MaxUses          *int `json:"max_uses"`
	ExpiresInMinutes *int `json:"expires_in_minutes"`
}

type redeemRequest struct {
	Token string `json:"token"`
}

// HandleCreateInvite issues an invite token. Owner only. The raw token is in
// this response and nowhere else.
//
// POST /groups/{id}/invites  {max_uses, expires_in_minutes}
func (h *Handler) HandleCreateInvite(w http.ResponseWriter, r *http.Request) {
	gid, err := idParam(r, "id", "group")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in createInviteRequest
	if err := uierrors.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "create invite: bad body", err, "request body must be JSON")
		return
	}
	maxUses, minutes := membership.DefaultInviteMaxUses, membership.DefaultInviteMinutes
	if in.MaxUses != nil {
		maxUses = *in.MaxUses
	}
	if in.ExpiresInMinutes != nil {
		minutes = *in.ExpiresInMinutes
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	owner := caller(r)
	grant, err := h.Engine.CreateInvite(ctx, gid, owner, maxUses, minutes)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.InviteCreated(ctx, r, owner, gid, grant.MaxUses)

	w.Header().Set("Cache-Control", "no-store")
	uierrors.JSON(w, http.StatusCreated, grant)
}

// HandleRedeemInvite joins the caller to the invite's group.
//
// POST /groups/join-with-invite  {token}
func (h *Handler) HandleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	var in redeemRequest
	if err := uierrors.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "redeem invite: bad body", err, "request body must be JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid := caller(r)
	res, err := h.Engine.RedeemInvite(ctx, uid, in.Token)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if res.Outcome == membership.OutcomeJoined {
		h.AuditLog.InviteRedeemed(ctx, r, uid, res.GroupID)
	}
	uierrors.JSON(w, http.StatusOK, res)
}
