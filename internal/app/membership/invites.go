package membership

import (
	"context"
	"errors"
	"strings"
	"time"

	groupstore "github.com/dalemusser/huddle/internal/app/store/groups"
	invitestore "github.com/dalemusser/huddle/internal/app/store/invites"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/tokens"
	"github.com/dalemusser/huddle/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// InviteGrant is returned once by CreateInvite. Token cannot be recovered later.
type InviteGrant struct {
	InviteID  primitive.ObjectID `json:"invite_id"`
	GroupID   primitive.ObjectID `json:"group_id"`
	Token     string             `json:"token"`
	MaxUses   int                `json:"max_uses"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// RedeemResult is returned by RedeemInvite.
type RedeemResult struct {
	GroupID primitive.ObjectID `json:"group_id"`
	Outcome Outcome            `json:"outcome"`
}

// CreateInvite issues an invite token for the group. Only its hash is stored.
func (e *Engine) CreateInvite(ctx context.Context, groupID, callerID primitive.ObjectID, maxUses, expiresInMinutes int) (InviteGrant, error) {
	if maxUses < 1 {
		return InviteGrant{}, apperr.Invalid("max_uses must be at least 1")
	}
	if expiresInMinutes < 1 || expiresInMinutes > e.MaxInviteMinutes {
		return InviteGrant{}, apperr.Invalid("expires_in_minutes must be between 1 and %d", e.MaxInviteMinutes)
	}
	g, err := e.loadOwned(ctx, groupID, callerID, "create invites")
	if err != nil {
		return InviteGrant{}, err
	}

	raw, hash, err := tokens.Generate()
	if err != nil {
		return InviteGrant{}, apperr.Wrap(err, "generate invite token")
	}
	now := e.now()
	inv, err := e.invites.Create(ctx, models.Invite{
		GroupID:   g.ID,
		CreatedBy: callerID,
		TokenHash: hash,
		MaxUses:   maxUses,
		ExpiresAt: now.Add(time.Duration(expiresInMinutes) * time.Minute),
		CreatedAt: now,
	})
	if err != nil {
		return InviteGrant{}, apperr.Wrap(err, "create invite")
	}
	return InviteGrant{
		InviteID:  inv.ID,
		GroupID:   g.ID,
		Token:     raw,
		MaxUses:   inv.MaxUses,
		ExpiresAt: inv.ExpiresAt,
	}, nil
}

// inviteState classifies an invite that cannot be used at now.
func inviteState(inv models.Invite, now time.Time) error {
	switch {
	case inv.Uses >= inv.MaxUses:
		return apperr.BadInvite(apperr.ReasonExhausted)
	case inv.Disabled:
		return apperr.BadInvite(apperr.ReasonInvalid)
	case !now.Before(inv.ExpiresAt):
		return apperr.BadInvite(apperr.ReasonExpired)
	}
	return nil
}

// RedeemInvite adds userID to the invite's group. Invites never override a
// ban. A redemption by someone already on the roster still uses up a use.
func (e *Engine) RedeemInvite(ctx context.Context, userID primitive.ObjectID, rawToken string) (RedeemResult, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return RedeemResult{}, apperr.BadInvite(apperr.ReasonInvalid)
	}
	inv, err := e.invites.GetByHash(ctx, tokens.Hash(rawToken))
	if errors.Is(err, invitestore.ErrNotFound) {
		return RedeemResult{}, apperr.BadInvite(apperr.ReasonInvalid)
	}
	if err != nil {
		return RedeemResult{}, apperr.Wrap(err, "load invite")
	}
	if err := inviteState(inv, e.now()); err != nil {
		return RedeemResult{}, err
	}

	g, err := e.groups.GetByID(ctx, inv.GroupID)
	if errors.Is(err, groupstore.ErrNotFound) {
		return RedeemResult{}, apperr.BadInvite(apperr.ReasonInvalid)
	}
	if err != nil {
		return RedeemResult{}, apperr.Wrap(err, "load group")
	}
	if err := redeemable(g, userID); err != nil {
		return RedeemResult{}, err
	}

	if _, err := e.invites.Consume(ctx, inv.ID, e.now()); err != nil {
		if !errors.Is(err, invitestore.ErrUnusable) {
			return RedeemResult{}, apperr.Wrap(err, "consume invite")
		}
		// Lost a race with another redemption or the clock.
		if fresh, gerr := e.invites.GetByHash(ctx, inv.TokenHash); gerr == nil {
			if cerr := inviteState(fresh, e.now()); cerr != nil {
				return RedeemResult{}, cerr
			}
		}
		return RedeemResult{}, apperr.BadInvite(apperr.ReasonInvalid)
	}
	e.afterFirstWrite()

	// From here every failure hands the use back.
	result := RedeemResult{GroupID: g.ID}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if g.IsMember(userID) {
			result.Outcome = OutcomeAlreadyMember
			return result, nil
		}
		err = e.groups.AddMember(ctx, g.ID, userID)
		if err == nil {
			result.Outcome = OutcomeJoined
			return result, nil
		}
		if !errors.Is(err, groupstore.ErrStale) {
			break
		}
		if g, err = e.groups.GetByID(ctx, g.ID); err != nil {
			break
		}
		if rerr := redeemable(g, userID); rerr != nil {
			e.refund(ctx, inv.ID)
			return RedeemResult{}, rerr
		}
	}

	e.refund(ctx, inv.ID)
	switch {
	case errors.Is(err, groupstore.ErrNotFound):
		return RedeemResult{}, apperr.BadInvite(apperr.ReasonInvalid)
	case err != nil && !errors.Is(err, groupstore.ErrStale):
		return RedeemResult{}, apperr.Wrap(err, "add invited member")
	}
	return RedeemResult{}, errContended
}

// redeemable checks the roster rules an invite cannot bypass.
func redeemable(g models.Group, userID primitive.ObjectID) error {
	if g.IsBanned(userID) {
		return apperr.Denied("you are banned from this group; invites cannot override a ban")
	}
	if !g.IsMember(userID) && g.IsFull() {
		return apperr.Full()
	}
	return nil
}

// refund returns a consumed use. It runs even when ctx is already done.
func (e *Engine) refund(ctx context.Context, inviteID primitive.ObjectID) {
	ctx, cancel := settle(ctx)
	defer cancel()
	if err := e.invites.Refund(ctx, inviteID); err != nil {
		e.log.Error("refund invite use failed", zap.String("invite_id", inviteID.Hex()), zap.Error(err))
	}
}
