package membership

import (
	"context"
	"errors"

	groupstore "github.com/dalemusser/huddle/internal/app/store/groups"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/normalize"
	"github.com/dalemusser/huddle/internal/app/system/txn"
	"github.com/dalemusser/huddle/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewGroup is the input to CreateGroup.
type NewGroup struct {
	Name      string
	Kind      string
	Capacity  int
	MemberIDs []primitive.ObjectID
}

// CreateGroup creates a group owned by ownerID. The owner is always a member;
// MemberIDs are deduplicated and must reference existing users.
func (e *Engine) CreateGroup(ctx context.Context, ownerID primitive.ObjectID, in NewGroup) (models.Group, error) {
	name := normalize.Name(in.Name)
	if name == "" {
		return models.Group{}, apperr.Invalid("name is required")
	}
	kind := normalize.Kind(in.Kind)
	if kind != models.GroupKindOpen && kind != models.GroupKindPrivate {
		return models.Group{}, apperr.Invalid("kind must be %q or %q", models.GroupKindOpen, models.GroupKindPrivate)
	}
	if in.Capacity < 0 || in.Capacity == 1 {
		return models.Group{}, apperr.Invalid("capacity must be 0 (unlimited) or at least 2")
	}

	extra := make([]primitive.ObjectID, 0, len(in.MemberIDs))
	seen := map[primitive.ObjectID]bool{ownerID: true}
	for _, id := range in.MemberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		extra = append(extra, id)
	}

	found, err := e.users.CountExisting(ctx, extra)
	if err != nil {
		return models.Group{}, apperr.Wrap(err, "check members")
	}
	if missing := len(extra) - found; missing > 0 {
		return models.Group{}, apperr.New(apperr.NotFound, "%d member(s) not found", missing)
	}
	if in.Capacity > 0 && 1+len(extra) > in.Capacity {
		return models.Group{}, apperr.Full()
	}

	g, err := e.groups.Create(ctx, models.Group{
		Name:     name,
		Kind:     kind,
		OwnerID:  ownerID,
		Capacity: in.Capacity,
		Members:  append([]primitive.ObjectID{ownerID}, extra...),
	})
	if err != nil {
		return models.Group{}, apperr.Wrap(err, "create group")
	}
	return g, nil
}

// ListOpenGroups returns every open group without its ban list.
func (e *Engine) ListOpenGroups(ctx context.Context) ([]models.Group, error) {
	gs, err := e.groups.ListOpen(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list open groups")
	}
	return gs, nil
}

// ListMemberGroups returns the groups userID belongs to. The ban list is
// only kept on groups userID owns.
func (e *Engine) ListMemberGroups(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	gs, err := e.groups.ListByMember(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "list member groups")
	}
	for i := range gs {
		if gs[i].OwnerID != userID {
			gs[i].Banned = nil
		}
	}
	return gs, nil
}

// Leave removes userID from the group. Leaving a private group starts the
// re-request cooldown.
func (e *Engine) Leave(ctx context.Context, groupID, userID primitive.ObjectID) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		g, err := e.loadGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g.OwnerID == userID {
			return apperr.Denied("the owner must transfer ownership before leaving")
		}
		if !g.IsMember(userID) {
			return apperr.Invalid("not a member of this group")
		}

		// A private group's rejoin cooldown reads the leave history, so the
		// removal and its record are written together.
		err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
			if err := e.groups.RemoveMember(ctx, g.ID, userID); err != nil {
				return err
			}
			if g.Kind != models.GroupKindPrivate {
				return nil
			}
			e.afterFirstWrite()

			wctx, cancel := settle(ctx)
			defer cancel()
			return e.leaves.Append(wctx, g.ID, userID, e.now())
		})
		if errors.Is(err, groupstore.ErrStale) {
			continue
		}
		if err != nil {
			return apperr.Wrap(err, "leave group")
		}
		return nil
	}
	return errContended
}

// Banish moves targetID from the roster to the ban list.
// A pending join request from targetID is left as it is.
func (e *Engine) Banish(ctx context.Context, groupID, callerID, targetID primitive.ObjectID) (Outcome, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		g, err := e.loadOwned(ctx, groupID, callerID, "ban members")
		if err != nil {
			return "", err
		}
		if targetID == g.OwnerID {
			return "", apperr.Invalid("the owner cannot be banned")
		}
		if g.IsBanned(targetID) {
			return OutcomeAlreadyBanned, nil
		}
		if !g.IsMember(targetID) {
			return "", apperr.Invalid("user is not a current member")
		}

		err = e.groups.Ban(ctx, g.ID, callerID, targetID)
		if errors.Is(err, groupstore.ErrStale) {
			continue
		}
		if err != nil {
			return "", apperr.Wrap(err, "ban member")
		}
		return OutcomeBanned, nil
	}
	return "", errContended
}

// TransferOwnership makes newOwnerID the owner. The former owner stays a
// member. Transferring to oneself is a no-op.
func (e *Engine) TransferOwnership(ctx context.Context, groupID, callerID, newOwnerID primitive.ObjectID) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		g, err := e.loadOwned(ctx, groupID, callerID, "transfer ownership")
		if err != nil {
			return err
		}
		if newOwnerID == callerID {
			return nil
		}
		if !g.IsMember(newOwnerID) {
			return apperr.Invalid("new owner must be a current member")
		}

		err = e.groups.TransferOwner(ctx, g.ID, callerID, newOwnerID)
		if errors.Is(err, groupstore.ErrStale) {
			continue
		}
		if err != nil {
			return apperr.Wrap(err, "transfer ownership")
		}
		return nil
	}
	return errContended
}

// DeleteGroup deletes a group whose owner is its only member. Requests,
// invites and leave history referencing it are kept.
func (e *Engine) DeleteGroup(ctx context.Context, groupID, callerID primitive.ObjectID) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		g, err := e.loadOwned(ctx, groupID, callerID, "delete the group")
		if err != nil {
			return err
		}
		if len(g.Members) != 1 {
			return apperr.Invalid("a group can only be deleted when the owner is its sole member")
		}

		err = e.groups.DeleteIfSole(ctx, g.ID, callerID)
		if errors.Is(err, groupstore.ErrStale) {
			continue
		}
		if err != nil {
			return apperr.Wrap(err, "delete group")
		}
		return nil
	}
	return errContended
}
