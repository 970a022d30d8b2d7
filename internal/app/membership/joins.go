package membership

import (
	"context"
	"errors"
	"math"
	"time"

	groupstore "github.com/dalemusser/huddle/internal/app/store/groups"
	joinrequeststore "github.com/dalemusser/huddle/internal/app/store/joinrequests"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/normalize"
	"github.com/dalemusser/huddle/internal/app/system/txn"
	"github.com/dalemusser/huddle/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Decisions accepted by DecideRequest.
const (
	DecisionApprove = "approve"
	DecisionDecline = "decline"
)

// RequestResult is returned by RequestJoinPrivate.
type RequestResult struct {
	Outcome        Outcome            `json:"outcome"`
	RequestID      primitive.ObjectID `json:"request_id,omitempty"`
	AlreadyPending bool               `json:"already_pending,omitempty"`
}

// PendingRequest is a pending join request with the requester's identity.
type PendingRequest struct {
	ID        primitive.ObjectID `json:"id"`
	UserID    primitive.ObjectID `json:"user_id"`
	FullName  string             `json:"full_name"`
	Email     string             `json:"email"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// banReentry files a pending request for a banned user and refuses entry.
func (e *Engine) banReentry(ctx context.Context, groupID, userID primitive.ObjectID) error {
	if _, err := e.requests.OpenPending(ctx, groupID, userID, e.now()); err != nil {
		return apperr.Wrap(err, "file re-entry request")
	}
	return apperr.Denied("you are banned from this group; a join request is now awaiting owner approval")
}

// EnsureNotBanned applies the ban re-entry rule when userID is banned from
// the group and returns nil otherwise.
func (e *Engine) EnsureNotBanned(ctx context.Context, groupID, userID primitive.ObjectID) error {
	g, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.IsBanned(userID) {
		return e.banReentry(ctx, g.ID, userID)
	}
	return nil
}

// JoinOpen adds userID to an open group. Joining twice is not an error.
func (e *Engine) JoinOpen(ctx context.Context, groupID, userID primitive.ObjectID) (Outcome, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		g, err := e.loadGroup(ctx, groupID)
		if err != nil {
			return "", err
		}
		if g.Kind != models.GroupKindOpen {
			return "", apperr.Invalid("group is not open; request to join instead")
		}
		if g.IsBanned(userID) {
			return "", e.banReentry(ctx, g.ID, userID)
		}
		if g.IsMember(userID) {
			return OutcomeAlreadyMember, nil
		}
		if g.IsFull() {
			return "", apperr.Full()
		}

		err = e.groups.AddMember(ctx, g.ID, userID)
		if errors.Is(err, groupstore.ErrStale) {
			continue
		}
		if err != nil {
			return "", apperr.Wrap(err, "join group")
		}
		return OutcomeJoined, nil
	}
	return "", errContended
}

// RequestJoinPrivate files (or reopens) a pending join request for a
// private group.
func (e *Engine) RequestJoinPrivate(ctx context.Context, groupID, userID primitive.ObjectID) (RequestResult, error) {
	g, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return RequestResult{}, err
	}
	if g.Kind != models.GroupKindPrivate {
		return RequestResult{}, apperr.Invalid("group is not private; join it directly")
	}
	if g.IsMember(userID) {
		return RequestResult{Outcome: OutcomeAlreadyMember}, nil
	}
	if g.IsBanned(userID) {
		return RequestResult{}, e.banReentry(ctx, g.ID, userID)
	}

	now := e.now()
	last, ok, err := e.leaves.Latest(ctx, g.ID, userID)
	if err != nil {
		return RequestResult{}, apperr.Wrap(err, "load leave history")
	}
	if ok {
		if left := CooldownPeriod - now.Sub(last.LeftAt); left > 0 {
			return RequestResult{}, apperr.Cooldown(int(math.Ceil(left.Hours())))
		}
	}

	up, err := e.requests.OpenPending(ctx, g.ID, userID, now)
	if err != nil {
		return RequestResult{}, apperr.Wrap(err, "open join request")
	}
	return RequestResult{
		Outcome:        OutcomePending,
		RequestID:      up.Request.ID,
		AlreadyPending: up.AlreadyPending(),
	}, nil
}

// ListPendingRequests returns the group's pending requests, most recent first.
func (e *Engine) ListPendingRequests(ctx context.Context, groupID, callerID primitive.ObjectID) ([]PendingRequest, error) {
	g, err := e.loadOwned(ctx, groupID, callerID, "view join requests")
	if err != nil {
		return nil, err
	}
	reqs, err := e.requests.ListPending(ctx, g.ID)
	if err != nil {
		return nil, apperr.Wrap(err, "list join requests")
	}

	ids := make([]primitive.ObjectID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.UserID)
	}
	who, err := e.users.Identities(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(err, "load requesters")
	}

	out := make([]PendingRequest, 0, len(reqs))
	for _, r := range reqs {
		id := who[r.UserID]
		out = append(out, PendingRequest{
			ID:        r.ID,
			UserID:    r.UserID,
			FullName:  id.FullName,
			Email:     id.Email,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

// DecideRequest approves or declines a pending request. Only one decision
// per request cycle succeeds; later ones get a Conflict carrying the status.
func (e *Engine) DecideRequest(ctx context.Context, requestID, callerID primitive.ObjectID, decision string) (models.JoinRequest, error) {
	decision = normalize.Kind(decision)
	if decision != DecisionApprove && decision != DecisionDecline {
		return models.JoinRequest{}, apperr.Invalid("decision must be %q or %q", DecisionApprove, DecisionDecline)
	}

	req, err := e.requests.GetByID(ctx, requestID)
	if errors.Is(err, joinrequeststore.ErrNotFound) {
		return models.JoinRequest{}, apperr.Missing("join request")
	}
	if err != nil {
		return models.JoinRequest{}, apperr.Wrap(err, "load join request")
	}
	g, err := e.loadOwned(ctx, req.GroupID, callerID, "decide join requests")
	if err != nil {
		return models.JoinRequest{}, err
	}
	if req.Status != models.RequestPending {
		return models.JoinRequest{}, apperr.Resolved(req.Status)
	}

	if decision == DecisionDecline {
		out, err := e.requests.Transition(ctx, req.ID, models.RequestDeclined, e.now())
		if err != nil {
			return models.JoinRequest{}, e.transitionFailed(ctx, req.ID, err)
		}
		return out, nil
	}

	if !g.IsMember(req.UserID) && g.IsFull() {
		return models.JoinRequest{}, apperr.Full()
	}
	var (
		out              models.JoinRequest
		transErr, addErr error
	)
	err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		transErr, addErr = nil, nil
		var err error
		out, err = e.requests.Transition(ctx, req.ID, models.RequestApproved, e.now())
		if err != nil {
			transErr = err
			return err
		}
		e.afterFirstWrite()

		wctx, cancel := settle(ctx)
		defer cancel()
		addErr = e.groups.UnbanAndAdd(wctx, g.ID, req.UserID)
		return addErr
	})
	switch {
	case err == nil:
		return out, nil
	case transErr != nil:
		return models.JoinRequest{}, e.transitionFailed(ctx, req.ID, transErr)
	case addErr == nil:
		return models.JoinRequest{}, apperr.Wrap(err, "approve join request")
	}

	// The approval did not take effect; give the request back to the owner.
	// Inside a transaction the transition already rolled back and this is a no-op.
	rctx, cancel := settle(ctx)
	defer cancel()
	if err := e.requests.Revert(rctx, req.ID, models.RequestApproved, e.now()); err != nil {
		e.log.Error("revert approved join request failed",
			zap.String("request_id", req.ID.Hex()), zap.Error(err))
	}
	if !errors.Is(addErr, groupstore.ErrStale) {
		return models.JoinRequest{}, apperr.Wrap(addErr, "add approved member")
	}
	if _, err := e.loadGroup(rctx, g.ID); err != nil {
		return models.JoinRequest{}, err
	}
	return models.JoinRequest{}, apperr.Full()
}

// transitionFailed explains a lost status compare-and-set.
func (e *Engine) transitionFailed(ctx context.Context, requestID primitive.ObjectID, err error) error {
	if !errors.Is(err, joinrequeststore.ErrNotPending) {
		return apperr.Wrap(err, "decide join request")
	}
	cur, gerr := e.requests.GetByID(ctx, requestID)
	if gerr != nil || cur.Status == models.RequestPending {
		return apperr.New(apperr.Conflict, "request was decided concurrently")
	}
	return apperr.Resolved(cur.Status)
}
