// Package membership owns the group membership state machine: groups,
// join requests, invites and leave history.
//
// Every operation takes the acting user explicitly. Roster changes are
// conditional single-document writes; when a write's precondition no longer
// holds the operation re-reads the group and re-runs its checks, so the
// caller always gets the error that matches the current state.
package membership

import (
	"context"
	"errors"
	"time"

	groupstore "github.com/dalemusser/huddle/internal/app/store/groups"
	invitestore "github.com/dalemusser/huddle/internal/app/store/invites"
	joinrequeststore "github.com/dalemusser/huddle/internal/app/store/joinrequests"
	leavestore "github.com/dalemusser/huddle/internal/app/store/leavehistory"
	userstore "github.com/dalemusser/huddle/internal/app/store/users"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/timeouts"
	"github.com/dalemusser/huddle/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// CooldownPeriod is how long a user must wait after leaving a private group
// before requesting to join it again.
const CooldownPeriod = 48 * time.Hour

// Invite limits.
const (
	DefaultInviteMaxUses = 1
	DefaultInviteMinutes = 60
	MaxInviteMinutes     = 30 * 24 * 60
)

// maxAttempts bounds the re-read/re-check loop around a conditional write.
const maxAttempts = 3

// Outcome is the non-error result of an idempotent operation.
type Outcome string

const (
	OutcomeJoined        Outcome = "joined"
	OutcomeAlreadyMember Outcome = "already_member"
	OutcomePending       Outcome = "pending"
	OutcomeBanned        Outcome = "banned"
	OutcomeAlreadyBanned Outcome = "already_banned"
)

// Engine implements the membership operations on top of the stores.
type Engine struct {
	db       *mongo.Database
	groups   *groupstore.Store
	requests *joinrequeststore.Store
	invites  *invitestore.Store
	leaves   *leavestore.Store
	users    *userstore.Store
	log      *zap.Logger

	// Now is the clock used for cooldowns, request timestamps and invite expiry.
	Now func() time.Time
	// MaxInviteMinutes caps CreateInvite's expiry.
	MaxInviteMinutes int

	// betweenWrites runs after the first write of a multi-collection
	// operation. Nil outside tests.
	betweenWrites func()
}

// New wires an Engine to db.
func New(db *mongo.Database, logger *zap.Logger) *Engine {
	return &Engine{
		db:               db,
		groups:           groupstore.New(db),
		requests:         joinrequeststore.New(db),
		invites:          invitestore.New(db),
		leaves:           leavestore.New(db),
		users:            userstore.New(db),
		log:              logger,
		Now:              func() time.Time { return time.Now().UTC() },
		MaxInviteMinutes: MaxInviteMinutes,
	}
}

var errContended = apperr.New(apperr.Conflict, "group changed concurrently; retry")

func (e *Engine) now() time.Time { return e.Now().UTC() }

func (e *Engine) afterFirstWrite() {
	if e.betweenWrites != nil {
		e.betweenWrites()
	}
}

// settle returns a context for a write that must follow one already made.
// It outlives the caller's deadline and keeps ctx's values, including any
// transaction session.
func settle(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
}

func (e *Engine) loadGroup(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	g, err := e.groups.GetByID(ctx, id)
	if errors.Is(err, groupstore.ErrNotFound) {
		return models.Group{}, apperr.Missing("group")
	}
	if err != nil {
		return models.Group{}, apperr.Wrap(err, "load group")
	}
	return g, nil
}

func (e *Engine) loadOwned(ctx context.Context, groupID, callerID primitive.ObjectID, action string) (models.Group, error) {
	g, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if g.OwnerID != callerID {
		return models.Group{}, apperr.Denied("only the group owner can %s", action)
	}
	return g, nil
}

// RequireMember returns the group when userID is on its roster.
func (e *Engine) RequireMember(ctx context.Context, groupID, userID primitive.ObjectID) (models.Group, error) {
	g, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !g.IsMember(userID) {
		return models.Group{}, apperr.Denied("you are not a member of this group")
	}
	return g, nil
}

// RequireOwner returns the group when userID owns it.
func (e *Engine) RequireOwner(ctx context.Context, groupID, userID primitive.ObjectID) (models.Group, error) {
	return e.loadOwned(ctx, groupID, userID, "view group activity")
}
