package groups_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/huddle/internal/app/features/groups"
	"github.com/dalemusser/huddle/internal/app/membership"
	"github.com/dalemusser/huddle/internal/app/store/audit"
	"github.com/dalemusser/huddle/internal/app/system/auditlog"
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/dalemusser/huddle/internal/app/system/indexes"
	"github.com/dalemusser/huddle/internal/domain/models"
	"github.com/dalemusser/huddle/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	db     *mongo.Database
	fx     *testutil.Fixtures
	router http.Handler
	audit  *audit.Store
}

func newEnv(t *testing.T) (*env, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	sm, err := auth.NewSessionManager("test-jwt-secret-must-be-32-chars-long", time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	store := audit.New(db)
	h := groups.NewHandler(membership.New(db, zap.NewNop()), auditlog.New(store, zap.NewNop(), auditlog.Config{}), zap.NewNop())
	return &env{
		db:     db,
		fx:     testutil.NewFixtures(t, db),
		router: groups.Routes(h, sm),
		audit:  store,
	}, ctx
}

func (e *env) as(t *testing.T, u models.User, method, target string, body any) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(t, method, target, body, u))
	return rec
}

func TestRoutes_RequireSignIn(t *testing.T) {
	e, _ := newEnv(t)
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, testutil.NewRequest(t, http.MethodGet, "/mine", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestCreateAndList(t *testing.T) {
	e, ctx := newEnv(t)
	owner := e.fx.CreateUser(ctx, "Owner")
	friend := e.fx.CreateUser(ctx, "Friend")

	rec := e.as(t, owner, http.MethodPost, "/", map[string]any{
		"name": "Book Club", "kind": "open", "capacity": 5, "member_ids": []string{friend.ID.Hex()},
	})
	rec.AssertStatus(t, http.StatusCreated)
	var g models.Group
	rec.DecodeJSON(t, &g)
	if g.Name != "Book Club" || len(g.Members) != 2 {
		t.Errorf("group: %+v", g)
	}

	var list struct {
		Groups []models.Group `json:"groups"`
	}
	rec = e.as(t, friend, http.MethodGet, "/public", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &list)
	if len(list.Groups) != 1 || list.Groups[0].ID != g.ID {
		t.Errorf("public: %+v", list.Groups)
	}

	rec = e.as(t, friend, http.MethodGet, "/mine", nil)
	rec.DecodeJSON(t, &list)
	if len(list.Groups) != 1 {
		t.Errorf("mine: %+v", list.Groups)
	}

	n, _ := e.audit.CountByFilter(ctx, audit.QueryFilter{EventType: audit.EventGroupCreated})
	if n != 1 {
		t.Errorf("audit events: got %d", n)
	}
}

func TestCreate_BadInput(t *testing.T) {
	e, ctx := newEnv(t)
	owner := e.fx.CreateUser(ctx, "Owner")

	rec := e.as(t, owner, http.MethodPost, "/", map[string]any{"name": "x", "kind": "open", "member_ids": []string{"zzz"}})
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = e.as(t, owner, http.MethodPost, "/", map[string]any{"name": "x", "kind": "secret"})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "validation")

	rec = e.as(t, owner, http.MethodPost, "/", map[string]any{"name": "x", "kind": "open", "member_ids": []string{primitive.NewObjectID().Hex()}})
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestJoinOpen(t *testing.T) {
	e, ctx := newEnv(t)
	owner := e.fx.CreateUser(ctx, "Owner")
	u := e.fx.CreateUser(ctx, "U")
	v := e.fx.CreateUser(ctx, "V")
	g := e.fx.CreateGroup(ctx, "Open", models.GroupKindOpen, 2, owner.ID)

	path := fmt.Sprintf("/%s/join-open", g.ID.Hex())
	rec := e.as(t, u, http.MethodPost, path, nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"outcome":"joined"`)

	rec = e.as(t, u, http.MethodPost, path, nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"outcome":"already_member"`)

	rec = e.as(t, v, http.MethodPost, path, nil)
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "capacity_exceeded")

	rec = e.as(t, v, http.MethodPost, "/not-an-id/join-open", nil)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = e.as(t, v, http.MethodPost, fmt.Sprintf("/%s/join-open", primitive.NewObjectID().Hex()), nil)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestRequestJoin_Cooldown(t *testing.T) {
	e, ctx := newEnv(t)
	owner := e.fx.CreateUser(ctx, "Owner")
	u := e.fx.CreateUser(ctx, "U")
	g := e.fx.CreateGroup(ctx, "Private", models.GroupKindPrivate, 0, owner.ID)
	e.fx.RecordLeave(ctx, g.ID, u.ID, time.Now().Add(-47*time.Hour))

	rec := e.as(t, u, http.MethodPost, fmt.Sprintf("/%s/request-join", g.ID.Hex()), nil)
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, `"remaining_hours":1`)
}

func TestRequestAndDecide(t *testing.T) {
	e, ctx := newEnv(t)
	owner := e.fx.CreateUser(ctx, "Owner")
	u := e.fx.CreateUser(ctx, "U")
	g := e.fx.CreateGroup(ctx, "Private", models.GroupKindPrivate, 0, owner.ID)

	rec := e.as(t, u, http.MethodPost, fmt.Sprintf("/%s/request-join", g.ID.Hex()), nil)
	rec.AssertStatus(t, http.StatusCreated)
	var res struct {
		RequestID      primitive.ObjectID `json:"request_id"`
		Outcome        string             `json:"outcome"`
		AlreadyPending bool               `json:"already_pending"`
	}
	rec.DecodeJSON(t, &res)
	if res.Outcome != "pending" || res.RequestID.IsZero() {
		t.Fatalf("request: %+v", res)
	}

	rec = e.as(t, u, http.MethodPost, fmt.Sprintf("/%s/request-join", g.ID.Hex()), nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"already_pending":true`)

	rec = e.as(t, u, http.MethodGet, fmt.Sprintf("/%s/requests", g.ID.Hex()), nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = e.as(t, owner, http.MethodGet, fmt.Sprintf("/%s/requests", g.ID.Hex()), nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, u.Email)

	decision := fmt.Sprintf("/requests/%s/decision", res.RequestID.Hex())
	rec = e.as(t, owner, http.MethodPost, decision, map[string]string{"decision": "approve"})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"status":"approved"`)

	rec = e.as(t, owner, http.MethodPost, decision, map[string]string{"decision": "decline"})
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, `"status":"approved"`)

	n, _ := e.audit.CountByFilter(ctx, audit.QueryFilter{EventType: audit.EventRequestApproved})
	if n != 1 {
		t.Errorf("approval audit events: got %d", n)
	}
}

func TestLeaveBanishTransferDelete(t *testing.T) {
	e, ctx := newEnv(t)
	owner := e.fx.CreateUser(ctx, "Owner")
	a := e.fx.CreateUser(ctx, "A")
	b := e.fx.CreateUser(ctx, "B")
	g := e.fx.CreateGroup(ctx, "Team", models.GroupKindOpen, 0, owner.ID, a.ID, b.ID)
	base := "/" + g.ID.Hex()

	rec := e.as(t, owner, http.MethodPost, base+"/leave", nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = e.as(t, a, http.MethodPost, base+"/banish", map[string]string{"user_id": b.ID.Hex()})
	rec.AssertStatus(t, http.StatusForbidden)

	rec = e.as(t, owner, http.MethodPost, base+"/banish", map[string]string{})
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = e.as(t, owner, http.MethodPost, base+"/banish", map[string]string{"user_id": b.ID.Hex()})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"outcome":"banned"`)

	rec = e.as(t, b, http.MethodPost, base+"/join-open", nil)
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "awaiting owner approval")

	rec = e.as(t, owner, http.MethodDelete, base, nil)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = e.as(t, owner, http.MethodPost, base+"/transfer", map[string]string{"new_owner_id": a.ID.Hex()})
	rec.AssertStatus(t, http.StatusOK)

	rec = e.as(t, owner, http.MethodPost, base+"/leave", nil)
	rec.AssertStatus(t, http.StatusOK)

	rec = e.as(t, a, http.MethodDelete, base, nil)
	rec.AssertStatus(t, http.StatusOK)

	n, _ := e.db.Collection("groups").CountDocuments(ctx, bson.M{"_id": g.ID})
	if n != 0 {
		t.Error("group not deleted")
	}
}

func TestInvites(t *testing.T) {
	e, ctx := newEnv(t)
	owner := e.fx.CreateUser(ctx, "Owner")
	a := e.fx.CreateUser(ctx, "A")
	b := e.fx.CreateUser(ctx, "B")
	g := e.fx.CreateGroup(ctx, "Private", models.GroupKindPrivate, 0, owner.ID)

	rec := e.as(t, a, http.MethodPost, fmt.Sprintf("/%s/invites", g.ID.Hex()), nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = e.as(t, owner, http.MethodPost, fmt.Sprintf("/%s/invites", g.ID.Hex()), map[string]int{"max_uses": 0})
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = e.as(t, owner, http.MethodPost, fmt.Sprintf("/%s/invites", g.ID.Hex()), nil)
	rec.AssertStatus(t, http.StatusCreated)
	var grant membership.InviteGrant
	rec.DecodeJSON(t, &grant)
	if grant.Token == "" || grant.MaxUses != 1 {
		t.Fatalf("grant: %+v", grant)
	}
	if d := time.Until(grant.ExpiresAt); d < 55*time.Minute || d > 61*time.Minute {
		t.Errorf("default expiry: %v from now", d)
	}

	rec = e.as(t, a, http.MethodPost, "/join-with-invite", map[string]string{"token": grant.Token})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"outcome":"joined"`)

	rec = e.as(t, b, http.MethodPost, "/join-with-invite", map[string]string{"token": grant.Token})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"reason":"exhausted"`)
}
