package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/huddle/internal/app/store/audit"
	"github.com/dalemusser/huddle/internal/app/system/auditlog"
	"github.com/dalemusser/huddle/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID(), "a@example.com")
	logger.GroupJoined(ctx, req, primitive.NewObjectID(), primitive.NewObjectID())
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: auditlog.Off, Membership: auditlog.Off})

	userID := primitive.NewObjectID()
	logger.LoginSuccess(ctx, nil, userID, "a@example.com")

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("expected no events when config is 'off'")
	}
}

func TestLogger_Log_ConfigLogOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Membership: auditlog.ToLog})

	groupID := primitive.NewObjectID()
	logger.GroupDeleted(ctx, nil, primitive.NewObjectID(), groupID)

	events, err := store.GetByGroup(ctx, groupID, 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("expected no stored events when config is 'log'")
	}
}

func TestLogger_MembershipEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Membership: auditlog.ToDB})
	req := httptest.NewRequest("POST", "/groups", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	owner := primitive.NewObjectID()
	member := primitive.NewObjectID()
	groupID := primitive.NewObjectID()

	logger.GroupCreated(ctx, req, owner, groupID, "private", 2)
	logger.RequestDecided(ctx, req, owner, groupID, member, true)
	logger.MemberBanned(ctx, req, owner, groupID, member)

	events, err := store.GetByGroup(ctx, groupID, 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	types := map[string]audit.Event{}
	for _, e := range events {
		types[e.EventType] = e
		if e.Category != audit.CategoryMembership {
			t.Errorf("category: got %q", e.Category)
		}
		if e.IP != "10.0.0.1" {
			t.Errorf("IP: got %q", e.IP)
		}
	}
	created, ok := types[audit.EventGroupCreated]
	if !ok || created.Details["kind"] != "private" || created.Details["capacity"] != "2" {
		t.Errorf("group_created details: %+v", created.Details)
	}
	banned, ok := types[audit.EventMemberBanned]
	if !ok || banned.UserID == nil || *banned.UserID != member {
		t.Errorf("member_banned target: %+v", banned)
	}
	if _, ok := types[audit.EventRequestApproved]; !ok {
		t.Error("expected request_approved event")
	}
}

func TestLogger_LoginFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: auditlog.ToAll})
	req := httptest.NewRequest("POST", "/auth/login", nil)

	userID := primitive.NewObjectID()
	logger.LoginFailedWrongPassword(ctx, req, userID)

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Success {
		t.Error("expected Success=false")
	}
	if events[0].FailureReason != "wrong password" {
		t.Errorf("FailureReason: got %q", events[0].FailureReason)
	}
}

func TestGetClientIP_RemoteAddr(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{})
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "192.0.2.7:5555"

	userID := primitive.NewObjectID()
	logger.Registered(ctx, req, userID, "a@example.com")

	events, _ := store.GetByUser(ctx, userID, 10)
	if len(events) != 1 || events[0].IP != "192.0.2.7:5555" {
		t.Errorf("unexpected events: %+v", events)
	}
}
