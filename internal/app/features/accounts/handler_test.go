package accounts_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/huddle/internal/app/features/accounts"
	"github.com/dalemusser/huddle/internal/app/store/audit"
	userstore "github.com/dalemusser/huddle/internal/app/store/users"
	"github.com/dalemusser/huddle/internal/app/system/auditlog"
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/dalemusser/huddle/internal/app/system/indexes"
	"github.com/dalemusser/huddle/internal/domain/models"
	"github.com/dalemusser/huddle/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const testSecret = "test-jwt-secret-must-be-32-chars-long"

type env struct {
	db      *mongo.Database
	handler *accounts.Handler
	router  http.Handler
	sm      *auth.SessionManager
	audit   *audit.Store
}

func newEnv(t *testing.T) (*env, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	sm, err := auth.NewSessionManager(testSecret, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	store := audit.New(db)
	h := accounts.NewHandler(db, sm, auditlog.New(store, zap.NewNop(), auditlog.Config{}), zap.NewNop())
	return &env{
		db:      db,
		handler: h,
		router:  sm.LoadPrincipal(accounts.Routes(h, sm)),
		sm:      sm,
		audit:   store,
	}, ctx
}

type session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

func (e *env) do(t *testing.T, req *http.Request) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) register(t *testing.T, email, name, password string) *testutil.ResponseRecorder {
	t.Helper()
	return e.do(t, testutil.NewRequest(t, http.MethodPost, "/register", map[string]string{
		"email": email, "full_name": name, "password": password,
	}))
}

func TestRegister(t *testing.T) {
	e, ctx := newEnv(t)

	rec := e.register(t, "  Ada@Example.COM ", " Ada  <b>Lovelace</b> ", "correct horse")
	rec.AssertStatus(t, http.StatusCreated)

	var s session
	rec.DecodeJSON(t, &s)
	if s.Token == "" {
		t.Fatal("expected a token")
	}
	if s.User.Email != "ada@example.com" || s.User.FullName != "Ada Lovelace" {
		t.Errorf("user: %+v", s.User)
	}
	if p, err := e.sm.Authenticate(s.Token); err != nil || p.UserID != s.User.ID {
		t.Errorf("token does not authenticate the new user: %v", err)
	}
	rec.AssertNotContains(t, "password")

	n, _ := e.audit.CountByFilter(ctx, audit.QueryFilter{EventType: audit.EventRegistered})
	if n != 1 {
		t.Errorf("audit events: got %d, want 1", n)
	}
}

func TestRegister_Validation(t *testing.T) {
	e, _ := newEnv(t)

	tests := []struct {
		name, email, fullName, password, field string
	}{
		{"bad email", "not-an-email", "Ada", "longenough", "email"},
		{"empty name", "a@example.com", "  ", "longenough", "full_name"},
		{"short password", "a@example.com", "Ada", "short", "password"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.register(t, tc.email, tc.fullName, tc.password)
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertContains(t, tc.field)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e, _ := newEnv(t)
	e.register(t, "ada@example.com", "Ada", "longenough").AssertStatus(t, http.StatusCreated)

	rec := e.register(t, "ADA@example.com", "Other Ada", "longenough")
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "already registered")
}

func TestLogin(t *testing.T) {
	e, ctx := newEnv(t)
	e.register(t, "ada@example.com", "Ada", "correct horse").AssertStatus(t, http.StatusCreated)

	rec := e.do(t, testutil.NewRequest(t, http.MethodPost, "/login", map[string]string{
		"email": "ADA@example.com", "password": "correct horse",
	}))
	rec.AssertStatus(t, http.StatusOK)
	var s session
	rec.DecodeJSON(t, &s)
	if s.Token == "" || s.User.Email != "ada@example.com" {
		t.Errorf("session: %+v", s)
	}

	n, _ := e.audit.CountByFilter(ctx, audit.QueryFilter{EventType: audit.EventLoginSuccess})
	if n != 1 {
		t.Errorf("login audit events: got %d", n)
	}
}

func TestLogin_FailuresAreGeneric(t *testing.T) {
	e, ctx := newEnv(t)
	e.register(t, "ada@example.com", "Ada", "correct horse").AssertStatus(t, http.StatusCreated)

	// A disabled account with the right password.
	e.register(t, "off@example.com", "Off", "correct horse").AssertStatus(t, http.StatusCreated)
	if _, err := e.db.Collection("users").UpdateOne(ctx, bson.M{"email": "off@example.com"},
		bson.M{"$set": bson.M{"status": models.UserStatusDisabled}}); err != nil {
		t.Fatalf("disable user: %v", err)
	}

	tests := []struct{ name, email, password string }{
		{"unknown email", "nobody@example.com", "correct horse"},
		{"wrong password", "ada@example.com", "wrong horse"},
		{"disabled", "off@example.com", "correct horse"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, testutil.NewRequest(t, http.MethodPost, "/login", map[string]string{
				"email": tc.email, "password": tc.password,
			}))
			rec.AssertStatus(t, http.StatusUnauthorized)
			rec.AssertContains(t, "invalid credentials")
		})
	}

	n, _ := e.audit.CountByFilter(ctx, audit.QueryFilter{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword})
	if n != 1 {
		t.Errorf("wrong-password audit events: got %d", n)
	}
}

func TestMe(t *testing.T) {
	e, ctx := newEnv(t)

	rec := e.do(t, testutil.NewRequest(t, http.MethodGet, "/me", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)

	u, err := userstore.New(e.db).Create(ctx, models.User{FullName: "Ada", Email: "ada@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _, err := e.sm.Issue(u.ID, u.Email)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	req := testutil.NewRequest(t, http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = e.do(t, req)
	rec.AssertStatus(t, http.StatusOK)

	var got models.User
	rec.DecodeJSON(t, &got)
	if got.ID != u.ID || got.FullName != "Ada" {
		t.Errorf("me: %+v", got)
	}
}
