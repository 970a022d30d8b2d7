package testutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/huddle/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts an active user. The password hash is a placeholder;
// use the accounts handler when a real login is needed.
func (f *Fixtures) CreateUser(ctx context.Context, fullName string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	id := primitive.NewObjectID()
	user := models.User{
		ID:           id,
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Email:        fmt.Sprintf("u%s@example.com", id.Hex()),
		PasswordHash: "x",
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateGroup inserts a group owned by owner with the given extra members.
// It bypasses all engine checks so tests can set up arbitrary rosters.
func (f *Fixtures) CreateGroup(ctx context.Context, name, kind string, capacity int, owner primitive.ObjectID, members ...primitive.ObjectID) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Kind:      kind,
		OwnerID:   owner,
		Capacity:  capacity,
		Members:   append([]primitive.ObjectID{owner}, members...),
		Banned:    []primitive.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// BanUser pushes userID onto a group's ban list and off its roster.
func (f *Fixtures) BanUser(ctx context.Context, groupID, userID primitive.ObjectID) {
	f.t.Helper()

	_, err := f.db.Collection("groups").UpdateByID(ctx, groupID, bson.M{
		"$pull":     bson.M{"members": userID},
		"$addToSet": bson.M{"banned": userID},
	})
	if err != nil {
		f.t.Fatalf("failed to ban test user: %v", err)
	}
}

// RecordLeave appends a leave_history entry at leftAt.
func (f *Fixtures) RecordLeave(ctx context.Context, groupID, userID primitive.ObjectID, leftAt time.Time) {
	f.t.Helper()

	rec := models.LeaveRecord{
		ID:      primitive.NewObjectID(),
		GroupID: groupID,
		UserID:  userID,
		LeftAt:  leftAt,
	}
	if _, err := f.db.Collection("leave_history").InsertOne(ctx, rec); err != nil {
		f.t.Fatalf("failed to record leave: %v", err)
	}
}
