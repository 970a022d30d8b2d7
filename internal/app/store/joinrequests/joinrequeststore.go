// internal/app/store/joinrequests/joinrequeststore.go
package joinrequeststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/huddle/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no request matches.
	ErrNotFound = errors.New("join request not found")
	// ErrNotPending is returned by Transition when the request has already
	// left the pending state.
	ErrNotPending = errors.New("join request is not pending")
)

// Upserted describes the outcome of OpenPending.
type Upserted struct {
	Request models.JoinRequest
	// PrevStatus is the status before the call; empty when the request was created.
	PrevStatus string
}

// AlreadyPending reports whether the request was pending before the call.
func (u Upserted) AlreadyPending() bool { return u.PrevStatus == models.RequestPending }

// Store persists one join request per (group_id, user_id). A unique index
// on that pair backs the upserts.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("join_requests")}
}

// OpenPending puts the (group, user) request into the pending state,
// creating it or reopening a resolved one. An already-pending request is
// returned unchanged.
func (s *Store) OpenPending(ctx context.Context, groupID, userID primitive.ObjectID, now time.Time) (Upserted, error) {
	// Two concurrent first-time upserts can race on the unique index; the
	// loser sees a duplicate key and retries against the winner's document.
	for attempt := 0; ; attempt++ {
		out, err := s.openPending(ctx, groupID, userID, now)
		if err != nil && wafflemongo.IsDup(err) && attempt == 0 {
			continue
		}
		return out, err
	}
}

func (s *Store) openPending(ctx context.Context, groupID, userID primitive.ObjectID, now time.Time) (Upserted, error) {
	// A pending request is left untouched.
	existing, err := s.GetByPair(ctx, groupID, userID)
	switch {
	case err == nil && existing.Status == models.RequestPending:
		return Upserted{Request: existing, PrevStatus: models.RequestPending}, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return Upserted{}, err
	}

	newID := primitive.NewObjectID()
	filter := bson.M{
		"group_id": groupID,
		"user_id":  userID,
		"status":   bson.M{"$ne": models.RequestPending},
	}
	update := bson.M{
		"$set": bson.M{"status": models.RequestPending, "updated_at": now},
		"$setOnInsert": bson.M{
			"_id":        newID,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)

	var before models.JoinRequest
	err = s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return Upserted{Request: models.JoinRequest{
			ID:        newID,
			GroupID:   groupID,
			UserID:    userID,
			Status:    models.RequestPending,
			CreatedAt: now,
			UpdatedAt: now,
		}}, nil
	case err != nil:
		// A duplicate key here means another caller made the pair pending
		// between our read and our write.
		return Upserted{}, err
	}

	prev := before.Status
	before.Status = models.RequestPending
	before.UpdatedAt = now
	return Upserted{Request: before, PrevStatus: prev}, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.JoinRequest, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetByPair(ctx context.Context, groupID, userID primitive.ObjectID) (models.JoinRequest, error) {
	return s.findOne(ctx, bson.M{"group_id": groupID, "user_id": userID})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.JoinRequest, error) {
	var jr models.JoinRequest
	if err := s.c.FindOne(ctx, filter).Decode(&jr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.JoinRequest{}, ErrNotFound
		}
		return models.JoinRequest{}, err
	}
	return jr, nil
}

// ListPending returns the group's pending requests, most recent first.
func (s *Store) ListPending(ctx context.Context, groupID primitive.ObjectID) ([]models.JoinRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID, "status": models.RequestPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.JoinRequest{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves a pending request to status. Exactly one concurrent
// caller wins; the others get ErrNotPending.
func (s *Store) Transition(ctx context.Context, id primitive.ObjectID, status string, now time.Time) (models.JoinRequest, error) {
	filter := bson.M{"_id": id, "status": models.RequestPending}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var jr models.JoinRequest
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&jr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.JoinRequest{}, ErrNotPending
		}
		return models.JoinRequest{}, err
	}
	return jr, nil
}

// Revert puts a request that is still in status back to pending. Used when
// the membership write that should follow an approval fails.
func (s *Store) Revert(ctx context.Context, id primitive.ObjectID, status string, now time.Time) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": status},
		bson.M{"$set": bson.M{"status": models.RequestPending, "updated_at": now}},
	)
	return err
}
