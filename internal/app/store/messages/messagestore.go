// internal/app/store/messages/messagestore.go
package messagestore

import (
	"context"
	"time"

	"github.com/dalemusser/huddle/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the append-only message log. Payloads are stored sealed.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("messages")}
}

// Insert appends m, assigning an id.
func (s *Store) Insert(ctx context.Context, m models.Message) (models.Message, error) {
	m.ID = primitive.NewObjectID()
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

func sinceFilter(groupID primitive.ObjectID, since *time.Time) bson.M {
	f := bson.M{"group_id": groupID}
	if since != nil {
		f["created_at"] = bson.M{"$gt": *since}
	}
	return f
}

// ListSince returns the group's messages created after since (all when nil),
// oldest first.
func (s *Store) ListSince(ctx context.Context, groupID primitive.ObjectID, since *time.Time) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, sinceFilter(groupID, since), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountSince counts the group's messages created after since.
func (s *Store) CountSince(ctx context.Context, groupID primitive.ObjectID, since time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, sinceFilter(groupID, &since))
}
