// internal/app/store/invites/invitestore.go
package invitestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/huddle/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no invite matches.
	ErrNotFound = errors.New("invite not found")
	// ErrUnusable is returned by Consume when the invite is disabled,
	// expired, or out of uses at the moment of the write.
	ErrUnusable = errors.New("invite is no longer usable")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invites")}
}

// Create persists inv. TokenHash must be set; the raw token never reaches the store.
func (s *Store) Create(ctx context.Context, inv models.Invite) (models.Invite, error) {
	inv.ID = primitive.NewObjectID()
	inv.Uses = 0
	inv.Disabled = false
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		return models.Invite{}, err
	}
	return inv, nil
}

// GetByHash finds the invite whose token hashes to hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (models.Invite, error) {
	var inv models.Invite
	if err := s.c.FindOne(ctx, bson.M{"token_hash": hash}).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Invite{}, ErrNotFound
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// Consume uses up one redemption. The invite disables itself in the same
// write when uses reaches max_uses.
func (s *Store) Consume(ctx context.Context, id primitive.ObjectID, now time.Time) (models.Invite, error) {
	filter := bson.M{
		"_id":        id,
		"disabled":   false,
		"expires_at": bson.M{"$gt": now},
		"$expr":      bson.M{"$lt": bson.A{"$uses", "$max_uses"}},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "uses", Value: bson.D{{Key: "$add", Value: bson.A{"$uses", 1}}}}}}},
		{{Key: "$set", Value: bson.D{{Key: "disabled", Value: bson.D{{Key: "$gte", Value: bson.A{"$uses", "$max_uses"}}}}}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var inv models.Invite
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Invite{}, ErrUnusable
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// Refund gives back one use taken by Consume when the redemption could not
// complete. It re-enables an invite that Consume had just exhausted.
func (s *Store) Refund(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id, "uses": bson.M{"$gt": 0}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "uses", Value: bson.D{{Key: "$subtract", Value: bson.A{"$uses", 1}}}}}}},
		{{Key: "$set", Value: bson.D{{Key: "disabled", Value: false}}}},
	}
	_, err := s.c.UpdateOne(ctx, filter, update)
	return err
}
