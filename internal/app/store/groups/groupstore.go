// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/huddle/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no group matches the id.
	ErrNotFound = errors.New("group not found")
	// ErrStale is returned by conditional writes whose precondition no
	// longer holds. Callers re-read the group to find out why.
	ErrStale = errors.New("group changed concurrently")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// hasRoom matches groups with unlimited capacity or a free seat.
func hasRoom() bson.A {
	return bson.A{
		bson.M{"capacity": 0},
		bson.M{"$expr": bson.M{"$lt": bson.A{bson.M{"$size": "$members"}, "$capacity"}}},
	}
}

func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	if g.Members == nil {
		g.Members = []primitive.ObjectID{}
	}
	g.Banned = []primitive.ObjectID{}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// ListOpen returns every open group sorted by name. The ban list is not loaded.
func (s *Store) ListOpen(ctx context.Context) ([]models.Group, error) {
	opts := options.Find().
		SetProjection(bson.M{"banned": 0}).
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, bson.M{"kind": models.GroupKindOpen}, opts)
}

// ListByMember returns every group whose roster contains userID, sorted by name.
func (s *Store) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, bson.M{"members": userID}, opts)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Group{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMember adds userID when it is not already a member, not banned, and
// the group has room. Returns ErrStale when any of those fail.
func (s *Store) AddMember(ctx context.Context, groupID, userID primitive.ObjectID) error {
	filter := bson.M{
		"_id":     groupID,
		"members": bson.M{"$ne": userID},
		"banned":  bson.M{"$ne": userID},
		"$or":     hasRoom(),
	}
	update := bson.M{
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	return s.updateOne(ctx, filter, update)
}

// UnbanAndAdd removes userID from the ban list and puts it on the roster.
// Succeeds without a seat check when userID is already a member.
func (s *Store) UnbanAndAdd(ctx context.Context, groupID, userID primitive.ObjectID) error {
	filter := bson.M{
		"_id": groupID,
		"$or": append(bson.A{bson.M{"members": userID}}, hasRoom()...),
	}
	update := bson.M{
		"$pull":     bson.M{"banned": userID},
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	return s.updateOne(ctx, filter, update)
}

// Ban moves target from the roster to the ban list. ownerID must still own
// the group and target must still be a member.
func (s *Store) Ban(ctx context.Context, groupID, ownerID, target primitive.ObjectID) error {
	filter := bson.M{
		"_id":      groupID,
		"owner_id": ownerID,
		"members":  target,
	}
	update := bson.M{
		"$pull":     bson.M{"members": target},
		"$addToSet": bson.M{"banned": target},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	return s.updateOne(ctx, filter, update)
}

// RemoveMember takes userID off the roster. The owner cannot be removed.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID primitive.ObjectID) error {
	filter := bson.M{
		"_id":      groupID,
		"members":  userID,
		"owner_id": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$pull": bson.M{"members": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	return s.updateOne(ctx, filter, update)
}

// TransferOwner reassigns the owner from -> to. to must be a member.
func (s *Store) TransferOwner(ctx context.Context, groupID, from, to primitive.ObjectID) error {
	filter := bson.M{
		"_id":      groupID,
		"owner_id": from,
		"members":  to,
	}
	update := bson.M{"$set": bson.M{"owner_id": to, "updated_at": time.Now().UTC()}}
	return s.updateOne(ctx, filter, update)
}

// DeleteIfSole deletes the group when ownerID owns it and is its only member.
func (s *Store) DeleteIfSole(ctx context.Context, groupID, ownerID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{
		"_id":      groupID,
		"owner_id": ownerID,
		"members":  bson.M{"$size": 1},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrStale
	}
	return nil
}

func (s *Store) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}
