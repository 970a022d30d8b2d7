// internal/app/store/leavehistory/leavestore.go
package leavestore

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

// Store is the append-only record of departures from private groups.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("leave_history")}
}

// Append records that userID left groupID at leftAt.
func (s *Store) Append(ctx context.Context, groupID, userID primitive.ObjectID, leftAt time.Time) error {
	_, err := s.c.InsertOne(ctx, models.LeaveRecord{
		ID:      primitive.NewObjectID(),
		GroupID: groupID,
		UserID:  userID,
		LeftAt:  leftAt,
	})
	return err
}

// Latest returns the most recent departure for the pair. ok is false when
// the user has never left the group.
func (s *Store) Latest(ctx context.Context, groupID, userID primitive.ObjectID) (rec models.LeaveRecord, ok bool, err error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "left_at", Value: -1}})
	err = s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.LeaveRecord{}, false, nil
	}
	if err != nil {
		return models.LeaveRecord{}, false, err
	}
	return rec, true, nil
}
