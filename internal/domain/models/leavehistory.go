// internal/domain/models/leavehistory.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LeaveRecord captures a single departure from a private group.
// The most recent LeftAt for a (group, user) pair starts the re-request cooldown.
type LeaveRecord struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	GroupID primitive.ObjectID `bson:"group_id"`
	UserID  primitive.ObjectID `bson:"user_id"`
	LeftAt  time.Time          `bson:"left_at"`
}
