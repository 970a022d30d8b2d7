// internal/domain/models/invite.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invite is an owner-issued capability to join a group directly.
// Only the hash of the token is stored; the raw token is shown once.
type Invite struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	TokenHash string             `bson:"token_hash" json:"-"`
	MaxUses   int                `bson:"max_uses" json:"max_uses"`
	Uses      int                `bson:"uses" json:"uses"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
	Disabled  bool               `bson:"disabled" json:"disabled"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
