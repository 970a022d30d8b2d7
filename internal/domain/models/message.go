// internal/domain/models/message.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one entry in a group's append-only log. Payload is the
// sealed ciphertext produced by the message codec.
type Message struct {
	ID        primitive.ObjectID `bson:"_id"`
	GroupID   primitive.ObjectID `bson:"group_id"`
	SenderID  primitive.ObjectID `bson:"sender_id"`
	Payload   []byte             `bson:"payload"`
	CreatedAt time.Time          `bson:"created_at"`
}
