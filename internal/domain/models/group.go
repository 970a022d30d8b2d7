// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group kinds.
const (
	GroupKindOpen    = "open"
	GroupKindPrivate = "private"
)

// Group is a chat group and its membership roster.
//
// NOTE:
//   - Members and Banned are embedded so that every membership mutation
//     (capacity-checked add, ban, unban+add, leave, transfer) is a single
//     conditional update on one document.
//   - OwnerID is always an element of Members. Members and Banned never
//     share an element.
//   - Capacity 0 means unlimited; otherwise len(Members) <= Capacity.
type Group struct {
	ID       primitive.ObjectID   `bson:"_id" json:"id"`
	Name     string               `bson:"name" json:"name"`
	NameCI   string               `bson:"name_ci" json:"-"`
	Kind     string               `bson:"kind" json:"kind"` // open | private
	OwnerID  primitive.ObjectID   `bson:"owner_id" json:"owner_id"`
	Capacity int                  `bson:"capacity" json:"capacity"`
	Members  []primitive.ObjectID `bson:"members" json:"members"`
	Banned   []primitive.ObjectID `bson:"banned,omitempty" json:"banned,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsMember reports whether userID is on the roster.
func (g Group) IsMember(userID primitive.ObjectID) bool {
	return containsID(g.Members, userID)
}

// IsBanned reports whether userID is on the ban list.
func (g Group) IsBanned(userID primitive.ObjectID) bool {
	return containsID(g.Banned, userID)
}

// IsFull reports whether the group has reached a nonzero capacity.
func (g Group) IsFull() bool {
	return g.Capacity > 0 && len(g.Members) >= g.Capacity
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
