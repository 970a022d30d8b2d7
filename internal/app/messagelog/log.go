// Package messagelog stores and serves group chat messages. Text is sealed
// with the message codec before it reaches the database and opened again
// only for members of the group.
package messagelog

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/huddle/internal/app/membership"
	messagestore "github.com/dalemusser/huddle/internal/app/store/messages"
	userstore "github.com/dalemusser/huddle/internal/app/store/users"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/codec"
	"github.com/dalemusser/huddle/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxTextLength is the longest message accepted by Send, in runes.
const MaxTextLength = 4000

// PollWindow is how far back PollSince looks when the caller gives no cursor.
const PollWindow = 60 * time.Second

// Sent identifies a stored message.
type Sent struct {
	ID        primitive.ObjectID `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
}

// Entry is a decrypted message as returned to members.
type Entry struct {
	ID         primitive.ObjectID `json:"id"`
	SenderID   primitive.ObjectID `json:"sender_id"`
	SenderName string             `json:"sender_name"`
	Text       string             `json:"text"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Poll is the result of PollSince: a count only, never message bodies.
type Poll struct {
	NewMessages int64     `json:"new_messages"`
	LastChecked time.Time `json:"last_checked"`
}

// Log is the message log for all groups.
type Log struct {
	members  *membership.Engine
	messages *messagestore.Store
	users    *userstore.Store
	codec    *codec.Codec
	log      *zap.Logger

	// Now stamps new messages and anchors the default poll window.
	Now func() time.Time
}

// New wires a Log to db. Membership checks go through members.
func New(db *mongo.Database, members *membership.Engine, c *codec.Codec, logger *zap.Logger) *Log {
	return &Log{
		members:  members,
		messages: messagestore.New(db),
		users:    userstore.New(db),
		codec:    c,
		log:      logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Stored timestamps have millisecond precision.
func (l *Log) now() time.Time { return l.Now().UTC().Truncate(time.Millisecond) }

// Send appends text to the group's log on behalf of senderID. The text is
// stored exactly as given; whitespace only counts against emptiness.
func (l *Log) Send(ctx context.Context, groupID, senderID primitive.ObjectID, text string) (Sent, error) {
	if strings.TrimSpace(text) == "" {
		return Sent{}, apperr.Invalid("message text is required")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return Sent{}, apperr.Invalid("message text must be at most %d characters", MaxTextLength)
	}
	if _, err := l.members.RequireMember(ctx, groupID, senderID); err != nil {
		return Sent{}, err
	}

	blob, err := l.codec.Encrypt(text, groupID[:])
	if err != nil {
		return Sent{}, apperr.Wrap(err, "seal message")
	}
	m, err := l.messages.Insert(ctx, models.Message{
		GroupID:   groupID,
		SenderID:  senderID,
		Payload:   blob,
		CreatedAt: l.now(),
	})
	if err != nil {
		return Sent{}, apperr.Wrap(err, "store message")
	}
	return Sent{ID: m.ID, CreatedAt: m.CreatedAt}, nil
}

// List returns the group's messages created after since (all when nil),
// oldest first.
func (l *Log) List(ctx context.Context, groupID, callerID primitive.ObjectID, since *time.Time) ([]Entry, error) {
	if _, err := l.members.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	return l.read(ctx, groupID, since)
}

// PollSince counts messages newer than since, defaulting to the last
// PollWindow, and reports the time of this check.
func (l *Log) PollSince(ctx context.Context, groupID, callerID primitive.ObjectID, since *time.Time) (Poll, error) {
	if _, err := l.members.RequireMember(ctx, groupID, callerID); err != nil {
		return Poll{}, err
	}
	now := l.now()
	if since == nil {
		from := now.Add(-PollWindow)
		since = &from
	}
	n, err := l.messages.CountSince(ctx, groupID, *since)
	if err != nil {
		return Poll{}, apperr.Wrap(err, "count messages")
	}
	return Poll{NewMessages: n, LastChecked: now}, nil
}

func (l *Log) read(ctx context.Context, groupID primitive.ObjectID, since *time.Time) ([]Entry, error) {
	msgs, err := l.messages.ListSince(ctx, groupID, since)
	if err != nil {
		return nil, apperr.Wrap(err, "list messages")
	}

	senders := make([]primitive.ObjectID, 0, len(msgs))
	for _, m := range msgs {
		senders = append(senders, m.SenderID)
	}
	who, err := l.users.Identities(ctx, senders)
	if err != nil {
		return nil, apperr.Wrap(err, "load senders")
	}

	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		text, err := l.codec.Decrypt(m.Payload, groupID[:])
		if err != nil {
			l.log.Error("message failed to open",
				zap.String("message_id", m.ID.Hex()),
				zap.String("group_id", groupID.Hex()),
				zap.Error(err))
			return nil, apperr.Wrap(err, "open message")
		}
		out = append(out, Entry{
			ID:         m.ID,
			SenderID:   m.SenderID,
			SenderName: who[m.SenderID].FullName,
			Text:       text,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}
