// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/huddle/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	ToAll = "all" // MongoDB + zap
	ToDB  = "db"  // MongoDB only
	ToLog = "log" // zap only
	Off   = "off"
)

// Config holds audit logging configuration. Each field is one of
// "all", "db", "log" or "off"; empty means "all".
type Config struct {
	// Auth covers registration and login events.
	Auth string
	// Membership covers group lifecycle and roster changes.
	Membership string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.GroupID != nil {
		fields = append(fields, zap.String("group_id", event.GroupID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so handlers and tests may omit auditing.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryMembership:
		setting = l.config.Membership
	}
	if setting == "" {
		setting = ToAll
	}
	if setting == Off {
		return
	}

	if setting == ToAll || setting == ToLog {
		l.logToZap(event)
	}
	if setting == ToAll || setting == ToDB {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// Registered logs a new account.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventRegistered,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// LoginFailedUserNotFound logs a login for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		Success:       false,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_email": attemptedEmail},
	})
}

// LoginFailedWrongPassword logs a password mismatch.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		Success:       false,
		FailureReason: "wrong password",
	})
}

// LoginFailedUserDisabled logs a login attempt on a disabled account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserDisabled,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		Success:       false,
		FailureReason: "user disabled",
	})
}

// --- Membership Events ---

func (l *Logger) membership(ctx context.Context, r *http.Request, eventType string, actorID, groupID primitive.ObjectID, userID *primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: eventType,
		ActorID:   &actorID,
		GroupID:   &groupID,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   details,
	})
}

// GroupCreated logs a new group.
func (l *Logger) GroupCreated(ctx context.Context, r *http.Request, ownerID, groupID primitive.ObjectID, kind string, capacity int) {
	l.membership(ctx, r, audit.EventGroupCreated, ownerID, groupID, nil, map[string]string{
		"kind":     kind,
		"capacity": strconv.Itoa(capacity),
	})
}

// GroupDeleted logs a deleted group.
func (l *Logger) GroupDeleted(ctx context.Context, r *http.Request, ownerID, groupID primitive.ObjectID) {
	l.membership(ctx, r, audit.EventGroupDeleted, ownerID, groupID, nil, nil)
}

// GroupJoined logs a direct join of an open group.
func (l *Logger) GroupJoined(ctx context.Context, r *http.Request, userID, groupID primitive.ObjectID) {
	l.membership(ctx, r, audit.EventGroupJoined, userID, groupID, &userID, nil)
}

// JoinRequested logs a new or reopened pending request.
func (l *Logger) JoinRequested(ctx context.Context, r *http.Request, userID, groupID, requestID primitive.ObjectID) {
	l.membership(ctx, r, audit.EventJoinRequested, userID, groupID, &userID, map[string]string{
		"request_id": requestID.Hex(),
	})
}

// RequestDecided logs an owner's approve or decline.
func (l *Logger) RequestDecided(ctx context.Context, r *http.Request, ownerID, groupID, userID primitive.ObjectID, approved bool) {
	eventType := audit.EventRequestDeclined
	if approved {
		eventType = audit.EventRequestApproved
	}
	l.membership(ctx, r, eventType, ownerID, groupID, &userID, nil)
}

// GroupLeft logs a voluntary departure.
func (l *Logger) GroupLeft(ctx context.Context, r *http.Request, userID, groupID primitive.ObjectID) {
	l.membership(ctx, r, audit.EventGroupLeft, userID, groupID, &userID, nil)
}

// MemberBanned logs a ban.
func (l *Logger) MemberBanned(ctx context.Context, r *http.Request, ownerID, groupID, targetID primitive.ObjectID) {
	l.membership(ctx, r, audit.EventMemberBanned, ownerID, groupID, &targetID, nil)
}

// OwnerTransferred logs an ownership change.
func (l *Logger) OwnerTransferred(ctx context.Context, r *http.Request, fromID, groupID, toID primitive.ObjectID) {
	l.membership(ctx, r, audit.EventOwnerTransferred, fromID, groupID, &toID, nil)
}

// InviteCreated logs a new invite. The token is never logged.
func (l *Logger) InviteCreated(ctx context.Context, r *http.Request, ownerID, groupID primitive.ObjectID, maxUses int) {
	l.membership(ctx, r, audit.EventInviteCreated, ownerID, groupID, nil, map[string]string{
		"max_uses": strconv.Itoa(maxUses),
	})
}

// InviteRedeemed logs a successful redemption.
func (l *Logger) InviteRedeemed(ctx context.Context, r *http.Request, userID, groupID primitive.ObjectID) {
	l.membership(ctx, r, audit.EventInviteRedeemed, userID, groupID, &userID, nil)
}
