package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Principal                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// Principal is the authenticated caller. Handlers pass it explicitly into
// every core operation; nothing downstream reads it from ambient state.
type Principal struct {
	UserID primitive.ObjectID
	Email  string
}

type ctxKey string

const principalKey ctxKey = "principal"

// CurrentPrincipal returns the caller & "found?" flag.
func CurrentPrincipal(r *http.Request) (Principal, bool) {
	p, ok := r.Context().Value(principalKey).(Principal)
	return p, ok
}

// WithPrincipal returns r carrying p. Used by the middleware and by tests.
func WithPrincipal(r *http.Request, p Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey, p))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session manager                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// DefaultTTL is used when NewSessionManager receives a non-positive TTL.
const DefaultTTL = 24 * time.Hour

const issuer = "huddle"

// ErrInvalidToken is returned by Authenticate for any unusable token.
var ErrInvalidToken = errors.New("invalid or expired session token")

// SessionManager issues and verifies HS256 bearer tokens carrying a user id.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewSessionManager validates the secret and returns a manager.
func NewSessionManager(secret string, ttl time.Duration, logger *zap.Logger) (*SessionManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is empty; provide ≥%d random chars", MinSecretLength)
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret is %d chars; %d+ required", len(secret), MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger.Info("session manager initialized", zap.Duration("ttl", ttl))
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    logger,
	}, nil
}

// SetClock overrides the time source. Tests only.
func (sm *SessionManager) SetClock(now func() time.Time) { sm.now = now }

// Issue signs a token for the user. The raw token is returned to the client
// and never stored.
func (sm *SessionManager) Issue(userID primitive.ObjectID, email string) (string, time.Time, error) {
	now := sm.now()
	exp := now.Add(sm.ttl)
	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(sm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Authenticate verifies token and returns the principal it carries.
func (sm *SessionManager) Authenticate(token string) (Principal, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return sm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(sm.now),
	)
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	uid, err := primitive.ObjectIDFromHex(c.Subject)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: uid, Email: c.Email}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadPrincipal injects the caller into context when a valid bearer token is
// present. Requests without one continue anonymously.
func (sm *SessionManager) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		p, err := sm.Authenticate(token)
		if err != nil {
			sm.log.Debug("bearer token rejected", zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, WithPrincipal(r, p))
	})
}

// RequireSignedIn ensures there is a principal in context (set by LoadPrincipal).
// Anonymous callers get 401 with a JSON error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentPrincipal(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("WWW-Authenticate", `Bearer realm="huddle"`)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "unauthorized",
			"message": "sign in required",
		})
	})
}

// helpers

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
