// internal/app/features/groups/handler.go
package groups

import (
	"net/http"

	uierrors "github.com/dalemusser/huddle/internal/app/features/errors"
	"github.com/dalemusser/huddle/internal/app/membership"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/auditlog"
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature.
// Every route calls exactly one membership operation with the signed-in
// caller passed explicitly.
type Handler struct {
	Engine   *membership.Engine
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs a groups Handler. It is called from the bootstrap
// BuildHandler function.
func NewHandler(engine *membership.Engine, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Engine:   engine,
		AuditLog: audit,
		ErrLog:   uierrors.NewErrorLogger(logger),
		Log:      logger,
	}
}

// caller returns the signed-in user. Routes are mounted behind
// RequireSignedIn, so the principal is always present.
func caller(r *http.Request) primitive.ObjectID {
	p, _ := auth.CurrentPrincipal(r)
	return p.UserID
}

// idParam parses a hex ObjectID URL parameter.
func idParam(r *http.Request, key, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, key))
	if err != nil {
		return primitive.NilObjectID, apperr.Invalid("invalid %s id", what)
	}
	return id, nil
}
