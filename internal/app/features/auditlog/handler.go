// internal/app/features/auditlog/handler.go
package auditlog

import (
	uierrors "github.com/dalemusser/huddle/internal/app/features/errors"
	"github.com/dalemusser/huddle/internal/app/membership"
	"github.com/dalemusser/huddle/internal/app/store/audit"
	userstore "github.com/dalemusser/huddle/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Audit  *audit.Store
	Users  *userstore.Store
	Engine *membership.Engine
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs an activity feed handler bound to
// the given Mongo database and membership engine.
func NewHandler(db *mongo.Database, engine *membership.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		Audit:  audit.New(db),
		Users:  userstore.New(db),
		Engine: engine,
		Log:    logger,
		ErrLog: uierrors.NewErrorLogger(logger),
	}
}
