// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	accountsfeature "github.com/dalemusser/huddle/internal/app/features/accounts"
	auditlogfeature "github.com/dalemusser/huddle/internal/app/features/auditlog"
	groupsfeature "github.com/dalemusser/huddle/internal/app/features/groups"
	healthfeature "github.com/dalemusser/huddle/internal/app/features/health"
	messagesfeature "github.com/dalemusser/huddle/internal/app/features/messages"
	"github.com/dalemusser/huddle/internal/app/membership"
	"github.com/dalemusser/huddle/internal/app/messagelog"
	"github.com/dalemusser/huddle/internal/app/store/audit"
	"github.com/dalemusser/huddle/internal/app/system/auditlog"
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/dalemusser/huddle/internal/app/system/codec"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. Huddle builds the session manager,
// message codec and membership engine once, loads the bearer principal on
// every request, and mounts the feature routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	sessionMgr, err := auth.NewSessionManager(appCfg.JWTSecret, appCfg.JWTTTL, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	msgCodec, err := codec.New(appCfg.MessageKey)
	if err != nil {
		logger.Error("message codec init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase
	auditLogger := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:       appCfg.AuditLog,
		Membership: appCfg.AuditLog,
	})

	engine := membership.New(db, logger)
	engine.MaxInviteMinutes = appCfg.InviteMaxMinutes
	messageLog := messagelog.New(db, engine, msgCodec, logger)

	r := chi.NewRouter()

	// Global auth middleware: loads the bearer principal into context when present.
	r.Use(sessionMgr.LoadPrincipal)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Accounts
	accountsHandler := accountsfeature.NewHandler(db, sessionMgr, auditLogger, logger)
	r.Mount("/auth", accountsfeature.Routes(accountsHandler, sessionMgr))

	// Groups and membership
	groupsHandler := groupsfeature.NewHandler(engine, auditLogger, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

	// Messages
	messagesHandler := messagesfeature.NewHandler(messageLog, logger)
	r.Mount("/messages", messagesfeature.Routes(messagesHandler, sessionMgr))

	// Activity feed backed by the audit store
	auditHandler := auditlogfeature.NewHandler(db, engine, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	return r, nil
}
