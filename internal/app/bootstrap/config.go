// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/huddle/internal/app/membership"
	"github.com/dalemusser/huddle/internal/app/system/auditlog"
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/dalemusser/huddle/internal/app/system/codec"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Development defaults. ValidateConfig refuses them in prod.
const (
	devJWTSecret  = "dev-only-jwt-secret-change-me-0123456789"
	devMessageKey = "dev-only-message-key-change-me-0123456789"
)

// appConfigKeys defines the configuration keys for Huddle.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: HUDDLE_MONGO_URI, HUDDLE_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "huddle", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "jwt_secret", Default: devJWTSecret, Desc: "Bearer token signing secret (at least 32 characters)"},
	{Name: "jwt_ttl", Default: "24h", Desc: "Bearer token lifetime (e.g., 24h, 90m)"},

	{Name: "message_key", Default: devMessageKey, Desc: "Message encryption secret (at least 32 characters)"},

	{Name: "invite_max_minutes", Default: membership.MaxInviteMinutes, Desc: "Longest allowed invite lifetime in minutes"},

	{Name: "audit_log", Default: auditlog.ToAll, Desc: "Audit event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, HUDDLE_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "HUDDLE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret: appValues.String("jwt_secret"),
		JWTTTL:    appValues.Duration("jwt_ttl", auth.DefaultTTL),

		MessageKey: appValues.String("message_key"),

		InviteMaxMinutes: appValues.Int("invite_max_minutes"),

		AuditLog: appValues.String("audit_log"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}
	if len(appCfg.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("jwt_secret must be at least %d characters", auth.MinSecretLength)
	}
	if appCfg.JWTTTL <= 0 {
		return fmt.Errorf("jwt_ttl must be positive")
	}
	if len(appCfg.MessageKey) < codec.MinSecretLength {
		return fmt.Errorf("message_key must be at least %d characters", codec.MinSecretLength)
	}
	if appCfg.InviteMaxMinutes < 1 {
		return fmt.Errorf("invite_max_minutes must be at least 1")
	}
	switch appCfg.AuditLog {
	case auditlog.ToAll, auditlog.ToDB, auditlog.ToLog, auditlog.Off:
	default:
		return fmt.Errorf("audit_log must be one of all, db, log, off (got %q)", appCfg.AuditLog)
	}

	if coreCfg != nil && coreCfg.Env == "prod" {
		if appCfg.JWTSecret == devJWTSecret || appCfg.MessageKey == devMessageKey {
			return fmt.Errorf("jwt_secret and message_key must be set in prod")
		}
	}
	return nil
}
