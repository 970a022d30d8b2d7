// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings like ports, TLS, logging and CORS; AppConfig is
// everything specific to Huddle.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer sessions
	JWTSecret string        // HS256 signing secret, at least 32 characters
	JWTTTL    time.Duration // Lifetime of issued tokens

	// MessageKey is the secret the message sealing key is derived from.
	// Changing it makes stored messages unreadable.
	MessageKey string

	// InviteMaxMinutes caps how long an invite may stay valid.
	InviteMaxMinutes int

	// AuditLog routes audit events: "all" (db+log), "db", "log" or "off".
	AuditLog string
}
