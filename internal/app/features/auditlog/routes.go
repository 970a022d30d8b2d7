// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the activity feed under the path where this router is
// mounted (typically "/audit" from bootstrap).
//
// Users see events about themselves; group owners see their group's events.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/me", h.ServeMine)
		pr.Get("/groups/{id}", h.ServeGroup)
	})

	return r
}
