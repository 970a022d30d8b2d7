// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Everything under /groups requires authentication
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// CREATE / LIST
		pr.Post("/", h.HandleCreate)
		pr.Get("/public", h.ServeOpenList)
		pr.Get("/mine", h.ServeMemberList)

		// JOIN
		pr.Post("/{id}/join-open", h.HandleJoinOpen)
		pr.Post("/{id}/request-join", h.HandleRequestJoin)
		pr.Post("/join-with-invite", h.HandleRedeemInvite)

		// REQUESTS (owner)
		pr.Get("/{id}/requests", h.ServePendingRequests)
		pr.Post("/requests/{id}/decision", h.HandleDecision)

		// ROSTER
		pr.Post("/{id}/leave", h.HandleLeave)
		pr.Post("/{id}/banish", h.HandleBanish)
		pr.Post("/{id}/transfer", h.HandleTransfer)

		// INVITES (owner)
		pr.Post("/{id}/invites", h.HandleCreateInvite)

		// DELETE
		pr.Delete("/{id}", h.HandleDelete)
	})

	return r
}
