// internal/app/features/messages/routes.go
package messages

import (
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/{groupId}", h.HandleSend)
		pr.Get("/{groupId}", h.ServeList)
		pr.Get("/{groupId}/poll", h.ServePoll)
	})
	return r
}
