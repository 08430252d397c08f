package records

import "github.com/go-chi/chi/v5"

// MountRoutes registers the dashboard and manage routes. Callers wrap r with the
// authentication gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)
	r.Get("/{table}/manage", h.Manage)
	r.Post("/{table}/manage", h.Manage)
}
