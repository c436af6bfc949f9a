package handlers

import (
	"net/http"

	"server/internal/middleware"
)

// Me echoes the authenticated subject. It exists to exercise the bearer
// token check; image routes themselves are public.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"user": userID})
}
