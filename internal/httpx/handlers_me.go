package httpx

import (
	"net/http"
)

// GET /me returns the viewer's own profile.
func HandleMe(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := app.Store.GetUser(r.Context(), currentViewer(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func HandleUpdateMe(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updateUser(app, w, r, currentViewer(r))
	}
}
