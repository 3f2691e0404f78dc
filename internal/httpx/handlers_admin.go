package httpx

import "net/http"

// HandleAdminReload drops everything in the store and reseeds it.
func HandleAdminReload(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.Fixtures == nil {
			writeJSON(w, http.StatusConflict, errorBody{Error: "no fixtures configured"})
			return
		}
		if err := app.Store.ReloadFixtures(app.Fixtures, app.Rebase); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
