package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"local.dev/socialfeed/internal/store"
	"local.dev/socialfeed/internal/validate"
)

func HandleListUsers(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := app.Store.ListUsers(r.Context(), store.UserFilter{Query: r.URL.Query().Get("q")})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func HandleSuggestedUsers(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := app.Store.SuggestedUsers(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func HandleCreateUser(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username    string `json:"username"`
			DisplayName string `json:"displayName"`
			Avatar      string `json:"avatar"`
			Bio         string `json:"bio"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		username, err := validate.Text("username", req.Username)
		if err != nil {
			writeError(w, r, err)
			return
		}
		u, err := app.Store.CreateUser(r.Context(), store.UserInput{
			Username:    username,
			DisplayName: req.DisplayName,
			Avatar:      req.Avatar,
			Bio:         req.Bio,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

func HandleGetUser(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := app.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func updateUser(app *AppCtx, w http.ResponseWriter, r *http.Request, id string) {
	var patch store.UserPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if patch.Username != nil {
		name, err := validate.Text("username", *patch.Username)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Username = &name
	}
	u, err := app.Store.UpdateUser(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func HandleUpdateUser(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updateUser(app, w, r, chi.URLParam(r, "id"))
	}
}

func HandleDeleteUser(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Store.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /users/{id}/follow toggles; the response carries isFollowing.
func HandleFollow(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := app.Store.Follow(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}
