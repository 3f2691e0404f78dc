package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"local.dev/socialfeed/internal/store"
	"local.dev/socialfeed/internal/validate"
)

// GET /stories?userId= lists active stories only.
func HandleListStories(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sts, err := app.Store.ListStories(r.Context(), store.StoryFilter{UserID: r.URL.Query().Get("userId")})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sts)
	}
}

func HandleCreateStory(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ImageURL string `json:"imageUrl"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		img, err := validate.ImageURL(req.ImageURL)
		if err != nil {
			writeError(w, r, err)
			return
		}
		st, err := app.Store.CreateStory(r.Context(), store.StoryInput{UserID: currentViewer(r), ImageURL: img})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	}
}

func HandleGetStory(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := app.Store.GetStory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func HandleUpdateStory(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch store.StoryPatch
		if err := decode(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}
		if patch.ImageURL != nil {
			u, err := validate.ImageURL(*patch.ImageURL)
			if err != nil {
				writeError(w, r, err)
				return
			}
			patch.ImageURL = &u
		}
		st, err := app.Store.UpdateStory(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func HandleDeleteStory(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Store.DeleteStory(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /stories/{id}/viewers marks the story seen by the viewer.
func HandleAddViewer(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := app.Store.AddViewer(r.Context(), chi.URLParam(r, "id"), currentViewer(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
