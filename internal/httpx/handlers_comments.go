package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"local.dev/socialfeed/internal/store"
	"local.dev/socialfeed/internal/validate"
)

func HandleListComments(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := app.Store.ListComments(r.Context(), store.CommentFilter{PostID: r.URL.Query().Get("postId")})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cs)
	}
}

// POST /comments {postId, text} returns the comment, not the post.
func HandleCreateComment(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PostID string `json:"postId"`
			Text   string `json:"text"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		text, err := validate.CommentText(req.Text)
		if err != nil {
			writeError(w, r, err)
			return
		}
		c, err := app.Store.CreateComment(r.Context(), store.CommentInput{
			PostID: req.PostID,
			UserID: currentViewer(r),
			Text:   text,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func HandleGetComment(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := app.Store.GetComment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func HandleUpdateComment(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch store.CommentPatch
		if err := decode(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}
		if patch.Text != nil {
			t, err := validate.CommentText(*patch.Text)
			if err != nil {
				writeError(w, r, err)
				return
			}
			patch.Text = &t
		}
		c, err := app.Store.UpdateComment(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func HandleDeleteComment(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Store.DeleteComment(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleLikeComment(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := app.Store.LikeComment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}
