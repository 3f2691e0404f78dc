package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"local.dev/socialfeed/internal/store"
	"local.dev/socialfeed/internal/validate"
)

// GET /posts?userId=&q=
func HandleListPosts(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		posts, err := app.Store.ListPosts(r.Context(), store.PostFilter{UserID: q.Get("userId"), Query: q.Get("q")})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

func HandleTrendingPosts(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := app.Store.TrendingPosts(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

// POST /posts {caption, imageUrl}; the author is the viewer.
func HandleCreatePost(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caption  string `json:"caption"`
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
		caption, err := validate.Caption(req.Caption)
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := app.Store.CreatePost(r.Context(), store.PostInput{
			UserID:   currentViewer(r),
			ImageURL: img,
			Caption:  caption,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func HandleGetPost(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := app.Store.GetPost(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func HandleUpdatePost(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch store.PostPatch
		if err := decode(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}
		if patch.Caption != nil {
			c, err := validate.Caption(*patch.Caption)
			if err != nil {
				writeError(w, r, err)
				return
			}
			patch.Caption = &c
		}
		if patch.ImageURL != nil {
			u, err := validate.ImageURL(*patch.ImageURL)
			if err != nil {
				writeError(w, r, err)
				return
			}
			patch.ImageURL = &u
		}
		p, err := app.Store.UpdatePost(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func HandleDeletePost(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Store.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST likes, DELETE unlikes.
func HandleLikePost(app *AppCtx, like bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call := app.Store.UnlikePost
		if like {
			call = app.Store.LikePost
		}
		p, err := call(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func HandleSavePost(app *AppCtx, save bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call := app.Store.UnsavePost
		if save {
			call = app.Store.SavePost
		}
		p, err := call(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func HandlePostComments(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := app.Store.GetPost(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		cs, err := app.Store.ListComments(r.Context(), store.CommentFilter{PostID: id})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cs)
	}
}

// POST /posts/{id}/comments {text} returns the updated post.
func HandleAddComment(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
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
		p, err := app.Store.AddComment(r.Context(), chi.URLParam(r, "id"), text)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}
