package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"local.dev/socialfeed/internal/store"
	"local.dev/socialfeed/internal/validate"
)

// GET /notifications?unread=1
func HandleListNotifications(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
		ns, err := app.Store.ListNotifications(r.Context(), store.NotificationFilter{UnreadOnly: unread})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ns)
	}
}

func HandleCreateNotification(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"userId"`
			Type   string `json:"type"`
			PostID string `json:"postId"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		typ, err := validate.NotificationType(req.Type)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if req.UserID == "" {
			req.UserID = currentViewer(r)
		}
		n, err := app.Store.CreateNotification(r.Context(), store.NotificationInput{
			UserID: req.UserID,
			Type:   typ,
			PostID: req.PostID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	}
}

func HandleGetNotification(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := app.Store.GetNotification(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func HandleMarkNotificationRead(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := app.Store.MarkNotificationRead(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func HandleMarkAllNotificationsRead(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, err := app.Store.MarkAllNotificationsRead(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ns)
	}
}

func HandleDeleteNotification(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Store.DeleteNotification(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
