package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"local.dev/socialfeed/internal/store"
	"local.dev/socialfeed/internal/validate"
)

// GET /conversations, most recent activity first.
func HandleConversations(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs, err := app.Store.ListConversations(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	}
}

// POST /conversations {userId} opens (or reuses) a conversation.
func HandleStartConversation(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"userId"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.UserID == "" {
			writeError(w, r, &validate.Error{Field: "userId", Message: "required"})
			return
		}
		c, err := app.Store.StartConversation(r.Context(), req.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func HandleGetConversation(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := app.Store.GetConversation(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func HandleMessages(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := app.Store.Messages(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

type uploadBody struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"` // base64 in JSON
}

func (u *uploadBody) upload() *validate.Upload {
	if u == nil {
		return nil
	}
	return &validate.Upload{Name: u.Name, ContentType: u.ContentType, Data: u.Data}
}

// POST /conversations/{id}/messages {content, attachment?}
func HandleSendMessage(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 16<<20)
		var req struct {
			Content    string      `json:"content"`
			Attachment *uploadBody `json:"attachment"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		content, att, err := validate.Message(req.Content, req.Attachment.upload())
		if err != nil {
			writeError(w, r, err)
			return
		}
		m, err := app.Store.SendMessage(r.Context(), chi.URLParam(r, "id"), store.MessageInput{
			Content:    content,
			Attachment: att,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func HandleMarkConversationRead(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Store.MarkConversationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleUnreadCount(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := app.Store.UnreadCount(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unreadCount": n})
	}
}

// GET /messages?q=
func HandleSearchMessages(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := app.Store.SearchMessages(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func HandleDeleteMessage(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Store.DeleteMessage(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
