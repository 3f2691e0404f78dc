package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires every route. origins feeds the CORS allow list.
func NewRouter(app *AppCtx, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Group(func(r chi.Router) {
		r.Use(WithAuth(app))

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", HandleListPosts(app))
			r.Post("/", HandleCreatePost(app))
			r.Get("/trending", HandleTrendingPosts(app))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", HandleGetPost(app))
				r.Patch("/", HandleUpdatePost(app))
				r.Delete("/", HandleDeletePost(app))
				r.Post("/like", HandleLikePost(app, true))
				r.Delete("/like", HandleLikePost(app, false))
				r.Post("/save", HandleSavePost(app, true))
				r.Delete("/save", HandleSavePost(app, false))
				r.Get("/comments", HandlePostComments(app))
				r.Post("/comments", HandleAddComment(app))
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", HandleListUsers(app))
			r.Post("/", HandleCreateUser(app))
			r.Get("/suggested", HandleSuggestedUsers(app))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", HandleGetUser(app))
				r.Patch("/", HandleUpdateUser(app))
				r.Delete("/", HandleDeleteUser(app))
				r.Post("/follow", HandleFollow(app))
			})
		})

		r.Route("/stories", func(r chi.Router) {
			r.Get("/", HandleListStories(app))
			r.Post("/", HandleCreateStory(app))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", HandleGetStory(app))
				r.Patch("/", HandleUpdateStory(app))
				r.Delete("/", HandleDeleteStory(app))
				r.Post("/viewers", HandleAddViewer(app))
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/", HandleListComments(app))
			r.Post("/", HandleCreateComment(app))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", HandleGetComment(app))
				r.Patch("/", HandleUpdateComment(app))
				r.Delete("/", HandleDeleteComment(app))
				r.Post("/like", HandleLikeComment(app))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", HandleListNotifications(app))
			r.Post("/", HandleCreateNotification(app))
			r.Post("/read-all", HandleMarkAllNotificationsRead(app))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", HandleGetNotification(app))
				r.Delete("/", HandleDeleteNotification(app))
				r.Post("/read", HandleMarkNotificationRead(app))
			})
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", HandleConversations(app))
			r.Post("/", HandleStartConversation(app))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", HandleGetConversation(app))
				r.Get("/messages", HandleMessages(app))
				r.Post("/messages", HandleSendMessage(app))
				r.Post("/read", HandleMarkConversationRead(app))
				r.Get("/unread", HandleUnreadCount(app))
			})
		})

		r.Get("/messages", HandleSearchMessages(app))
		r.Delete("/messages/{id}", HandleDeleteMessage(app))

		r.Get("/me", HandleMe(app))
		r.Patch("/me", HandleUpdateMe(app))
		r.Post("/uploads", HandleUpload(app))
		r.Post("/admin/reload", HandleAdminReload(app))
	})

	return r
}
