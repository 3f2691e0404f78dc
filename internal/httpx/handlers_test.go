package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local.dev/socialfeed/internal/models"
	"local.dev/socialfeed/internal/store"
)

var testNow = time.Date(2024, 6, 3, 12, 15, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*AppCtx, http.Handler) {
	t.Helper()
	s := store.New(store.WithLatency(0), store.WithClock(func() time.Time { return testNow }))
	require.NoError(t, s.LoadFixtures(store.Fixtures(), false))
	app := &AppCtx{Store: s, NoAuth: true, Fixtures: store.Fixtures()}
	return app, NewRouter(app, []string{"*"})
}

func do(t *testing.T, h http.Handler, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	_, h := newTestApp(t)
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreatePostThenList(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodPost, "/posts", map[string]string{
		"caption":  "Hello",
		"imageUrl": "data:image/png;base64,AAAA",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[models.Post](t, rec)
	assert.Equal(t, store.DefaultViewer, created.UserID)
	assert.Equal(t, 0, created.Likes)
	assert.NotNil(t, created.Comments)

	rec = do(t, h, http.MethodGet, "/posts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	posts := decodeBody[[]models.Post](t, rec)
	require.Len(t, posts, 7)
	assert.Equal(t, created.ID, posts[0].ID)
}

func TestCreatePostValidation(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodPost, "/posts", map[string]string{"caption": "", "imageUrl": "https://x/y.png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "caption", body.Field)

	rec = do(t, h, http.MethodPost, "/posts", map[string]string{"caption": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "image", decodeBody[errorBody](t, rec).Field)
}

func TestNotFoundMapsTo404(t *testing.T) {
	_, h := newTestApp(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/posts/nope"},
		{http.MethodPost, "/posts/nope/like"},
		{http.MethodGet, "/users/nope"},
		{http.MethodDelete, "/stories/nope"},
		{http.MethodGet, "/conversations/nope/messages"},
		{http.MethodDelete, "/messages/nope"},
	} {
		rec := do(t, h, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
	}
}

func TestLikeAndUnlike(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodPost, "/posts/p_2/like", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 55, decodeBody[models.Post](t, rec).Likes)

	rec = do(t, h, http.MethodDelete, "/posts/p_2/like", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 54, decodeBody[models.Post](t, rec).Likes)
}

func TestAddCommentUsesViewer(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodPost, "/posts/p_1/comments", map[string]string{"text": "Nice!"},
		"Authorization", "Debug u_sam")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeBody[models.Post](t, rec)
	require.Len(t, p.Comments, 3)
	assert.Equal(t, "u_sam", p.Comments[2].UserID)

	rec = do(t, h, http.MethodGet, "/posts/p_1/comments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Comment](t, rec), 3)
}

func TestFollowAndMe(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodPost, "/users/u_ines/follow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[models.User](t, rec).IsFollowing)

	rec = do(t, h, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[models.User](t, rec)
	assert.Equal(t, store.DefaultViewer, me.ID)
	assert.Contains(t, me.Following, "u_ines")

	rec = do(t, h, http.MethodPatch, "/me", map[string]string{"bio": "updated"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "updated", decodeBody[models.User](t, rec).Bio)
}

func TestStoriesAndViewers(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodGet, "/stories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Story](t, rec), 3)

	for range 2 {
		rec = do(t, h, http.MethodPost, "/stories/s_1/viewers", nil, "Authorization", "Debug u_ines")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []string{"u_leo", "u_ines"}, decodeBody[models.Story](t, rec).Viewers)
}

func TestNotificationsReadAll(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodGet, "/notifications?unread=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Notification](t, rec), 3)

	rec = do(t, h, http.MethodPost, "/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Notification](t, rec), 5)

	rec = do(t, h, http.MethodGet, "/notifications?unread=true", nil)
	assert.Empty(t, decodeBody[[]models.Notification](t, rec))

	rec = do(t, h, http.MethodPost, "/notifications", map[string]string{"type": "mention"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageWithAttachment(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodPost, "/conversations/conv_3/messages", map[string]any{
		"content":    "",
		"attachment": map[string]any{"name": "n.txt", "data": []byte("notes")},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decodeBody[models.Message](t, rec)
	require.NotNil(t, m.Attachment)
	assert.Equal(t, models.AttachmentFile, m.Attachment.Type)

	rec = do(t, h, http.MethodPost, "/conversations/conv_3/messages", map[string]any{"content": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/conversations/conv_2/unread", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[map[string]int](t, rec)["unreadCount"])

	rec = do(t, h, http.MethodPost, "/conversations/conv_2/read", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpload(t *testing.T) {
	_, h := newTestApp(t)

	post := func(kind string, name string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		if kind != "" {
			require.NoError(t, mw.WriteField("kind", kind))
		}
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := post("", "a.png", []byte("\x89PNG\r\n\x1a\n0000"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(decodeBody[map[string]string](t, rec)["url"], "data:image/png;base64,"))

	rec = post("", "a.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post("attachment", "a.txt", []byte("hello"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "a.txt", decodeBody[models.Attachment](t, rec).Name)
}

func TestAdminReload(t *testing.T) {
	_, h := newTestApp(t)

	rec := do(t, h, http.MethodDelete, "/posts/p_1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodPost, "/admin/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/posts/p_1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, tok string) (*auth.Token, error) {
	if tok != "good" {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: "u_leo"}, nil
}

func TestFirebaseAuth(t *testing.T) {
	app, _ := newTestApp(t)
	app.NoAuth = false
	app.Auth = fakeVerifier{}
	h := NewRouter(app, []string{"*"})

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/me", nil, "Authorization", "Bearer bad").Code)

	rec := do(t, h, http.MethodGet, "/me", nil, "Authorization", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u_leo", decodeBody[models.User](t, rec).ID)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)
}

func TestDevBearerClaims(t *testing.T) {
	// header.payload.signature; the signature is never checked in dev mode
	tok := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VyX2lkIjoidV9tYXlhIn0.c2ln"
	assert.Equal(t, "u_maya", devClaimsFromBearer("Bearer "+tok))
	assert.Empty(t, devClaimsFromBearer("Bearer nonsense"))

	_, h := newTestApp(t)
	rec := do(t, h, http.MethodGet, "/me", nil, "Authorization", "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u_maya", decodeBody[models.User](t, rec).ID)
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestApp(t)
	req := httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
