// Package validate checks user input at the action boundary, before any
// store call is made. Its errors are meant to be shown to the user.
package validate

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"local.dev/socialfeed/internal/models"
)

const (
	MaxTextLength  = 500
	MaxUploadBytes = 10 << 20 // 10MB
)

var attachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"application/pdf": true,
	"text/plain":      true,
}

// Error is a user-facing validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Field + ": " + e.Message }

func fail(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Text trims s and requires 1..MaxTextLength runes.
func Text(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fail(field, "please add a %s", field)
	}
	if n := utf8.RuneCountInString(s); n > MaxTextLength {
		return "", fail(field, "must be at most %d characters (got %d)", MaxTextLength, n)
	}
	return s, nil
}

func Caption(s string) (string, error) { return Text("caption", s) }

func CommentText(s string) (string, error) { return Text("comment", s) }

// Upload is a file picked by the user, before it becomes a URL.
type Upload struct {
	Name        string
	ContentType string // sniffed from Data when empty or generic
	Data        []byte
}

func (u Upload) mime() string {
	ct := u.ContentType
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = http.DetectContentType(u.Data)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// DataURL encodes the upload the way a browser FileReader would.
func (u Upload) DataURL() string {
	return "data:" + u.mime() + ";base64," + base64.StdEncoding.EncodeToString(u.Data)
}

func checkSize(field string, n int) error {
	if n == 0 {
		return fail(field, "file is empty")
	}
	if n > MaxUploadBytes {
		return fail(field, "size must be less than 10MB")
	}
	return nil
}

// Image accepts any image/* upload up to MaxUploadBytes and returns its data URL.
func Image(u *Upload) (string, error) {
	if u == nil {
		return "", fail("image", "please select an image")
	}
	if err := checkSize("image", len(u.Data)); err != nil {
		return "", err
	}
	if !strings.HasPrefix(u.mime(), "image/") {
		return "", fail("image", "please select an image file")
	}
	return u.DataURL(), nil
}

// Attachment accepts the message attachment types and builds the record.
func Attachment(u *Upload) (*models.Attachment, error) {
	if u == nil {
		return nil, nil
	}
	if err := checkSize("attachment", len(u.Data)); err != nil {
		return nil, err
	}
	ct := u.mime()
	if !attachmentTypes[ct] {
		return nil, fail("attachment", "file type %s not supported", ct)
	}
	typ := models.AttachmentFile
	if strings.HasPrefix(ct, "image/") {
		typ = models.AttachmentImage
	}
	return &models.Attachment{
		Name: u.Name,
		Type: typ,
		Size: int64(len(u.Data)),
		URL:  u.DataURL(),
	}, nil
}

// ImageURL accepts an image data URL, an http(s) link or a site-relative path.
func ImageURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", fail("image", "please select an image")
	case strings.HasPrefix(s, "data:image/"),
		strings.HasPrefix(s, "https://"),
		strings.HasPrefix(s, "http://"),
		strings.HasPrefix(s, "/"):
		return s, nil
	}
	return "", fail("image", "please select an image file")
}

// PostInput validates a new post: an image is required and so is a caption.
func PostInput(caption string, image *Upload) (string, string, error) {
	url, err := Image(image)
	if err != nil {
		return "", "", err
	}
	c, err := Caption(caption)
	if err != nil {
		return "", "", err
	}
	return c, url, nil
}

// Message requires content or an attachment. Content is trimmed; an
// attachment alone is fine.
func Message(content string, attachment *Upload) (string, *models.Attachment, error) {
	content = strings.TrimSpace(content)
	if content == "" && attachment == nil {
		return "", nil, fail("message", "type a message or attach a file")
	}
	a, err := Attachment(attachment)
	if err != nil {
		return "", nil, err
	}
	return content, a, nil
}

func NotificationType(t string) (models.NotificationType, error) {
	nt := models.NotificationType(strings.ToLower(strings.TrimSpace(t)))
	if !nt.Valid() {
		return "", fail("type", "must be one of like, comment, follow")
	}
	return nt, nil
}
