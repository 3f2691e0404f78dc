package httpx

import (
	"io"
	"net/http"

	"local.dev/socialfeed/internal/validate"
)

// HandleUpload validates a multipart "file" and returns it as a data URL.
// kind=attachment applies the message attachment rules and returns the
// attachment record; anything else is treated as a post image. Nothing is
// written to disk.
func HandleUpload(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, validate.MaxUploadBytes+(1<<20))
		if err := r.ParseMultipartForm(validate.MaxUploadBytes); err != nil {
			writeError(w, r, &validate.Error{Field: "file", Message: "parse form: " + err.Error()})
			return
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, &validate.Error{Field: "file", Message: "please select a file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, err)
			return
		}
		up := &validate.Upload{Name: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: data}

		if r.FormValue("kind") == "attachment" {
			att, err := validate.Attachment(up)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, att)
			return
		}
		url, err := validate.Image(up)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}
