package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of the image size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// UploadImage handles POST /api/images/upload (multipart/form-data, field "file").
//
//	@Summary		Upload an image for use in posts
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"JPEG, PNG, GIF or WebP image"
//	@Success		201		{object}	media.Result
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/upload [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	limit := h.deps.Media.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("File too large. Maximum size: %dMB", limit>>20)))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("No file provided"))
		return
	}
	defer file.Close()

	res, err := h.deps.Media.Upload(r.Context(), file)
	if err != nil {
		writeError(w, err, "image upload failed", slog.String("filename", header.Filename))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// UploadServer serves files written by the local image uploader.
type UploadServer struct {
	root string
}

// NewUploadServer creates a server for files under the absolute path root.
func NewUploadServer(root string) *UploadServer {
	return &UploadServer{root: filepath.Clean(root)}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under root.
func (s *UploadServer) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(s.root, cleaned)
	if !strings.HasPrefix(abs, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes upload directory")
	}
	return abs, nil
}

// ServeFile handles GET <url_prefix>/{filename}.
func (s *UploadServer) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := s.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		notFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, abs)
}
