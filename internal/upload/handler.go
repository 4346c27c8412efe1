package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/utils"
)

const MaxFileSize = 10 << 20

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var allowedFolders = map[string]bool{
	"events":    true,
	"profiles":  true,
	"portfolio": true,
	"avatars":   true,
}

type Handler struct {
	Store  Store
	Logger *logger.Logger
}

// Upload accepts a multipart "file" field and proxies it to the image host.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	if h.Store == nil {
		utils.WriteError(w, h.Logger, apperr.BadRequest("Uploads are not configured"))
		return
	}

	// leave room for multipart framing and the folder field
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, h.Logger, apperr.TooLarge("File exceeds the 10MB limit"))
			return
		}
		utils.WriteError(w, h.Logger, apperr.BadRequest("Multipart field 'file' is required"))
		return
	}
	defer file.Close()

	if header.Size > MaxFileSize {
		utils.WriteError(w, h.Logger, apperr.TooLarge("File exceeds the 10MB limit"))
		return
	}

	folder := r.FormValue("folder")
	if folder == "" {
		folder = "events"
	}
	if !allowedFolders[folder] {
		utils.WriteError(w, h.Logger, apperr.Validation(map[string]string{
			"folder": "must be one of: events profiles portfolio avatars",
		}))
		return
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		utils.WriteError(w, h.Logger, fmt.Errorf("read upload: %w", err))
		return
	}
	head = head[:n]

	contentType := mimetype.Detect(head).String()
	if !allowedTypes[contentType] {
		h.Logger.Warn("UPLOAD", fmt.Sprintf("Rejected %s upload from %s", contentType, id.UserID))
		utils.WriteError(w, h.Logger, apperr.Unsupported("Only JPEG, PNG, WebP and GIF images are allowed"))
		return
	}

	result, err := h.Store.Upload(r.Context(), io.MultiReader(bytes.NewReader(head), file), folder)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	h.Logger.Info("UPLOAD", fmt.Sprintf("User %s uploaded %s (%d bytes)", id.UserID, result.PublicID, header.Size))
	utils.WriteJSON(w, http.StatusCreated, result)
}
