package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/chunqiusha/cardforge/internal/compose"
	"github.com/chunqiusha/cardforge/internal/images"
	"github.com/chunqiusha/cardforge/internal/models"
)

const maxUploadSize = 10 * 1024 * 1024

// HandleCompose composes a card from an uploaded image or an image URL.
// With ?format=png the card itself is returned instead of the preview record.
func (h *Handler) HandleCompose(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		preview *models.Preview
		ok      bool
	)
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		preview, ok = h.handleURLCompose(w, r)
	} else {
		preview, ok = h.handleFileCompose(w, r)
	}
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "png" {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Preview-Id", preview.ID)
		http.ServeFile(w, r, preview.ImagePath)
		return
	}

	h.writeJSON(w, map[string]any{
		"preview_id": preview.ID,
		"image_url":  preview.ImageURL,
		"layout":     preview.Layout,
		"message":    "Successfully composed card",
	})
}

func (h *Handler) handleURLCompose(w http.ResponseWriter, r *http.Request) (*models.Preview, bool) {
	var request struct {
		ImageURL string     `json:"image_url"`
		Card     cards.Card `json:"card"`
	}

	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	if request.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return nil, false
	}

	staged, err := h.acquirer.Acquire(r.Context(), request.ImageURL)
	if err != nil {
		h.writeError(w, "Failed to fetch image: "+err.Error(), acquireStatus(err))
		return nil, false
	}

	return h.compose(w, request.Card, staged, "url")
}

func (h *Handler) handleFileCompose(w http.ResponseWriter, r *http.Request) (*models.Preview, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024*1024)
	file, _, err := r.FormFile("files")
	if err != nil {
		file, _, err = r.FormFile("file")
		if err != nil {
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return nil, false
		}
	}
	defer file.Close()

	card, err := parseCardForm(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	fileData, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}

	if len(fileData) >= maxUploadSize {
		h.writeError(w, "File too large (max 10MB)", http.StatusBadRequest)
		return nil, false
	}

	staged, err := h.stageUpload(r.Context(), fileData)
	if err != nil {
		h.writeError(w, err.Error(), acquireStatus(err))
		return nil, false
	}

	return h.compose(w, card, staged, "upload")
}

func (h *Handler) compose(w http.ResponseWriter, card cards.Card, staged *images.Staged, source string) (*models.Preview, bool) {
	preview, err := h.createPreview(card, staged, source)
	if err != nil {
		staged.Release()
		if errors.Is(err, compose.ErrComposition) {
			h.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		} else {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return nil, false
	}
	return preview, true
}

func acquireStatus(err error) int {
	switch {
	case errors.Is(err, images.ErrUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, images.ErrDownload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
