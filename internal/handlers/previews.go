package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
)

func (h *Handler) HandlePreviews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, h.previewStore.List())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandlePreviewDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/previews/")

	preview, ok := h.getPreviewOrError(w, id)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		h.writeJSON(w, preview)
	case "DELETE":
		h.previewStore.Delete(id)
		if err := os.Remove(preview.ImagePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove preview image", "path", preview.ImagePath, "err", err)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
