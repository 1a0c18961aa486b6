package handlers

import (
	"embed"
	"net/http"
	"path/filepath"
	"strings"
)

//go:embed static/index.html
var staticFiles embed.FS

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	if name, ok := strings.CutPrefix(path, "previews/"); ok {
		// Prevent directory traversal attacks
		if name == "" || strings.Contains(name, "..") || filepath.Base(name) != name {
			http.Error(w, "Invalid file path", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, filepath.Join(h.previewDir, name))
		return
	}

	if path != "" && path != "index.html" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	http.ServeFileFS(w, r, staticFiles, "static/index.html")
}
