package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/chunqiusha/cardforge/internal/compose"
	"github.com/chunqiusha/cardforge/internal/images"
	"github.com/chunqiusha/cardforge/internal/models"
	"github.com/chunqiusha/cardforge/internal/storage"
	"github.com/google/uuid"
)

type Handler struct {
	previewStore *storage.PreviewStore
	compositor   *compose.Compositor
	acquirer     *images.Acquirer
	previewDir   string
}

func New(compositor *compose.Compositor, acquirer *images.Acquirer, previewDir string) *Handler {
	return &Handler{
		previewStore: storage.New(),
		compositor:   compositor,
		acquirer:     acquirer,
		previewDir:   previewDir,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Preview helpers
func (h *Handler) getPreviewOrError(w http.ResponseWriter, id string) (*models.Preview, bool) {
	preview, exists := h.previewStore.Get(id)
	if !exists {
		h.writeError(w, "Preview not found", http.StatusNotFound)
		return nil, false
	}
	return preview, true
}

func (h *Handler) ensurePreviewDir() error {
	return os.MkdirAll(h.previewDir, 0755)
}

// createPreview composes card over the staged art and stores the result.
func (h *Handler) createPreview(card cards.Card, staged *images.Staged, source string) (*models.Preview, error) {
	composed, err := h.compositor.ComposeFile(card, staged.Path)
	if err != nil {
		recordPreview("failed")
		return nil, err
	}
	if err := staged.Release(); err != nil {
		slog.Warn("Failed to remove staged image", "path", staged.Path, "err", err)
	}

	if err := h.ensurePreviewDir(); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	id := uuid.NewString()
	path := filepath.Join(h.previewDir, id+".png")
	if err := composed.Save(path); err != nil {
		recordPreview("failed")
		return nil, err
	}

	l := composed.Layout
	bounds := composed.Image.Bounds()
	preview := &models.Preview{
		ID:        id,
		Card:      card,
		ImageURL:  "/previews/" + id + ".png",
		ImagePath: path,
		Source:    source,
		Art: models.ArtInfo{
			Format: staged.Format,
			Width:  staged.Width,
			Height: staged.Height,
		},
		Layout: models.LayoutSummary{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Title:      models.RectOf(l.Title),
			Caption:    models.RectOf(l.Caption),
			Art:        models.RectOf(l.Art),
			Name:       models.RectOf(l.Name),
			NameSize:   l.NameSize,
			Glyph:      models.RectOf(l.Glyph),
			GlyphColor: fmt.Sprintf("#%02X%02X%02X", l.GlyphColor.R, l.GlyphColor.G, l.GlyphColor.B),
		},
		CreatedAt: time.Now(),
	}
	for _, line := range l.CaptionLines {
		preview.Layout.CaptionLines = append(preview.Layout.CaptionLines, line.Text)
	}

	h.previewStore.Set(id, preview)
	recordPreview("ok")
	slog.Info("Preview composed", "id", id, "card", card.Name, "source", source)
	return preview, nil
}
