package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/chunqiusha/cardforge/internal/images"
)

// stageUpload hands uploaded bytes to the acquirer so uploads get the same
// readability check and staging as generated images.
func (h *Handler) stageUpload(ctx context.Context, fileData []byte) (*images.Staged, error) {
	mimeType := http.DetectContentType(fileData)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: upload is %s, not an image", images.ErrUnreadable, mimeType)
	}

	staged, err := h.acquirer.Acquire(ctx, images.DataURL(mimeType, fileData))
	if err != nil {
		return nil, err
	}
	slog.Info("Upload staged", "path", staged.Path, "format", staged.Format, "width", staged.Width, "height", staged.Height)
	return staged, nil
}

// parseCardForm reads the card from a "card" JSON field, or from individual
// form fields named like the card list keys.
func parseCardForm(r *http.Request) (cards.Card, error) {
	var card cards.Card
	if raw := r.FormValue("card"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &card); err != nil {
			return card, fmt.Errorf("invalid card JSON: %w", err)
		}
		return card, nil
	}

	card = cards.Card{
		Name:        r.FormValue("card_name"),
		Prompt:      r.FormValue("ai_prompt"),
		Description: r.FormValue("description"),
		Group:       r.FormValue("card_group"),
		ColorTheme:  r.FormValue("color_theme"),
		Price:       r.FormValue("price"),
	}
	return card, nil
}
