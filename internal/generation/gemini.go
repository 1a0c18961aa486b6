package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chunqiusha/cardforge/internal/config"
	"github.com/chunqiusha/cardforge/internal/images"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiBackend generates images with the Gemini API instead of a browser.
type GeminiBackend struct {
	Model        string
	PromptPrefix string
	apiKey       string
}

// NewGeminiBackend reads the API key from GEMINI_API_KEY.
func NewGeminiBackend(cfg *config.Config) (*GeminiBackend, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return &GeminiBackend{
		Model:        cfg.Gemini.Model,
		PromptPrefix: cfg.Site.PromptPrefix,
		apiKey:       apiKey,
	}, nil
}

// Generate asks the model for an image and returns it as a data URL.
func (g *GeminiBackend) Generate(ctx context.Context, fragment string) (*Result, error) {
	start := time.Now()
	res := &Result{}
	res.enter(StateInit)

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return res, fmt.Errorf("%w: failed to create new gemini client: %v", ErrSessionFatal, err)
	}
	defer client.Close()
	res.enter(StateSessionOpened)

	model := client.GenerativeModel(g.Model)
	prompt := fragment
	if p := strings.TrimSpace(g.PromptPrefix); p != "" {
		prompt = p + " " + fragment
	}

	res.enter(StatePromptSubmitted)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		res.enter(StateImageNotFound)
		return res, fmt.Errorf("failed to generate content: %w", err)
	}
	res.enter(StateGenerationDone)

	ref, err := imageFromResponse(resp)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.enter(StateImageNotFound)
		return res, err
	}
	res.Ref = ImageRef{URL: ref, Selector: "gemini:" + g.Model}
	res.enter(StateImageLocated)
	slog.Info("Gemini image received", "model", g.Model, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func imageFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.Join(ErrImageNotFound, fmt.Errorf("no candidates returned from Gemini"))
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && strings.HasPrefix(blob.MIMEType, "image/") && len(blob.Data) > 0 {
				return images.DataURL(blob.MIMEType, blob.Data), nil
			}
		}
	}
	return "", fmt.Errorf("%w: Gemini returned no image part", ErrImageNotFound)
}
