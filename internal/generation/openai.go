package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chunqiusha/cardforge/internal/config"
)

// OpenAIBackend generates images with the OpenAI images API.
type OpenAIBackend struct {
	Model        string
	Size         string
	BaseURL      string
	PromptPrefix string
	HTTPClient   *http.Client
	apiKey       string
}

// NewOpenAIBackend reads the API key from OPENAI_API_KEY.
func NewOpenAIBackend(cfg *config.Config) (*OpenAIBackend, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return &OpenAIBackend{
		Model:        cfg.OpenAI.Model,
		Size:         cfg.OpenAI.Size,
		BaseURL:      strings.TrimRight(cfg.OpenAI.BaseURL, "/"),
		PromptPrefix: cfg.Site.PromptPrefix,
		HTTPClient:   &http.Client{Timeout: cfg.Timeouts.MaxGenerate + cfg.Timeouts.Download},
		apiKey:       apiKey,
	}, nil
}

// Generate requests one image and returns it as a data URL, or as the URL
// the API hands back.
func (o *OpenAIBackend) Generate(ctx context.Context, fragment string) (*Result, error) {
	start := time.Now()
	res := &Result{}
	res.enter(StateInit)

	prompt := fragment
	if p := strings.TrimSpace(o.PromptPrefix); p != "" {
		prompt = p + " " + fragment
	}
	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  o.Model,
		"prompt": prompt,
		"size":   o.Size,
		"n":      1,
	})
	if err != nil {
		return res, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/images/generations", bytes.NewBuffer(requestBody))
	if err != nil {
		return res, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	res.enter(StatePromptSubmitted)
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		res.enter(StateImageNotFound)
		return res, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		res.enter(StateImageNotFound)
		return res, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}
	res.enter(StateGenerationDone)

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
			URL     string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		res.enter(StateImageNotFound)
		return res, fmt.Errorf("failed to decode response body: %w", err)
	}

	res.Elapsed = time.Since(start)
	for _, d := range response.Data {
		switch {
		case d.B64JSON != "":
			res.Ref = ImageRef{URL: "data:image/png;base64," + d.B64JSON, Selector: "openai:" + o.Model}
		case d.URL != "":
			res.Ref = ImageRef{URL: d.URL, Selector: "openai:" + o.Model}
		default:
			continue
		}
		res.enter(StateImageLocated)
		slog.Info("OpenAI image received", "model", o.Model, "elapsed", res.Elapsed.Round(time.Millisecond))
		return res, nil
	}

	res.enter(StateImageNotFound)
	return res, fmt.Errorf("%w: no image data returned from OpenAI", ErrImageNotFound)
}
