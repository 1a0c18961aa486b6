package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/chunqiusha/cardforge/internal/handlers"
	"github.com/chunqiusha/cardforge/internal/images"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the card preview server",
		Long: `Starts a small web server for trying artwork against the card templates.

POST an image (multipart upload or JSON with image_url) together with the card
fields to /api/compose and get the composed card back. Composed previews are
listed under /api/previews; Prometheus metrics are served on /metrics.`,
		Example: `  # Start server on default port 8888
  cardforge serve

  # Compose a card from the command line
  curl -F file=@art.png -F card_name=铁血诏令 -F card_group=军事卡 \
    'http://localhost:8888/api/compose?format=png' -o card.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			compositor, err := newCompositor(cfg)
			if err != nil {
				return err
			}
			acquirer := images.NewAcquirer(cfg.Site.ImageHost, cfg.Paths.Scratch, cfg.Timeouts.Download)
			handler := handlers.New(compositor, acquirer, filepath.Join(cfg.Paths.Output, "previews"))

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/compose", handler.HandleCompose)
			mux.HandleFunc("/api/previews", handler.HandlePreviews)
			mux.HandleFunc("/api/previews/", handler.HandlePreviewDetail)
			mux.HandleFunc("/", handler.HandleStatic)
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Card preview server available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
