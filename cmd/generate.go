package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/chunqiusha/cardforge/internal/assets"
	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/chunqiusha/cardforge/internal/compose"
	"github.com/chunqiusha/cardforge/internal/config"
	"github.com/chunqiusha/cardforge/internal/generation"
	"github.com/chunqiusha/cardforge/internal/images"
	"github.com/chunqiusha/cardforge/internal/pipeline"
	"github.com/chunqiusha/cardforge/internal/report"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var (
		cardsPath string
		startFrom int
		only      int
		delay     time.Duration
		headless  bool
		backend   string
		output    string
		reportDir string
		metrics   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate artwork and compose every card in a card list",
		Long: `Runs the card list through the generator one card at a time.

The browser backend reuses one Chrome profile for the whole run. When the site
asks to sign in, the run pauses until you confirm in the terminal. A card that
fails is recorded and the run moves on; losing the browser stops the run.`,
		Example: `  # Generate all cards
  cardforge generate --cards cards.json

  # Resume from card 12
  cardforge generate --cards cards.json --start-from 12

  # Generate a single card with the Gemini API
  cardforge generate --only 3 --backend gemini`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("delay") {
				cfg.Delay = delay
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}
			if output != "" {
				cfg.Paths.Output = output
			}
			if reportDir == "" {
				reportDir = cfg.Paths.Output
			}

			list, err := cards.NewLoader(cardsPath).Load()
			if err != nil {
				return err
			}

			compositor, err := newCompositor(cfg)
			if err != nil {
				return err
			}

			if metrics != "" {
				addr, stop, err := startMetricsServer(metrics)
				if err != nil {
					return err
				}
				defer stop()
				slog.Info("Serving run metrics", "url", "http://"+addr+"/metrics")
			}

			generator, closeGenerator, err := newGenerator(cmd, cfg, backend)
			if err != nil {
				return err
			}
			defer closeGenerator()

			runner := &pipeline.Runner{
				Generator: generator,
				Acquirer:  images.NewAcquirer(cfg.Site.ImageHost, cfg.Paths.Scratch, cfg.Timeouts.Download),
				Composer:  compositor,
				OutputDir: cfg.Paths.Output,
				Delay:     cfg.Delay,
			}

			summary, runErr := runner.Run(cmd.Context(), list, pipeline.Options{StartFrom: startFrom, Only: only})
			if summary == nil {
				return runErr
			}

			printSummary(cmd.OutOrStdout(), summary)
			path, err := report.SaveRunSummary(report.RunConfig{
				Cards:     cardsPath,
				Backend:   backend,
				Output:    cfg.Paths.Output,
				StartFrom: startFrom,
				Only:      only,
			}, summary, reportDir)
			if err != nil {
				slog.Error("Failed to save run summary", "err", err)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "\nRun summary saved to: %s\n", path)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&cardsPath, "cards", "cards.json", "Card list (.json, .jsonl, .yaml or .parquet)")
	cmd.Flags().IntVar(&startFrom, "start-from", 1, "1-based card number to start from")
	cmd.Flags().IntVar(&only, "only", 0, "Generate only this 1-based card number")
	cmd.Flags().DurationVar(&delay, "delay", 5*time.Second, "Pause between cards")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run Chrome without a window")
	cmd.Flags().StringVar(&backend, "backend", "browser", "Image generator (browser, gemini or openai)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (overrides paths.output)")
	cmd.Flags().StringVar(&metrics, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "Where to write the YAML run summary (defaults to the output directory)")

	return cmd
}

func newCompositor(cfg *config.Config) (*compose.Compositor, error) {
	layers, err := assets.LoadLayers(cfg.Paths.Assets)
	if err != nil {
		return nil, err
	}
	return compose.New(layers, compose.OptionsFromConfig(cfg))
}

func newController(cmd *cobra.Command, cfg *config.Config) *generation.Controller {
	jar := assets.NewCookieJar(cfg.Paths.CookieFile)
	confirmer := generation.NewConsoleConfirmer(os.Stdin, cmd.OutOrStdout())
	return generation.NewController(cfg, generation.ChromeOpener(cfg, jar), confirmer)
}

func newGenerator(cmd *cobra.Command, cfg *config.Config, backend string) (pipeline.Generator, func(), error) {
	switch backend {
	case "browser":
		controller := newController(cmd, cfg)
		return controller, func() {
			if err := controller.Close(); err != nil {
				slog.Warn("Failed to close browser", "err", err)
			}
		}, nil
	case "gemini":
		g, err := generation.NewGeminiBackend(cfg)
		if err != nil {
			return nil, nil, err
		}
		return g, func() {}, nil
	case "openai":
		o, err := generation.NewOpenAIBackend(cfg)
		if err != nil {
			return nil, nil, err
		}
		return o, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (supported: browser, gemini, openai)", backend)
	}
}

func printSummary(w io.Writer, summary *pipeline.Summary) {
	fmt.Fprintln(w, "\n========================================")
	fmt.Fprintln(w, "Generation Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Total Cards:        %d\n", summary.Total)
	fmt.Fprintf(w, "Skipped:            %d\n", summary.Skipped)
	fmt.Fprintf(w, "Succeeded:          %d\n", summary.Succeeded)
	fmt.Fprintf(w, "Failed:             %d\n", summary.Failed)
	if summary.Aborted {
		fmt.Fprintln(w, "Run stopped early.")
	}

	if summary.Failed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failed Cards:")
		for _, o := range summary.Outcomes {
			if !o.OK {
				fmt.Fprintf(w, "  #%d %s [%s] %s\n", o.Index, o.Name, o.Stage, o.Error)
			}
		}
	}
	fmt.Fprintln(w, "========================================")
}
