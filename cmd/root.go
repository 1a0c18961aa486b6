package cmd

import (
	"log/slog"
	"os"

	"github.com/chunqiusha/cardforge/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cardforge",
		Short: "Trading card generator with AI-generated artwork",
		Long: `cardforge turns a card list into finished trading-card images.

For every card it asks a web-based image generator for artwork by driving a
persistent browser session, downloads the result and composites it with the
template layers, the card name, its group glyph and its description.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (defaults apply when omitted)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newComposeCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newSelectorsCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		if _, err := os.Stat("cardforge.yaml"); err == nil {
			configPath = "cardforge.yaml"
		}
	}
	return config.Load(configPath)
}
