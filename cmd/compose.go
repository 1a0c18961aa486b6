package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/chunqiusha/cardforge/internal/images"
	"github.com/spf13/cobra"
)

func newComposeCmd() *cobra.Command {
	var (
		cardsPath string
		number    int
		card      cards.Card
		out       string
	)

	cmd := &cobra.Command{
		Use:   "compose <image>",
		Short: "Compose one card from an existing image",
		Long: `Composes a single card without the generator, for tuning templates and
layout settings. The image may be a local file or an http(s) or data URL.
The card is taken from the card list by number, or from the flags.`,
		Example: `  # Card 3 of the list over a local image
  cardforge compose art.png --cards cards.json --card 3

  # Ad-hoc card
  cardforge compose art.png --name "铁血诏令" --group 军事卡 --theme 深红 --description "攻击力+2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if number > 0 {
				list, err := cards.NewLoader(cardsPath).Load()
				if err != nil {
					return err
				}
				if number > len(list) {
					return fmt.Errorf("card %d is out of range 1..%d", number, len(list))
				}
				card = list[number-1]
			}

			compositor, err := newCompositor(cfg)
			if err != nil {
				return err
			}

			source := args[0]
			if isRemote(source) {
				acquirer := images.NewAcquirer(cfg.Site.ImageHost, cfg.Paths.Scratch, cfg.Timeouts.Download)
				staged, err := acquirer.Acquire(cmd.Context(), source)
				if err != nil {
					return err
				}
				defer staged.Release()
				source = staged.Path
			}

			composed, err := compositor.ComposeFile(card, source)
			if err != nil {
				return err
			}

			if out == "" {
				out = filepath.Join(cfg.Paths.Output, card.FileName())
			}
			if err := composed.Save(out); err != nil {
				return err
			}
			slog.Info("Card composed", "output", out, "name_size", composed.Layout.NameSize, "caption_lines", len(composed.Layout.CaptionLines))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&cardsPath, "cards", "cards.json", "Card list to pick --card from")
	cmd.Flags().IntVar(&number, "card", 0, "1-based card number in the card list")
	cmd.Flags().StringVar(&card.Name, "name", "", "Card name")
	cmd.Flags().StringVar(&card.Group, "group", "", "Card group")
	cmd.Flags().StringVar(&card.ColorTheme, "theme", "", "Color theme")
	cmd.Flags().StringVar(&card.Description, "description", "", "Card description")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (defaults to <output dir>/<name>.png)")

	return cmd
}

func isRemote(source string) bool {
	for _, prefix := range []string{"http://", "https://", "data:"} {
		if strings.HasPrefix(source, prefix) {
			return true
		}
	}
	return false
}
