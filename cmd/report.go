package cmd

import (
	"fmt"
	"time"

	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/chunqiusha/cardforge/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var (
		cardsPath string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the card list as an Excel workbook",
		Long: `Writes an .xlsx workbook with a summary sheet (cards per group with their
glyph and share) and a detail sheet listing every card's name, price, color
theme, prompt and description.`,
		Example: `  cardforge report --cards cards.json --out cards.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			list, err := cards.NewLoader(cardsPath).Load()
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("cards_%s.xlsx", time.Now().Format("20060102_150405"))
			}
			if err := report.ExportWorkbook(list, cfg.Glyphs, out); err != nil {
				return err
			}

			groups := report.GroupCards(list, cfg.Glyphs)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d cards in %d groups to %s\n", len(list), len(groups), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&cardsPath, "cards", "cards.json", "Card list")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Workbook path (defaults to cards_<timestamp>.xlsx)")

	return cmd
}
