package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/chunqiusha/cardforge/internal/browser"
	"github.com/chunqiusha/cardforge/internal/config"
	"github.com/chunqiusha/cardforge/internal/generation"
	"github.com/spf13/cobra"
)

func newSelectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selectors <page.html>",
		Short: "Check the selector chains against a saved page",
		Long: `Evaluates every configured selector chain against an HTML snapshot of the
generation site (for example saved from the browser's DevTools) and reports
which strategy would win. Use it after the site changes its markup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open snapshot: %w", err)
			}
			defer f.Close()

			page, err := browser.ReadSnapshot(cfg.Site.URL, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, chain := range []struct {
				name       string
				strategies []config.Strategy
			}{
				{"sign_in", cfg.Selectors.SignIn},
				{"prompt_input", cfg.Selectors.PromptInput},
				{"indicator", cfg.Selectors.Indicator},
				{"image_container", cfg.Selectors.ImageContainer},
			} {
				if err := reportChain(cmd, out, page, chain.name, chain.strategies); err != nil {
					return err
				}
			}
			return nil
		},
	}

	return cmd
}

func reportChain(cmd *cobra.Command, out io.Writer, page *browser.SnapshotPage, name string, chain []config.Strategy) error {
	fmt.Fprintf(out, "%s:\n", name)
	for _, s := range chain {
		n, err := page.Count(cmd.Context(), s.Selector)
		switch {
		case err != nil:
			fmt.Fprintf(out, "  %-16s error: %v\n", s.Name, err)
		default:
			fmt.Fprintf(out, "  %-16s %d match(es)  %s\n", s.Name, n, s.Selector)
		}
	}

	// a snapshot does not change, so one probe per strategy is enough
	m, err := generation.Resolve(cmd.Context(), page, generation.ProbeOnce(chain), 0)
	if err != nil {
		fmt.Fprintln(out, "  => no strategy matches")
		return nil
	}
	fmt.Fprintf(out, "  => %s\n", m.Strategy.Name)
	if name == "image_container" {
		if src, ok, _ := page.LastAttribute(cmd.Context(), m.Strategy.Selector, "src"); ok {
			fmt.Fprintf(out, "     src: %s\n", src)
		}
	}
	return nil
}
