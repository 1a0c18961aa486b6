package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the generation site and save the session",
		Long: `Opens the browser profile on the generation site and waits while you sign
in. After you confirm in the terminal, the login is verified (the prompt box is
reachable and no sign-in control remains) and the cookies are saved so later
runs start signed in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Browser.Headless = false

			controller := newController(cmd, cfg)
			defer controller.Close()

			if err := controller.Login(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in. Cookies saved to %s\n", cfg.Paths.CookieFile)
			return nil
		},
	}

	return cmd
}
