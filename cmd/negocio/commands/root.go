package commands

import (
	"fmt"
	"os"

	"github.com/gestionnegocio/console/internal/apierr"
	"github.com/gestionnegocio/console/internal/tui"
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	var open string

	rootCmd := &cobra.Command{
		Use:   "negocio",
		Short: "Business management console",
		Long: `negocio is a terminal console for the business management API.
Without a subcommand it opens the interactive console; the subcommands
share its stored session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := tui.Run(cmd.Context(), tui.Options{
				Session:  a.session,
				Gateway:  a.gw,
				PageSize: a.cfg.PageSize,
				Route:    open,
				Logger:   a.logger,
			}); err != nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}

	g.register(rootCmd)
	rootCmd.Flags().StringVar(&open, "open", "", "Open a resource screen directly (see 'negocio resources')")

	rootCmd.AddCommand(NewLoginCommand(g))
	rootCmd.AddCommand(NewLogoutCommand(g))
	rootCmd.AddCommand(NewWhoamiCommand(g))
	rootCmd.AddCommand(NewResourcesCommand(g))
	rootCmd.AddCommand(NewListCommand(g))
	rootCmd.AddCommand(NewShowCommand(g))
	rootCmd.AddCommand(NewDeleteCommand(g))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apierr.UserMessage(err))
		os.Exit(1)
	}
}
