package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/gestionnegocio/console/internal/access"
	"github.com/gestionnegocio/console/internal/apierr"
	"github.com/gestionnegocio/console/internal/catalog"
	"github.com/spf13/cobra"
)

// NewLoginCommand creates the login command
func NewLoginCommand(g *globalFlags) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. Missing values are asked for interactively.
The session is stored in the profile directory and reused by the other commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptCredentials(&email, &password); err != nil {
				return err
			}

			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.session.Init(ctx); err != nil {
				// Init clears a stale stored credential
				a.logger.Debug().Err(err).Msg("previous session could not be restored")
			}
			if err := a.session.Login(ctx, strings.TrimSpace(email), password); err != nil {
				if apierr.IsAuthentication(err) {
					return errors.New("correo o contraseña incorrectos")
				}
				return fmt.Errorf("failed to sign in: %w", err)
			}

			identity, _ := a.session.Identity()
			fmt.Fprintf(cmd.OutOrStdout(), "Sesión iniciada como %s (%s)\n", identity.DisplayName, access.RoleName(identity.RoleID))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (asked for when omitted)")
	return cmd
}

// promptCredentials asks for the values not given as flags
func promptCredentials(email, password *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().Title("Correo electrónico").Value(email))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().Title("Contraseña").EchoMode(huh.EchoModePassword).Value(password))
	}
	if len(fields) > 0 {
		if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}
	}
	if strings.TrimSpace(*email) == "" || *password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.session.Init(ctx); err != nil {
				a.logger.Debug().Err(err).Msg("stored session was already invalid")
			}
			if err := a.session.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sesión cerrada")
			return nil
		},
	}
}

// NewWhoamiCommand creates the whoami command
func NewWhoamiCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			identity, err := a.identity(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Usuario:      %s (#%d)\n", identity.DisplayName, identity.ID)
			fmt.Fprintf(out, "Email:        %s\n", identity.Email)
			fmt.Fprintf(out, "Rol:          %s\n", access.RoleName(identity.RoleID))
			if identity.OrganizationID > 0 {
				fmt.Fprintf(out, "Organización: %d\n", identity.OrganizationID)
			} else {
				fmt.Fprintf(out, "Organización: ninguna (se usa %d)\n", catalog.OrganizationOf(identity))
			}
			fmt.Fprintf(out, "Servidor:     %s\n", a.gw.BaseOrigin())
			return nil
		},
	}
}
