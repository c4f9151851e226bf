package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	identityservice "repairdesk/backend/internal/identity/service"
	userdomain "repairdesk/backend/internal/user/domain"
)

func (c *cli) loginCmd() *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			s, err := c.app.Auth.Login(cmd.Context(), email, password)
			if err != nil {
				return loginError(err)
			}
			return c.emitSession(s)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("SHOPCTL_PASSWORD"), "Password (defaults to SHOPCTL_PASSWORD)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) quickLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "quick-login ROLE",
		Short:     "Sign in as the demo account for a role",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"customer", "technician", "admin", "owner"},
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := userdomain.ParseRole(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", err, args[0])
			}
			s, err := c.app.Auth.QuickLogin(cmd.Context(), role)
			if err != nil {
				return loginError(err)
			}
			return c.emitSession(s)
		},
	}
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on this installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			return c.emit(map[string]any{"signed_out": true}, "Signed out")
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.emitSession(c.app.Auth.CurrentSession(cmd.Context()))
		},
	}
}

func (c *cli) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the session tokens and extend its expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.app.Sessions.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return c.emitSession(s)
		},
	}
}

func loginError(err error) error {
	var locked *identityservice.LockedError
	if errors.As(err, &locked) {
		return fmt.Errorf("account locked; try again in %s", locked.Remaining.Round(time.Second))
	}
	return err
}
