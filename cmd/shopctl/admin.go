package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	identitydomain "repairdesk/backend/internal/identity/domain"
	"repairdesk/backend/internal/platform/rbac"
	"repairdesk/backend/internal/session"
	userdomain "repairdesk/backend/internal/user/domain"
)

const (
	eventAccessChanged   = "access_changed"
	eventPasswordChanged = "password_changed"
)

var (
	errNoHistory = errors.New("security event history needs DATABASE_URL")
	errNoUser    = errors.New("no such user")
)

// guarded turns an rbac denial into errDenied so main exits 2.
func guarded(err error) error {
	if errors.Is(err, rbac.ErrPermissionDenied) {
		return fmt.Errorf("%w: %w", errDenied, err)
	}
	return err
}

func (c *cli) grantCmd() *cobra.Command {
	var (
		role        string
		permissions []string
	)
	cmd := &cobra.Command{
		Use:   "grant USER_ID",
		Short: "Change a user's role and explicit grants (needs users:manage)",
		Long: `Change a user's role and explicit permission grants in the directory. When the user holds
the session on this installation the change applies to it at once, without signing in again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			admin, err := rbac.RequirePermission(ctx, c.app.Sessions, rbac.UsersManage)
			if err != nil {
				return guarded(err)
			}
			u, err := c.app.Users.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("%w: %s", errNoUser, args[0])
			}
			if role != "" {
				if u.Role, err = userdomain.ParseRole(role); err != nil {
					return fmt.Errorf("%w: %q", err, role)
				}
			}
			if cmd.Flags().Changed("permission") {
				u.Permissions = permissions
			}
			if err := c.app.Users.UpdateAccess(ctx, u.ID, u.Role, u.Permissions); err != nil {
				return err
			}
			c.app.Events.LogSecurityEvent(ctx, eventAccessChanged, map[string]any{
				"principal_id": u.ID,
				"changed_by":   admin.ID,
				"role":         string(u.Role),
				"permissions":  u.Permissions,
			})

			live := true
			s, err := c.app.Sessions.ApplyPrincipalUpdate(ctx, u.Principal())
			switch {
			case errors.Is(err, session.ErrPrincipalMismatch), errors.Is(err, session.ErrNoSession):
				live = false
			case errors.Is(err, session.ErrInactivePrincipal):
				live = false
				c.logger.Warn("session ended for disabled principal", zap.String("principal_id", u.ID))
			case err != nil:
				return err
			}
			human := fmt.Sprintf("%s is now %s", u.Email, u.Role)
			if live {
				human += "; live session updated"
			}
			return c.emit(map[string]any{
				"user_id":      u.ID,
				"role":         string(u.Role),
				"permissions":  u.Permissions,
				"live_session": viewOf(s),
			}, human)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "New role (customer, technician, admin or owner)")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "Explicit grant; repeat for several, empty to clear")
	return cmd
}

func (c *cli) passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Set a new password for the signed-in principal, read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := rbac.Require(ctx, c.app.Sessions, rbac.Default, rbac.Requirement{})
			if err != nil {
				return guarded(err)
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("password must not be empty")
			}
			ident, err := c.app.Identities.GetByUserAndProvider(ctx, p.ID, identitydomain.IdentityProviderLocal)
			if err != nil {
				return err
			}
			if ident == nil {
				return fmt.Errorf("%s has no local password", p.Email)
			}
			hash, err := c.app.Hasher.Hash([]byte(password))
			if err != nil {
				return err
			}
			if err := c.app.Identities.UpdatePasswordHash(ctx, ident.ID, hash); err != nil {
				return err
			}
			c.app.Events.LogSecurityEvent(ctx, eventPasswordChanged, map[string]any{"principal_id": p.ID})
			return c.emit(map[string]any{"password_changed": true}, "Password changed")
		},
	}
}

func (c *cli) eventsCmd() *cobra.Command {
	var (
		name  string
		limit int32
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent security events (needs the /admin screen)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			guard := rbac.NewRouteGuard(rbac.Default, rbac.DefaultRoutes())
			if _, err := rbac.RequireRoute(ctx, c.app.Sessions, guard, "/admin"); err != nil {
				return guarded(err)
			}
			if c.app.History == nil {
				return errNoHistory
			}
			events, err := c.app.History.ListRecent(ctx, name, limit)
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, e := range events {
				fmt.Fprintf(&b, "%s  %-8s %-24s %s\n", e.OccurredAt.Format(time.RFC3339), e.Severity, e.Name, e.PrincipalID())
			}
			if len(events) == 0 {
				b.WriteString("No events\n")
			}
			return c.emit(map[string]any{"events": events}, strings.TrimRight(b.String(), "\n"))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Only events with this name")
	cmd.Flags().Int32Var(&limit, "limit", 50, "Maximum number of events")
	return cmd
}
