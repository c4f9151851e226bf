package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"repairdesk/backend/internal/platform/rbac"
)

func (c *cli) canCmd() *cobra.Command {
	var anyOf bool
	cmd := &cobra.Command{
		Use:   "can PERMISSION [PERMISSION...]",
		Short: "Check permissions of the signed-in principal (all of them unless --any)",
		Long: `Check permissions of the signed-in principal. One permission is checked on its own;
several are checked all-of, or any-of with --any. Exits 2 when denied.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perms := make([]rbac.Permission, len(args))
			for i, a := range args {
				perms[i] = rbac.Permission(strings.TrimSpace(a))
			}
			ctx := cmd.Context()
			var ok bool
			switch {
			case len(perms) == 1:
				ok = c.app.Auth.HasPermission(ctx, perms[0])
			case anyOf:
				ok = c.app.Auth.HasAnyPermission(ctx, perms...)
			default:
				ok = c.app.Auth.HasAllPermissions(ctx, perms...)
			}
			if err := c.emit(map[string]any{"permissions": args, "any": anyOf, "allowed": ok}, verdict(ok)); err != nil {
				return err
			}
			if !ok {
				return errDenied
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&anyOf, "any", false, "Allow when any one permission is held")
	return cmd
}

func (c *cli) routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route PATH",
		Short: "Check whether the signed-in principal may open a screen. Exits 2 when denied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := c.app.Auth.CanAccessRoute(cmd.Context(), args[0])
			if err := c.emit(map[string]any{"route": args[0], "allowed": ok}, verdict(ok)); err != nil {
				return err
			}
			if !ok {
				return errDenied
			}
			return nil
		},
	}
}

func (c *cli) lockStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock-status IDENTIFIER",
		Short: "Show whether an identifier is locked out and for how long",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			locked, err := c.app.Auth.IsAccountLocked(ctx, args[0])
			if err != nil {
				return err
			}
			remaining, err := c.app.Auth.GetRemainingLockoutTime(ctx, args[0])
			if err != nil {
				return err
			}
			human := "not locked"
			if locked {
				human = fmt.Sprintf("locked for %s", remaining.Round(time.Second))
			}
			return c.emit(map[string]any{
				"identifier":   args[0],
				"locked":       locked,
				"remaining_ms": remaining.Milliseconds(),
			}, human)
		},
	}
}

func (c *cli) checkDeviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-device",
		Short: "Compare this device with the one the session was created on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			suspicious := c.app.Auth.DetectSuspiciousActivity(ctx)
			decision, err := c.app.Auth.EvaluateDeviceChange(ctx)
			if err != nil {
				return err
			}
			human := "device unchanged"
			switch {
			case decision.ReauthRequired:
				human = "device changed; sign in again (" + decision.Reason + ")"
			case suspicious:
				human = "device changed; no re-authentication required"
			}
			return c.emit(map[string]any{
				"suspicious":      suspicious,
				"reauth_required": decision.ReauthRequired,
				"reason":          decision.Reason,
			}, human)
		},
	}
}
