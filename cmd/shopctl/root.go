package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"repairdesk/backend/internal/app"
	"repairdesk/backend/internal/config"
	"repairdesk/backend/internal/logging"
	sessiondomain "repairdesk/backend/internal/session/domain"
)

// errDenied is returned by permission and route checks that answered "no"; main exits 2.
var errDenied = errors.New("denied")

type builder func(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...app.Option) (*app.App, error)

type cli struct {
	build   builder
	out     io.Writer
	jsonOut bool
	app     *app.App
	logger  *zap.Logger
	onEnded func(sessiondomain.Termination)
}

func run(ctx context.Context, args []string, build builder, out io.Writer) error {
	c := &cli{build: build, out: out}
	root := c.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := c.close(context.WithoutCancel(ctx)); err == nil {
		err = cerr
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shopctl",
		Short: "Session and access control for the repair shop app",
		Long: `shopctl signs principals in and out of this installation and answers access questions.

Environment Variables:
  SESSION_STORE        memory, redis or postgres (memory does not survive the process)
  INSTALLATION_ID      Key of the session this installation holds
  DEMO_LOGIN_ENABLED   Enables quick-login with DEMO_PASSWORD`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return c.open(cmd.Context()) },
	}
	root.SetOut(c.out)
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Output JSON instead of human-readable text")
	root.AddCommand(
		c.loginCmd(),
		c.quickLoginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.refreshCmd(),
		c.canCmd(),
		c.routeCmd(),
		c.lockStatusCmd(),
		c.checkDeviceCmd(),
		c.grantCmd(),
		c.passwdCmd(),
		c.eventsCmd(),
		c.agentCmd(),
	)
	return root
}

func (c *cli) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.logger = logging.New(cfg.Env, cfg.LogLevel, "shopctl")
	c.app, err = c.build(ctx, cfg, c.logger, app.WithTerminationHandler(c.terminated))
	return err
}

func (c *cli) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close(ctx)
	c.app = nil
	_ = c.logger.Sync()
	return err
}

func (c *cli) terminated(t sessiondomain.Termination) {
	c.logger.Warn("session terminated",
		zap.String("session_id", t.SessionID),
		zap.String("principal_id", t.PrincipalID),
		zap.String("reason", string(t.Reason)),
	)
	if c.onEnded != nil {
		c.onEnded(t)
	}
}
