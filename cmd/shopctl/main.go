// shopctl drives the session and access-control core from the command line: sign in and out,
// inspect the current session, ask permission and route questions, and run the installation agent.
//
// Sessions persist between invocations only with SESSION_STORE=redis or postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"repairdesk/backend/internal/app"
	"repairdesk/backend/internal/config"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], defaultBuilder, os.Stdout)
	stop()
	if err == nil {
		return
	}
	if errors.Is(err, errDenied) {
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func defaultBuilder(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...app.Option) (*app.App, error) {
	return app.New(ctx, cfg, logger, append(opts, app.WithVersion(version))...)
}
