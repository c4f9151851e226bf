package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"repairdesk/backend/internal/metrics"
	"repairdesk/backend/internal/server"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) agentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Monitor this installation's session and serve gRPC health and metrics",
		Long: `agent resumes monitoring of the stored session (heartbeat, expiry and inactivity sweeps),
reports it through gRPC health as service "` + server.SessionService + `" and serves Prometheus
metrics. A session signed in later by another shopctl process is picked up on the next heartbeat.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runAgent(cmd.Context())
		},
	}
}

func (c *cli) runAgent(ctx context.Context) error {
	cfg := c.app.Config
	logger := c.logger.Named("agent")

	if err := c.app.Policy.HealthCheck(ctx); err != nil {
		return fmt.Errorf("device change policy engine: %w", err)
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.NewAgentServer(logger)
	c.onEnded = srv.OnTermination

	lis, err := net.Listen("tcp", cfg.AgentGRPCAddr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 2)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- err
		}
	}()
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	c.resume(ctx, srv, logger)
	ticker := time.NewTicker(cfg.HeartbeatInterval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case runErr = <-errc:
			break loop
		case <-ticker.C:
			c.resume(ctx, srv, logger)
		}
	}

	logger.Info("agent shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	srv.Stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	return runErr
}

// resume starts monitoring the stored session if one exists and mirrors the result in health.
func (c *cli) resume(ctx context.Context, srv *server.AgentServer, logger *zap.Logger) {
	found, err := c.app.Sessions.StartMonitoring(ctx)
	if err != nil {
		logger.Warn("session lookup failed", zap.Error(err))
		return
	}
	srv.SetSessionActive(found)
}
