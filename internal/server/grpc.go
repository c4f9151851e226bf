// Package server hosts the installation agent's gRPC endpoint: standard gRPC health reporting
// whether this installation holds a live session.
package server

import (
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"repairdesk/backend/internal/server/interceptors"
	sessiondomain "repairdesk/backend/internal/session/domain"
)

// SessionService is the health service name that tracks the installation's session.
// The empty service name reports process liveness and stays SERVING until shutdown.
const SessionService = "repairdesk.session"

// AgentServer is the gRPC server run by the installation agent.
type AgentServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewAgentServer builds the server with OTel stats and request logging. The session service
// starts NOT_SERVING until SetSessionActive(true).
func NewAgentServer(logger *zap.Logger, opts ...grpc.ServerOption) *AgentServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
	}
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.LoggingUnary(logger, skip)),
	}, opts...)

	s := &AgentServer{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
		logger: logger,
	}
	s.health.SetServingStatus(SessionService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// SetSessionActive flips the session service between SERVING and NOT_SERVING.
func (s *AgentServer) SetSessionActive(active bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if active {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(SessionService, st)
}

// OnTermination is a session.TerminationHandler: the session service goes NOT_SERVING.
func (s *AgentServer) OnTermination(t sessiondomain.Termination) {
	s.logger.Info("session terminated; health NOT_SERVING",
		zap.String("session_id", t.SessionID),
		zap.String("reason", string(t.Reason)),
	)
	s.SetSessionActive(false)
}

// Serve accepts connections on lis until Stop. It returns grpc.ErrServerStopped after a stop.
func (s *AgentServer) Serve(lis net.Listener) error {
	s.logger.Info("agent gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (s *AgentServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
