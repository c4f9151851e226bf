// Package metrics defines Prometheus metrics for the session and access-control core.
//
// Metric naming follows Prometheus conventions:
//   - repairdesk_ prefix for all custom metrics
//   - _total suffix for counters
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LoginAttemptsTotal counts recorded login attempts by outcome (success, failure, blocked).
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairdesk_login_attempts_total",
			Help: "Total login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// LockoutsTotal counts identifiers that crossed the failure threshold.
	LockoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "repairdesk_lockouts_total",
			Help: "Total account lockouts triggered.",
		},
	)

	// SessionsCreatedTotal counts sessions created by principal role.
	SessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairdesk_sessions_created_total",
			Help: "Total sessions created by role.",
		},
		[]string{"role"},
	)

	// SessionsTerminatedTotal counts sessions ended by reason (logout, expired, inactive, persist_failed).
	SessionsTerminatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairdesk_sessions_terminated_total",
			Help: "Total sessions terminated by reason.",
		},
		[]string{"reason"},
	)

	// SessionRefreshesTotal counts token rotations by result (ok, none, error).
	SessionRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairdesk_session_refreshes_total",
			Help: "Total session refresh calls by result.",
		},
		[]string{"result"},
	)

	// SuspiciousActivityTotal counts fingerprint mismatches by changed field.
	SuspiciousActivityTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairdesk_suspicious_activity_total",
			Help: "Total device fingerprint mismatches detected.",
		},
		[]string{"field"},
	)

	// SecurityEventsTotal counts security events by name and delivery result (queued, dropped).
	SecurityEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairdesk_security_events_total",
			Help: "Total security events by name and delivery result.",
		},
		[]string{"event", "result"},
	)

	// AgentRPCsTotal counts RPCs served by the installation agent by method and status code.
	AgentRPCsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repairdesk_agent_rpcs_total",
			Help: "Total gRPC requests served by the agent.",
		},
		[]string{"method", "code"},
	)

	// ActiveSession is 1 while the installation holds a monitored session.
	ActiveSession = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "repairdesk_active_session",
			Help: "1 while a monitored session is active on this installation.",
		},
	)
)

// Collectors returns every collector defined by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		LoginAttemptsTotal,
		LockoutsTotal,
		SessionsCreatedTotal,
		SessionsTerminatedTotal,
		SessionRefreshesTotal,
		SuspiciousActivityTotal,
		SecurityEventsTotal,
		AgentRPCsTotal,
		ActiveSession,
	}
}

// Register registers all collectors with reg. Call once from the composition root.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
