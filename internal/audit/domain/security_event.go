package domain

import (
	"time"

	devicedomain "repairdesk/backend/internal/device/domain"
)

// Severity orders security events for sinks that filter or colour by importance.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is one append-only auditable occurrence.
type SecurityEvent struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Category    string                   `json:"category"`
	Severity    Severity                 `json:"severity"`
	Fingerprint devicedomain.Fingerprint `json:"fingerprint"`
	Details     map[string]any           `json:"details,omitempty"`
	OccurredAt  time.Time                `json:"occurred_at"`
}

// PrincipalID returns the principal_id detail when present.
func (e *SecurityEvent) PrincipalID() string {
	if e == nil {
		return ""
	}
	if s, ok := e.Details["principal_id"].(string); ok {
		return s
	}
	return ""
}
