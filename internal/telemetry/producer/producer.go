// Package producer publishes security events to a message broker (Kafka) for downstream shipping.
package producer

import (
	"context"

	"repairdesk/backend/internal/audit/domain"
)

// Producer publishes security events. It satisfies audit.Sink; the security log logs and ignores errors.
type Producer interface {
	// Write sends a single event. Implementations may block briefly.
	Write(ctx context.Context, e *domain.SecurityEvent) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
