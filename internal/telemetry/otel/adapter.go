package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"repairdesk/backend/internal/audit"
	"repairdesk/backend/internal/audit/domain"
)

// scope is the instrumentation scope name of security event log records.
const scope = "repairdesk.security"

// emitter is the subset of otellog.Logger the sink needs.
type emitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewSecurityEventSink returns an audit.Sink that sends security events as OTel log records via the
// given LoggerProvider. If provider is nil, returns a sink that discards events.
func NewSecurityEventSink(provider *sdklog.LoggerProvider) audit.Sink {
	if provider == nil {
		return audit.SinkFunc(func(context.Context, *domain.SecurityEvent) error { return nil })
	}
	return newSecurityEventSink(provider.Logger(scope))
}

func newSecurityEventSink(logger emitter) audit.Sink {
	return &otelSink{logger: logger}
}

type otelSink struct {
	logger emitter
}

// Write converts the event to an OTel log record and emits it.
func (s *otelSink) Write(ctx context.Context, e *domain.SecurityEvent) error {
	if e == nil {
		return nil
	}
	rec := otellog.Record{}
	if e.OccurredAt.IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	} else {
		rec.SetTimestamp(e.OccurredAt)
	}
	rec.SetEventName(e.Name)
	sev, text := severity(e.Severity)
	rec.SetSeverity(sev)
	rec.SetSeverityText(text)
	if len(e.Details) > 0 {
		body, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		rec.SetBody(otellog.StringValue(string(body)))
	}
	rec.AddAttributes(
		otellog.String("event_id", e.ID),
		otellog.String("event_name", e.Name),
		otellog.String("category", e.Category),
	)
	if id := e.PrincipalID(); id != "" {
		rec.AddAttributes(otellog.String("principal_id", id))
	}
	if e.Fingerprint.Platform != "" {
		rec.AddAttributes(otellog.String("device.platform", e.Fingerprint.Platform))
	}
	if e.Fingerprint.Address != "" {
		rec.AddAttributes(otellog.String("device.address", e.Fingerprint.Address))
	}
	s.logger.Emit(ctx, rec)
	return nil
}

func severity(s domain.Severity) (otellog.Severity, string) {
	switch s {
	case domain.SeverityCritical:
		return otellog.SeverityError, "ERROR"
	case domain.SeverityWarning:
		return otellog.SeverityWarn, "WARN"
	default:
		return otellog.SeverityInfo, "INFO"
	}
}
