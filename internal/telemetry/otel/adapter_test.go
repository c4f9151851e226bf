package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"repairdesk/backend/internal/audit/domain"
	devicedomain "repairdesk/backend/internal/device/domain"
)

func TestNewSecurityEventSink_NilProvider_Discards(t *testing.T) {
	sink := NewSecurityEventSink(nil)
	if sink == nil {
		t.Fatal("NewSecurityEventSink(nil) returned nil")
	}
	if err := sink.Write(context.Background(), &domain.SecurityEvent{Name: "account_locked"}); err != nil {
		t.Errorf("discarding Write: %v", err)
	}
}

func TestWrite_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	sink := NewSecurityEventSink(provider)
	if err := sink.Write(context.Background(), nil); err != nil {
		t.Errorf("Write(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func TestWrite_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	sink := newSecurityEventSink(capture)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	event := &domain.SecurityEvent{
		ID:          "evt-1",
		Name:        "device_change_detected",
		Category:    "device",
		Severity:    domain.SeverityWarning,
		Fingerprint: devicedomain.Fingerprint{Platform: "android", Address: "10.0.0.7"},
		Details:     map[string]any{"principal_id": "u-1"},
		OccurredAt:  at,
	}
	if err := sink.Write(context.Background(), event); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if capture.calls != 1 {
		t.Fatalf("Emit calls = %d, want 1", capture.calls)
	}
	rec := capture.rec

	if got := rec.Body().AsString(); got != `{"principal_id":"u-1"}` {
		t.Errorf("body = %q, want %q", got, `{"principal_id":"u-1"}`)
	}
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want %v", rec.Severity(), otellog.SeverityWarn)
	}
	if rec.EventName() != "device_change_detected" {
		t.Errorf("event name = %q, want %q", rec.EventName(), "device_change_detected")
	}

	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{
		"event_id":        "evt-1",
		"event_name":      "device_change_detected",
		"category":        "device",
		"principal_id":    "u-1",
		"device.platform": "android",
		"device.address":  "10.0.0.7",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestWrite_NoDetails_EmptyBodyAndDefaultTimestamp(t *testing.T) {
	capture := &recordCapture{}
	sink := newSecurityEventSink(capture)
	before := time.Now().UTC()
	if err := sink.Write(context.Background(), &domain.SecurityEvent{ID: "evt-2", Name: "session_timeout"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rec := capture.rec
	if !rec.Body().Empty() {
		t.Errorf("body should be empty without details, got %v", rec.Body())
	}
	if rec.Timestamp().Before(before) {
		t.Errorf("timestamp %v should default to now", rec.Timestamp())
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", rec.Severity())
	}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Key == "principal_id" {
			t.Error("principal_id should be omitted when not in details")
		}
		return true
	})
}

func TestSeverityMapping(t *testing.T) {
	tests := []struct {
		in   domain.Severity
		want otellog.Severity
	}{
		{domain.SeverityInfo, otellog.SeverityInfo},
		{domain.SeverityWarning, otellog.SeverityWarn},
		{domain.SeverityCritical, otellog.SeverityError},
		{"", otellog.SeverityInfo},
	}
	for _, tt := range tests {
		if got, _ := severity(tt.in); got != tt.want {
			t.Errorf("severity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
