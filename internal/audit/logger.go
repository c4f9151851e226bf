// Package audit is the security event log: an append-only, fire-and-forget record of
// lockouts, device changes and session terminations fanned out to one or more sinks.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repairdesk/backend/internal/audit/domain"
	auditrepo "repairdesk/backend/internal/audit/repository"
	"repairdesk/backend/internal/device"
	devicedomain "repairdesk/backend/internal/device/domain"
	"repairdesk/backend/internal/metrics"
	"repairdesk/backend/internal/platform/clock"
)

const (
	// DefaultBufferSize is how many events may wait for the dispatcher before new ones are dropped.
	DefaultBufferSize = 256
	// sinkTimeout bounds a single sink write.
	sinkTimeout = 5 * time.Second
)

// Sink receives every dispatched event. Errors are logged by the SecurityLog, never surfaced.
type Sink interface {
	Write(ctx context.Context, e *domain.SecurityEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e *domain.SecurityEvent) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, e *domain.SecurityEvent) error { return f(ctx, e) }

// NamedSink gives a sink a name for logs.
type NamedSink struct {
	Name string
	Sink Sink
}

// SecurityLog implements the security event log. LogSecurityEvent never blocks: events are queued
// and written to the sinks by a single background dispatcher.
type SecurityLog struct {
	clock   clock.Clock
	devices device.Provider
	sinks   []NamedSink
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *domain.SecurityEvent
	done   chan struct{}
}

// Option configures a SecurityLog.
type Option func(*SecurityLog)

// WithSink adds a sink under name.
func WithSink(name string, s Sink) Option {
	return func(l *SecurityLog) {
		if s != nil {
			l.sinks = append(l.sinks, NamedSink{Name: name, Sink: s})
		}
	}
}

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) Option {
	return func(l *SecurityLog) {
		if n > 0 {
			l.queue = make(chan *domain.SecurityEvent, n)
		}
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(c clock.Clock) Option {
	return func(l *SecurityLog) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *SecurityLog) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewSecurityLog starts a SecurityLog. devices supplies the fingerprint stamped on each event and
// may be nil. Call Close to drain and stop the dispatcher.
func NewSecurityLog(devices device.Provider, opts ...Option) *SecurityLog {
	l := &SecurityLog{
		clock:   clock.System{},
		devices: devices,
		logger:  zap.NewNop(),
		queue:   make(chan *domain.SecurityEvent, DefaultBufferSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.dispatch()
	return l
}

// LogSecurityEvent records name with details. The timestamp is taken now; the device fingerprint
// is attached by the dispatcher. A full queue or a closed log drops the event.
func (l *SecurityLog) LogSecurityEvent(ctx context.Context, name string, details map[string]any) {
	c := Classify(name)
	e := &domain.SecurityEvent{
		ID:         uuid.New().String(),
		Name:       name,
		Category:   c.Category,
		Severity:   c.Severity,
		Details:    copyDetails(details),
		OccurredAt: l.clock.Now().UTC(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		metrics.SecurityEventsTotal.WithLabelValues(name, "dropped").Inc()
		l.logger.Warn("security event dropped after close", zap.String("event", name))
		return
	}
	select {
	case l.queue <- e:
		metrics.SecurityEventsTotal.WithLabelValues(name, "queued").Inc()
	default:
		metrics.SecurityEventsTotal.WithLabelValues(name, "dropped").Inc()
		l.logger.Warn("security event queue full; event dropped", zap.String("event", name), zap.String("event_id", e.ID))
	}
}

// Close stops accepting events and waits until queued events are written or ctx ends.
func (l *SecurityLog) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *SecurityLog) dispatch() {
	defer close(l.done)
	for e := range l.queue {
		e.Fingerprint = l.fingerprint()
		for _, s := range l.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := s.Sink.Write(ctx, e); err != nil {
				l.logger.Warn("security event sink failed",
					zap.String("sink", s.Name),
					zap.String("event", e.Name),
					zap.String("event_id", e.ID),
					zap.Error(err),
				)
			}
			cancel()
		}
	}
}

func (l *SecurityLog) fingerprint() devicedomain.Fingerprint {
	if l.devices == nil {
		return devicedomain.Fingerprint{Address: devicedomain.UnknownAddress}
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	fp, err := l.devices.Current(ctx)
	if err != nil {
		l.logger.Debug("security event without fingerprint", zap.Error(err))
		return devicedomain.Fingerprint{Address: devicedomain.UnknownAddress}
	}
	return fp
}

func copyDetails(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// RepositorySink persists events through the audit repository.
func RepositorySink(repo auditrepo.Repository) Sink {
	return SinkFunc(func(ctx context.Context, e *domain.SecurityEvent) error {
		return repo.Create(ctx, e)
	})
}

// ZapSink writes events to logger at a level derived from their severity.
func ZapSink(logger *zap.Logger) Sink {
	return SinkFunc(func(_ context.Context, e *domain.SecurityEvent) error {
		fields := []zap.Field{
			zap.String("event", e.Name),
			zap.String("event_id", e.ID),
			zap.String("category", e.Category),
			zap.String("fingerprint", e.Fingerprint.Hash()),
			zap.Time("occurred_at", e.OccurredAt),
			zap.Any("details", e.Details),
		}
		switch e.Severity {
		case domain.SeverityCritical:
			logger.Error("security event", fields...)
		case domain.SeverityWarning:
			logger.Warn("security event", fields...)
		default:
			logger.Info("security event", fields...)
		}
		return nil
	})
}
