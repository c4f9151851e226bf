package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/audit/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

var _ Producer = (*KafkaProducer)(nil)

func TestNewKafkaProducer_MissingConfig(t *testing.T) {
	assert.Nil(t, NewKafkaProducer(nil, "security-events"))
	assert.Nil(t, NewKafkaProducer([]string{"localhost:9092"}, ""))

	var p *KafkaProducer
	assert.NoError(t, p.Write(context.Background(), &domain.SecurityEvent{Name: "account_locked"}))
	assert.NoError(t, p.Close())
}

func TestKafkaProducer_Write(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "security-events"}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := &domain.SecurityEvent{
		ID:         "evt-1",
		Name:       "account_locked",
		Category:   "authentication",
		Severity:   domain.SeverityWarning,
		Details:    map[string]any{"identifier": "tech@shop.test"},
		OccurredAt: at,
	}

	require.NoError(t, p.Write(context.Background(), e))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "account_locked", string(msg.Key))
	assert.True(t, msg.Time.Equal(at))

	var decoded domain.SecurityEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.ID)
	assert.Equal(t, "tech@shop.test", decoded.Details["identifier"])
}

func TestKafkaProducer_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaProducer{writer: w, topic: "security-events"}
	err := p.Write(context.Background(), &domain.SecurityEvent{Name: "session_timeout"})
	assert.EqualError(t, err, "broker down")
}

func TestKafkaProducer_NilEventAndClose(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "security-events"}
	require.NoError(t, p.Write(context.Background(), nil))
	assert.Empty(t, w.msgs)
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
}
