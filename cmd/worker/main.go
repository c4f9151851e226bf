// Worker consumes security events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, SECURITY_EVENTS_TOPIC, KAFKA_GROUP_ID and LOKI_URL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"repairdesk/backend/internal/config"
	"repairdesk/backend/internal/logging"
	"repairdesk/backend/internal/telemetry/loki"
)

const pushTimeout = 10 * time.Second

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type eventPusher interface {
	PushEventJSON(ctx context.Context, raw []byte) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("development", "info", "worker").Fatal("config", zap.Error(err))
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "worker")
	defer func() { _ = logger.Sync() }()

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		logger.Fatal("LOKI_URL is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.SecurityEventsTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("consuming security events",
		zap.String("topic", cfg.SecurityEventsTopic),
		zap.String("group_id", cfg.KafkaGroupID),
		zap.String("loki_url", cfg.LokiURL),
	)
	pushed := run(ctx, reader, loki.NewClient(cfg.LokiURL, nil), logger)
	logger.Info("worker stopped", zap.Int("pushed", pushed))
}

// run copies messages from r to p until ctx ends and returns how many were pushed.
// Read and push failures are logged and skipped.
func run(ctx context.Context, r messageReader, p eventPusher, logger *zap.Logger) int {
	pushed := 0
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return pushed
			}
			logger.Warn("kafka read failed", zap.Error(err))
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := p.PushEventJSON(pushCtx, msg.Value); err != nil {
			logger.Warn("loki push failed",
				zap.String("key", string(msg.Key)),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		} else {
			pushed++
		}
		cancel()
	}
}
