package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/natsclient"
)

// Broker stream layout. Devices publish to sensors.<deviceId>; the collector
// consumes the whole stream through one durable consumer.
const (
	StreamName      = "SENSORS"
	StreamSubjects  = "sensors.>"
	DurableConsumer = "envmon-collector"
	streamMaxAge    = 7 * 24 * time.Hour
)

// BrokerConsumer ingests samples published to the JetStream sensor stream.
// Delivery is at-least-once; samples that fail validation are permanent
// rejections and are acknowledged rather than redelivered.
type BrokerConsumer struct {
	client *natsclient.Client
	gate   *Gate
	logger *slog.Logger
}

// NewBrokerConsumer creates the stream ingestion endpoint.
func NewBrokerConsumer(client *natsclient.Client, gate *Gate, logger *slog.Logger) *BrokerConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrokerConsumer{client: client, gate: gate, logger: logger}
}

// Start ensures the stream exists and begins consuming it.
func (b *BrokerConsumer) Start(ctx context.Context) error {
	_, err := b.client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{StreamSubjects},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    streamMaxAge,
	})
	if err != nil {
		return errors.WrapTransient(err, "BrokerConsumer", "Start", "ensure stream")
	}

	err = b.client.ConsumeStream(ctx, StreamName, StreamSubjects, DurableConsumer,
		func(data []byte) {
			b.handle(ctx, data)
		})
	if err != nil {
		return errors.WrapTransient(err, "BrokerConsumer", "Start", "consume stream")
	}

	b.logger.Info("Broker ingestion consumer running",
		"stream", StreamName, "durable", DurableConsumer)
	return nil
}

func (b *BrokerConsumer) handle(ctx context.Context, data []byte) {
	smp, err := decodeSample(data)
	if err != nil {
		b.logger.Warn("Dropped malformed broker reading", "error", err)
		return
	}

	outcome, err := b.gate.Ingest(ctx, "broker", smp)
	if err != nil {
		// Infrastructure failure. The message is still acked; losing one
		// reading beats poisoning the consumer with endless redeliveries.
		b.logger.Error("Broker ingestion failed", "device_id", smp.DeviceID, "error", err)
		return
	}
	if !outcome.Accepted {
		b.logger.Debug("Broker reading rejected",
			"device_id", smp.DeviceID, "reason", outcome.Reason)
	}
}
