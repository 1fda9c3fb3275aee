// Package ingest validates incoming samples against the device registry and
// persists the accepted ones, regardless of which transport delivered them.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/metric"
	"github.com/c360/envmon/pkg/timestamp"
	"github.com/c360/envmon/sample"
)

// Rejection reasons reported to senders and metrics.
const (
	ReasonUnknownDevice  = "unknown-device"
	ReasonInactiveDevice = "inactive-device"
)

// Outcome is the result of one ingestion attempt.
type Outcome struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message"`
}

// DeviceLookup answers registration and activity questions about a device.
// Implemented by both the store and the active-device cache.
type DeviceLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
	IsActive(ctx context.Context, id string) (bool, error)
}

// SampleWriter persists accepted samples
type SampleWriter interface {
	InsertSample(ctx context.Context, smp sample.Sample) error
}

// Gate validates and persists samples from all transports.
type Gate struct {
	lookup   DeviceLookup
	writer   SampleWriter
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	// broadcast, when set, receives every accepted sample (live feed).
	broadcast func(sample.Sample)
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetricsRegistry enables ingestion metrics
func WithMetricsRegistry(registry *metric.MetricsRegistry) GateOption {
	return func(g *Gate) {
		g.registry = registry
	}
}

// WithBroadcast registers a hook invoked for every accepted sample.
func WithBroadcast(fn func(sample.Sample)) GateOption {
	return func(g *Gate) {
		g.broadcast = fn
	}
}

// NewGate creates an ingestion gate over the given lookup and writer.
func NewGate(lookup DeviceLookup, writer SampleWriter, opts ...GateOption) *Gate {
	g := &Gate{
		lookup: lookup,
		writer: writer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ingest validates one sample and persists it if accepted. Validation
// rejections return a rejecting Outcome with a nil error; the error return
// is reserved for infrastructure failures (storage, lookup).
func (g *Gate) Ingest(ctx context.Context, transport string, smp sample.Sample) (Outcome, error) {
	now := timestamp.Now()
	if smp.GeneratedAt == 0 {
		smp.GeneratedAt = now
	}
	smp.ReceivedAt = now

	exists, err := g.lookup.Exists(ctx, smp.DeviceID)
	if err != nil {
		return Outcome{}, errors.WrapTransient(err, "Gate", "Ingest", "lookup device")
	}
	if !exists {
		g.count(transport, "unknown_device")
		g.logger.Warn("Rejected sample from unknown device",
			"device_id", smp.DeviceID, "transport", transport)
		return Outcome{
			Reason:  ReasonUnknownDevice,
			Message: fmt.Sprintf("device %s is not registered", smp.DeviceID),
		}, nil
	}

	active, err := g.lookup.IsActive(ctx, smp.DeviceID)
	if err != nil {
		return Outcome{}, errors.WrapTransient(err, "Gate", "Ingest", "check device activity")
	}
	if !active {
		g.count(transport, "inactive_device")
		g.logger.Warn("Rejected sample from inactive device",
			"device_id", smp.DeviceID, "transport", transport)
		return Outcome{
			Reason:  ReasonInactiveDevice,
			Message: fmt.Sprintf("device %s is inactive", smp.DeviceID),
		}, nil
	}

	if err := g.writer.InsertSample(ctx, smp); err != nil {
		return Outcome{}, errors.WrapTransient(err, "Gate", "Ingest", "persist sample")
	}

	g.count(transport, "accepted")
	g.observeLatency(transport, smp)
	if g.broadcast != nil {
		g.broadcast(smp)
	}

	g.logger.Debug("Sample ingested",
		"device_id", smp.DeviceID, "transport", transport,
		"temperature", smp.Temperature, "humidity", smp.Humidity)
	return Outcome{Accepted: true, Message: "sample accepted"}, nil
}

func (g *Gate) count(transport, outcome string) {
	if g.registry != nil {
		g.registry.Metrics.SamplesIngested.WithLabelValues(transport, outcome).Inc()
	}
}

func (g *Gate) observeLatency(transport string, smp sample.Sample) {
	if g.registry == nil {
		return
	}
	latency := time.Duration(smp.ReceivedAt-smp.GeneratedAt) * time.Millisecond
	if latency < 0 {
		latency = 0
	}
	g.registry.Metrics.IngestLatency.WithLabelValues(transport).Observe(latency.Seconds())
}
