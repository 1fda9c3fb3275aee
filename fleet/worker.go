package fleet

import (
	"context"
	stderrors "errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/envmon/device"
	"github.com/c360/envmon/pkg/timestamp"
	"github.com/c360/envmon/sample"
)

// DeviceWorker simulates one device: a ticker drives send cycles that are
// executed on the supervisor's shared pool. The inFlight guard ensures a
// worker never has two cycles queued or running at once, so a slow transport
// skips ticks instead of piling up.
type DeviceWorker struct {
	dev      device.Device
	gen      *Generator
	sender   Sender
	interval time.Duration
	submit   func(*DeviceWorker) error
	logger   *slog.Logger

	inFlight atomic.Bool

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

func deviceSeed(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return int64(h.Sum64())
}

// NewDeviceWorker creates a worker for one device. submit enqueues the
// worker on the shared send pool.
func NewDeviceWorker(dev device.Device, sender Sender, interval time.Duration,
	submit func(*DeviceWorker) error, logger *slog.Logger) *DeviceWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceWorker{
		dev:      dev,
		gen:      NewGenerator(deviceSeed(dev.ID)),
		sender:   sender,
		interval: interval,
		submit:   submit,
		logger:   logger.With("device_id", dev.ID, "protocol", string(dev.Protocol)),
	}
}

// Device returns the device this worker simulates.
func (w *DeviceWorker) Device() device.Device {
	return w.dev
}

// Start begins the tick loop. The first cycle is queued immediately.
func (w *DeviceWorker) Start(ctx context.Context) {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if w.started {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true

	go w.run(runCtx)
	w.logger.Info("Device worker started")
}

func (w *DeviceWorker) run(ctx context.Context) {
	defer close(w.done)

	w.enqueue()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.enqueue()
		}
	}
}

func (w *DeviceWorker) enqueue() {
	if !w.inFlight.CompareAndSwap(false, true) {
		// Previous cycle still queued or running.
		return
	}
	if err := w.submit(w); err != nil {
		w.inFlight.Store(false)
		w.logger.Warn("Failed to queue send cycle", "error", err)
	}
}

// cycle generates one reading and sends it. Runs on the shared pool.
func (w *DeviceWorker) cycle(ctx context.Context) error {
	defer w.inFlight.Store(false)

	temperature, humidity := w.gen.Next()
	smp := sample.Sample{
		DeviceID:    w.dev.ID,
		Temperature: sample.Round2(temperature),
		Humidity:    sample.Round2(humidity),
		GeneratedAt: timestamp.Now(),
	}

	err := w.sender.Send(ctx, smp)
	if err == nil {
		w.logger.Debug("Reading sent",
			"temperature", smp.Temperature, "humidity", smp.Humidity)
		return nil
	}

	var rejected *RejectedError
	if stderrors.As(err, &rejected) {
		// Terminal: the collector refused this device. Reconciliation will
		// retire the worker once the registry reflects the change.
		w.logger.Warn("Reading rejected by collector", "reason", rejected.Reason)
		return err
	}

	w.logger.Warn("Failed to send reading", "error", err)
	return err
}

// Stop halts the tick loop. Safe to call more than once; a cycle already on
// the pool finishes on its own.
func (w *DeviceWorker) Stop() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if !w.started || w.stopped {
		return
	}
	w.cancel()
	<-w.done
	w.stopped = true
	w.logger.Info("Device worker stopped")
}
