package fleet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/envmon/device"
	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/metric"
	"github.com/c360/envmon/pkg/worker"
)

// Supervisor keeps one transport's worker set converged on the device
// directory: it polls the directory and starts a worker per newly active
// device, retiring workers for devices that left. Send cycles run on a
// shared bounded pool so fleet size does not translate into goroutine count.
type Supervisor struct {
	protocol     device.Protocol
	registry     Registry
	sender       Sender
	pollInterval time.Duration
	sendInterval time.Duration
	pool         *worker.Pool[*DeviceWorker]
	logger       *slog.Logger

	workers sync.Map // device ID -> *DeviceWorker

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// SupervisorConfig bundles the knobs for one transport's supervisor.
type SupervisorConfig struct {
	Protocol     device.Protocol
	Registry     Registry
	Sender       Sender
	PollInterval time.Duration
	SendInterval time.Duration
	PoolWorkers  int
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor, *[]worker.Option[*DeviceWorker])

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor, _ *[]worker.Option[*DeviceWorker]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRegistry enables send-pool metrics
func WithMetricsRegistry(registry *metric.MetricsRegistry) SupervisorOption {
	return func(s *Supervisor, poolOpts *[]worker.Option[*DeviceWorker]) {
		*poolOpts = append(*poolOpts, worker.WithMetricsRegistry[*DeviceWorker](
			registry, "envmon_fleet_"+string(s.protocol)))
	}
}

// NewSupervisor creates a supervisor for one transport.
func NewSupervisor(cfg SupervisorConfig, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		protocol:     cfg.Protocol,
		registry:     cfg.Registry,
		sender:       cfg.Sender,
		pollInterval: cfg.PollInterval,
		sendInterval: cfg.SendInterval,
		logger:       slog.Default(),
	}

	poolOpts := []worker.Option[*DeviceWorker]{}
	for _, opt := range opts {
		opt(s, &poolOpts)
	}
	s.logger = s.logger.With("protocol", string(cfg.Protocol))

	s.pool = worker.NewPool(cfg.PoolWorkers, 0,
		func(ctx context.Context, w *DeviceWorker) error {
			return w.cycle(ctx)
		}, poolOpts...)

	return s
}

// Start launches the pool and the reconciliation loop. The first
// reconciliation happens immediately so workers come up without waiting a
// full poll interval.
func (s *Supervisor) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started {
		return errors.ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := s.pool.Start(runCtx); err != nil {
		cancel()
		return errors.WrapFatal(err, "Supervisor", "Start", "start send pool")
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.run(runCtx)
	s.logger.Info("Fleet supervisor started",
		"poll_interval", s.pollInterval, "send_interval", s.sendInterval)
	return nil
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	s.reconcile(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// reconcile converges the worker set on the directory's view. A fetch
// failure skips the cycle entirely; the current workers keep running.
func (s *Supervisor) reconcile(ctx context.Context) {
	devices, err := s.registry.ActiveDevices(ctx, s.protocol)
	if err != nil {
		s.logger.Warn("Skipping reconciliation, directory unavailable", "error", err)
		return
	}

	active := make(map[string]bool, len(devices))
	added, removed := 0, 0

	for _, d := range devices {
		// The active flag decides membership; a listed but inactive device
		// is retired like a departed one.
		if !d.Active {
			continue
		}
		active[d.ID] = true
		if _, ok := s.workers.Load(d.ID); ok {
			continue
		}
		w := NewDeviceWorker(d, s.sender, s.sendInterval, s.pool.Submit, s.logger)
		if _, loaded := s.workers.LoadOrStore(d.ID, w); loaded {
			continue
		}
		w.Start(ctx)
		added++
	}

	s.workers.Range(func(key, value any) bool {
		id := key.(string)
		if active[id] {
			return true
		}
		if w, loaded := s.workers.LoadAndDelete(id); loaded {
			w.(*DeviceWorker).Stop()
			removed++
		}
		return true
	})

	if added > 0 || removed > 0 {
		s.logger.Info("Fleet reconciled",
			"active", len(active), "added", added, "removed", removed)
	}
}

// WorkerCount returns the number of running device workers.
func (s *Supervisor) WorkerCount() int {
	n := 0
	s.workers.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Stop retires all workers, then drains the send pool. Safe to call more
// than once.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started || s.stopped {
		return nil
	}

	s.cancel()
	<-s.done

	s.workers.Range(func(key, value any) bool {
		value.(*DeviceWorker).Stop()
		s.workers.Delete(key)
		return true
	})

	err := s.pool.Stop(timeout)
	s.stopped = true
	s.logger.Info("Fleet supervisor stopped")
	return err
}
