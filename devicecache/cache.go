// Package devicecache keeps an in-memory snapshot of active devices,
// refreshed on a fixed interval, for fast ingestion-time lookups.
package devicecache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/envmon/device"
	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/metric"
)

// DeviceLister is the slice of the store the cache needs.
type DeviceLister interface {
	ListActiveDevices(ctx context.Context) ([]device.Device, error)
}

// snapshot maps protocol -> device ID -> device. Replaced wholesale on
// refresh so readers never see a partially updated view.
type snapshot map[device.Protocol]map[string]device.Device

// Cache is a periodically refreshed snapshot of the active device fleet.
type Cache struct {
	lister   DeviceLister
	interval time.Duration
	logger   *slog.Logger
	registry *metric.MetricsRegistry

	current     snapshot
	snapshotMu  sync.RWMutex
	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsRegistry enables refresh and fleet-size metrics
func WithMetricsRegistry(registry *metric.MetricsRegistry) CacheOption {
	return func(c *Cache) {
		c.registry = registry
	}
}

// New creates a cache over the given lister, refreshing every interval.
func New(lister DeviceLister, interval time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		lister:   lister,
		interval: interval,
		logger:   slog.Default(),
		current:  snapshot{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start performs an immediate refresh and then refreshes on the interval
// until the context is cancelled or Stop is called. The initial refresh
// failure is returned so the caller can fail fast on storage problems.
func (c *Cache) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.started {
		return errors.ErrAlreadyStarted
	}

	if err := c.Refresh(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	go c.run(runCtx)
	return nil
}

func (c *Cache) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				// Keep serving the previous snapshot.
				c.logger.Warn("Device cache refresh failed", "error", err)
			}
		}
	}
}

// Stop halts the refresh loop. Safe to call more than once.
func (c *Cache) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if !c.started {
		return
	}
	c.cancel()
	<-c.done
	c.started = false
}

// Refresh rebuilds the snapshot from the store and swaps it in atomically.
func (c *Cache) Refresh(ctx context.Context) error {
	devices, err := c.lister.ListActiveDevices(ctx)
	if err != nil {
		c.countRefresh("failure")
		return errors.WrapTransient(err, "Cache", "Refresh", "list active devices")
	}

	next := snapshot{}
	for _, p := range device.Protocols() {
		next[p] = map[string]device.Device{}
	}
	for _, d := range devices {
		byID, ok := next[d.Protocol]
		if !ok {
			byID = map[string]device.Device{}
			next[d.Protocol] = byID
		}
		byID[d.ID] = d
	}

	c.snapshotMu.Lock()
	c.current = next
	c.snapshotMu.Unlock()

	c.countRefresh("success")
	if c.registry != nil {
		for p, byID := range next {
			c.registry.Metrics.ActiveDevices.WithLabelValues(string(p)).Set(float64(len(byID)))
		}
	}

	c.logger.Debug("Device cache refreshed", "active_devices", len(devices))
	return nil
}

func (c *Cache) countRefresh(outcome string) {
	if c.registry != nil {
		c.registry.Metrics.CacheRefreshes.WithLabelValues(outcome).Inc()
	}
}

func (c *Cache) view() snapshot {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	return c.current
}

// Exists reports whether the device is in the active snapshot.
// A device missing here may simply be inactive, so Exists mirrors IsActive;
// callers that need registration status regardless of activity query the store.
func (c *Cache) Exists(_ context.Context, id string) (bool, error) {
	return c.isActive(id), nil
}

// IsActive reports whether the device appears in the active snapshot.
func (c *Cache) IsActive(_ context.Context, id string) (bool, error) {
	return c.isActive(id), nil
}

func (c *Cache) isActive(id string) bool {
	for _, byID := range c.view() {
		if _, ok := byID[id]; ok {
			return true
		}
	}
	return false
}

// ActiveByProtocol returns the active devices for one protocol.
func (c *Cache) ActiveByProtocol(p device.Protocol) []device.Device {
	byID := c.view()[p]
	devices := make([]device.Device, 0, len(byID))
	for _, d := range byID {
		devices = append(devices, d)
	}
	return devices
}

// Size returns the total number of active devices in the snapshot.
func (c *Cache) Size() int {
	n := 0
	for _, byID := range c.view() {
		n += len(byID)
	}
	return n
}
