// Package metrics collects service counters and reports them to Redis for
// centralized access by the platform's ops dashboard.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix is the Redis key prefix for service metrics.
	keyPrefix = "metrics:"
	// metricsTTL is how long metrics stay in Redis if not refreshed.
	metricsTTL = 2 * time.Minute
	// defaultReportInterval is the default interval for writing metrics to Redis.
	defaultReportInterval = 30 * time.Second
)

// Recorder is the counter surface the HTTP handlers and the fanout dispatcher
// record into. The null object pattern avoids nil checks at call sites.
type Recorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordError()
	IncrementCustom(name string)
}

// NoOp is a no-op Recorder for deployments without a metrics Redis.
type NoOp struct{}

var _ Recorder = NoOp{}

func (NoOp) RecordReceived()                 {}
func (NoOp) RecordProcessed(_ time.Duration) {}
func (NoOp) RecordError()                    {}
func (NoOp) IncrementCustom(_ string)        {}

// Snapshot is the JSON document written to Redis on every report tick.
type Snapshot struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	RequestsReceived  uint64 `json:"requests_received"`
	RequestsProcessed uint64 `json:"requests_processed"`
	ProcessingErrors  uint64 `json:"processing_errors"`

	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector collects and periodically reports metrics for the service.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	received  atomic.Uint64
	processed atomic.Uint64
	errors    atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a metrics collector reporting under metrics:<serviceName>.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: defaultReportInterval,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.write(context.Background()) // final write
				return
			case <-c.stopCh:
				c.write(context.Background())
				return
			case <-ticker.C:
				c.write(ctx)
			}
		}
	}()
}

// Stop stops the reporting loop after a final write.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Collector) RecordReceived() { c.received.Add(1) }

func (c *Collector) RecordProcessed(latency time.Duration) {
	c.processed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

func (c *Collector) RecordError() { c.errors.Add(1) }

// IncrementCustom increments a named service-specific counter, creating it on
// first use.
func (c *Collector) IncrementCustom(name string) {
	c.customMu.RLock()
	counter, ok := c.customCounters[name]
	c.customMu.RUnlock()
	if !ok {
		c.customMu.Lock()
		if counter, ok = c.customCounters[name]; !ok {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(1)
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		ServiceName:       c.serviceName,
		StartedAt:         c.startedAt,
		LastUpdated:       time.Now().UTC(),
		RequestsReceived:  c.received.Load(),
		RequestsProcessed: c.processed.Load(),
		ProcessingErrors:  c.errors.Load(),
	}
	if count := c.latencyCount.Load(); count > 0 {
		snap.AvgProcessingLatencyNs = float64(c.totalLatencyNs.Load()) / float64(count)
	}

	c.customMu.RLock()
	if len(c.customCounters) > 0 {
		snap.CustomCounters = make(map[string]uint64, len(c.customCounters))
		for name, counter := range c.customCounters {
			snap.CustomCounters[name] = counter.Load()
		}
	}
	c.customMu.RUnlock()
	return snap
}

func (c *Collector) write(ctx context.Context) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(c.Snapshot())
	if err != nil {
		slog.Error("Failed to marshal metrics snapshot", "error", err)
		return
	}
	key := keyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, payload, metricsTTL).Err(); err != nil {
		slog.Warn("Failed to write metrics to Redis", "key", key, "error", err)
	}
}
