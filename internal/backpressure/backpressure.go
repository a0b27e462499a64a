// Package backpressure tracks queue depth and processing latency and
// signals the worker pool to shed low-priority work when the system
// falls behind.
package backpressure

import (
	"sync"
	"time"

	"github.com/Aman-CERP/amanmcp/internal/ringbuffer"
)

// DefaultQueueThreshold is the default queue-depth throttle trigger.
const DefaultQueueThreshold = 1000

// DefaultLatencyThresholdMS is the default average-latency throttle
// trigger, in milliseconds.
const DefaultLatencyThresholdMS = 5000

// DefaultRecoveryFactor scales both thresholds down to decide when an
// active throttle lifts, so recovery needs real headroom rather than
// flapping right at the trigger boundary.
const DefaultRecoveryFactor = 0.8

// latencyWindowSize is the number of recent processing latencies kept.
const latencyWindowSize = 100

// Config tunes a Controller's throttle thresholds.
type Config struct {
	// QueueThreshold is the queue-depth trigger. <= 0 uses
	// DefaultQueueThreshold.
	QueueThreshold int
	// LatencyThresholdMS is the average-latency trigger in
	// milliseconds. <= 0 uses DefaultLatencyThresholdMS.
	LatencyThresholdMS float64
	// RecoveryFactor scales both thresholds for recovery. <= 0 uses
	// DefaultRecoveryFactor.
	RecoveryFactor float64
}

// Controller tracks the most recent depth per named queue and a
// sliding window of recent processing latencies, and derives a single
// throttle/no-throttle signal from them. Throttling is a one-shot
// latch: once tripped it stays on until both metrics drop below
// threshold*RecoveryFactor in the same call — there is no separate
// hysteresis counter, only the current window's two numbers.
type Controller struct {
	mu     sync.Mutex
	depths map[string]int

	latencies *ringbuffer.Buffer[float64]

	queueThreshold   int
	latencyThreshold float64
	recoveryFactor   float64

	throttling bool
}

// New creates a Controller with the given configuration.
func New(cfg Config) *Controller {
	queueThreshold := cfg.QueueThreshold
	if queueThreshold <= 0 {
		queueThreshold = DefaultQueueThreshold
	}
	latencyThreshold := cfg.LatencyThresholdMS
	if latencyThreshold <= 0 {
		latencyThreshold = DefaultLatencyThresholdMS
	}
	recoveryFactor := cfg.RecoveryFactor
	if recoveryFactor <= 0 {
		recoveryFactor = DefaultRecoveryFactor
	}
	return &Controller{
		depths:           make(map[string]int),
		latencies:        ringbuffer.New[float64](latencyWindowSize),
		queueThreshold:   queueThreshold,
		latencyThreshold: latencyThreshold,
		recoveryFactor:   recoveryFactor,
	}
}

// RecordDepth updates the most recently observed depth for a named
// queue (e.g. the priority queue's current length).
func (c *Controller) RecordDepth(queueName string, depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.depths[queueName] = depth
}

// RecordLatency feeds one task's processing latency into the sliding
// window used for the average-latency trigger.
func (c *Controller) RecordLatency(d time.Duration) {
	c.latencies.Add(float64(d.Milliseconds()))
}

func (c *Controller) maxDepthLocked() int {
	max := 0
	for _, d := range c.depths {
		if d > max {
			max = d
		}
	}
	return max
}

func (c *Controller) avgLatency() float64 {
	samples := c.latencies.Items()
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// ShouldThrottle reports whether the pool should shed Low priority work
// right now. It trips true the moment the largest tracked queue depth
// exceeds QueueThreshold or the average of the last 100 recorded
// latencies exceeds LatencyThresholdMS, and stays true until both
// metrics fall under threshold*RecoveryFactor.
func (c *Controller) ShouldThrottle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	maxDepth := c.maxDepthLocked()
	avgLatency := c.avgLatency()

	if float64(maxDepth) > float64(c.queueThreshold) || avgLatency > c.latencyThreshold {
		c.throttling = true
		return true
	}

	if c.throttling {
		recovered := float64(maxDepth) < float64(c.queueThreshold)*c.recoveryFactor &&
			avgLatency < c.latencyThreshold*c.recoveryFactor
		if recovered {
			c.throttling = false
		}
	}
	return c.throttling
}

// Stats is a snapshot of the controller's current view.
type Stats struct {
	MaxDepth       int
	AvgLatencyMS   float64
	Throttling     bool
	DepthByQueue   map[string]int
	LatencySamples int
}

// Snapshot returns the controller's current metrics without mutating
// throttle state.
func (c *Controller) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	depths := make(map[string]int, len(c.depths))
	for k, v := range c.depths {
		depths[k] = v
	}

	return Stats{
		MaxDepth:       c.maxDepthLocked(),
		AvgLatencyMS:   c.avgLatency(),
		Throttling:     c.throttling,
		DepthByQueue:   depths,
		LatencySamples: c.latencies.Size(),
	}
}
