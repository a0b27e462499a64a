package backpressure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestController_NoThrottleWhenBelowThresholds(t *testing.T) {
	c := New(Config{QueueThreshold: 100, LatencyThresholdMS: 1000})
	c.RecordDepth("index", 10)
	c.RecordLatency(50 * time.Millisecond)

	assert.False(t, c.ShouldThrottle())
}

func TestController_ThrottlesOnDepth(t *testing.T) {
	c := New(Config{QueueThreshold: 100, LatencyThresholdMS: 1000})
	c.RecordDepth("index", 500)

	assert.True(t, c.ShouldThrottle())
}

func TestController_ThrottlesOnLatency(t *testing.T) {
	c := New(Config{QueueThreshold: 1000, LatencyThresholdMS: 100})
	for i := 0; i < 10; i++ {
		c.RecordLatency(200 * time.Millisecond)
	}

	assert.True(t, c.ShouldThrottle())
}

func TestController_RecoveryRequiresBothMetricsBelowRecoveryBound(t *testing.T) {
	c := New(Config{QueueThreshold: 100, LatencyThresholdMS: 1000, RecoveryFactor: 0.8})
	c.RecordDepth("index", 500)
	a := assert.New(t)
	a.True(c.ShouldThrottle())

	// Depth drops, but only to just under the hard threshold, still
	// above threshold*0.8 (=80) -- must remain throttling.
	c.RecordDepth("index", 90)
	a.True(c.ShouldThrottle())

	// Depth drops below the recovery bound; latency is still fine.
	c.RecordDepth("index", 50)
	a.False(c.ShouldThrottle())
}

func TestController_MaxDepthAcrossMultipleQueues(t *testing.T) {
	c := New(Config{QueueThreshold: 100, LatencyThresholdMS: 10000})
	c.RecordDepth("a", 10)
	c.RecordDepth("b", 200)
	c.RecordDepth("c", 5)

	assert.True(t, c.ShouldThrottle())
	assert.Equal(t, 200, c.Snapshot().MaxDepth)
}

func TestController_LatencyWindowIsBoundedTo100Samples(t *testing.T) {
	c := New(Config{QueueThreshold: 100000, LatencyThresholdMS: 100000})
	for i := 0; i < 50; i++ {
		c.RecordLatency(10000 * time.Millisecond)
	}
	for i := 0; i < 100; i++ {
		c.RecordLatency(time.Millisecond)
	}

	// The 50 slow samples should have aged out of the 100-sample window.
	snap := c.Snapshot()
	assert.Equal(t, 100, snap.LatencySamples)
	assert.Less(t, snap.AvgLatencyMS, 10.0)
}
