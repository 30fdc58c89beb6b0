package metrics

import (
	"fmt"
	"time"
)

var (
	modelBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120}
	toolBuckets  = []float64{0.01, 0.1, 0.5, 1, 5, 10, 30}
)

// ToolDispatched records one dispatch.
func (c *Collector) ToolDispatched(tool string, ok bool, took time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	c.Counter("tool_dispatch_total", "Tool dispatches by tool and outcome",
		fmt.Sprintf("tool=%q,status=%q", tool, status)).Inc()
	c.Histogram("tool_latency_seconds", "Tool execution latency in seconds", "", toolBuckets).
		Observe(took.Seconds())
}

// ToolDropped records a command rejected by the allow-list.
func (c *Collector) ToolDropped(tool string) {
	if c == nil {
		return
	}
	c.Counter("tool_dropped_total", "Commands dropped by the allow-list", fmt.Sprintf("tool=%q", tool)).Inc()
}

// ModelTurn records one model call.
func (c *Collector) ModelTurn(ok bool, took time.Duration) {
	if c == nil {
		return
	}
	if !ok {
		c.Counter("model_errors_total", "Failed model calls", "").Inc()
		return
	}
	c.Counter("model_turns_total", "Completed model calls", "").Inc()
	c.Histogram("model_latency_seconds", "Model call latency in seconds", "", modelBuckets).Observe(took.Seconds())
}

// EpisodeStarted marks an episode as running.
func (c *Collector) EpisodeStarted() {
	if c == nil {
		return
	}
	c.Gauge("active_episodes", "Episodes currently running", "").Inc()
}

// EpisodeEnded records how an episode finished.
func (c *Collector) EpisodeEnded(reason string) {
	if c == nil {
		return
	}
	c.Gauge("active_episodes", "Episodes currently running", "").Dec()
	c.Counter("episodes_total", "Finished episodes by reason", fmt.Sprintf("reason=%q", reason)).Inc()
}
