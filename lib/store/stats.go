package store

import (
	"github.com/rcrowley/go-metrics"
	"time"
)

// OpStats is a snapshot of the timings of one store operation
type OpStats struct {
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	Max   time.Duration `json:"max"`
}

// statsCollector times store operations in a private go-metrics registry.
// A nil collector is valid and records nothing.
type statsCollector struct {
	registry metrics.Registry
}

func newStatsCollector() *statsCollector {
	return &statsCollector{registry: metrics.NewRegistry()}
}

// time starts timing op, the returned function stops it
func (c *statsCollector) time(op string) func() {
	if c == nil {
		return func() {}
	}
	timer := metrics.GetOrRegisterTimer(op, c.registry)
	start := time.Now()
	return func() { timer.UpdateSince(start) }
}

func (c *statsCollector) snapshot() map[string]OpStats {
	out := make(map[string]OpStats)
	c.registry.Each(func(name string, m interface{}) {
		t, ok := m.(metrics.Timer)
		if !ok {
			return
		}
		snap := t.Snapshot()
		out[name] = OpStats{
			Count: snap.Count(),
			Mean:  time.Duration(snap.Mean()),
			Max:   time.Duration(snap.Max()),
		}
	})
	return out
}
