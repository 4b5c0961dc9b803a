// Package metrics provides observability for the economy server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Save metrics
	SavesWritten    int64
	SaveLatencySum  int64
	SaveLatencyMax  int64
	SaveErrors      int64
	SavesCoalesced  int64
	ConsistencyHits int64

	// Session metrics
	SessionsActive  int64
	ActionsAccepted int64
	ActionsRejected int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordSave records one attempt to write a save to the store.
func (c *Collector) RecordSave(latency time.Duration, err error) {
	atomic.AddInt64(&c.SavesWritten, 1)
	atomic.AddInt64(&c.SaveLatencySum, int64(latency))

	if int64(latency) > atomic.LoadInt64(&c.SaveLatencyMax) {
		atomic.StoreInt64(&c.SaveLatencyMax, int64(latency))
	}

	if err != nil {
		atomic.AddInt64(&c.SaveErrors, 1)
	}
}

// RecordSaveCoalesced records a queued save replaced by a newer snapshot.
func (c *Collector) RecordSaveCoalesced() {
	atomic.AddInt64(&c.SavesCoalesced, 1)
}

// RecordConsistencyRepair records a loaded save that needed defaults merged in.
func (c *Collector) RecordConsistencyRepair() {
	atomic.AddInt64(&c.ConsistencyHits, 1)
}

// RecordSession records session open/evict.
func (c *Collector) RecordSession(delta int64) {
	atomic.AddInt64(&c.SessionsActive, delta)
}

// RecordAction records whether an action handler had an effect.
func (c *Collector) RecordAction(accepted bool) {
	if accepted {
		atomic.AddInt64(&c.ActionsAccepted, 1)
	} else {
		atomic.AddInt64(&c.ActionsRejected, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	saves := atomic.LoadInt64(&c.SavesWritten)

	var tickAvg, saveAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if saves > 0 {
		saveAvg = float64(atomic.LoadInt64(&c.SaveLatencySum)) / float64(saves) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"saves": map[string]interface{}{
			"written":            saves,
			"avg_latency_ms":     saveAvg,
			"max_latency_ms":     float64(atomic.LoadInt64(&c.SaveLatencyMax)) / 1e6,
			"errors":             atomic.LoadInt64(&c.SaveErrors),
			"coalesced":          atomic.LoadInt64(&c.SavesCoalesced),
			"consistency_merges": atomic.LoadInt64(&c.ConsistencyHits),
		},

		"sessions": map[string]interface{}{
			"active":           atomic.LoadInt64(&c.SessionsActive),
			"actions_accepted": atomic.LoadInt64(&c.ActionsAccepted),
			"actions_rejected": atomic.LoadInt64(&c.ActionsRejected),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP rush_tick_count Total production tick cycles\n")
		fmt.Fprintf(w, "# TYPE rush_tick_count counter\n")
		fmt.Fprintf(w, "rush_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP rush_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE rush_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "rush_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP rush_saves_written Total save attempts\n")
		fmt.Fprintf(w, "# TYPE rush_saves_written counter\n")
		fmt.Fprintf(w, "rush_saves_written %d\n\n", atomic.LoadInt64(&c.SavesWritten))

		fmt.Fprintf(w, "# HELP rush_save_errors Total failed save attempts\n")
		fmt.Fprintf(w, "# TYPE rush_save_errors counter\n")
		fmt.Fprintf(w, "rush_save_errors %d\n\n", atomic.LoadInt64(&c.SaveErrors))

		fmt.Fprintf(w, "# HELP rush_sessions_active Live sessions\n")
		fmt.Fprintf(w, "# TYPE rush_sessions_active gauge\n")
		fmt.Fprintf(w, "rush_sessions_active %d\n\n", atomic.LoadInt64(&c.SessionsActive))

		fmt.Fprintf(w, "# HELP rush_actions_total Action requests by outcome\n")
		fmt.Fprintf(w, "# TYPE rush_actions_total counter\n")
		fmt.Fprintf(w, "rush_actions_total{outcome=\"accepted\"} %d\n", atomic.LoadInt64(&c.ActionsAccepted))
		fmt.Fprintf(w, "rush_actions_total{outcome=\"rejected\"} %d\n\n", atomic.LoadInt64(&c.ActionsRejected))

		fmt.Fprintf(w, "# HELP rush_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE rush_ws_connections gauge\n")
		fmt.Fprintf(w, "rush_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP rush_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE rush_ws_messages_total counter\n")
		fmt.Fprintf(w, "rush_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "rush_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
