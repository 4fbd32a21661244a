// Package metrics keeps local operational counters in an embedded
// tstorage time-series database under the application workdir. It is
// deliberately process-local; there is no exporter.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

// Metric names.
const (
	EventsDispatched  = "wagate_events_dispatched"
	MessagesSent      = "wagate_messages_sent"
	MessagesReceived  = "wagate_messages_received"
	WebhookDelivered  = "wagate_webhook_delivered"
	WebhookFailed     = "wagate_webhook_failed"
	SystemCpuPercent  = "wagate_system_cpu_percent"
	SystemMemPercent  = "wagate_system_mem_percent"
	ProcessCpuPercent = "wagate_process_cpu_percent"
	ProcessMemMB      = "wagate_process_mem_mb"
)

var (
	mu      sync.RWMutex
	storage tstorage.Storage
)

// InitMetrics opens the metrics store under workdir/metrics.
func InitMetrics(workdir string) error {
	st, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	if err != nil {
		return err
	}
	mu.Lock()
	storage = st
	mu.Unlock()
	return nil
}

// Counter records an increment for the named metric. A nil store (for
// example in tests) makes this a no-op.
func Counter(name string, value float64) {
	insert(name, value)
}

// Gauge records an instantaneous value for the named metric.
func Gauge(name string, value float64) {
	insert(name, value)
}

func insert(name string, value float64) {
	mu.RLock()
	st := storage
	mu.RUnlock()
	if st == nil {
		return
	}
	_ = st.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: value},
		},
	})
}

// Select returns the raw data points for a metric in [start, end].
func Select(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.RLock()
	st := storage
	mu.RUnlock()
	if st == nil {
		return nil, nil
	}
	return st.Select(name, nil, start, end)
}

// Sum totals a counter metric over [start, end].
func Sum(name string, start, end int64) float64 {
	points, err := Select(name, start, end)
	if err != nil {
		return 0
	}
	var total float64
	for _, p := range points {
		total += p.Value
	}
	return total
}

// Close flushes and closes the store.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
