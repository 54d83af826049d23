package server

import (
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"net/http"
	"time"
)

// providerMetrics holds the metrics of all providers of one server
type providerMetrics struct {
	set      *metrics.Set
	bytesIn  *metrics.Counter
	bytesOut *metrics.Counter
}

func newProviderMetrics() *providerMetrics {
	set := metrics.NewSet()
	return &providerMetrics{
		set:      set,
		bytesIn:  set.GetOrCreateCounter(`rkv_provider_bytes_total{dir="in"}`),
		bytesOut: set.GetOrCreateCounter(`rkv_provider_bytes_total{dir="out"}`),
	}
}

// observe records one handled request
func (m *providerMetrics) observe(t common.MessageType, status common.Status, start time.Time) {
	if m == nil {
		return
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`rkv_provider_requests_total{op=%q,status=%q}`, t.String(), status.String())).Inc()
	m.set.GetOrCreateHistogram(fmt.Sprintf(`rkv_provider_request_duration_seconds{op=%q}`, t.String())).UpdateDuration(start)
}

// WritePrometheus writes the provider metrics followed by the process metrics
func (m *providerMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
	metrics.WritePrometheus(w, true)
}

// handler serves the metrics in the prometheus text format
func (m *providerMetrics) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m.WritePrometheus(w)
	})
}
