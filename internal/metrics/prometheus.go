//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	storageTotal   *prom.CounterVec
	storageSeconds *prom.HistogramVec
	toolTotal      *prom.CounterVec
	toolSeconds    *prom.HistogramVec
}

func (p *promRecorder) IncStorageOpTotal(op string, success bool) {
	p.storageTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveStorageOpSeconds(op string, success bool, seconds float64) {
	p.storageSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, fmt.Sprintf("%t", success)).Observe(seconds)
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := &promRecorder{
		storageTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "parsnip_storage_ops_total",
			Help: "Total number of storage/engine operations",
		}, []string{"op", "success"}),
		storageSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "parsnip_storage_op_seconds",
			Help:    "Storage/engine operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "parsnip_tool_calls_total",
			Help: "Total number of MCP tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "parsnip_tool_call_seconds",
			Help:    "MCP tool handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
	}

	registry.MustRegister(p.storageTotal, p.storageSeconds, p.toolTotal, p.toolSeconds)
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
