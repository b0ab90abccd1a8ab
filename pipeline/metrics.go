package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "deedflow_documents_processed_total",
	Help: "Documents reaching a terminal outcome, by status.",
}, []string{"status"})

var feeSources = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "deedflow_fee_source_total",
	Help: "Arbitrated registration-fee source per successful document.",
}, []string{"source"})

var stageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "deedflow_stage_duration_seconds",
	Help:    "Wall time per document per pipeline stage.",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
}, []string{"stage"})

var handoffDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "deedflow_handoff_buffer_depth",
	Help: "Hand-off records currently buffered between the stages.",
})
