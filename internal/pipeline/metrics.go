package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docext_extractions_total",
			Help: "Total number of document extractions",
		},
		[]string{"status"}, // status: success, failed, cached
	)

	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docext_pages_total",
			Help: "Total number of processed pages",
		},
		[]string{"source"}, // source: digital, ocr
	)

	extractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docext_extraction_duration_seconds",
			Help:    "Document extraction duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"method"},
	)

	needsReviewTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docext_needs_review_total",
			Help: "Total number of extractions flagged for human review",
		},
	)

	tablesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docext_tables_total",
			Help: "Total number of extracted tables",
		},
		[]string{"source"},
	)
)

func observe(res *ExtractionResult, elapsed time.Duration) {
	extractionsTotal.WithLabelValues("success").Inc()
	extractionDuration.WithLabelValues(res.Method).Observe(elapsed.Seconds())
	for _, pr := range res.Pages {
		pagesTotal.WithLabelValues(pr.Source.String()).Inc()
	}
	for _, t := range res.Tables {
		tablesTotal.WithLabelValues(t.Source.String()).Inc()
	}
	if res.NeedsReview {
		needsReviewTotal.Inc()
	}
}

