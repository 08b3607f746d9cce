package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts fee quote computations by outcome.
	QuoteTotal *prometheus.CounterVec
	// SheetUploadTotal counts rate sheet upload attempts by outcome.
	SheetUploadTotal *prometheus.CounterVec
	// RecalcCarsTotal counts cars touched by bulk recalculation by outcome.
	RecalcCarsTotal *prometheus.CounterVec
	// RecalcDuration records wall time of bulk recalculation runs in milliseconds.
	RecalcDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of fee quote computations by outcome.",
		}, []string{"result"})
		SheetUploadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_upload_total",
			Help:      "Count of rate sheet upload attempts by outcome.",
		}, []string{"result"})
		RecalcCarsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalc_cars_total",
			Help:      "Count of cars processed during bulk fee recalculation by outcome.",
		}, []string{"result"})
		RecalcDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalc_duration_ms",
			Help:      "Wall time of bulk fee recalculation runs in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		})

		mustRegisterCollector(reg, QuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTotal = v
			}
		})
		mustRegisterCollector(reg, SheetUploadTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SheetUploadTotal = v
			}
		})
		mustRegisterCollector(reg, RecalcCarsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RecalcCarsTotal = v
			}
		})
		mustRegisterCollector(reg, RecalcDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				RecalcDuration = v
			}
		})
	})
}

// CountQuote increments the quote counter when metrics are registered.
func CountQuote(result string) {
	if QuoteTotal != nil {
		QuoteTotal.WithLabelValues(result).Inc()
	}
}

// CountSheetUpload increments the sheet upload counter when metrics are registered.
func CountSheetUpload(result string) {
	if SheetUploadTotal != nil {
		SheetUploadTotal.WithLabelValues(result).Inc()
	}
}

// CountRecalcCar increments the recalculation counter when metrics are registered.
func CountRecalcCar(result string) {
	if RecalcCarsTotal != nil {
		RecalcCarsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveRecalcDuration records one bulk recalculation run when metrics are registered.
func ObserveRecalcDuration(ms float64) {
	if RecalcDuration != nil {
		RecalcDuration.Observe(ms)
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
