// Package metrics exposes harvest progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/harvester/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements domain.HarvestObserver by updating Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	pages         *prometheus.CounterVec
	records       prometheus.Counter
	writeFailures prometheus.Counter
	items         *prometheus.CounterVec
	discrepancies prometheus.Counter
	offset        prometheus.Gauge
	total         prometheus.Gauge
}

// NewCollector registers the harvest metrics on a fresh registry.
func NewCollector(version string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvester_info",
			Help: "Build information",
		},
		[]string{"version"},
	).WithLabelValues(version).Set(1)

	return &Collector{
		registry: reg,
		pages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Pages requested, by outcome",
			},
			[]string{"outcome"}, // ok, empty, fetch, encoding, parse, write
		),
		records: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvester_records_persisted_total",
			Help: "Records written to the sink",
		}),
		writeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvester_record_write_failures_total",
			Help: "Extracted records the sink rejected",
		}),
		items: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_total",
				Help: "Catalog items finished, by stop reason",
			},
			[]string{"stop"},
		),
		discrepancies: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvester_discrepancies_total",
			Help: "Items that yielded fewer records than the catalog advertised",
		}),
		offset: factory.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_catalog_offset",
			Help: "Next catalog offset to be processed",
		}),
		total: factory.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_catalog_items",
			Help: "Catalog size captured at the start of the run",
		}),
	}
}

func (c *Collector) OnPageDone(r domain.PageReport) {
	c.pages.WithLabelValues(pageOutcome(r)).Inc()
	c.records.Add(float64(r.Records))
	c.writeFailures.Add(float64(r.WriteFailures()))
}

func (c *Collector) OnItemDone(t domain.ItemTally) {
	c.items.WithLabelValues(t.Stop.String()).Inc()
	if t.Short() {
		c.discrepancies.Inc()
	}
}

func (c *Collector) OnBatchDone(p domain.BatchProgress) {
	c.offset.Set(float64(p.Offset))
	c.total.Set(float64(p.Total))
}

func pageOutcome(r domain.PageReport) string {
	switch {
	case r.Err != nil:
		return domain.ErrorKind(r.Err)
	case r.Records == 0:
		return "empty"
	default:
		return "ok"
	}
}

// Handler returns the scrape handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
