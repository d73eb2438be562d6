// Package metrics exports crawl progress via Prometheus.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Crawl owns all collectors for one crawler process: upsert results per
// entity, download outcomes per asset kind, and per-stage errors and runtime.
type Crawl struct {
	upserts       *prometheus.CounterVec
	downloads     *prometheus.CounterVec
	stageErrors   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	extResolved   *prometheus.CounterVec
}

// NewCrawl registers the collectors against the provided registry.
func NewCrawl(reg prometheus.Registerer) (*Crawl, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Crawl{
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autocrawl_upserts_total",
			Help: "Upserted rows partitioned by entity and result.",
		}, []string{"entity", "result"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autocrawl_downloads_total",
			Help: "Asset fetches partitioned by kind and outcome.",
		}, []string{"kind", "outcome"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autocrawl_stage_errors_total",
			Help: "Unit failures partitioned by pipeline stage.",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autocrawl_stage_duration_seconds",
			Help:    "Wall time per completed pipeline stage.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"stage"}),
		extResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autocrawl_ext_id_resolutions_total",
			Help: "Panorama ext-id resolution attempts partitioned by result.",
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		c.upserts,
		c.downloads,
		c.stageErrors,
		c.stageDuration,
		c.extResolved,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register crawl collector: %w", err)
		}
	}
	return c, nil
}

// All observers are safe on a nil receiver so metrics stay optional.

// ObserveUpsert records one upsert call's result split.
func (c *Crawl) ObserveUpsert(entity string, inserted, updated, skipped int) {
	if c == nil {
		return
	}
	c.upserts.WithLabelValues(entity, "inserted").Add(float64(inserted))
	c.upserts.WithLabelValues(entity, "updated").Add(float64(updated))
	c.upserts.WithLabelValues(entity, "skipped").Add(float64(skipped))
}

// ObserveDownload records one asset fetch outcome.
func (c *Crawl) ObserveDownload(kind, outcome string) {
	if c == nil {
		return
	}
	c.downloads.WithLabelValues(kind, outcome).Inc()
}

// ObserveStageError records one unit failure within a stage.
func (c *Crawl) ObserveStageError(stage string) {
	if c == nil {
		return
	}
	c.stageErrors.WithLabelValues(stage).Inc()
}

// ObserveStageDuration records the wall time of a completed stage.
func (c *Crawl) ObserveStageDuration(stage string, seconds float64) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObserveResolution records one ext-id resolution attempt.
func (c *Crawl) ObserveResolution(found bool) {
	if c == nil {
		return
	}
	result := "found"
	if !found {
		result = "not_found"
	}
	c.extResolved.WithLabelValues(result).Inc()
}
