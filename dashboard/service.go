// Package dashboard is the cache's primary consumer: memoized metric
// accessors for the analytics dashboard, each endpoint with its own TTL.
package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/estruturaiagen/dashcache"
)

// Period selects the dashboard time window.
type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
	PeriodAll Period = "all"
)

// Periods lists every window the dashboard exposes, in display order.
func Periods() []Period {
	return []Period{Period24h, Period7d, Period30d, PeriodAll}
}

// MetricsQuery identifies one dashboard view: a time window for one user.
type MetricsQuery struct {
	Period Period `json:"period"`
	UserID int    `json:"user_id"`
}

func (q MetricsQuery) withDefaults() MetricsQuery {
	if q.Period == "" {
		q.Period = Period24h
	}
	if q.UserID == 0 {
		q.UserID = 1
	}
	return q
}

// MetricPoint is one sampled observation.
type MetricPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	Efficiency   float64   `json:"ia_efficiency"`
	Accuracy     float64   `json:"model_accuracy"`
	ProcessingMS float64   `json:"processing_time_ms"`
	MemoryMB     float64   `json:"memory_usage_mb"`
	ErrorRatePct float64   `json:"error_rate"`
}

// MetricsReport is the aggregated answer for one query.
type MetricsReport struct {
	Query     MetricsQuery  `json:"query"`
	Points    []MetricPoint `json:"points"`
	Synthetic bool          `json:"synthetic,omitempty"`

	AvgEfficiency   float64 `json:"avg_efficiency"`
	AvgAccuracy     float64 `json:"avg_accuracy"`
	AvgProcessingMS float64 `json:"avg_processing_time"`
	AvgMemoryMB     float64 `json:"avg_memory"`
	AvgErrorRatePct float64 `json:"avg_error_rate"`
}

// Summarize recomputes the average fields from Points. Sources call it after
// assembling the series.
func (r *MetricsReport) Summarize() {
	n := float64(len(r.Points))
	if n == 0 {
		return
	}
	var eff, acc, proc, mem, errRate float64
	for _, p := range r.Points {
		eff += p.Efficiency
		acc += p.Accuracy
		proc += p.ProcessingMS
		mem += p.MemoryMB
		errRate += p.ErrorRatePct
	}
	r.AvgEfficiency = eff / n
	r.AvgAccuracy = acc / n
	r.AvgProcessingMS = proc / n
	r.AvgMemoryMB = mem / n
	r.AvgErrorRatePct = errRate / n
}

// Stats is the consolidated summary shown in the dashboard header.
type Stats struct {
	TotalRecords    int     `json:"total_records"`
	AvgEfficiency   float64 `json:"avg_efficiency"`
	AvgAccuracy     float64 `json:"avg_accuracy"`
	AvgProcessingMS float64 `json:"avg_processing_time"`
	AvgMemoryMB     float64 `json:"avg_memory_usage"`
	AvgErrorRatePct float64 `json:"avg_error_rate"`
	Period          Period  `json:"period"`
	LastUpdated     string  `json:"last_updated"`
}

// ChartConfig styles one dashboard chart.
type ChartConfig struct {
	Title string `json:"title"`
	Color string `json:"color"`
	Unit  string `json:"unit"`
}

var chartConfigs = map[string]ChartConfig{
	"efficiency":  {Title: "AI Efficiency", Color: "#BBF244", Unit: "%"},
	"accuracy":    {Title: "Model Accuracy", Color: "#F27244", Unit: "%"},
	"performance": {Title: "Processing Time", Color: "#00D9FF", Unit: "ms"},
	"memory":      {Title: "Memory Usage", Color: "#FF00FF", Unit: "MB"},
}

// Source produces metric reports. Implementations must be pure with respect
// to the query: equal queries may be re-invoked at any time and should yield
// equivalent reports, since results are cached and recomputed after expiry.
type Source interface {
	Metrics(ctx context.Context, q MetricsQuery) (MetricsReport, error)
}

// Service wraps a Source with per-endpoint memoization. Metric reports are
// cached for 5 minutes, consolidated stats for 10 and chart configs for 1,
// matching the refresh cadence of the dashboard views they feed.
type Service struct {
	source  Source
	metrics *dashcache.Memoized[MetricsQuery, MetricsReport]
	stats   *dashcache.Memoized[MetricsQuery, Stats]
	charts  *dashcache.Memoized[string, ChartConfig]
	now     func() time.Time
}

// ServiceOption adjusts Service construction.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	metricsTTL time.Duration
	statsTTL   time.Duration
	chartTTL   time.Duration
	now        func() time.Time
}

// WithMetricsTTL overrides the metric report TTL.
func WithMetricsTTL(ttl time.Duration) ServiceOption {
	return func(c *serviceConfig) { c.metricsTTL = ttl }
}

// WithStatsTTL overrides the consolidated stats TTL.
func WithStatsTTL(ttl time.Duration) ServiceOption {
	return func(c *serviceConfig) { c.statsTTL = ttl }
}

// WithChartTTL overrides the chart config TTL.
func WithChartTTL(ttl time.Duration) ServiceOption {
	return func(c *serviceConfig) { c.chartTTL = ttl }
}

// WithClock overrides the wall clock used for the stats timestamp.
func WithClock(now func() time.Time) ServiceOption {
	return func(c *serviceConfig) { c.now = now }
}

// NewService builds the memoized dashboard accessors on top of m.
func NewService(m *dashcache.Manager, source Source, opts ...ServiceOption) *Service {
	cfg := serviceConfig{
		metricsTTL: 5 * time.Minute,
		statsTTL:   10 * time.Minute,
		chartTTL:   time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Service{source: source, now: cfg.now}
	s.metrics = dashcache.Memoize(m, "dashboard_metrics", cfg.metricsTTL, func(ctx context.Context, q MetricsQuery) (MetricsReport, error) {
		return source.Metrics(ctx, q)
	})
	s.stats = dashcache.Memoize(m, "dashboard_stats", cfg.statsTTL, s.computeStats)
	s.charts = dashcache.Memoize(m, "chart_config", cfg.chartTTL, func(_ context.Context, chartType string) (ChartConfig, error) {
		cfgEntry, ok := chartConfigs[chartType]
		if !ok {
			cfgEntry = chartConfigs["efficiency"]
		}
		return cfgEntry, nil
	})
	return s
}

// Metrics returns the aggregated report for q, cached per (period, user).
func (s *Service) Metrics(ctx context.Context, q MetricsQuery) (MetricsReport, error) {
	return s.metrics.Call(ctx, q.withDefaults())
}

// Stats returns the consolidated summary for q, cached per (period, user).
func (s *Service) Stats(ctx context.Context, q MetricsQuery) (Stats, error) {
	return s.stats.Call(ctx, q.withDefaults())
}

func (s *Service) computeStats(ctx context.Context, q MetricsQuery) (Stats, error) {
	report, err := s.Metrics(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalRecords:    len(report.Points),
		AvgEfficiency:   round(report.AvgEfficiency, 3),
		AvgAccuracy:     round(report.AvgAccuracy, 3),
		AvgProcessingMS: round(report.AvgProcessingMS, 2),
		AvgMemoryMB:     round(report.AvgMemoryMB, 2),
		AvgErrorRatePct: round(report.AvgErrorRatePct, 2),
		Period:          q.Period,
		LastUpdated:     s.now().UTC().Format(time.RFC3339),
	}, nil
}

// ChartConfig returns the styling for a chart type, defaulting to the
// efficiency chart for unknown types.
func (s *Service) ChartConfig(ctx context.Context, chartType string) (ChartConfig, error) {
	return s.charts.Call(ctx, chartType)
}

// InvalidateUser drops cached reports and stats for one user across every
// period. Chart configs are user-independent and left alone.
func (s *Service) InvalidateUser(ctx context.Context, userID int) error {
	for _, period := range Periods() {
		q := MetricsQuery{Period: period, UserID: userID}.withDefaults()
		if err := s.metrics.Invalidate(ctx, q); err != nil {
			return err
		}
		if err := s.stats.Invalidate(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateAll drops every cached dashboard entry.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if err := s.metrics.InvalidateAll(ctx); err != nil {
		return err
	}
	if err := s.stats.InvalidateAll(ctx); err != nil {
		return err
	}
	return s.charts.InvalidateAll(ctx)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
