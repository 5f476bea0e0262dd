package dashboard

import (
	"context"
	"math/rand"
	"time"

	"github.com/cespare/xxhash/v2"
)

// periodMultipliers scale the sample count and volume per window; the base
// window yields one point per hour.
var periodMultipliers = map[Period]float64{
	Period24h: 1.0,
	Period7d:  2.5,
	Period30d: 4.0,
	PeriodAll: 6.0,
}

// SyntheticSource generates plausible metric series when no real backend is
// wired, for development and tests. Output is deterministic per (seed,
// query): equal queries always produce equal reports.
type SyntheticSource struct {
	seed int64
	now  func() time.Time
}

// NewSyntheticSource builds a generator around seed.
func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{seed: seed, now: time.Now}
}

// WithNow overrides the clock used for point timestamps, keeping series fully
// reproducible in tests.
func (s *SyntheticSource) WithNow(now func() time.Time) *SyntheticSource {
	s.now = now
	return s
}

// Metrics generates the synthetic report for q.
func (s *SyntheticSource) Metrics(_ context.Context, q MetricsQuery) (MetricsReport, error) {
	q = q.withDefaults()
	multiplier, ok := periodMultipliers[q.Period]
	if !ok {
		multiplier = 1.0
	}
	count := int(24 * multiplier)

	// Mix the query into the seed so each (period, user) has its own stable
	// series.
	h := xxhash.New()
	_, _ = h.WriteString(string(q.Period))
	_, _ = h.Write([]byte{byte(q.UserID), byte(q.UserID >> 8)})
	rng := rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))

	now := s.now().UTC()
	points := make([]MetricPoint, count)
	for i := range points {
		points[i] = MetricPoint{
			Timestamp:    now.Add(-time.Duration(count-i) * time.Hour),
			Efficiency:   uniform(rng, 0.85, 0.99),
			Accuracy:     uniform(rng, 0.88, 0.98),
			ProcessingMS: uniform(rng, 20, 100),
			MemoryMB:     uniform(rng, 200, 512),
			ErrorRatePct: uniform(rng, 0.01, 0.05) * 100,
		}
	}

	report := MetricsReport{Query: q, Points: points, Synthetic: true}
	report.Summarize()
	return report, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
