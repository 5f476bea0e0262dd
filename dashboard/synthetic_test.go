package dashboard

import (
	"context"
	"testing"
	"time"
)

func TestSyntheticSourceDeterministic(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return fixed }
	ctx := context.Background()
	q := MetricsQuery{Period: Period7d, UserID: 3}

	a, err := NewSyntheticSource(42).WithNow(now).Metrics(ctx, q)
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	b, err := NewSyntheticSource(42).WithNow(now).Metrics(ctx, q)
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	if len(a.Points) != len(b.Points) {
		t.Fatalf("point counts differ: %d vs %d", len(a.Points), len(b.Points))
	}
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			t.Fatalf("point %d differs: %+v vs %+v", i, a.Points[i], b.Points[i])
		}
	}
}

func TestSyntheticSourceSeedAndQueryVarySeries(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return fixed }
	ctx := context.Background()
	q := MetricsQuery{Period: Period24h, UserID: 1}

	base, _ := NewSyntheticSource(1).WithNow(now).Metrics(ctx, q)
	otherSeed, _ := NewSyntheticSource(2).WithNow(now).Metrics(ctx, q)
	if base.Points[0] == otherSeed.Points[0] {
		t.Fatalf("expected different seeds to produce different series")
	}
	otherUser, _ := NewSyntheticSource(1).WithNow(now).Metrics(ctx, MetricsQuery{Period: Period24h, UserID: 2})
	if base.Points[0] == otherUser.Points[0] {
		t.Fatalf("expected different users to produce different series")
	}
}

func TestSyntheticSourcePointCountPerPeriod(t *testing.T) {
	ctx := context.Background()
	src := NewSyntheticSource(7)
	want := map[Period]int{
		Period24h: 24,
		Period7d:  60,
		Period30d: 96,
		PeriodAll: 144,
	}
	for period, count := range want {
		report, err := src.Metrics(ctx, MetricsQuery{Period: period, UserID: 1})
		if err != nil {
			t.Fatalf("metrics %q failed: %v", period, err)
		}
		if len(report.Points) != count {
			t.Fatalf("period %q: expected %d points, got %d", period, count, len(report.Points))
		}
		if !report.Synthetic {
			t.Fatalf("expected synthetic flag set")
		}
	}
}

func TestSyntheticSourceValueRanges(t *testing.T) {
	ctx := context.Background()
	report, err := NewSyntheticSource(7).Metrics(ctx, MetricsQuery{Period: PeriodAll, UserID: 1})
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	for i, p := range report.Points {
		if p.Efficiency < 0.85 || p.Efficiency > 0.99 {
			t.Fatalf("point %d: efficiency out of range: %f", i, p.Efficiency)
		}
		if p.Accuracy < 0.88 || p.Accuracy > 0.98 {
			t.Fatalf("point %d: accuracy out of range: %f", i, p.Accuracy)
		}
		if p.ProcessingMS < 20 || p.ProcessingMS > 100 {
			t.Fatalf("point %d: processing out of range: %f", i, p.ProcessingMS)
		}
		if p.MemoryMB < 200 || p.MemoryMB > 512 {
			t.Fatalf("point %d: memory out of range: %f", i, p.MemoryMB)
		}
		if p.ErrorRatePct < 1 || p.ErrorRatePct > 5 {
			t.Fatalf("point %d: error rate out of range: %f", i, p.ErrorRatePct)
		}
	}
}

func TestSyntheticSourceTimestampsAscendHourly(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	report, err := NewSyntheticSource(7).WithNow(func() time.Time { return fixed }).
		Metrics(context.Background(), MetricsQuery{Period: Period24h, UserID: 1})
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	for i := 1; i < len(report.Points); i++ {
		if got := report.Points[i].Timestamp.Sub(report.Points[i-1].Timestamp); got != time.Hour {
			t.Fatalf("point %d: expected hourly spacing, got %v", i, got)
		}
	}
	last := report.Points[len(report.Points)-1].Timestamp
	if last != fixed.Add(-time.Hour) {
		t.Fatalf("expected latest point one hour before now, got %v", last)
	}
}

func TestMetricsReportSummarize(t *testing.T) {
	report := MetricsReport{Points: []MetricPoint{
		{Efficiency: 0.75, Accuracy: 0.5, ProcessingMS: 40, MemoryMB: 300, ErrorRatePct: 2},
		{Efficiency: 1.25, Accuracy: 1.5, ProcessingMS: 60, MemoryMB: 400, ErrorRatePct: 4},
	}}
	report.Summarize()
	if report.AvgEfficiency != 1 || report.AvgAccuracy != 1 {
		t.Fatalf("unexpected averages: %+v", report)
	}
	if report.AvgProcessingMS != 50 || report.AvgMemoryMB != 350 || report.AvgErrorRatePct != 3 {
		t.Fatalf("unexpected averages: %+v", report)
	}

	empty := MetricsReport{}
	empty.Summarize()
	if empty.AvgEfficiency != 0 {
		t.Fatalf("expected zero averages for empty report")
	}
}
