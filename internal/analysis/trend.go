package analysis

import (
	"errors"
	"fmt"

	"smartbuy/internal/models"
)

// yoyLag is the number of quarterly buckets between a period and its
// year-ago reference. The lag is positional: gaps in the series are not
// filled, so with missing quarters the reference is further back than a year.
const yoyLag = 4

// Metric names reported in TrendMetrics.UndefinedMetrics.
const (
	MetricQoQPrice  = "qoq_price"
	MetricYoYPrice  = "yoy_price"
	MetricQoQVolume = "qoq_volume"
	MetricYoYVolume = "yoy_volume"
)

// PercentChange returns (current - previous) / previous * 100.
func PercentChange(current, previous float64) (float64, error) {
	if previous == 0 {
		return 0, ErrDivisionByZero
	}
	return (current - previous) / previous * 100, nil
}

// OffPlanShare returns the fraction of records flagged off-plan.
func OffPlanShare(records []models.Transaction) (float64, error) {
	if len(records) == 0 {
		return 0, ErrNoRecords
	}
	offPlan := 0
	for i := range records {
		if records[i].OffPlan {
			offPlan++
		}
	}
	return float64(offPlan) / float64(len(records)), nil
}

// ComputeTrend derives the QoQ and YoY deltas from a chronological quarterly
// bucket series, and the off-plan share from the whole filtered record set.
//
// With fewer than five buckets the year-ago reference falls back to the
// second-to-last bucket and YoYApproximate is set.
func ComputeTrend(buckets []models.PeriodBucket, records []models.Transaction) (*models.TrendMetrics, error) {
	for _, b := range buckets {
		if b.Period.Granularity != models.GranularityQuarter {
			return nil, fmt.Errorf("%w: trend requires quarterly buckets, got %q", ErrUnsupportedGranularity, b.Period.Granularity)
		}
	}
	if len(buckets) < 2 {
		return nil, ErrInsufficientHistory
	}

	share, err := OffPlanShare(records)
	if err != nil {
		return nil, fmt.Errorf("failed to compute off-plan share: %w", err)
	}

	last := buckets[len(buckets)-1]
	previous := buckets[len(buckets)-2]
	yearAgo := previous
	approximate := true
	if len(buckets) > yoyLag {
		yearAgo = buckets[len(buckets)-1-yoyLag]
		approximate = false
	}

	m := &models.TrendMetrics{
		CurrentPeriod:  last.Period,
		OffPlanShare:   share,
		YoYApproximate: approximate,
	}

	deltas := []struct {
		name     string
		current  float64
		previous float64
		target   **float64
	}{
		{MetricQoQPrice, last.MeanPrice, previous.MeanPrice, &m.QoQPriceChange},
		{MetricYoYPrice, last.MeanPrice, yearAgo.MeanPrice, &m.YoYPriceChange},
		{MetricQoQVolume, float64(last.Volume), float64(previous.Volume), &m.QoQVolumeChange},
		{MetricYoYVolume, float64(last.Volume), float64(yearAgo.Volume), &m.YoYVolumeChange},
	}
	for _, d := range deltas {
		change, err := PercentChange(d.current, d.previous)
		if errors.Is(err, ErrDivisionByZero) {
			m.UndefinedMetrics = append(m.UndefinedMetrics, d.name)
			continue
		}
		*d.target = &change
	}

	return m, nil
}
