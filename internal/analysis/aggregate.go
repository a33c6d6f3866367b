package analysis

import (
	"fmt"
	"sort"

	"smartbuy/internal/models"
)

// Aggregate groups records into calendar periods and returns one bucket per
// non-empty period in chronological order.
func Aggregate(records []models.Transaction, g models.Granularity) ([]models.PeriodBucket, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, g)
	}

	type accumulator struct {
		sum   float64
		count int
	}
	acc := make(map[models.Period]*accumulator)
	for i := range records {
		p := models.PeriodOf(records[i].Date, g)
		a, ok := acc[p]
		if !ok {
			a = &accumulator{}
			acc[p] = a
		}
		a.sum += records[i].Price
		a.count++
	}

	buckets := make([]models.PeriodBucket, 0, len(acc))
	for p, a := range acc {
		buckets = append(buckets, models.PeriodBucket{
			Period:    p,
			Label:     p.String(),
			MeanPrice: a.sum / float64(a.count),
			Volume:    a.count,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Period.Before(buckets[j].Period)
	})
	return buckets, nil
}

// LatestPeriod returns the most recent period among records.
func LatestPeriod(records []models.Transaction, g models.Granularity) (models.Period, bool) {
	var latest models.Period
	found := false
	for i := range records {
		p := models.PeriodOf(records[i].Date, g)
		if !found || latest.Before(p) {
			latest = p
			found = true
		}
	}
	return latest, found
}
