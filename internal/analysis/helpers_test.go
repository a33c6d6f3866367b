package analysis

import (
	"fmt"
	"time"

	"smartbuy/internal/models"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func txn(area, day string, price float64, offPlan bool) models.Transaction {
	return models.Transaction{
		TransactionNumber: fmt.Sprintf("%s-%s-%.0f", area, day, price),
		Area:              area,
		PropertyType:      "Unit",
		Bedrooms:          "1 B/R",
		Price:             price,
		Date:              date(day),
		OffPlan:           offPlan,
	}
}

// quarterly builds consecutive quarterly buckets starting at 2023-Q1 with the
// given mean prices and a volume of 10 each.
func quarterly(prices ...float64) []models.PeriodBucket {
	buckets := make([]models.PeriodBucket, len(prices))
	for i, price := range prices {
		p := models.Period{
			Granularity: models.GranularityQuarter,
			Year:        2023 + i/4,
			Index:       i%4 + 1,
		}
		buckets[i] = models.PeriodBucket{Period: p, Label: p.String(), MeanPrice: price, Volume: 10}
	}
	return buckets
}

func ptr(v float64) *float64 {
	return &v
}

func entry(id string, tags models.TagSet) models.PatternEntry {
	return models.PatternEntry{
		ID:                     id,
		QoQPriceTag:            tags.QoQPrice,
		YoYPriceTag:            tags.YoYPrice,
		QoQVolumeTag:           tags.QoQVolume,
		YoYVolumeTag:           tags.YoYVolume,
		OffPlanTag:             tags.OffPlan,
		InvestorInsight:        "insight " + id,
		InvestorRecommendation: "recommendation " + id,
	}
}

func tagSet(qp, yp, qv, yv, op models.Tag) models.TagSet {
	return models.TagSet{QoQPrice: qp, YoYPrice: yp, QoQVolume: qv, YoYVolume: yv, OffPlan: op}
}
