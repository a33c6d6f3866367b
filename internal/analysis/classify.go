package analysis

import (
	"math"

	"smartbuy/internal/models"
)

// Classification thresholds. Values exactly on a threshold fall into the
// lower tier.
const (
	ChangeThreshold        = 5.0
	OffPlanHighThreshold   = 0.5
	OffPlanMediumThreshold = 0.2
)

// ClassifyChange labels a percentage delta.
func ClassifyChange(delta float64) models.Tag {
	switch {
	case math.IsNaN(delta):
		return models.TagUnknown
	case delta > ChangeThreshold:
		return models.TagUp
	case delta < -ChangeThreshold:
		return models.TagDown
	default:
		return models.TagStable
	}
}

// ClassifyOffPlan labels an off-plan share in [0,1].
func ClassifyOffPlan(share float64) models.Tag {
	switch {
	case math.IsNaN(share):
		return models.TagUnknown
	case share > OffPlanHighThreshold:
		return models.TagHigh
	case share > OffPlanMediumThreshold:
		return models.TagMedium
	default:
		return models.TagLow
	}
}

// Classify maps trend metrics to the five pattern dimensions.
func Classify(m *models.TrendMetrics) models.TagSet {
	if m == nil {
		return models.TagSet{
			QoQPrice:  models.TagUnknown,
			YoYPrice:  models.TagUnknown,
			QoQVolume: models.TagUnknown,
			YoYVolume: models.TagUnknown,
			OffPlan:   models.TagUnknown,
		}
	}
	return models.TagSet{
		QoQPrice:  classifyOptional(m.QoQPriceChange),
		YoYPrice:  classifyOptional(m.YoYPriceChange),
		QoQVolume: classifyOptional(m.QoQVolumeChange),
		YoYVolume: classifyOptional(m.YoYVolumeChange),
		OffPlan:   ClassifyOffPlan(m.OffPlanShare),
	}
}

func classifyOptional(delta *float64) models.Tag {
	if delta == nil {
		return models.TagUnknown
	}
	return ClassifyChange(*delta)
}
