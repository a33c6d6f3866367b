package models

// TrendMetrics holds the period-over-period deltas of one query. A nil delta
// is an undefined trend (previous value of zero).
type TrendMetrics struct {
	CurrentPeriod    Period   `json:"current_period"`
	QoQPriceChange   *float64 `json:"qoq_price_change"`
	YoYPriceChange   *float64 `json:"yoy_price_change"`
	QoQVolumeChange  *float64 `json:"qoq_volume_change"`
	YoYVolumeChange  *float64 `json:"yoy_volume_change"`
	OffPlanShare     float64  `json:"offplan_share"`
	YoYApproximate   bool     `json:"yoy_approximate"`
	UndefinedMetrics []string `json:"undefined_metrics,omitempty"`
}

// Outcome is the result variant of an analysis run.
type Outcome string

const (
	OutcomeMatched             Outcome = "matched"
	OutcomeAmbiguousMatch      Outcome = "ambiguous_match"
	OutcomeNoMatch             Outcome = "no_match"
	OutcomeInsufficientHistory Outcome = "insufficient_history"
	OutcomeUndefinedTrend      Outcome = "undefined_trend"
)

// Analysis is everything the presentation layer needs for one query.
type Analysis struct {
	Criteria       FilterCriteria `json:"criteria"`
	RecordCount    int            `json:"record_count"`
	Buckets        []PeriodBucket `json:"buckets"`
	Outcome        Outcome        `json:"outcome"`
	Trend          *TrendMetrics  `json:"trend,omitempty"`
	Tags           *TagSet        `json:"tags,omitempty"`
	Pattern        *PatternEntry  `json:"pattern,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	Candidates     []string       `json:"candidates,omitempty"`
}

// Recommendation is the buy-signal bucket a pattern id belongs to.
type Recommendation string

const (
	RecommendationStrongBuy     Recommendation = "Strong Buy"
	RecommendationCautiousBuy   Recommendation = "Cautious Buy / Watch"
	RecommendationHold          Recommendation = "Hold / Neutral"
	RecommendationCaution       Recommendation = "Caution / Avoid"
	RecommendationRotation      Recommendation = "Rotation Candidate"
	RecommendationStrategicWait Recommendation = "Strategic Waitlist"
	RecommendationUnclassified  Recommendation = "Unclassified"
)

// RecommendationOrder is the display order of the recommendation groups.
var RecommendationOrder = []Recommendation{
	RecommendationStrongBuy,
	RecommendationCautiousBuy,
	RecommendationStrategicWait,
	RecommendationRotation,
	RecommendationHold,
	RecommendationCaution,
}

// AreaPattern is the pipeline result for a single area.
type AreaPattern struct {
	Area           string         `json:"area"`
	RecordCount    int            `json:"record_count"`
	Outcome        Outcome        `json:"outcome"`
	Tags           *TagSet        `json:"tags,omitempty"`
	PatternID      string         `json:"pattern_id,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
}

// AreaPick is the cheapest latest-period transaction of an area.
type AreaPick struct {
	Area           string         `json:"area"`
	Price          float64        `json:"price"`
	PropertyType   string         `json:"property_type"`
	Bedrooms       string         `json:"bedrooms"`
	PatternID      string         `json:"pattern_id"`
	Recommendation Recommendation `json:"recommendation"`
}

// RecommendationGroup lists the top areas of one recommendation bucket.
type RecommendationGroup struct {
	Recommendation Recommendation `json:"recommendation"`
	Areas          []AreaPick     `json:"areas"`
}

// Recommendations is the Smart Buy view for the latest quarter.
type Recommendations struct {
	LatestPeriod  *Period               `json:"latest_period,omitempty"`
	Groups        []RecommendationGroup `json:"groups"`
	AreasAnalyzed int                   `json:"areas_analyzed"`
	AreasSkipped  int                   `json:"areas_skipped"`
}
