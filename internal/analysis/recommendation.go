package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"smartbuy/internal/models"
)

type numberRange struct{ from, to int }

type recommendationRule struct {
	recommendation models.Recommendation
	ranges         []numberRange
}

// recommendationRules are evaluated in order; the first rule containing the
// pattern number wins, so numbers listed under several buckets resolve to the
// earliest one.
var recommendationRules = []recommendationRule{
	{models.RecommendationStrongBuy, []numberRange{{1, 1}, {50, 53}}},
	{models.RecommendationCautiousBuy, []numberRange{{2, 5}, {30, 34}, {38, 40}}},
	{models.RecommendationHold, []numberRange{{6, 10}, {32, 32}, {41, 41}, {54, 57}}},
	{models.RecommendationCaution, []numberRange{{11, 15}, {35, 37}, {43, 49}, {58, 63}}},
	{models.RecommendationRotation, []numberRange{{16, 20}, {42, 42}, {44, 44}, {60, 61}}},
	{models.RecommendationStrategicWait, []numberRange{{21, 29}, {62, 62}}},
}

// PatternNumber parses ids of the form "P12" (the prefix is optional).
func PatternNumber(id string) (int, error) {
	trimmed := strings.TrimSpace(id)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "P"), "p")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPatternID, id)
	}
	return n, nil
}

// BucketForPattern returns the recommendation bucket of a pattern id.
func BucketForPattern(id string) (models.Recommendation, error) {
	n, err := PatternNumber(id)
	if err != nil {
		return models.RecommendationUnclassified, err
	}
	for _, rule := range recommendationRules {
		for _, r := range rule.ranges {
			if n >= r.from && n <= r.to {
				return rule.recommendation, nil
			}
		}
	}
	return models.RecommendationUnclassified, nil
}
