package analysis

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbuy/internal/models"
)

// marketRecords returns three areas:
//   - Dubai Marina: five quarters, rising prices, flat volume, no off-plan
//   - Business Bay: two quarters, falling prices, all off-plan
//   - Jumeirah Village Circle: a single quarter
func marketRecords() []models.Transaction {
	var records []models.Transaction
	add := func(area, day string, offPlan bool, prices ...float64) {
		for _, p := range prices {
			records = append(records, txn(area, day, p, offPlan))
		}
	}

	add("Dubai Marina", "2023-02-10", false, 100, 100)
	add("Dubai Marina", "2023-05-10", false, 100, 100)
	add("Dubai Marina", "2023-08-10", false, 100, 100)
	add("Dubai Marina", "2023-11-10", false, 200, 200)
	add("Dubai Marina", "2024-02-10", false, 210, 230)

	add("Business Bay", "2023-11-20", true, 100, 100)
	add("Business Bay", "2024-01-20", true, 70, 90)

	add("Jumeirah Village Circle", "2024-03-01", false, 50)
	return records
}

func marketTable(t *testing.T) *PatternTable {
	t.Helper()
	table, err := NewPatternTable([]models.PatternEntry{
		entry("P1", tagSet(models.TagUp, models.TagUp, models.TagStable, models.TagStable, models.TagLow)),
		entry("P11", tagSet(models.TagDown, models.TagDown, models.TagStable, models.TagStable, models.TagHigh)),
	})
	require.NoError(t, err)
	return table
}

func newTestAnalyzer(t *testing.T, table *PatternTable) (*Analyzer, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewAnalyzer(table, logger), hook
}

func TestAnalyzeMatched(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))

	result, err := analyzer.Analyze(marketRecords(), models.FilterCriteria{Areas: []string{"Dubai Marina"}})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeMatched, result.Outcome)
	assert.Equal(t, 10, result.RecordCount)
	assert.Len(t, result.Buckets, 5)
	require.NotNil(t, result.Trend)
	assert.False(t, result.Trend.YoYApproximate)
	assert.InDelta(t, 10.0, *result.Trend.QoQPriceChange, 1e-9)
	assert.InDelta(t, 120.0, *result.Trend.YoYPriceChange, 1e-9)
	assert.InDelta(t, 0.0, result.Trend.OffPlanShare, 1e-9)
	require.NotNil(t, result.Pattern)
	assert.Equal(t, "P1", result.Pattern.ID)
	assert.Equal(t, "insight P1", result.Pattern.InvestorInsight)
	assert.Equal(t, models.RecommendationStrongBuy, result.Recommendation)
}

func TestAnalyzeInsufficientHistory(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))

	result, err := analyzer.Analyze(marketRecords(), models.FilterCriteria{Areas: []string{"Jumeirah Village Circle"}})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInsufficientHistory, result.Outcome)
	assert.Nil(t, result.Trend)
	assert.Nil(t, result.Tags)
	assert.Nil(t, result.Pattern)
	assert.Len(t, result.Buckets, 1)
}

func TestAnalyzeEmptySelection(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))

	result, err := analyzer.Analyze(marketRecords(), models.FilterCriteria{Areas: []string{"Nowhere"}})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInsufficientHistory, result.Outcome)
	assert.Equal(t, 0, result.RecordCount)
}

func TestAnalyzeNoMatch(t *testing.T) {
	table, err := NewPatternTable([]models.PatternEntry{
		entry("P11", tagSet(models.TagDown, models.TagDown, models.TagStable, models.TagStable, models.TagHigh)),
	})
	require.NoError(t, err)
	analyzer, _ := newTestAnalyzer(t, table)

	result, err := analyzer.Analyze(marketRecords(), models.FilterCriteria{Areas: []string{"Dubai Marina"}})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoMatch, result.Outcome)
	require.NotNil(t, result.Tags)
	assert.Equal(t, "Up|Up|Stable|Stable|Low", result.Tags.Key())
	assert.Nil(t, result.Pattern)
}

func TestAnalyzeUndefinedTrend(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))
	records := []models.Transaction{
		txn("Free Zone", "2024-01-10", 0, false),
		txn("Free Zone", "2024-04-10", 100, false),
	}

	result, err := analyzer.Analyze(records, models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUndefinedTrend, result.Outcome)
	require.NotNil(t, result.Trend)
	assert.Contains(t, result.Trend.UndefinedMetrics, MetricQoQPrice)
	assert.Nil(t, result.Pattern)
}

func TestAnalyzeAmbiguousMatchLogsWarning(t *testing.T) {
	key := tagSet(models.TagUp, models.TagUp, models.TagStable, models.TagStable, models.TagLow)
	table, err := NewPatternTable([]models.PatternEntry{entry("P3", key), entry("P1", key)})
	require.NoError(t, err)
	analyzer, hook := newTestAnalyzer(t, table)

	result, err := analyzer.Analyze(marketRecords(), models.FilterCriteria{Areas: []string{"Dubai Marina"}})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAmbiguousMatch, result.Outcome)
	assert.Equal(t, "P3", result.Pattern.ID)
	assert.Equal(t, []string{"P3", "P1"}, result.Candidates)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Ambiguous pattern match, using first entry in table order" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestAnalyzeInvalidCriteria(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))

	_, err := analyzer.Analyze(marketRecords(), models.FilterCriteria{MinPrice: ptr(5), MaxPrice: ptr(1)})
	assert.ErrorIs(t, err, models.ErrInvalidCriteria)
}

func TestAreaPatterns(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))

	patterns, err := analyzer.AreaPatterns(context.Background(), marketRecords(), models.FilterCriteria{}, 2)
	require.NoError(t, err)
	require.Len(t, patterns, 3)

	assert.Equal(t, "Business Bay", patterns[0].Area)
	assert.Equal(t, "P11", patterns[0].PatternID)
	assert.Equal(t, models.RecommendationCaution, patterns[0].Recommendation)

	assert.Equal(t, "Dubai Marina", patterns[1].Area)
	assert.Equal(t, "P1", patterns[1].PatternID)

	assert.Equal(t, "Jumeirah Village Circle", patterns[2].Area)
	assert.Equal(t, models.OutcomeInsufficientHistory, patterns[2].Outcome)
	assert.Empty(t, patterns[2].PatternID)
}

func TestRecommend(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))

	recs, err := analyzer.Recommend(context.Background(), marketRecords(), models.FilterCriteria{}, 10, 4)
	require.NoError(t, err)

	require.NotNil(t, recs.LatestPeriod)
	assert.Equal(t, "2024-Q1", recs.LatestPeriod.String())
	assert.Equal(t, 3, recs.AreasAnalyzed)
	assert.Equal(t, 1, recs.AreasSkipped)

	require.Len(t, recs.Groups, 2)
	assert.Equal(t, models.RecommendationStrongBuy, recs.Groups[0].Recommendation)
	require.Len(t, recs.Groups[0].Areas, 1)
	assert.Equal(t, "Dubai Marina", recs.Groups[0].Areas[0].Area)
	assert.InDelta(t, 210.0, recs.Groups[0].Areas[0].Price, 1e-9)

	assert.Equal(t, models.RecommendationCaution, recs.Groups[1].Recommendation)
	assert.Equal(t, "Business Bay", recs.Groups[1].Areas[0].Area)
	assert.InDelta(t, 70.0, recs.Groups[1].Areas[0].Price, 1e-9)
}

func TestRecommendTopN(t *testing.T) {
	var records []models.Transaction
	areas := []string{"Area C", "Area A", "Area B"}
	for i, area := range areas {
		base := float64(100 * (i + 1))
		records = append(records,
			txn(area, "2023-11-01", base, false),
			txn(area, "2024-02-01", base*1.1, false),
		)
	}
	table, err := NewPatternTable([]models.PatternEntry{
		entry("P1", tagSet(models.TagUp, models.TagUp, models.TagStable, models.TagStable, models.TagLow)),
	})
	require.NoError(t, err)
	analyzer, _ := newTestAnalyzer(t, table)

	recs, err := analyzer.Recommend(context.Background(), records, models.FilterCriteria{}, 2, 0)
	require.NoError(t, err)
	require.Len(t, recs.Groups, 1)
	require.Len(t, recs.Groups[0].Areas, 2)
	assert.Equal(t, "Area C", recs.Groups[0].Areas[0].Area)
	assert.Equal(t, "Area A", recs.Groups[0].Areas[1].Area)
}

func TestRecommendEmpty(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))

	recs, err := analyzer.Recommend(context.Background(), nil, models.FilterCriteria{}, 10, 4)
	require.NoError(t, err)
	assert.Nil(t, recs.LatestPeriod)
	assert.Empty(t, recs.Groups)
}

func TestRecommendCancelled(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, marketTable(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.Recommend(ctx, marketRecords(), models.FilterCriteria{}, 10, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
