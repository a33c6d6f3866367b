package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"smartbuy/internal/models"
)

const defaultWorkers = 4

// Analyzer runs the filter, aggregate, trend, classify and match chain
// against one pattern table.
type Analyzer struct {
	table  *PatternTable
	logger *logrus.Logger
}

// NewAnalyzer creates an analyzer bound to a pattern table.
func NewAnalyzer(table *PatternTable, logger *logrus.Logger) *Analyzer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	if dups := table.DuplicateKeys(); len(dups) > 0 {
		logger.WithField("keys", dups).Warn("Pattern table contains duplicate keys, lookups resolve to the first entry")
	}

	return &Analyzer{table: table, logger: logger}
}

// Table returns the pattern table the analyzer matches against.
func (a *Analyzer) Table() *PatternTable {
	return a.table
}

// Analyze filters records and runs the pipeline on the result. Only invalid
// criteria produce an error; every other condition is reported through
// Analysis.Outcome.
func (a *Analyzer) Analyze(records []models.Transaction, criteria models.FilterCriteria) (*models.Analysis, error) {
	filtered, err := FilterRecords(records, criteria)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeFiltered(filtered, criteria)
}

// AnalyzeFiltered runs the pipeline on an already filtered record set.
func (a *Analyzer) AnalyzeFiltered(filtered []models.Transaction, criteria models.FilterCriteria) (*models.Analysis, error) {
	buckets, err := Aggregate(filtered, models.GranularityQuarter)
	if err != nil {
		return nil, err
	}

	result := &models.Analysis{
		Criteria:    criteria,
		RecordCount: len(filtered),
		Buckets:     buckets,
	}

	trend, err := ComputeTrend(buckets, filtered)
	if errors.Is(err, ErrInsufficientHistory) {
		result.Outcome = models.OutcomeInsufficientHistory
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute trend: %w", err)
	}
	result.Trend = trend

	tags := Classify(trend)
	result.Tags = &tags
	if len(trend.UndefinedMetrics) > 0 {
		result.Outcome = models.OutcomeUndefinedTrend
		return result, nil
	}

	match := MatchPattern(tags, a.table)
	switch match.Outcome {
	case MatchNone:
		result.Outcome = models.OutcomeNoMatch
		return result, nil
	case MatchAmbiguous:
		a.logger.WithFields(logrus.Fields{
			"key":        tags.Key(),
			"candidates": match.Candidates,
			"selected":   match.Entry.ID,
		}).Warn("Ambiguous pattern match, using first entry in table order")
		result.Outcome = models.OutcomeAmbiguousMatch
		result.Candidates = match.Candidates
	default:
		result.Outcome = models.OutcomeMatched
	}

	result.Pattern = match.Entry
	rec, err := BucketForPattern(match.Entry.ID)
	if err != nil {
		a.logger.WithError(err).WithField("pattern_id", match.Entry.ID).Debug("Pattern id has no recommendation bucket")
	}
	result.Recommendation = rec
	return result, nil
}

// AreaPatterns runs the pipeline separately for every area in the filtered
// set, using up to workers goroutines. Results are ordered by area name.
func (a *Analyzer) AreaPatterns(ctx context.Context, records []models.Transaction, criteria models.FilterCriteria, workers int) ([]models.AreaPattern, error) {
	filtered, err := FilterRecords(records, criteria)
	if err != nil {
		return nil, err
	}
	areas, byArea := groupByArea(filtered)
	return a.analyzeAreas(ctx, areas, byArea, criteria, workers)
}

// Recommend builds the Smart Buy view: every area is bucketed by its own
// pattern, and the cheapest transaction of the latest quarter represents the
// area inside its bucket. At most topN areas are listed per bucket.
func (a *Analyzer) Recommend(ctx context.Context, records []models.Transaction, criteria models.FilterCriteria, topN, workers int) (*models.Recommendations, error) {
	filtered, err := FilterRecords(records, criteria)
	if err != nil {
		return nil, err
	}

	result := &models.Recommendations{Groups: []models.RecommendationGroup{}}
	latest, ok := LatestPeriod(filtered, models.GranularityQuarter)
	if !ok {
		return result, nil
	}
	result.LatestPeriod = &latest

	areas, byArea := groupByArea(filtered)
	patterns, err := a.analyzeAreas(ctx, areas, byArea, criteria, workers)
	if err != nil {
		return nil, err
	}
	result.AreasAnalyzed = len(patterns)

	picks := make(map[models.Recommendation][]models.AreaPick)
	for _, p := range patterns {
		if p.PatternID == "" {
			result.AreasSkipped++
			continue
		}
		cheapest, found := cheapestIn(byArea[p.Area], latest)
		if !found {
			result.AreasSkipped++
			continue
		}
		picks[p.Recommendation] = append(picks[p.Recommendation], models.AreaPick{
			Area:           p.Area,
			Price:          cheapest.Price,
			PropertyType:   cheapest.PropertyType,
			Bedrooms:       cheapest.Bedrooms,
			PatternID:      p.PatternID,
			Recommendation: p.Recommendation,
		})
	}

	for _, rec := range models.RecommendationOrder {
		group := picks[rec]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Price != group[j].Price {
				return group[i].Price < group[j].Price
			}
			return group[i].Area < group[j].Area
		})
		if topN > 0 && len(group) > topN {
			group = group[:topN]
		}
		result.Groups = append(result.Groups, models.RecommendationGroup{Recommendation: rec, Areas: group})
	}
	return result, nil
}

func (a *Analyzer) analyzeAreas(ctx context.Context, areas []string, byArea map[string][]models.Transaction, criteria models.FilterCriteria, workers int) ([]models.AreaPattern, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	results := make([]models.AreaPattern, len(areas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, area := range areas {
		i, area := i, area
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.AnalyzeFiltered(byArea[area], criteria)
			if err != nil {
				return fmt.Errorf("failed to analyze area %s: %w", area, err)
			}
			results[i] = models.AreaPattern{
				Area:        area,
				RecordCount: res.RecordCount,
				Outcome:     res.Outcome,
				Tags:        res.Tags,
			}
			if res.Pattern != nil {
				results[i].PatternID = res.Pattern.ID
				results[i].Recommendation = res.Recommendation
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"areas":   len(areas),
		"workers": workers,
	}).Debug("Analyzed area patterns")
	return results, nil
}

func groupByArea(records []models.Transaction) ([]string, map[string][]models.Transaction) {
	byArea := make(map[string][]models.Transaction)
	for i := range records {
		byArea[records[i].Area] = append(byArea[records[i].Area], records[i])
	}
	areas := make([]string, 0, len(byArea))
	for area := range byArea {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	return areas, byArea
}

func cheapestIn(records []models.Transaction, period models.Period) (models.Transaction, bool) {
	var cheapest models.Transaction
	found := false
	for i := range records {
		if models.PeriodOf(records[i].Date, period.Granularity) != period {
			continue
		}
		if !found || records[i].Price < cheapest.Price {
			cheapest = records[i]
			found = true
		}
	}
	return cheapest, found
}
