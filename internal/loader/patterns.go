package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"smartbuy/internal/models"
)

var ErrUnsupportedFormat = errors.New("unsupported pattern file format")

// Pattern table fields, keyed by their normalized header name. Several
// spellings are accepted for each.
const (
	patternID                     = "id"
	patternQoQPrice               = "qoq_price"
	patternYoYPrice               = "yoy_price"
	patternQoQVolume              = "qoq_volume"
	patternYoYVolume              = "yoy_volume"
	patternOffPlan                = "off_plan"
	patternInvestorInsight        = "investor_insight"
	patternInvestorRecommendation = "investor_recommendation"
	patternEndUserInsight         = "enduser_insight"
	patternEndUserRecommendation  = "enduser_recommendation"
)

var patternHeaderAliases = map[string]string{
	"patternid":              patternID,
	"id":                     patternID,
	"qoqpricetag":            patternQoQPrice,
	"qoqprice":               patternQoQPrice,
	"yoypricetag":            patternYoYPrice,
	"yoyprice":               patternYoYPrice,
	"qoqvolumetag":           patternQoQVolume,
	"qoqvolume":              patternQoQVolume,
	"yoyvolumetag":           patternYoYVolume,
	"yoyvolume":              patternYoYVolume,
	"offplantag":             patternOffPlan,
	"offplan":                patternOffPlan,
	"investorinsight":        patternInvestorInsight,
	"investorrecommendation": patternInvestorRecommendation,
	"enduserinsight":         patternEndUserInsight,
	"enduserrecommendation":  patternEndUserRecommendation,
}

var requiredPatternFields = []string{
	patternID, patternQoQPrice, patternYoYPrice, patternQoQVolume, patternYoYVolume, patternOffPlan,
}

// LoadPatterns reads a pattern table from a .csv, .yaml or .yml file.
func LoadPatterns(path string) ([]models.PatternEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadPatternsCSV(f)
	case ".yaml", ".yml":
		return ReadPatternsYAML(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadPatternsCSV reads a pattern table with one pattern per row.
func ReadPatternsCSV(r io.Reader) ([]models.PatternEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Missing: append([]string(nil), requiredPatternFields...)}
		}
		return nil, fmt.Errorf("failed to read pattern header: %w", err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		if field, ok := patternHeaderAliases[compactHeader(name)]; ok {
			columns[field] = i
		}
	}
	var missing []string
	for _, field := range requiredPatternFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	get := func(record []string, field string) string {
		i, ok := columns[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var entries []models.PatternEntry
	line := 1
	for {
		record, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}

		e := models.PatternEntry{
			ID:                     get(record, patternID),
			QoQPriceTag:            models.Tag(get(record, patternQoQPrice)),
			YoYPriceTag:            models.Tag(get(record, patternYoYPrice)),
			QoQVolumeTag:           models.Tag(get(record, patternQoQVolume)),
			YoYVolumeTag:           models.Tag(get(record, patternYoYVolume)),
			OffPlanTag:             models.Tag(get(record, patternOffPlan)),
			InvestorInsight:        get(record, patternInvestorInsight),
			InvestorRecommendation: get(record, patternInvestorRecommendation),
			EndUserInsight:         get(record, patternEndUserInsight),
			EndUserRecommendation:  get(record, patternEndUserRecommendation),
		}
		if err := normalizeEntry(&e, len(entries)); err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type patternFile struct {
	Patterns []models.PatternEntry `yaml:"patterns"`
}

// ReadPatternsYAML reads a pattern table of the form `patterns: [...]`.
func ReadPatternsYAML(r io.Reader) ([]models.PatternEntry, error) {
	var file patternFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse pattern yaml: %w", err)
	}

	for i := range file.Patterns {
		if err := normalizeEntry(&file.Patterns[i], i); err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i+1, err)
		}
	}
	return file.Patterns, nil
}

// normalizeEntry canonicalizes tag spelling and records the table position.
func normalizeEntry(e *models.PatternEntry, position int) error {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		return fmt.Errorf("%w: pattern id", ErrEmptyField)
	}
	for _, tag := range []*models.Tag{&e.QoQPriceTag, &e.YoYPriceTag, &e.QoQVolumeTag, &e.YoYVolumeTag, &e.OffPlanTag} {
		parsed, err := models.ParseTag(string(*tag))
		if err != nil {
			return fmt.Errorf("pattern %s: %w", e.ID, err)
		}
		*tag = parsed
	}
	e.Position = position
	return nil
}

func compactHeader(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimPrefix(name, "\ufeff")) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
