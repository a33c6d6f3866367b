package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbuy/internal/models"
)

const samplePatternsCSV = `PatternID,QoQ_Price_Tag,YoY_Price_Tag,QoQ_Volume_Tag,YoY_Volume_Tag,OffPlan_Tag,Investor_Insight,Investor_Recommendation,EndUser_Insight,EndUser_Recommendation
P1,Up,Up,Up,Up,Low,Strong momentum,Buy now,Prices rising,Buy soon
P11,down,DOWN,Down,Down,high,Oversupply,Avoid,Falling prices,Wait
`

const samplePatternsYAML = `patterns:
  - id: P1
    qoq_price: Up
    yoy_price: Up
    qoq_volume: Stable
    yoy_volume: Up
    off_plan: low
    investor_insight: Strong momentum
  - id: P2
    qoq_price: Down
    yoy_price: Up
    qoq_volume: Down
    yoy_volume: Stable
    off_plan: Medium
`

func TestReadPatternsCSV(t *testing.T) {
	entries, err := ReadPatternsCSV(strings.NewReader(samplePatternsCSV))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "P1", entries[0].ID)
	assert.Equal(t, 0, entries[0].Position)
	assert.Equal(t, "Strong momentum", entries[0].InvestorInsight)
	assert.Equal(t, "Buy soon", entries[0].EndUserRecommendation)

	assert.Equal(t, 1, entries[1].Position)
	assert.Equal(t, models.TagSet{
		QoQPrice:  models.TagDown,
		YoYPrice:  models.TagDown,
		QoQVolume: models.TagDown,
		YoYVolume: models.TagDown,
		OffPlan:   models.TagHigh,
	}, entries[1].Tags())
}

func TestReadPatternsCSVErrors(t *testing.T) {
	t.Run("Missing tag column", func(t *testing.T) {
		_, err := ReadPatternsCSV(strings.NewReader("PatternID,QoQ_Price_Tag\nP1,Up\n"))
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Missing, patternOffPlan)
	})

	t.Run("Bad tag", func(t *testing.T) {
		input := "PatternID,QoQ_Price_Tag,YoY_Price_Tag,QoQ_Volume_Tag,YoY_Volume_Tag,OffPlan_Tag\nP1,Sideways,Up,Up,Up,Low\n"
		_, err := ReadPatternsCSV(strings.NewReader(input))
		var rowErr *RowError
		require.ErrorAs(t, err, &rowErr)
		assert.Equal(t, 2, rowErr.Line)
	})

	t.Run("Missing id", func(t *testing.T) {
		input := "PatternID,QoQ_Price_Tag,YoY_Price_Tag,QoQ_Volume_Tag,YoY_Volume_Tag,OffPlan_Tag\n,Up,Up,Up,Up,Low\n"
		_, err := ReadPatternsCSV(strings.NewReader(input))
		assert.ErrorIs(t, err, ErrEmptyField)
	})
}

func TestReadPatternsYAML(t *testing.T) {
	entries, err := ReadPatternsYAML(strings.NewReader(samplePatternsYAML))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, models.TagLow, entries[0].OffPlanTag)
	assert.Equal(t, "Strong momentum", entries[0].InvestorInsight)
	assert.Equal(t, "P2", entries[1].ID)
	assert.Equal(t, 1, entries[1].Position)
	assert.Equal(t, models.TagMedium, entries[1].OffPlanTag)
}

func TestLoadPatterns(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "patterns.csv")
	yamlPath := filepath.Join(dir, "patterns.yml")
	txtPath := filepath.Join(dir, "patterns.txt")
	require.NoError(t, os.WriteFile(csvPath, []byte(samplePatternsCSV), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte(samplePatternsYAML), 0o644))
	require.NoError(t, os.WriteFile(txtPath, []byte("nothing"), 0o644))

	fromCSV, err := LoadPatterns(csvPath)
	require.NoError(t, err)
	assert.Len(t, fromCSV, 2)

	fromYAML, err := LoadPatterns(yamlPath)
	require.NoError(t, err)
	assert.Len(t, fromYAML, 2)

	_, err = LoadPatterns(txtPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadPatterns(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
