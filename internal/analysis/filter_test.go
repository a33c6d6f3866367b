package analysis

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbuy/internal/models"
)

func sampleRecords() []models.Transaction {
	records := []models.Transaction{
		txn("Dubai Marina", "2024-01-15", 1_200_000, true),
		txn("Dubai Marina", "2024-03-31", 2_500_000, false),
		txn("Jumeirah Village Circle", "2024-02-01", 700_000, true),
		txn("Business Bay", "2023-12-31", 1_900_000, false),
		txn("Business Bay", "2024-04-01", 2_000_000, false),
	}
	records[1].Bedrooms = "2 B/R"
	records[3].PropertyType = "Villa"
	return records
}

func timePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func TestFilterRecords(t *testing.T) {
	tests := []struct {
		name     string
		criteria models.FilterCriteria
		expected []string
	}{
		{
			name:     "No criteria keeps everything",
			criteria: models.FilterCriteria{},
			expected: []string{"Dubai Marina", "Dubai Marina", "Jumeirah Village Circle", "Business Bay", "Business Bay"},
		},
		{
			name:     "Area membership",
			criteria: models.FilterCriteria{Areas: []string{"Business Bay", "Jumeirah Village Circle"}},
			expected: []string{"Jumeirah Village Circle", "Business Bay", "Business Bay"},
		},
		{
			name:     "Type and bedrooms",
			criteria: models.FilterCriteria{PropertyTypes: []string{"Unit"}, Bedrooms: []string{"1 B/R"}},
			expected: []string{"Dubai Marina", "Jumeirah Village Circle", "Business Bay"},
		},
		{
			name:     "Max price is inclusive",
			criteria: models.FilterCriteria{MaxPrice: ptr(1_900_000)},
			expected: []string{"Dubai Marina", "Jumeirah Village Circle", "Business Bay"},
		},
		{
			name:     "Min price is inclusive",
			criteria: models.FilterCriteria{MinPrice: ptr(2_000_000)},
			expected: []string{"Dubai Marina", "Business Bay"},
		},
		{
			name:     "Date range is inclusive on both ends",
			criteria: models.FilterCriteria{StartDate: timePtr("2024-01-15"), EndDate: timePtr("2024-03-31")},
			expected: []string{"Dubai Marina", "Dubai Marina", "Jumeirah Village Circle"},
		},
		{
			name:     "Unknown area filters everything out",
			criteria: models.FilterCriteria{Areas: []string{"Atlantis"}},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, err := FilterRecords(sampleRecords(), tt.criteria)
			require.NoError(t, err)

			areas := make([]string, len(filtered))
			for i, r := range filtered {
				areas[i] = r.Area
			}
			assert.Equal(t, tt.expected, areas)
		})
	}
}

func TestFilterRecordsEndDateCoversWholeDay(t *testing.T) {
	r := txn("A", "2024-03-31", 100, false)
	r.Date = r.Date.Add(23*time.Hour + 59*time.Minute)

	filtered, err := FilterRecords([]models.Transaction{r}, models.FilterCriteria{EndDate: timePtr("2024-03-31")})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}

func TestFilterRecordsIdempotent(t *testing.T) {
	criteria := models.FilterCriteria{
		PropertyTypes: []string{"Unit"},
		MaxPrice:      ptr(2_000_000),
		StartDate:     timePtr("2024-01-01"),
	}

	once, err := FilterRecords(sampleRecords(), criteria)
	require.NoError(t, err)
	twice, err := FilterRecords(once, criteria)
	require.NoError(t, err)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("filtering is not a fixed point (-once +twice):\n%s", diff)
	}
}

func TestFilterRecordsDoesNotMutateInput(t *testing.T) {
	records := sampleRecords()
	before := append([]models.Transaction(nil), records...)

	_, err := FilterRecords(records, models.FilterCriteria{Areas: []string{"Business Bay"}})
	require.NoError(t, err)
	assert.Equal(t, before, records)
}

func TestFilterRecordsInvalidCriteria(t *testing.T) {
	_, err := FilterRecords(sampleRecords(), models.FilterCriteria{MinPrice: ptr(10), MaxPrice: ptr(5)})
	assert.ErrorIs(t, err, models.ErrInvalidCriteria)

	_, err = FilterRecords(sampleRecords(), models.FilterCriteria{
		StartDate: timePtr("2024-02-01"),
		EndDate:   timePtr("2024-01-01"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidCriteria)
}
