package analysis

import (
	"fmt"

	"smartbuy/internal/models"
)

// FilterRecords returns the records allowed by criteria, in input order.
func FilterRecords(records []models.Transaction, criteria models.FilterCriteria) ([]models.Transaction, error) {
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("failed to filter records: %w", err)
	}

	filtered := make([]models.Transaction, 0, len(records))
	for i := range records {
		if criteria.Allows(&records[i]) {
			filtered = append(filtered, records[i])
		}
	}
	return filtered, nil
}
