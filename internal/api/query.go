package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"smartbuy/internal/models"
)

const dateLayout = "2006-01-02"

// SelectionQuery is the query string accepted by every analysis endpoint.
// List parameters may repeat or hold comma-separated values.
type SelectionQuery struct {
	Areas         []string `form:"area"`
	PropertyTypes []string `form:"property_type"`
	Bedrooms      []string `form:"bedrooms"`
	MinPrice      *float64 `form:"min_price"`
	MaxPrice      *float64 `form:"max_price"`
	StartDate     string   `form:"start_date"`
	EndDate       string   `form:"end_date"`
}

// Criteria converts the query into validated filter criteria.
func (q SelectionQuery) Criteria() (models.FilterCriteria, error) {
	criteria := models.FilterCriteria{
		Areas:         splitValues(q.Areas),
		PropertyTypes: splitValues(q.PropertyTypes),
		Bedrooms:      splitValues(q.Bedrooms),
		MinPrice:      q.MinPrice,
		MaxPrice:      q.MaxPrice,
	}

	var err error
	if criteria.StartDate, err = parseDate("start_date", q.StartDate); err != nil {
		return criteria, err
	}
	if criteria.EndDate, err = parseDate("end_date", q.EndDate); err != nil {
		return criteria, err
	}
	if err := criteria.Validate(); err != nil {
		return criteria, err
	}
	return criteria, nil
}

func bindSelection(c *gin.Context) (models.FilterCriteria, error) {
	var q SelectionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return models.FilterCriteria{}, fmt.Errorf("%w: %v", models.ErrInvalidCriteria, err)
	}
	return q.Criteria()
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", models.ErrInvalidCriteria, name)
	}
	return &t, nil
}
