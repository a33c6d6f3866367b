package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidCriteria = errors.New("invalid filter criteria")

// FilterCriteria stores the user supplied selection. Every field is optional;
// an empty field places no constraint on its dimension.
type FilterCriteria struct {
	Areas         []string   `json:"areas,omitempty"`
	PropertyTypes []string   `json:"property_types,omitempty"`
	Bedrooms      []string   `json:"bedrooms,omitempty"`
	MinPrice      *float64   `json:"min_price,omitempty"`
	MaxPrice      *float64   `json:"max_price,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

// Validate checks that prices are finite and that the price and date
// ranges are ordered.
func (f *FilterCriteria) Validate() error {
	if f == nil {
		return nil
	}
	if !finite(f.MinPrice) {
		return fmt.Errorf("%w: min price %v is not a number", ErrInvalidCriteria, *f.MinPrice)
	}
	if !finite(f.MaxPrice) {
		return fmt.Errorf("%w: max price %v is not a number", ErrInvalidCriteria, *f.MaxPrice)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return fmt.Errorf("%w: min price %.2f exceeds max price %.2f", ErrInvalidCriteria, *f.MinPrice, *f.MaxPrice)
	}
	if f.StartDate != nil && f.EndDate != nil && dayKey(*f.StartDate) > dayKey(*f.EndDate) {
		return fmt.Errorf("%w: start date %s is after end date %s",
			ErrInvalidCriteria, f.StartDate.Format("2006-01-02"), f.EndDate.Format("2006-01-02"))
	}
	return nil
}

func finite(v *float64) bool {
	return v == nil || !(math.IsNaN(*v) || math.IsInf(*v, 0))
}

// Allows checks if a transaction matches the filter criteria
func (f *FilterCriteria) Allows(t *Transaction) bool {
	if f == nil {
		return true // No filters means allow all
	}

	if len(f.Areas) > 0 && !contains(f.Areas, t.Area) {
		return false
	}
	if len(f.PropertyTypes) > 0 && !contains(f.PropertyTypes, t.PropertyType) {
		return false
	}
	if len(f.Bedrooms) > 0 && !contains(f.Bedrooms, t.Bedrooms) {
		return false
	}

	// Price bounds are inclusive
	if f.MinPrice != nil && t.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && t.Price > *f.MaxPrice {
		return false
	}

	// Date bounds are inclusive calendar days
	day := dayKey(t.Date)
	if f.StartDate != nil && day < dayKey(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && day > dayKey(*f.EndDate) {
		return false
	}

	return true
}

// IsEmpty reports whether no dimension is constrained.
func (f *FilterCriteria) IsEmpty() bool {
	return f == nil || (len(f.Areas) == 0 && len(f.PropertyTypes) == 0 && len(f.Bedrooms) == 0 &&
		f.MinPrice == nil && f.MaxPrice == nil && f.StartDate == nil && f.EndDate == nil)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// dayKey turns a timestamp into a sortable yyyymmdd integer in its own location.
func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
