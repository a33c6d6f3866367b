package models

import (
	"fmt"
	"time"
)

// Granularity is the width of an aggregation period.
type Granularity string

const (
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// Valid reports whether the granularity is supported.
func (g Granularity) Valid() bool {
	return g == GranularityQuarter || g == GranularityYear
}

// Period identifies a calendar quarter (Index 1-4) or a calendar year (Index 1).
type Period struct {
	Granularity Granularity `json:"granularity"`
	Year        int         `json:"year"`
	Index       int         `json:"index"`
}

// PeriodOf returns the period containing t. Dates are bucketed by their
// calendar date in t's own location.
func PeriodOf(t time.Time, g Granularity) Period {
	if g == GranularityYear {
		return Period{Granularity: g, Year: t.Year(), Index: 1}
	}
	return Period{Granularity: GranularityQuarter, Year: t.Year(), Index: (int(t.Month())-1)/3 + 1}
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	if p.Granularity == GranularityYear {
		return time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(p.Year, time.Month((p.Index-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// Before reports whether p starts before o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Index < o.Index
}

func (p Period) String() string {
	if p.Granularity == GranularityYear {
		return fmt.Sprintf("%d", p.Year)
	}
	return fmt.Sprintf("%d-Q%d", p.Year, p.Index)
}

// PeriodBucket aggregates the transactions of one non-empty period.
type PeriodBucket struct {
	Period    Period  `json:"period"`
	Label     string  `json:"label"`
	MeanPrice float64 `json:"mean_price"`
	Volume    int     `json:"volume"`
}
