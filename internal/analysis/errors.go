// Package analysis turns a filtered transaction set into period buckets,
// trend deltas, classification tags and a matched market pattern. Every
// function here is pure; callers own the data and pass it in.
package analysis

import "errors"

var (
	ErrInsufficientHistory    = errors.New("insufficient history: at least two periods are required")
	ErrDivisionByZero         = errors.New("division by zero: previous period value is zero")
	ErrUnsupportedGranularity = errors.New("unsupported period granularity")
	ErrNoRecords              = errors.New("no records")
	ErrInvalidPatternTable    = errors.New("invalid pattern table")
	ErrInvalidPatternID       = errors.New("invalid pattern id")
)
