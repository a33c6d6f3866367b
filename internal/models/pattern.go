package models

import (
	"fmt"
	"strings"
)

// Tag is a discrete label assigned to a trend metric.
type Tag string

const (
	TagUp      Tag = "Up"
	TagDown    Tag = "Down"
	TagStable  Tag = "Stable"
	TagHigh    Tag = "High"
	TagMedium  Tag = "Medium"
	TagLow     Tag = "Low"
	TagUnknown Tag = "Unknown"
)

// IsChangeTag reports whether t labels a price or volume delta.
func (t Tag) IsChangeTag() bool {
	return t == TagUp || t == TagDown || t == TagStable
}

// IsOffPlanTag reports whether t labels an off-plan share.
func (t Tag) IsOffPlanTag() bool {
	return t == TagHigh || t == TagMedium || t == TagLow
}

// ParseTag parses a tag name case-insensitively.
func ParseTag(s string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return TagUp, nil
	case "down":
		return TagDown, nil
	case "stable":
		return TagStable, nil
	case "high":
		return TagHigh, nil
	case "medium":
		return TagMedium, nil
	case "low":
		return TagLow, nil
	case "unknown":
		return TagUnknown, nil
	}
	return "", fmt.Errorf("unknown tag %q", s)
}

// TagSet holds the five labels a pattern is keyed on.
type TagSet struct {
	QoQPrice  Tag `json:"qoq_price"`
	YoYPrice  Tag `json:"yoy_price"`
	QoQVolume Tag `json:"qoq_volume"`
	YoYVolume Tag `json:"yoy_volume"`
	OffPlan   Tag `json:"off_plan"`
}

// Key composes the lookup key. Order: QoQ price, YoY price, QoQ volume,
// YoY volume, off-plan.
func (s TagSet) Key() string {
	return strings.Join([]string{
		string(s.QoQPrice),
		string(s.YoYPrice),
		string(s.QoQVolume),
		string(s.YoYVolume),
		string(s.OffPlan),
	}, "|")
}

// HasUnknown reports whether any dimension could not be classified.
func (s TagSet) HasUnknown() bool {
	return s.QoQPrice == TagUnknown || s.YoYPrice == TagUnknown ||
		s.QoQVolume == TagUnknown || s.YoYVolume == TagUnknown || s.OffPlan == TagUnknown
}

// PatternEntry is one row of the static pattern table. The text fields are
// opaque content.
type PatternEntry struct {
	ID                     string `json:"pattern_id" yaml:"id" gorm:"primaryKey"`
	Position               int    `json:"-" yaml:"-" gorm:"index"`
	QoQPriceTag            Tag    `json:"qoq_price_tag" yaml:"qoq_price"`
	YoYPriceTag            Tag    `json:"yoy_price_tag" yaml:"yoy_price"`
	QoQVolumeTag           Tag    `json:"qoq_volume_tag" yaml:"qoq_volume"`
	YoYVolumeTag           Tag    `json:"yoy_volume_tag" yaml:"yoy_volume"`
	OffPlanTag             Tag    `json:"offplan_tag" yaml:"off_plan"`
	InvestorInsight        string `json:"investor_insight" yaml:"investor_insight"`
	InvestorRecommendation string `json:"investor_recommendation" yaml:"investor_recommendation"`
	EndUserInsight         string `json:"enduser_insight" yaml:"enduser_insight"`
	EndUserRecommendation  string `json:"enduser_recommendation" yaml:"enduser_recommendation"`
}

// Tags returns the entry's five-label key.
func (p *PatternEntry) Tags() TagSet {
	return TagSet{
		QoQPrice:  p.QoQPriceTag,
		YoYPrice:  p.YoYPriceTag,
		QoQVolume: p.QoQVolumeTag,
		YoYVolume: p.YoYVolumeTag,
		OffPlan:   p.OffPlanTag,
	}
}
