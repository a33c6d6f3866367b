package analysis

import (
	"fmt"

	"smartbuy/internal/models"
)

// MatchOutcome tells a found pattern apart from an absent or ambiguous one.
type MatchOutcome string

const (
	MatchFound     MatchOutcome = "matched"
	MatchNone      MatchOutcome = "no_match"
	MatchAmbiguous MatchOutcome = "ambiguous"
)

// MatchResult is the answer of a pattern lookup. Entry is nil for MatchNone.
type MatchResult struct {
	Outcome    MatchOutcome
	Entry      *models.PatternEntry
	Candidates []string
}

// PatternTable is the read-only pattern reference data, indexed by the
// composite five-tag key. Build it once and share it across queries.
type PatternTable struct {
	entries    []models.PatternEntry
	index      map[string][]int
	duplicates []string
}

// NewPatternTable validates entries and indexes them in table order.
// Duplicate keys are accepted and reported by DuplicateKeys; lookups on them
// resolve to the first entry in table order.
func NewPatternTable(entries []models.PatternEntry) (*PatternTable, error) {
	t := &PatternTable{
		entries: make([]models.PatternEntry, len(entries)),
		index:   make(map[string][]int, len(entries)),
	}
	copy(t.entries, entries)

	seen := make(map[string]bool, len(entries))
	for i := range t.entries {
		e := &t.entries[i]
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrInvalidPatternTable, i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidPatternTable, e.ID)
		}
		seen[e.ID] = true

		for _, tag := range []models.Tag{e.QoQPriceTag, e.YoYPriceTag, e.QoQVolumeTag, e.YoYVolumeTag} {
			if !tag.IsChangeTag() {
				return nil, fmt.Errorf("%w: pattern %s has invalid change tag %q", ErrInvalidPatternTable, e.ID, tag)
			}
		}
		if !e.OffPlanTag.IsOffPlanTag() {
			return nil, fmt.Errorf("%w: pattern %s has invalid off-plan tag %q", ErrInvalidPatternTable, e.ID, e.OffPlanTag)
		}

		key := e.Tags().Key()
		if len(t.index[key]) == 1 {
			t.duplicates = append(t.duplicates, key)
		}
		t.index[key] = append(t.index[key], i)
	}
	return t, nil
}

// Len returns the number of entries.
func (t *PatternTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the entries in table order.
func (t *PatternTable) Entries() []models.PatternEntry {
	if t == nil {
		return nil
	}
	out := make([]models.PatternEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// DuplicateKeys lists keys shared by more than one entry.
func (t *PatternTable) DuplicateKeys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.duplicates...)
}

// MatchPattern looks up the entry whose five tags equal tags exactly.
func MatchPattern(tags models.TagSet, table *PatternTable) MatchResult {
	if table == nil || tags.HasUnknown() {
		return MatchResult{Outcome: MatchNone}
	}

	positions := table.index[tags.Key()]
	switch len(positions) {
	case 0:
		return MatchResult{Outcome: MatchNone}
	case 1:
		entry := table.entries[positions[0]]
		return MatchResult{Outcome: MatchFound, Entry: &entry}
	}

	candidates := make([]string, len(positions))
	for i, pos := range positions {
		candidates[i] = table.entries[pos].ID
	}
	entry := table.entries[positions[0]]
	return MatchResult{Outcome: MatchAmbiguous, Entry: &entry, Candidates: candidates}
}
