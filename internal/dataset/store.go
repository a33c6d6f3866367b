// Package dataset holds the in-memory snapshot of transactions and the
// pattern table that every analysis request reads from.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"smartbuy/internal/analysis"
	"smartbuy/internal/models"
)

var ErrNotLoaded = errors.New("dataset not loaded")

// Source provides the records a snapshot is built from.
type Source interface {
	LoadTransactions(ctx context.Context) ([]models.Transaction, error)
	LoadPatterns(ctx context.Context) ([]models.PatternEntry, error)
}

// FilterOptions lists the distinct values a client can filter on.
type FilterOptions struct {
	Areas         []string   `json:"areas"`
	PropertyTypes []string   `json:"property_types"`
	Bedrooms      []string   `json:"bedrooms"`
	MinDate       *time.Time `json:"min_date,omitempty"`
	MaxDate       *time.Time `json:"max_date,omitempty"`
}

// Snapshot is an immutable view of the dataset. Callers must not modify
// Transactions.
type Snapshot struct {
	Version      string
	LoadedAt     time.Time
	Transactions []models.Transaction
	Analyzer     *analysis.Analyzer
	Options      FilterOptions
}

// Store swaps snapshots atomically so readers never block on a refresh.
type Store struct {
	source  Source
	logger  *logrus.Logger
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

func NewStore(source Source, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Store{source: source, logger: logger}
}

// Snapshot returns the current snapshot, or ErrNotLoaded before the first
// successful refresh.
func (s *Store) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Refresh reloads the source and publishes a new snapshot. On failure the
// previous snapshot stays in place.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	records, err := s.source.LoadTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	entries, err := s.source.LoadPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	table, err := analysis.NewPatternTable(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to build pattern table: %w", err)
	}

	snap := &Snapshot{
		Version:      uuid.NewString(),
		LoadedAt:     time.Now().UTC(),
		Transactions: records,
		Analyzer:     analysis.NewAnalyzer(table, s.logger),
		Options:      buildOptions(records),
	}
	s.current.Store(snap)

	s.logger.WithFields(logrus.Fields{
		"version":      snap.Version,
		"transactions": len(records),
		"patterns":     table.Len(),
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Info("Dataset snapshot refreshed")
	return snap, nil
}

func buildOptions(records []models.Transaction) FilterOptions {
	areas := make(map[string]struct{})
	types := make(map[string]struct{})
	bedrooms := make(map[string]struct{})
	var opts FilterOptions

	for i := range records {
		r := &records[i]
		areas[r.Area] = struct{}{}
		types[r.PropertyType] = struct{}{}
		bedrooms[r.Bedrooms] = struct{}{}

		d := r.Date
		if opts.MinDate == nil || d.Before(*opts.MinDate) {
			opts.MinDate = &d
		}
		if opts.MaxDate == nil || d.After(*opts.MaxDate) {
			opts.MaxDate = &d
		}
	}

	opts.Areas = sortedKeys(areas)
	opts.PropertyTypes = sortedKeys(types)
	opts.Bedrooms = sortedKeys(bedrooms)
	return opts
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
