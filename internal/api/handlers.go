package api

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"smartbuy/config"
	"smartbuy/internal/analysis"
	"smartbuy/internal/cache"
	"smartbuy/internal/dataset"
	"smartbuy/internal/geometry"
	"smartbuy/internal/models"
	"smartbuy/internal/scheduler"
)

const cacheHeader = "X-Cache"

// SnapshotSource provides the current dataset snapshot.
type SnapshotSource interface {
	Snapshot() (*dataset.Snapshot, error)
}

// RefreshRunner triggers an immediate dataset refresh.
type RefreshRunner interface {
	RunNow(ctx context.Context, job scheduler.JobType) error
}

type Handler struct {
	store     SnapshotSource
	refresher RefreshRunner
	cache     cache.ResultCache
	mapper    *geometry.AreaMapper
	config    *config.Config
	logger    *logrus.Logger
}

type PatternView struct {
	models.PatternEntry
	Recommendation models.Recommendation `json:"recommendation"`
}

func NewHandler(store SnapshotSource, refresher RefreshRunner, resultCache cache.ResultCache, cfg *config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if resultCache == nil {
		resultCache = cache.NopCache{}
	}

	return &Handler{
		store:     store,
		refresher: refresher,
		cache:     resultCache,
		mapper:    geometry.NewAreaMapper(logger),
		config:    cfg,
		logger:    logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	snap, err := h.store.Snapshot()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"version":      snap.Version,
		"loaded_at":    snap.LoadedAt,
		"transactions": len(snap.Transactions),
		"patterns":     snap.Analyzer.Table().Len(),
	})
}

func (h *Handler) GetFilters(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap.Options)
}

func (h *Handler) GetPeriods(c *gin.Context) {
	granularity := models.Granularity(c.DefaultQuery("granularity", string(models.GranularityQuarter)))
	if !granularity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "granularity must be quarter or year"})
		return
	}

	snap, criteria, filtered, ok := h.selection(c)
	if !ok {
		return
	}

	buckets, err := analysis.Aggregate(filtered, granularity)
	if err != nil {
		h.logger.WithError(err).Error("Failed to aggregate periods")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate periods"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version":      snap.Version,
		"criteria":     criteria,
		"granularity":  granularity,
		"record_count": len(filtered),
		"buckets":      buckets,
	})
}

func (h *Handler) GetAnalysis(c *gin.Context) {
	snap, criteria, filtered, ok := h.selection(c)
	if !ok {
		return
	}

	key, err := cache.Key("analysis", snap.Version, criteria)
	var result models.Analysis
	if err == nil && h.cached(c, key, &result) {
		c.JSON(http.StatusOK, &result)
		return
	}

	analyzed, err := snap.Analyzer.AnalyzeFiltered(filtered, criteria)
	if err != nil {
		h.fail(c, err, "Failed to analyze selection")
		return
	}

	h.remember(c, key, analyzed)
	c.JSON(http.StatusOK, analyzed)
}

func (h *Handler) GetAreaPatterns(c *gin.Context) {
	snap, criteria, filtered, ok := h.selection(c)
	if !ok {
		return
	}

	key, err := cache.Key("area-patterns", snap.Version, criteria)
	var result []models.AreaPattern
	if err == nil && h.cached(c, key, &result) {
		c.JSON(http.StatusOK, result)
		return
	}

	patterns, err := snap.Analyzer.AreaPatterns(c.Request.Context(), filtered, criteria, h.config.Analysis.Workers)
	if err != nil {
		h.fail(c, err, "Failed to compute area patterns")
		return
	}

	h.remember(c, key, patterns)
	c.JSON(http.StatusOK, patterns)
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	snap, criteria, filtered, ok := h.selection(c)
	if !ok {
		return
	}

	keyInput := struct {
		Criteria models.FilterCriteria `json:"criteria"`
		TopN     int                   `json:"top_n"`
	}{criteria, h.config.Analysis.TopN}
	key, err := cache.Key("recommendations", snap.Version, keyInput)
	var result models.Recommendations
	if err == nil && h.cached(c, key, &result) {
		c.JSON(http.StatusOK, &result)
		return
	}

	recs, err := snap.Analyzer.Recommend(c.Request.Context(), filtered, criteria, h.config.Analysis.TopN, h.config.Analysis.Workers)
	if err != nil {
		h.fail(c, err, "Failed to build recommendations")
		return
	}

	h.remember(c, key, recs)
	c.JSON(http.StatusOK, recs)
}

func (h *Handler) GetPatterns(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}

	entries := snap.Analyzer.Table().Entries()
	views := make([]PatternView, len(entries))
	for i, e := range entries {
		rec, _ := analysis.BucketForPattern(e.ID)
		views[i] = PatternView{PatternEntry: e, Recommendation: rec}
	}
	c.JSON(http.StatusOK, views)
}

// GetAreaGeoJSON renders the selected areas as GeoJSON. With
// patterns=true each feature also carries its area's pattern.
func (h *Handler) GetAreaGeoJSON(c *gin.Context) {
	snap, criteria, filtered, ok := h.selection(c)
	if !ok {
		return
	}
	withPatterns := c.Query("patterns") == "true"

	keyInput := struct {
		Criteria     models.FilterCriteria `json:"criteria"`
		WithPatterns bool                  `json:"with_patterns"`
	}{criteria, withPatterns}
	key, err := cache.Key("geojson", snap.Version, keyInput)
	fc := geojson.NewFeatureCollection()
	if err == nil && h.cached(c, key, fc) {
		c.JSON(http.StatusOK, fc)
		return
	}

	var patterns []models.AreaPattern
	if withPatterns {
		patterns, err = snap.Analyzer.AreaPatterns(c.Request.Context(), filtered, criteria, h.config.Analysis.Workers)
		if err != nil {
			h.fail(c, err, "Failed to compute area patterns")
			return
		}
	}

	fc = h.mapper.FeatureCollection(filtered, patterns)
	h.remember(c, key, fc)
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) Refresh(c *gin.Context) {
	if h.refresher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Refresh is not available"})
		return
	}

	if err := h.refresher.RunNow(c.Request.Context(), scheduler.JobTypeManual); err != nil {
		h.logger.WithError(err).Error("Failed to refresh dataset")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh dataset"})
		return
	}

	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "Dataset refreshed successfully",
		"version":      snap.Version,
		"transactions": len(snap.Transactions),
	})
}

func (h *Handler) snapshot(c *gin.Context) (*dataset.Snapshot, bool) {
	snap, err := h.store.Snapshot()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Dataset is not loaded yet"})
		return nil, false
	}
	return snap, true
}

// selection parses the filter query, applies it to the current snapshot and
// enforces the configured record ceiling.
func (h *Handler) selection(c *gin.Context) (*dataset.Snapshot, models.FilterCriteria, []models.Transaction, bool) {
	criteria, err := bindSelection(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, criteria, nil, false
	}

	snap, ok := h.snapshot(c)
	if !ok {
		return nil, criteria, nil, false
	}

	filtered, err := analysis.FilterRecords(snap.Transactions, criteria)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, criteria, nil, false
	}

	if limit := h.config.Analysis.MaxRecords; limit > 0 && len(filtered) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":        "Selection is too large, narrow the filters",
			"record_count": len(filtered),
			"max_records":  limit,
		})
		return nil, criteria, nil, false
	}
	return snap, criteria, filtered, true
}

func (h *Handler) cached(c *gin.Context, key string, dest interface{}) bool {
	err := h.cache.Get(c.Request.Context(), key, dest)
	if err == nil {
		c.Header(cacheHeader, "HIT")
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		h.logger.WithError(err).WithField("key", key).Warn("Failed to read result cache")
	}
	c.Header(cacheHeader, "MISS")
	return false
}

func (h *Handler) remember(c *gin.Context, key string, value interface{}) {
	if key == "" {
		return
	}
	if err := h.cache.Set(c.Request.Context(), key, value); err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("Failed to write result cache")
	}
}

func (h *Handler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, models.ErrInvalidCriteria):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request cancelled"})
	default:
		h.logger.WithError(err).Error(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
