// Package geocoding resolves area names to coordinates through a Nominatim
// compatible search endpoint, with a JSON file cache on disk.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"smartbuy/config"
)

const cacheFileName = "geocode_cache.json"

var ErrNotFound = errors.New("no geocoding results")

type Geocoder struct {
	logger    *logrus.Logger
	endpoint  string
	region    string
	country   string
	delay     time.Duration
	cacheDir  string
	cache     map[string]orb.Point
	cacheLock sync.RWMutex
	client    *http.Client
	callLock  sync.Mutex
	lastCall  time.Time
}

func NewGeocoder(cfg *config.Config, logger *logrus.Logger) *Geocoder {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	g := &Geocoder{
		logger:   logger,
		endpoint: cfg.Geocoding.Endpoint,
		region:   cfg.Geocoding.Region,
		country:  cfg.Geocoding.CountryCode,
		delay:    cfg.Geocoding.RequestDelay,
		cacheDir: cfg.Geocoding.CacheDir,
		cache:    make(map[string]orb.Point),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	g.loadCache()
	return g
}

func (g *Geocoder) loadCache() {
	if g.cacheDir == "" {
		return
	}
	data, err := os.ReadFile(filepath.Join(g.cacheDir, cacheFileName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			g.logger.WithError(err).Warn("Could not load geocode cache")
		}
		return
	}

	var cache map[string]orb.Point
	if err := json.Unmarshal(data, &cache); err != nil {
		g.logger.WithError(err).Error("Failed to parse geocode cache")
		return
	}
	if cache != nil {
		g.cache = cache
	}
	g.logger.Infof("Loaded %d cached areas", len(g.cache))
}

// SaveCache writes the cache to disk. It is a no-op without a cache dir.
func (g *Geocoder) SaveCache() error {
	if g.cacheDir == "" {
		return nil
	}
	g.cacheLock.RLock()
	data, err := json.Marshal(g.cache)
	g.cacheLock.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal geocode cache: %w", err)
	}

	if err := os.MkdirAll(g.cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(g.cacheDir, cacheFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to save geocode cache: %w", err)
	}
	return nil
}

type nominatimResponse []struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// LocateArea returns the coordinates of an area name within the configured
// region. Cached answers skip the network.
func (g *Geocoder) LocateArea(ctx context.Context, area string) (orb.Point, error) {
	g.cacheLock.RLock()
	point, ok := g.cache[area]
	g.cacheLock.RUnlock()
	if ok {
		g.logger.WithFields(logrus.Fields{"area": area, "source": "cache"}).Debug("Found coordinates in cache")
		return point, nil
	}

	if err := g.throttle(ctx); err != nil {
		return orb.Point{}, err
	}

	query := area
	if g.region != "" {
		query = area + ", " + g.region
	}
	params := url.Values{
		"q":      []string{query},
		"format": []string{"json"},
		"limit":  []string{"1"},
	}
	if g.country != "" {
		params.Set("countrycodes", g.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return orb.Point{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "smartbuy area locator/1.0")
	req.Header.Set("Accept-Language", "en")

	resp, err := g.client.Do(req)
	if err != nil {
		return orb.Point{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return orb.Point{}, fmt.Errorf("geocoding request failed with status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return orb.Point{}, fmt.Errorf("failed to read response: %w", err)
	}

	var result nominatimResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return orb.Point{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result) == 0 {
		return orb.Point{}, fmt.Errorf("%w for %q", ErrNotFound, query)
	}

	lat, err := strconv.ParseFloat(result[0].Lat, 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude %q: %w", result[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(result[0].Lon, 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude %q: %w", result[0].Lon, err)
	}
	point = orb.Point{lon, lat}

	g.logger.WithFields(logrus.Fields{
		"area":      area,
		"latitude":  point.Lat(),
		"longitude": point.Lon(),
		"source":    "nominatim",
	}).Info("Successfully geocoded area")

	g.cacheLock.Lock()
	g.cache[area] = point
	g.cacheLock.Unlock()
	return point, nil
}

// throttle spaces out remote calls by the configured delay.
func (g *Geocoder) throttle(ctx context.Context) error {
	g.callLock.Lock()
	defer g.callLock.Unlock()

	if g.delay <= 0 || g.lastCall.IsZero() {
		g.lastCall = time.Now()
		return nil
	}
	wait := g.delay - time.Since(g.lastCall)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.lastCall = time.Now()
	return nil
}
