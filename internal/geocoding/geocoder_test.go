package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbuy/config"
	"smartbuy/internal/database"
	"smartbuy/internal/models"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) (*Geocoder, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Geocoding.Endpoint = srv.URL
	cfg.Geocoding.Region = "Dubai, United Arab Emirates"
	cfg.Geocoding.CountryCode = "ae"
	cfg.Geocoding.CacheDir = t.TempDir()

	logger, _ := test.NewNullLogger()
	return NewGeocoder(cfg, logger), &calls
}

func TestLocateArea(t *testing.T) {
	g, calls := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Dubai Marina, Dubai, United Arab Emirates", r.URL.Query().Get("q"))
		assert.Equal(t, "ae", r.URL.Query().Get("countrycodes"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `[{"lat":"25.0805","lon":"55.1403"}]`)
	})

	point, err := g.LocateArea(context.Background(), "Dubai Marina")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{55.1403, 25.0805}, point)

	// Second lookup is served from the cache.
	_, err = g.LocateArea(context.Background(), "Dubai Marina")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLocateAreaErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
		message string
	}{
		{
			name:    "No results",
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `[]`) },
			wantErr: ErrNotFound,
		},
		{
			name: "Server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			message: "status 429",
		},
		{
			name:    "Malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{`) },
			message: "failed to parse response",
		},
		{
			name:    "Bad latitude",
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `[{"lat":"north","lon":"55"}]`) },
			message: "invalid latitude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGeocoder(t, tt.handler)
			_, err := g.LocateArea(context.Background(), "Nowhere")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestCachePersistence(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"25.18","lon":"55.26"}]`)
	})
	_, err := g.LocateArea(context.Background(), "Business Bay")
	require.NoError(t, err)
	require.NoError(t, g.SaveCache())

	cfg := &config.Config{}
	cfg.Geocoding.Endpoint = "http://127.0.0.1:0"
	cfg.Geocoding.CacheDir = g.cacheDir
	logger, _ := test.NewNullLogger()
	reloaded := NewGeocoder(cfg, logger)

	point, err := reloaded.LocateArea(context.Background(), "Business Bay")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{55.26, 25.18}, point)
}

func TestUnusableCacheFile(t *testing.T) {
	for _, content := range []string{"null", `{"Broken":`} {
		t.Run(content, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), []byte(content), 0o644))

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[{"lat":"25.2","lon":"55.3"}]`)
			}))
			defer srv.Close()

			cfg := &config.Config{}
			cfg.Geocoding.Endpoint = srv.URL
			cfg.Geocoding.CacheDir = dir
			logger, _ := test.NewNullLogger()
			g := NewGeocoder(cfg, logger)

			point, err := g.LocateArea(context.Background(), "Al Barsha")
			require.NoError(t, err)
			assert.Equal(t, orb.Point{55.3, 25.2}, point)
			assert.NoError(t, g.SaveCache())
		})
	}
}

func TestThrottleHonoursContext(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"25","lon":"55"}]`)
	})
	g.delay = time.Hour

	_, err := g.LocateArea(context.Background(), "First")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.LocateArea(ctx, "Second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stubLocator map[string]orb.Point

func (s stubLocator) LocateArea(ctx context.Context, area string) (orb.Point, error) {
	if p, ok := s[area]; ok {
		return p, nil
	}
	return orb.Point{}, fmt.Errorf("%w for %q", ErrNotFound, area)
}

func TestUpdateMissingCoordinates(t *testing.T) {
	db, err := database.NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	var batch []*models.Transaction
	for i, area := range []string{"Dubai Marina", "Dubai Marina", "Business Bay", "Atlantis"} {
		batch = append(batch, &models.Transaction{
			TransactionNumber: fmt.Sprintf("T-%d", i),
			Area:              area,
			PropertyType:      "Unit",
			Bedrooms:          "Studio",
			Price:             500000,
			Date:              day,
		})
	}
	require.NoError(t, db.UpsertTransactions(batch))

	locator := stubLocator{
		"Dubai Marina": {55.14, 25.08},
		"Business Bay": {55.26, 25.18},
	}
	logger, _ := test.NewNullLogger()
	result, err := UpdateMissingCoordinates(context.Background(), db, locator, logger)
	require.NoError(t, err)
	assert.Equal(t, &UpdateResult{Areas: 3, Located: 2, Failed: 1, Transactions: 3}, result)

	remaining, err := db.AreasMissingCoordinates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlantis"}, remaining)
}

type cancelledLocator struct{}

func (cancelledLocator) LocateArea(ctx context.Context, area string) (orb.Point, error) {
	return orb.Point{}, context.Canceled
}

type staticStore struct{ areas []string }

func (s staticStore) AreasMissingCoordinates(ctx context.Context) ([]string, error) {
	return s.areas, nil
}

func (s staticStore) SetAreaCoordinates(ctx context.Context, area string, lat, lon float64) (int64, error) {
	return 0, errors.New("unexpected update")
}

func TestUpdateMissingCoordinatesCancelled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := UpdateMissingCoordinates(context.Background(), staticStore{areas: []string{"A", "B"}}, cancelledLocator{}, logger)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, strings.Contains(err.Error(), "unexpected"))
}
