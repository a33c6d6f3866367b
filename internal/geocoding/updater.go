package geocoding

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

// CoordinateStore finds and fills transactions without coordinates.
type CoordinateStore interface {
	AreasMissingCoordinates(ctx context.Context) ([]string, error)
	SetAreaCoordinates(ctx context.Context, area string, lat, lon float64) (int64, error)
}

// AreaLocator resolves an area name to a point.
type AreaLocator interface {
	LocateArea(ctx context.Context, area string) (orb.Point, error)
}

// UpdateResult counts the outcome of one coordinate update run.
type UpdateResult struct {
	Areas        int   `json:"areas"`
	Located      int   `json:"located"`
	Failed       int   `json:"failed"`
	Transactions int64 `json:"transactions"`
}

// UpdateMissingCoordinates places every unlocated transaction at the
// geocoded position of its area. Areas that fail to geocode are logged and
// skipped; only store errors and cancellation abort the run.
func UpdateMissingCoordinates(ctx context.Context, store CoordinateStore, locator AreaLocator, logger *logrus.Logger) (*UpdateResult, error) {
	areas, err := store.AreasMissingCoordinates(ctx)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{Areas: len(areas)}
	if len(areas) == 0 {
		logger.Info("No areas need geocoding")
		return result, nil
	}
	logger.WithField("areas", len(areas)).Info("Found areas that need geocoding")

	for _, area := range areas {
		point, err := locator.LocateArea(ctx, area)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			logger.WithError(err).WithField("area", area).Warn("Failed to geocode area")
			result.Failed++
			continue
		}

		n, err := store.SetAreaCoordinates(ctx, area, point.Lat(), point.Lon())
		if err != nil {
			return result, err
		}
		result.Located++
		result.Transactions += n
	}

	logger.WithFields(logrus.Fields{
		"located":      result.Located,
		"failed":       result.Failed,
		"transactions": result.Transactions,
	}).Info("Finished updating coordinates")
	return result, nil
}
