package geometry

import (
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"smartbuy/internal/models"
)

// Area collects the located transactions of one area.
type Area struct {
	Name      string
	Points    []orb.Point
	Count     int
	MeanPrice float64
}

type AreaMapper struct {
	logger *logrus.Logger
}

func NewAreaMapper(logger *logrus.Logger) *AreaMapper {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &AreaMapper{logger: logger}
}

// BuildAreas groups records by area, sorted by name. Count and MeanPrice
// cover every record; Points only those with coordinates.
func BuildAreas(records []models.Transaction) []*Area {
	byName := make(map[string]*Area)
	sums := make(map[string]float64)
	for i := range records {
		r := &records[i]
		a, ok := byName[r.Area]
		if !ok {
			a = &Area{Name: r.Area}
			byName[r.Area] = a
		}
		a.Count++
		sums[r.Area] += r.Price
		if r.HasCoordinates() {
			a.Points = append(a.Points, orb.Point{*r.Longitude, *r.Latitude})
		}
	}

	areas := make([]*Area, 0, len(byName))
	for name, a := range byName {
		a.MeanPrice = sums[name] / float64(a.Count)
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// ConvexHull returns the closed counter-clockwise hull of points, or nil when
// they do not span an area (fewer than three distinct, non-collinear points).
func ConvexHull(points []orb.Point) orb.Ring {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	unique := pts[:0]
	for i, p := range pts {
		if i == 0 || !p.Equal(pts[i-1]) {
			unique = append(unique, p)
		}
	}
	if len(unique) < 3 {
		return nil
	}

	// Andrew's monotone chain
	hull := make([]orb.Point, 0, 2*len(unique))
	for _, p := range unique {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(unique) - 2; i >= 0; i-- {
		p := unique[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// The last point equals the first and closes the ring.
	if len(hull) < 4 {
		return nil
	}
	return orb.Ring(hull)
}

// Feature renders an area as a hull polygon, or as the center of its points
// when they span no area. Areas without located records yield nil.
func (a *Area) Feature() *geojson.Feature {
	if len(a.Points) == 0 {
		return nil
	}

	var feature *geojson.Feature
	geometryType := "hull"
	if ring := ConvexHull(a.Points); ring != nil {
		feature = geojson.NewFeature(orb.Polygon{ring})
	} else {
		geometryType = "point"
		feature = geojson.NewFeature(orb.MultiPoint(a.Points).Bound().Center())
	}

	feature.Properties = geojson.Properties{
		"area":              a.Name,
		"transaction_count": a.Count,
		"mean_price":        a.MeanPrice,
		"point_count":       len(a.Points),
		"geometry_type":     geometryType,
	}
	return feature
}

// FeatureCollection maps records to one feature per located area. When
// patterns are given, each feature also carries its area's pattern and
// recommendation.
func (m *AreaMapper) FeatureCollection(records []models.Transaction, patterns []models.AreaPattern) *geojson.FeatureCollection {
	byArea := make(map[string]models.AreaPattern, len(patterns))
	for _, p := range patterns {
		byArea[p.Area] = p
	}

	fc := geojson.NewFeatureCollection()
	var unlocated int
	for _, area := range BuildAreas(records) {
		feature := area.Feature()
		if feature == nil {
			unlocated++
			continue
		}
		if p, ok := byArea[area.Name]; ok {
			feature.Properties["outcome"] = string(p.Outcome)
			if p.PatternID != "" {
				feature.Properties["pattern_id"] = p.PatternID
				feature.Properties["recommendation"] = string(p.Recommendation)
			}
		}
		fc.Append(feature)
	}

	if unlocated > 0 {
		m.logger.WithField("areas", unlocated).Debug("Skipped areas without coordinates")
	}
	return fc
}
