// internal/geo/geo.go

// Package geo holds the flat-Earth geometry used by the game: circular and drawn play
// areas, bounding-box shrinking and a metres approximation of point distance.
//
// All points are (longitude, latitude) in WGS84 degrees. None of the functions here are
// geodesic; they are only meant for play areas a few kilometres across.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	// MetersPerDegree converts a radius in metres to degrees when buffering a circle.
	MetersPerDegree = 111000.0

	// DistanceScale converts a planar distance in degrees to an estimate in metres.
	DistanceScale = 100000.0

	// DefaultShrinkFactor is applied to each bounding-box axis per area reduction.
	DefaultShrinkFactor = 0.8

	// circleSegments matches 8 segments per quadrant.
	circleSegments = 32
)

// ErrInvalidPoint is returned by ValidatePoint.
var ErrInvalidPoint = errors.New("invalid coordinates")

// Area is a play area: the shape it was configured from plus its current polygon.
type Area struct {
	Center  orb.Point   `json:"center"`
	Radius  float64     `json:"radius"`
	Polygon orb.Polygon `json:"polygon"`
}

// NewCircleArea builds an Area whose polygon is the buffered circle.
func NewCircleArea(center orb.Point, radiusMeters float64) *Area {
	return &Area{
		Center:  center,
		Radius:  radiusMeters,
		Polygon: BufferCircle(center, radiusMeters),
	}
}

// NewPolygonArea builds an Area from a drawn outline. Only the outer ring is kept and it
// is closed if needed. Center is the centroid and Radius the distance in metres from it
// to the farthest vertex.
func NewPolygonArea(poly orb.Polygon) (*Area, error) {
	if len(poly) == 0 {
		return nil, errors.New("polygon has no rings")
	}
	ring := poly[0].Clone()
	for _, p := range ring {
		if err := ValidatePoint(p); err != nil {
			return nil, err
		}
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return nil, errors.New("polygon needs at least three distinct vertices")
	}
	outline := orb.Polygon{ring}
	if planar.Area(outline) == 0 {
		return nil, errors.New("polygon encloses no area")
	}

	center := Centroid(outline)
	var farthest float64
	for _, p := range ring {
		farthest = math.Max(farthest, planar.Distance(center, p))
	}
	return &Area{Center: center, Radius: farthest * MetersPerDegree, Polygon: outline}, nil
}

// Clone returns a deep copy.
func (a *Area) Clone() *Area {
	if a == nil {
		return nil
	}
	return &Area{Center: a.Center, Radius: a.Radius, Polygon: a.Polygon.Clone()}
}

// Shrunk returns a copy of the area with its polygon shrunk by factor.
// Center and radius keep describing the configured circle.
func (a *Area) Shrunk(factor float64) *Area {
	return &Area{Center: a.Center, Radius: a.Radius, Polygon: Shrink(a.Polygon, factor)}
}

// BufferCircle approximates a circle of radiusMeters around center as a closed polygon.
func BufferCircle(center orb.Point, radiusMeters float64) orb.Polygon {
	r := radiusMeters / MetersPerDegree
	ring := make(orb.Ring, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / circleSegments
		ring = append(ring, orb.Point{
			center.X() + r*math.Cos(theta),
			center.Y() + r*math.Sin(theta),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Shrink scales the bounding box of poly about its center by factor on each axis and
// returns the resulting rectangle. This is not a geometric offset of the polygon.
func Shrink(poly orb.Polygon, factor float64) orb.Polygon {
	b := poly.Bound()
	c := b.Center()
	halfW := (b.Max.X() - b.Min.X()) * factor / 2
	halfH := (b.Max.Y() - b.Min.Y()) * factor / 2
	return orb.Bound{
		Min: orb.Point{c.X() - halfW, c.Y() - halfH},
		Max: orb.Point{c.X() + halfW, c.Y() + halfH},
	}.ToPolygon()
}

// Centroid returns the area centroid of poly.
func Centroid(poly orb.Polygon) orb.Point {
	c, _ := planar.CentroidArea(poly)
	return c
}

// Contains reports whether p lies inside poly.
func Contains(poly orb.Polygon, p orb.Point) bool {
	return planar.PolygonContains(poly, p)
}

// DistanceMeters estimates the distance between a and b in metres by scaling the planar
// distance in degrees. Longitude convergence is ignored.
func DistanceMeters(a, b orb.Point) float64 {
	return planar.Distance(a, b) * DistanceScale
}

// ValidatePoint checks that p is a finite WGS84 coordinate.
func ValidatePoint(p orb.Point) error {
	lng, lat := p.X(), p.Y()
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return fmt.Errorf("%w: not a finite number", ErrInvalidPoint)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidPoint, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidPoint, lng)
	}
	return nil
}
