// Package coords holds the canonical coordinate type used by every resolver.
//
// Longitudes are always reduced into (-180, 180] before they are put on the
// wire or compared. Latitudes are passed through unchanged; callers are
// expected to supply values in [-90, 90].
package coords

import (
	"math"

	"github.com/paulmach/orb"
)

// Coordinate is a latitude/longitude pair in canonical form.
type Coordinate struct {
	Latitude  float64 `json:"latitude" doc:"Latitude in decimal degrees" example:"39.75"`
	Longitude float64 `json:"longitude" doc:"Longitude in decimal degrees, (-180, 180]" example:"-105.2"`
}

// Normalize builds a Coordinate with its longitude reduced into (-180, 180].
func Normalize(lat, lon float64) Coordinate {
	return Coordinate{Latitude: lat, Longitude: NormalizeLongitude(lon)}
}

// NormalizeLongitude reduces lon into (-180, 180]. 180 stays 180 and -180
// becomes 180. NaN and infinities are returned as NaN.
func NormalizeLongitude(lon float64) float64 {
	if lon > -180 && lon <= 180 {
		if lon == 0 {
			return 0
		}
		return lon
	}
	// math.Mod is exact; only the final shift by 360 can round.
	r := math.Mod(lon, 360)
	if r > 180 {
		r -= 360
	} else if r <= -180 {
		r += 360
	}
	if r == 0 {
		// collapse -0 so it formats as "0"
		return 0
	}
	return r
}

// normalizeLongitudeLoop is the step-wise reduction. It agrees with
// NormalizeLongitude for in-range values and for moderate multiples of 360;
// it never terminates once |lon| is large enough (about 1e17) that
// subtracting 360 no longer changes it.
func normalizeLongitudeLoop(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon <= -180 {
		lon += 360
	}
	if lon == 0 {
		return 0
	}
	return lon
}

// Normalized returns c with its longitude reduced. Normalizing twice is a no-op.
func (c Coordinate) Normalized() Coordinate {
	return Normalize(c.Latitude, c.Longitude)
}

// Equal compares two coordinates after normalizing both longitudes.
func (c Coordinate) Equal(o Coordinate) bool {
	a, b := c.Normalized(), o.Normalized()
	return a.Latitude == b.Latitude && a.Longitude == b.Longitude
}

// Point returns the coordinate as an orb point (lon, lat order).
func (c Coordinate) Point() orb.Point {
	n := c.Normalized()
	return orb.Point{n.Longitude, n.Latitude}
}

// FromPoint converts an orb point into a normalized Coordinate.
func FromPoint(p orb.Point) Coordinate {
	return Normalize(p.Lat(), p.Lon())
}
