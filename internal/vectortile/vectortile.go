// Package vectortile cuts overlay geometry into Mapbox Vector Tiles on
// demand, so a map client can draw large overlays tile by tile instead of
// downloading the whole GeoJSON document.
package vectortile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// MaxZoom is the deepest zoom level served.
const MaxZoom = 18

// ContentType is the media type of an encoded tile.
const ContentType = "application/vnd.mapbox-vector-tile"

// Tile validates z/x/y and returns the tile.
func Tile(z, x, y uint32) (maptile.Tile, error) {
	if z > MaxZoom {
		return maptile.Tile{}, fmt.Errorf("zoom %d exceeds %d", z, MaxZoom)
	}
	n := uint32(1) << z
	if x >= n || y >= n {
		return maptile.Tile{}, fmt.Errorf("tile %d/%d/%d out of range", z, x, y)
	}
	return maptile.New(x, y, maptile.Zoom(z)), nil
}

// Encode returns the gzipped MVT for tile with every feature of fc that
// intersects it, in one layer named layerName. A tile with no features
// encodes to nil.
func Encode(fc *geojson.FeatureCollection, tile maptile.Tile, layerName string) ([]byte, error) {
	out := geojson.NewFeatureCollection()
	tileBound := tile.Bound()

	for _, f := range fc.Features {
		if f.Geometry == nil || !geometryIntersectsTile(f.Geometry, tileBound) {
			continue
		}

		// mvt clips and projects in place; the layer keeps its own copy.
		clonedGeom := cloneGeometry(f.Geometry)
		if clonedGeom == nil {
			continue
		}

		clone := geojson.NewFeature(clonedGeom)
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		out.Append(clone)
	}

	if len(out.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(layerName, out)

	// Less detail at lower zooms
	if epsilon := simplifyEpsilon(tile.Z); epsilon > 0 {
		layer.Simplify(simplify.DouglasPeucker(epsilon))
	}

	// Clip in world coordinates, then project to the 4096 tile extent.
	layer.Clip(tileBound)
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0.5, 0.5)

	if len(layer.Features) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(mvt.Layers{layer})
	if err != nil {
		return nil, fmt.Errorf("encode tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}

// geometryIntersectsTile checks if a geometry intersects a tile beyond a
// bounding box overlap.
func geometryIntersectsTile(geom orb.Geometry, tileBound orb.Bound) bool {
	if !geom.Bound().Intersects(tileBound) {
		return false
	}

	corners := []orb.Point{
		tileBound.Min,
		{tileBound.Max[0], tileBound.Min[1]},
		tileBound.Max,
		{tileBound.Min[0], tileBound.Max[1]},
	}

	switch g := geom.(type) {
	case orb.Point:
		return tileBound.Contains(g)

	case orb.MultiPoint:
		for _, p := range g {
			if tileBound.Contains(p) {
				return true
			}
		}
		return false

	case orb.Polygon:
		for _, ring := range g {
			for _, p := range ring {
				if tileBound.Contains(p) {
					return true
				}
			}
		}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		// polygon fully containing the tile
		return planar.PolygonContains(g, tileBound.Center())

	case orb.MultiPolygon:
		for _, poly := range g {
			if geometryIntersectsTile(poly, tileBound) {
				return true
			}
		}
		return false

	case orb.MultiLineString:
		for _, ls := range g {
			if geometryIntersectsTile(ls, tileBound) {
				return true
			}
		}
		return false

	default:
		// Lines and collections: overlapping bounds are close enough.
		return true
	}
}

// simplifyEpsilon returns the simplification tolerance in degrees for a
// zoom level. Region boundaries are coarse, so tolerances stay well below
// the size of a tile pixel.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 12:
		return 0
	case zoom >= 8:
		return 0.0001
	case zoom >= 4:
		return 0.001
	default:
		return 0.01
	}
}

// cloneGeometry returns a deep copy, or nil for unsupported types.
func cloneGeometry(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return geom

	case orb.MultiPoint:
		return append(orb.MultiPoint(nil), geom...)

	case orb.LineString:
		return append(orb.LineString(nil), geom...)

	case orb.MultiLineString:
		clone := make(orb.MultiLineString, len(geom))
		for i, ls := range geom {
			clone[i] = append(orb.LineString(nil), ls...)
		}
		return clone

	case orb.Ring:
		return append(orb.Ring(nil), geom...)

	case orb.Polygon:
		return clonePolygon(geom)

	case orb.MultiPolygon:
		clone := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			clone[i] = clonePolygon(poly)
		}
		return clone

	default:
		return nil
	}
}

func clonePolygon(p orb.Polygon) orb.Polygon {
	clone := make(orb.Polygon, len(p))
	for i, ring := range p {
		clone[i] = append(orb.Ring(nil), ring...)
	}
	return clone
}
