package geometry

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

const srid = 4326

// shapeToGeom converts a go-shp shape to a go-geom geometry.
// Returns nil for null, unsupported or degenerate shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Polygon:
		return toMultiPolygon(s.NumParts, s.Parts, s.Points)
	case *shp.PolygonZ:
		return toMultiPolygon(s.NumParts, s.Parts, s.Points)
	case *shp.PolygonM:
		return toMultiPolygon(s.NumParts, s.Parts, s.Points)
	case *shp.PolyLine:
		return toMultiLineString(s.NumParts, s.Parts, s.Points)
	case *shp.PolyLineZ:
		return toMultiLineString(s.NumParts, s.Parts, s.Points)
	case *shp.PolyLineM:
		return toMultiLineString(s.NumParts, s.Parts, s.Points)
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(srid)
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		return geom.NewMultiPointFlat(geom.XY, flatCoords(toCoords(s.Points))).SetSRID(srid)
	default:
		return nil
	}
}

// splitParts slices a shapefile point list into its parts.
func splitParts(numParts int32, parts []int32, points []shp.Point) [][]geom.Coord {
	if numParts == 0 || len(points) == 0 || int(numParts) > len(parts) {
		return nil
	}

	out := make([][]geom.Coord, 0, numParts)
	for i := int32(0); i < numParts; i++ {
		start := parts[i]
		end := int32(len(points))
		if i+1 < numParts {
			end = parts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}
		out = append(out, toCoords(points[start:end]))
	}
	return out
}

// toMultiPolygon groups shapefile rings into polygons. Outer rings wind
// clockwise; a counter-clockwise ring is a hole of the preceding outer ring
// when its bounds fall inside that ring's bounds.
func toMultiPolygon(numParts int32, parts []int32, points []shp.Point) geom.T {
	var (
		polys  [][][]geom.Coord
		bounds []*geom.Bounds
	)

	for i, ring := range splitParts(numParts, parts, points) {
		ring = closeRing(ring)
		if len(ring) < 4 {
			zap.L().Debug("geometry: skipping degenerate ring", zap.Int("part", i), zap.Int("points", len(ring)))
			continue
		}

		rb := ringBounds(ring)
		last := len(polys) - 1
		if signedArea(ring) > 0 && last >= 0 && contains(bounds[last], rb) {
			polys[last] = append(polys[last], ring)
			continue
		}
		polys = append(polys, [][]geom.Coord{ring})
		bounds = append(bounds, rb)
	}

	if len(polys) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	for i, rings := range polys {
		poly, err := geom.NewPolygon(geom.XY).SetCoords(rings)
		if err != nil {
			zap.L().Debug("geometry: skipping malformed polygon", zap.Int("polygon", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geometry: skipping malformed polygon", zap.Int("polygon", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func toMultiLineString(numParts int32, parts []int32, points []shp.Point) geom.T {
	mls := geom.NewMultiLineString(geom.XY).SetSRID(srid)
	for i, coords := range splitParts(numParts, parts, points) {
		if len(coords) < 2 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flatCoords(coords))); err != nil {
			zap.L().Debug("geometry: skipping malformed linestring", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func toCoords(points []shp.Point) []geom.Coord {
	coords := make([]geom.Coord, len(points))
	for i, p := range points {
		coords[i] = geom.Coord{p.X, p.Y}
	}
	return coords
}

func flatCoords(coords []geom.Coord) []float64 {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return flat
}

func closeRing(ring []geom.Coord) []geom.Coord {
	if len(ring) == 0 {
		return ring
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		ring = append(ring, geom.Coord{first[0], first[1]})
	}
	return ring
}

// signedArea is twice the shoelace area; negative for clockwise rings.
func signedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := 0; i+1 < len(ring); i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum
}

func ringBounds(ring []geom.Coord) *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, c := range ring {
		b.Extend(geom.NewPointFlat(geom.XY, []float64{c[0], c[1]}))
	}
	return b
}

func contains(outer, inner *geom.Bounds) bool {
	return outer.Min(0) <= inner.Min(0) && outer.Min(1) <= inner.Min(1) &&
		outer.Max(0) >= inner.Max(0) && outer.Max(1) >= inner.Max(1)
}
