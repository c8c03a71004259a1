package join

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/concession-cli/internal/model"
)

// meanCentroid averages the centroids of every feature with a geometry.
func meanCentroid(features []model.Feature) ([2]float64, bool) {
	var (
		sum [2]float64
		n   int
	)
	for _, f := range features {
		c, ok := centroid(f.Geometry)
		if !ok {
			continue
		}
		sum[0] += c[0]
		sum[1] += c[1]
		n++
	}
	if n == 0 {
		return [2]float64{}, false
	}
	return [2]float64{sum[0] / float64(n), sum[1] / float64(n)}, true
}

// centroid returns the area-weighted centroid of polygonal geometries and
// the bounds centre of everything else.
func centroid(g geom.T) ([2]float64, bool) {
	if g == nil || len(g.FlatCoords()) == 0 {
		return [2]float64{}, false
	}

	switch t := g.(type) {
	case *geom.MultiPolygon:
		var cx, cy, area float64
		for i := 0; i < t.NumPolygons(); i++ {
			x, y, a := polygonMoments(t.Polygon(i))
			cx += x
			cy += y
			area += a
		}
		if area != 0 {
			return [2]float64{cx / area, cy / area}, true
		}
	case *geom.Polygon:
		x, y, a := polygonMoments(t)
		if a != 0 {
			return [2]float64{x / a, y / a}, true
		}
	}

	b := g.Bounds()
	return [2]float64{(b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2}, true
}

// polygonMoments returns the first moments and the area of p, with holes
// subtracted from the outer ring.
func polygonMoments(p *geom.Polygon) (mx, my, area float64) {
	for i := 0; i < p.NumLinearRings(); i++ {
		x, y, a := ringMoments(p.LinearRing(i).Coords())
		sign := 1.0
		if i > 0 {
			sign = -1.0
		}
		// Normalize orientation so the outer ring always counts positive.
		if a < 0 {
			x, y, a = -x, -y, -a
		}
		mx += sign * x
		my += sign * y
		area += sign * a
	}
	return mx, my, area
}

// ringMoments applies the shoelace formula to a closed ring.
func ringMoments(ring []geom.Coord) (mx, my, area float64) {
	for i := 0; i+1 < len(ring); i++ {
		x0, y0 := ring[i][0], ring[i][1]
		x1, y1 := ring[i+1][0], ring[i+1][1]
		cross := x0*y1 - x1*y0
		area += cross
		mx += (x0 + x1) * cross
		my += (y0 + y1) * cross
	}
	area /= 2
	mx /= 6
	my /= 6
	if math.IsNaN(area) {
		return 0, 0, 0
	}
	return mx, my, area
}
