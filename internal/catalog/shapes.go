package catalog

import (
	"fmt"

	"github.com/tidwall/rtree"

	"nowtrain.tokyo/internal/utils"
)

// loopCloseMeters is how near the first and last stitched vertices must be
// for the shape to count as a closed loop.
const loopCloseMeters = 50.0

// buildShape stitches a line's sub-lines into one continuous polyline,
// computes the cumulative arc-length table, and anchors each station to its
// nearest vertex.
func buildShape(sublines [][]Coord, stations []*Station) (*Shape, error) {
	points := stitch(sublines)
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: %d stitched vertices", ErrShapeInvalid, len(points))
	}

	cum := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		step := utils.Distance(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
		cum[i] = cum[i-1] + step
	}
	if cum[len(cum)-1] <= 0 {
		return nil, fmt.Errorf("%w: zero-length polyline", ErrShapeInvalid)
	}

	shape := &Shape{
		Points:  points,
		CumDist: cum,
		Anchors: make(map[string]int, len(stations)),
	}

	first, last := points[0], points[len(points)-1]
	shape.Loop = utils.Distance(first.Lat, first.Lon, last.Lat, last.Lon) < loopCloseMeters

	tree := buildVertexIndex(points)
	for _, st := range stations {
		shape.Anchors[st.ID] = nearestVertex(tree, points, st.Coord)
	}

	return shape, nil
}

// stitch walks the sub-lines in order, reversing any sub-line whose far end
// is closer to the previous endpoint than its near end, and concatenates the
// result. The vertex set is therefore independent of each sub-line's stored
// orientation.
func stitch(sublines [][]Coord) []Coord {
	var merged []Coord
	var previousEnd *Coord

	for _, coords := range sublines {
		if len(coords) == 0 {
			continue
		}

		if previousEnd != nil {
			first := coords[0]
			last := coords[len(coords)-1]
			distToFirst := utils.SquaredDelta(previousEnd.Lon, previousEnd.Lat, first.Lon, first.Lat)
			distToLast := utils.SquaredDelta(previousEnd.Lon, previousEnd.Lat, last.Lon, last.Lat)
			if distToLast < distToFirst {
				coords = reversed(coords)
			}
		}

		merged = append(merged, coords...)
		end := merged[len(merged)-1]
		previousEnd = &end
	}

	return merged
}

func reversed(coords []Coord) []Coord {
	out := make([]Coord, len(coords))
	for i, c := range coords {
		out[len(coords)-1-i] = c
	}
	return out
}

// buildVertexIndex loads every polyline vertex into an R-tree keyed by
// [lon, lat] so station anchoring does not scan the full vertex list per
// station.
func buildVertexIndex(points []Coord) *rtree.RTree {
	var tree rtree.RTree
	for i, p := range points {
		pt := [2]float64{p.Lon, p.Lat}
		tree.Insert(pt, pt, i)
	}
	return &tree
}

// nearestVertex finds the index of the polyline vertex nearest to the given
// coordinate. It searches the R-tree with an expanding bounding box and falls
// back to a linear scan if nothing lands inside the widest box.
func nearestVertex(tree *rtree.RTree, points []Coord, coord Coord) int {
	for radius := 250.0; radius <= 16000.0; radius *= 4 {
		box := utils.CalculateBounds(coord.Lat, coord.Lon, radius)

		best := -1
		bestDist := 0.0
		tree.Search(
			[2]float64{box.MinLon, box.MinLat},
			[2]float64{box.MaxLon, box.MaxLat},
			func(min, max [2]float64, data interface{}) bool {
				idx := data.(int)
				d := utils.Distance(coord.Lat, coord.Lon, points[idx].Lat, points[idx].Lon)
				if best == -1 || d < bestDist {
					best = idx
					bestDist = d
				}
				return true
			},
		)
		if best >= 0 {
			return best
		}
	}

	// Degenerate geometry; scan everything.
	best := 0
	bestDist := utils.Distance(coord.Lat, coord.Lon, points[0].Lat, points[0].Lon)
	for i := 1; i < len(points); i++ {
		d := utils.Distance(coord.Lat, coord.Lon, points[i].Lat, points[i].Lon)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// PointAtDistance interpolates the coordinate at the given arc length along
// the polyline, clamped to [0, TotalLength].
func (s *Shape) PointAtDistance(target float64) Coord {
	if target <= 0 {
		return s.Points[0]
	}
	total := s.TotalLength()
	if target >= total {
		return s.Points[len(s.Points)-1]
	}

	i := searchCum(s.CumDist, target)
	segLen := s.CumDist[i+1] - s.CumDist[i]
	if segLen <= 0 {
		return s.Points[i]
	}
	ratio := (target - s.CumDist[i]) / segLen
	a, b := s.Points[i], s.Points[i+1]
	return Coord{
		Lon: a.Lon + (b.Lon-a.Lon)*ratio,
		Lat: a.Lat + (b.Lat-a.Lat)*ratio,
	}
}

// BearingAtDistance returns the polyline's tangent bearing at the given arc
// length, oriented in the direction of increasing distance when forward is
// true and reversed otherwise.
func (s *Shape) BearingAtDistance(target float64, forward bool) float64 {
	total := s.TotalLength()
	if target < 0 {
		target = 0
	}
	if target > total {
		target = total
	}

	i := searchCum(s.CumDist, target)
	if i >= len(s.Points)-1 {
		i = len(s.Points) - 2
	}
	// Skip zero-length segments so the chord is meaningful.
	for i > 0 && s.CumDist[i+1]-s.CumDist[i] <= 0 {
		i--
	}
	a, b := s.Points[i], s.Points[i+1]
	if !forward {
		a, b = b, a
	}
	return utils.Bearing(a.Lat, a.Lon, b.Lat, b.Lon)
}

// searchCum returns the largest index i with CumDist[i] <= target and
// i < len-1, via binary search.
func searchCum(cum []float64, target float64) int {
	lo, hi := 0, len(cum)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if cum[mid] <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo >= len(cum)-1 {
		lo = len(cum) - 2
	}
	if lo < 0 {
		lo = 0
	}
	return lo
}
