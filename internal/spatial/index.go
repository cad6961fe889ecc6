// Package spatial answers cursor queries against sketch geometry:
// which entity is under the cursor, what is the nearest snap target.
// The index is a uniform grid over point features plus a body list,
// rebuilt lazily when the sketch generation moves. Queries read
// current geometry and never trigger a solve.
package spatial

import (
	"math"
	"sort"

	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/model"
)

// FeatureKind ranks snap targets. Lower values snap first when
// distances tie within the snap radius.
type FeatureKind int

const (
	FeatureEndpoint FeatureKind = iota
	FeatureMidpoint
	FeatureCenter
	FeatureBody
)

func (k FeatureKind) String() string {
	switch k {
	case FeatureEndpoint:
		return "endpoint"
	case FeatureMidpoint:
		return "midpoint"
	case FeatureCenter:
		return "center"
	case FeatureBody:
		return "body"
	default:
		return "unknown"
	}
}

// Feature is one snappable location on an entity. For body features
// Point is the closest boundary point to the query, computed per
// query; Anchor tells constraint authoring code how to reference the
// location.
type Feature struct {
	Entity model.EntityID
	Kind   FeatureKind
	Anchor model.Anchor
	Point  geom.Vec
}

// Hit is a feature plus its distance to the query point.
type Hit struct {
	Feature
	Dist float64
}

type body struct {
	entity model.EntityID
	min    geom.Vec
	max    geom.Vec
	dist   func(geom.Vec) float64
	near   func(geom.Vec) geom.Vec
}

// Index is a rebuildable spatial lookup over one sketch. It is not
// safe for concurrent use; the session layer serializes access.
type Index struct {
	cell       float64
	generation uint64
	fresh      bool
	grid       map[[2]int][]Feature
	bodies     []body
}

// New returns an empty index with the given grid cell size.
func New(cell float64) *Index {
	if cell <= 0 {
		cell = 32
	}
	return &Index{cell: cell, grid: map[[2]int][]Feature{}}
}

// Sync rebuilds the index if the sketch has changed since the last
// rebuild.
func (ix *Index) Sync(sk *model.Sketch) {
	if gen := sk.Generation(); ix.fresh && gen == ix.generation {
		return
	}
	ix.rebuild(sk)
}

func (ix *Index) rebuild(sk *model.Sketch) {
	ix.grid = map[[2]int][]Feature{}
	ix.bodies = ix.bodies[:0]
	for _, e := range sk.Entities() {
		ix.add(e)
	}
	ix.generation = sk.Generation()
	ix.fresh = true
}

func (ix *Index) cellOf(p geom.Vec) [2]int {
	return [2]int{int(math.Floor(p.X / ix.cell)), int(math.Floor(p.Y / ix.cell))}
}

func (ix *Index) addPoint(f Feature) {
	c := ix.cellOf(f.Point)
	ix.grid[c] = append(ix.grid[c], f)
}

func (ix *Index) add(e *model.Entity) {
	id := e.ID
	switch e.Kind {
	case model.KindPoint:
		ix.addPoint(Feature{id, FeatureEndpoint, model.AnchorSelf, e.AsPoint()})
	case model.KindLine:
		l := e.AsLine()
		ix.addPoint(Feature{id, FeatureEndpoint, model.AnchorStart, l.A})
		ix.addPoint(Feature{id, FeatureEndpoint, model.AnchorEnd, l.B})
		ix.addPoint(Feature{id, FeatureMidpoint, model.AnchorMid, l.Mid()})
		ix.bodies = append(ix.bodies, body{
			entity: id,
			min:    geom.V(math.Min(l.A.X, l.B.X), math.Min(l.A.Y, l.B.Y)),
			max:    geom.V(math.Max(l.A.X, l.B.X), math.Max(l.A.Y, l.B.Y)),
			dist:   l.Dist,
			near:   l.Project,
		})
	case model.KindCircle:
		c := e.AsCircle()
		ix.addPoint(Feature{id, FeatureCenter, model.AnchorCenter, c.Center})
		ix.bodies = append(ix.bodies, body{
			entity: id,
			min:    c.Center.Sub(geom.V(c.R, c.R)),
			max:    c.Center.Add(geom.V(c.R, c.R)),
			dist:   c.Dist,
			near:   c.Project,
		})
	case model.KindArc:
		a := e.AsArc()
		ix.addPoint(Feature{id, FeatureEndpoint, model.AnchorStart, a.StartPoint()})
		ix.addPoint(Feature{id, FeatureEndpoint, model.AnchorEnd, a.EndPoint()})
		ix.addPoint(Feature{id, FeatureMidpoint, model.AnchorMid, a.MidPoint()})
		ix.addPoint(Feature{id, FeatureCenter, model.AnchorCenter, a.Center})
		ix.bodies = append(ix.bodies, body{
			entity: id,
			min:    a.Center.Sub(geom.V(a.R, a.R)),
			max:    a.Center.Add(geom.V(a.R, a.R)),
			dist:   a.Dist,
			near:   a.Project,
		})
	case model.KindSpline:
		pts := e.SplinePoints()
		if len(pts) == 0 {
			return
		}
		ix.addPoint(Feature{id, FeatureEndpoint, model.AnchorStart, pts[0]})
		ix.addPoint(Feature{id, FeatureEndpoint, model.AnchorEnd, pts[len(pts)-1]})
		min, max := pts[0], pts[0]
		for _, p := range pts[1:] {
			min = geom.V(math.Min(min.X, p.X), math.Min(min.Y, p.Y))
			max = geom.V(math.Max(max.X, p.X), math.Max(max.Y, p.Y))
		}
		ix.bodies = append(ix.bodies, body{
			entity: id,
			min:    min,
			max:    max,
			dist:   func(p geom.Vec) float64 { return p.Dist(polylineNearest(pts, p)) },
			near:   func(p geom.Vec) geom.Vec { return polylineNearest(pts, p) },
		})
	}
}

func polylineNearest(pts []geom.Vec, p geom.Vec) geom.Vec {
	best := pts[0]
	bestDist := p.Dist(best)
	for i := 0; i+1 < len(pts); i++ {
		q := geom.Line{A: pts[i], B: pts[i+1]}.Project(p)
		if d := p.Dist(q); d < bestDist {
			best, bestDist = q, d
		}
	}
	return best
}

// HitTest returns every feature within radius of p, ordered by snap
// priority then distance.
func (ix *Index) HitTest(p geom.Vec, radius float64) []Hit {
	var hits []Hit

	c := ix.cellOf(p)
	reach := int(math.Ceil(radius/ix.cell)) + 1
	for dx := -reach; dx <= reach; dx++ {
		for dy := -reach; dy <= reach; dy++ {
			for _, f := range ix.grid[[2]int{c[0] + dx, c[1] + dy}] {
				if d := f.Point.Dist(p); d <= radius {
					hits = append(hits, Hit{Feature: f, Dist: d})
				}
			}
		}
	}
	for _, b := range ix.bodies {
		if p.X < b.min.X-radius || p.X > b.max.X+radius ||
			p.Y < b.min.Y-radius || p.Y > b.max.Y+radius {
			continue
		}
		if d := b.dist(p); d <= radius {
			hits = append(hits, Hit{
				Feature: Feature{b.entity, FeatureBody, model.AnchorSelf, b.near(p)},
				Dist:    d,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Kind != hits[j].Kind {
			return hits[i].Kind < hits[j].Kind
		}
		if hits[i].Dist != hits[j].Dist {
			return hits[i].Dist < hits[j].Dist
		}
		return hits[i].Entity < hits[j].Entity
	})
	return hits
}

// Snap returns the best snap target within radius: the closest
// point feature when any is in range, otherwise the closest body.
func (ix *Index) Snap(p geom.Vec, radius float64) (Hit, bool) {
	hits := ix.HitTest(p, radius)
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}

// Nearest returns the closest feature of any kind with no radius
// bound. Unbounded queries cannot prune by cell, so this walks every
// feature; it serves keyboard-driven selection, not per-frame hover.
func (ix *Index) Nearest(p geom.Vec) (Hit, bool) {
	best := Hit{Dist: math.Inf(1)}
	found := false
	for _, bucket := range ix.grid {
		for _, f := range bucket {
			if d := f.Point.Dist(p); d < best.Dist {
				best, found = Hit{Feature: f, Dist: d}, true
			}
		}
	}
	for _, b := range ix.bodies {
		if d := b.dist(p); d < best.Dist {
			best = Hit{
				Feature: Feature{b.entity, FeatureBody, model.AnchorSelf, b.near(p)},
				Dist:    d,
			}
			found = true
		}
	}
	return best, found
}
