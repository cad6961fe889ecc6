// Package profile derives closed planar regions from solved,
// non-construction sketch geometry. Profiles are recomputed wholesale
// after every solve; they are never authored state. Endpoints within a
// merge tolerance join even without a coincident constraint, so
// visually closed outlines still form regions.
package profile

import (
	"math"
	"sort"

	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/model"
)

// Loop is one closed boundary: the contributing entities in traversal
// order and a sampled closed polyline of the boundary geometry.
type Loop struct {
	Entities []model.EntityID
	Points   []geom.Vec
	Area     float64 // absolute enclosed area
}

// Profile is an outer boundary plus the holes nested directly inside
// it.
type Profile struct {
	Outer Loop
	Holes []Loop
}

// Options tunes extraction.
type Options struct {
	MergeTol   float64 // endpoint merge radius
	ArcSamples int     // polyline samples per arc
}

func (o Options) withDefaults() Options {
	if o.MergeTol <= 0 {
		o.MergeTol = 1e-6
	}
	if o.ArcSamples < 4 {
		o.ArcSamples = 32
	}
	return o
}

// Extract builds all profiles from the given entities. Construction
// and reference geometry must be filtered out by the caller or is
// skipped here; the output is deterministic for a given geometry and
// tolerance.
func Extract(entities []*model.Entity, opts Options) []Profile {
	opts = opts.withDefaults()

	var loops []Loop

	// Full circles close on themselves and skip the graph walk.
	g := newGraph(opts.MergeTol)
	for _, e := range entities {
		if e.Construction || e.Style == model.StyleReference {
			continue
		}
		switch e.Kind {
		case model.KindCircle:
			c := e.AsCircle()
			if c.R <= 0 {
				continue
			}
			pts := c.Sample(opts.ArcSamples)
			loops = append(loops, Loop{
				Entities: []model.EntityID{e.ID},
				Points:   pts,
				Area:     math.Abs(geom.SignedArea(pts)),
			})
		case model.KindLine:
			l := e.AsLine()
			g.addEdge(e.ID, []geom.Vec{l.A, l.B})
		case model.KindArc:
			a := e.AsArc()
			g.addEdge(e.ID, a.Sample(opts.ArcSamples))
		case model.KindSpline:
			pts := e.SplinePoints()
			if len(pts) >= 2 {
				g.addEdge(e.ID, pts)
			}
		}
	}

	loops = append(loops, g.faces()...)
	return nest(loops)
}

// nest classifies loops into outer boundaries and holes by containment
// depth, attaching each hole to its immediately enclosing outer loop.
func nest(loops []Loop) []Profile {
	sort.Slice(loops, func(i, j int) bool { return loops[i].Area > loops[j].Area })

	parent := make([]int, len(loops))
	depth := make([]int, len(loops))
	for i := range loops {
		parent[i] = -1
		probe := interiorPoint(loops[i])
		// Smallest enclosing loop wins; loops are sorted by area so a
		// later match is always tighter.
		for j := range loops {
			if j == i || loops[j].Area <= loops[i].Area {
				continue
			}
			if geom.PolygonContains(loops[j].Points, probe) {
				if parent[i] < 0 || loops[j].Area < loops[parent[i]].Area {
					parent[i] = j
				}
			}
		}
	}
	for i := range loops {
		d := 0
		for p := parent[i]; p >= 0; p = parent[p] {
			d++
		}
		depth[i] = d
	}

	profiles := make(map[int]*Profile)
	var order []int
	for i := range loops {
		if depth[i]%2 == 0 {
			profiles[i] = &Profile{Outer: loops[i]}
			order = append(order, i)
		}
	}
	for i := range loops {
		if depth[i]%2 == 1 {
			if p, ok := profiles[parent[i]]; ok {
				p.Holes = append(p.Holes, loops[i])
			}
		}
	}

	out := make([]Profile, 0, len(order))
	for _, i := range order {
		out = append(out, *profiles[i])
	}
	return out
}

// interiorPoint picks a probe point for containment tests: the
// centroid when it falls inside the loop, otherwise a vertex nudged
// toward the centroid.
func interiorPoint(l Loop) geom.Vec {
	var c geom.Vec
	for _, p := range l.Points {
		c = c.Add(p)
	}
	c = c.Scale(1 / float64(len(l.Points)))
	if geom.PolygonContains(l.Points, c) {
		return c
	}
	return geom.Lerp(l.Points[0], c, 1e-3)
}
