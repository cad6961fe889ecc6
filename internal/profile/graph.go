package profile

import (
	"math"
	"sort"

	"github.com/conneroisu/sketchcad/internal/errors"
	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/model"
)

// graph is the planar incidence structure built from open curve
// entities. Endpoints within the merge tolerance collapse onto a single
// vertex via a uniform spatial hash, then closed faces are traced with
// a half-edge walk that always takes the most clockwise continuation.
type graph struct {
	tol   float64
	cell  float64
	verts []geom.Vec
	grid  map[[2]int][]int
	edges []edge
}

// edge connects two merged vertices with the sampled polyline of one
// entity, oriented v1 to v2.
type edge struct {
	ent    model.EntityID
	v1, v2 int
	pts    []geom.Vec
}

func newGraph(tol float64) *graph {
	return &graph{
		tol:  tol,
		cell: tol * 4,
		grid: map[[2]int][]int{},
	}
}

func (g *graph) cellOf(p geom.Vec) [2]int {
	return [2]int{int(math.Floor(p.X / g.cell)), int(math.Floor(p.Y / g.cell))}
}

// vertexFor returns the merged vertex for p, creating one when no
// existing vertex lies within the tolerance.
func (g *graph) vertexFor(p geom.Vec) int {
	c := g.cellOf(p)
	best, bestDist := -1, g.tol
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, vi := range g.grid[[2]int{c[0] + dx, c[1] + dy}] {
				if d := g.verts[vi].Dist(p); d <= bestDist {
					best, bestDist = vi, d
				}
			}
		}
	}
	if best >= 0 {
		return best
	}
	g.verts = append(g.verts, p)
	vi := len(g.verts) - 1
	g.grid[c] = append(g.grid[c], vi)
	return vi
}

func (g *graph) addEdge(ent model.EntityID, pts []geom.Vec) {
	v1 := g.vertexFor(pts[0])
	v2 := g.vertexFor(pts[len(pts)-1])
	if v1 == v2 && len(pts) == 2 {
		// Zero-length segment after merging.
		return
	}
	// Snap the polyline ends onto the merged vertices so adjacent
	// edges share exact coordinates.
	snapped := make([]geom.Vec, len(pts))
	copy(snapped, pts)
	snapped[0] = g.verts[v1]
	snapped[len(snapped)-1] = g.verts[v2]
	g.edges = append(g.edges, edge{ent: ent, v1: v1, v2: v2, pts: snapped})
}

// Half-edges are numbered 2i (edge i forward, v1 to v2) and 2i+1
// (backward).

func (g *graph) origin(h int) int {
	e := g.edges[h/2]
	if h%2 == 0 {
		return e.v1
	}
	return e.v2
}

func (g *graph) dest(h int) int {
	return g.origin(h ^ 1)
}

// outAngle is the departure direction of h at its origin, taken from
// the polyline so arc tangents order correctly around a vertex.
func (g *graph) outAngle(h int) float64 {
	e := g.edges[h/2]
	var d geom.Vec
	if h%2 == 0 {
		d = e.pts[1].Sub(e.pts[0])
	} else {
		n := len(e.pts)
		d = e.pts[n-2].Sub(e.pts[n-1])
	}
	return math.Atan2(d.Y, d.X)
}

// polyline returns the edge points oriented along h, excluding the
// final point so concatenated face chains have no duplicates.
func (g *graph) polyline(h int) []geom.Vec {
	e := g.edges[h/2]
	n := len(e.pts)
	out := make([]geom.Vec, 0, n-1)
	if h%2 == 0 {
		out = append(out, e.pts[:n-1]...)
	} else {
		for i := n - 1; i > 0; i-- {
			out = append(out, e.pts[i])
		}
	}
	return out
}

// faces traces every closed region. Each bounded face comes out
// counter-clockwise; the unbounded outer walk comes out clockwise and
// is dropped by the area sign, as are spur retracings.
func (g *graph) faces() []Loop {
	if len(g.edges) == 0 {
		return nil
	}

	alive := g.prune()

	outgoing := make([][]int, len(g.verts))
	for i := range g.edges {
		if !alive[i] {
			continue
		}
		outgoing[g.edges[i].v1] = append(outgoing[g.edges[i].v1], 2*i)
		outgoing[g.edges[i].v2] = append(outgoing[g.edges[i].v2], 2*i+1)
	}
	pos := make([]int, 2*len(g.edges))
	for v := range outgoing {
		sort.Slice(outgoing[v], func(a, b int) bool {
			return g.outAngle(outgoing[v][a]) < g.outAngle(outgoing[v][b])
		})
		for i, h := range outgoing[v] {
			pos[h] = i
		}
	}

	// next follows the face boundary keeping the interior on the left:
	// at the head vertex, step to the clockwise neighbor of the twin.
	next := func(h int) int {
		out := outgoing[g.dest(h)]
		i := pos[h^1]
		return out[(i-1+len(out))%len(out)]
	}

	var loops []Loop
	visited := make([]bool, 2*len(g.edges))
	for start := 0; start < 2*len(g.edges); start++ {
		if visited[start] || !alive[start/2] {
			continue
		}
		var (
			pts  []geom.Vec
			ents []model.EntityID
		)
		h := start
		for steps := 0; ; steps++ {
			if steps > 2*len(g.edges) {
				errors.Invariant("face walk did not close after %d steps", steps)
			}
			visited[h] = true
			pts = append(pts, g.polyline(h)...)
			if len(ents) == 0 || ents[len(ents)-1] != g.edges[h/2].ent {
				ents = append(ents, g.edges[h/2].ent)
			}
			h = next(h)
			if h == start {
				break
			}
		}
		area := geom.SignedArea(pts)
		if area <= g.tol*g.tol || selfIntersects(pts) {
			continue
		}
		loops = append(loops, Loop{Entities: ents, Points: pts, Area: area})
	}
	return loops
}

// prune iteratively removes dangling edges: open chains can never
// bound a region, and leaving them in puts spur retracings on face
// boundaries. Self-loop edges count twice toward their vertex and
// survive.
func (g *graph) prune() []bool {
	alive := make([]bool, len(g.edges))
	degree := make([]int, len(g.verts))
	for i, e := range g.edges {
		alive[i] = true
		degree[e.v1]++
		degree[e.v2]++
	}
	for changed := true; changed; {
		changed = false
		for i, e := range g.edges {
			if !alive[i] || e.v1 == e.v2 {
				continue
			}
			if degree[e.v1] == 1 || degree[e.v2] == 1 {
				alive[i] = false
				degree[e.v1]--
				degree[e.v2]--
				changed = true
			}
		}
	}
	return alive
}

// selfIntersects reports whether any two non-adjacent segments of the
// closed ring cross. Crossing edges that were never merged at a shared
// vertex produce bowtie walks; those are not valid regions.
func selfIntersects(ring []geom.Vec) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a := geom.Line{A: ring[i], B: ring[(i+1)%n]}
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			b := geom.Line{A: ring[j], B: ring[(j+1)%n]}
			if _, ok := geom.SegSeg(a, b, 1e-12); ok {
				return true
			}
		}
	}
	return false
}
