package solver

import (
	"sort"

	"github.com/conneroisu/sketchcad/internal/model"
)

// component is one connected block of the entity/constraint graph.
// Components solve independently; DOF is accounted per component.
type component struct {
	entities    []model.EntityID
	constraints []*model.Constraint
	eqs         []equation
	varOf       map[int]int // global param index -> local free var
	vars        []int       // local free var -> global param index
}

// unionFind over entity identities.
type unionFind struct {
	parent map[model.EntityID]model.EntityID
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[model.EntityID]model.EntityID)}
}

func (u *unionFind) find(id model.EntityID) model.EntityID {
	p, ok := u.parent[id]
	if !ok {
		u.parent[id] = id
		return id
	}
	if p != id {
		root := u.find(p)
		u.parent[id] = root
		return root
	}
	return id
}

func (u *unionFind) union(a, b model.EntityID) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// partition splits the system into connected components by
// shared-constraint adjacency and assigns local free-variable indices,
// excluding the parameters of Fixed entities.
func (s *system) partition() []component {
	uf := newUnionFind()
	for id := range s.entities {
		uf.find(id)
	}
	for _, c := range s.constraints {
		for i := 1; i < len(c.Refs); i++ {
			uf.union(c.Refs[0].Entity, c.Refs[i].Entity)
		}
	}

	byRoot := make(map[model.EntityID]*component)
	comp := func(root model.EntityID) *component {
		if cp, ok := byRoot[root]; ok {
			return cp
		}
		cp := &component{varOf: make(map[int]int)}
		byRoot[root] = cp
		return cp
	}

	for id := range s.entities {
		cp := comp(uf.find(id))
		cp.entities = append(cp.entities, id)
	}
	for _, c := range s.constraints {
		cp := comp(uf.find(c.Refs[0].Entity))
		cp.constraints = append(cp.constraints, c)
	}
	for _, eq := range s.eqs {
		cp := comp(uf.find(eq.first))
		cp.eqs = append(cp.eqs, eq)
	}

	out := make([]component, 0, len(byRoot))
	for _, cp := range byRoot {
		sort.Slice(cp.entities, func(i, j int) bool { return cp.entities[i] < cp.entities[j] })
		sort.Slice(cp.constraints, func(i, j int) bool { return cp.constraints[i].ID < cp.constraints[j].ID })
		sort.Slice(cp.eqs, func(i, j int) bool { return cp.eqs[i].id < cp.eqs[j].id })

		// Free variables: parameters of non-Fixed entities, in layout
		// order, so index assignment is deterministic.
		for _, id := range cp.entities {
			if s.fixed[id] {
				continue
			}
			off := s.layout.Offset[id]
			for i := 0; i < s.layout.Count[id]; i++ {
				cp.varOf[off+i] = len(cp.vars)
				cp.vars = append(cp.vars, off+i)
			}
		}
		out = append(out, *cp)
	}

	// Deterministic component ordering by smallest entity id.
	sort.Slice(out, func(i, j int) bool { return out[i].entities[0] < out[j].entities[0] })
	return out
}
