package model

import (
	"sort"

	"github.com/conneroisu/sketchcad/internal/errors"
)

// Layout is the deterministic flattening of all entity parameters into
// a single vector. It is re-derived on structural edits; ordering by
// entity identity keeps index assignment stable for the lifetime of
// each entity, which keeps incremental solves numerically stable.
type Layout struct {
	Order  []EntityID
	Offset map[EntityID]int
	Count  map[EntityID]int
	Total  int
}

// OffsetOf returns the vector offset of an entity's first parameter.
func (l Layout) OffsetOf(id EntityID) (int, bool) {
	off, ok := l.Offset[id]
	return off, ok
}

// ParamLayout derives the current parameter layout.
func (s *Sketch) ParamLayout() Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	l := Layout{
		Order:  ids,
		Offset: make(map[EntityID]int, len(ids)),
		Count:  make(map[EntityID]int, len(ids)),
	}
	for _, id := range ids {
		n := len(s.entities[id].Params)
		l.Offset[id] = l.Total
		l.Count[id] = n
		l.Total += n
	}
	return l
}

// ParamVector copies current parameter values into a vector matching
// the layout.
func (s *Sketch) ParamVector(l Layout) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	x := make([]float64, l.Total)
	for _, id := range l.Order {
		e, ok := s.entities[id]
		if !ok {
			errors.Invariant("layout references deleted entity %d", id)
		}
		copy(x[l.Offset[id]:], e.Params)
	}
	return x
}

// ApplyParams writes a solved vector back into entity parameters. One
// EventParamsUpdated event is emitted per entity whose values changed.
func (s *Sketch) ApplyParams(l Layout, x []float64) error {
	if len(x) != l.Total {
		return errors.Structural("ApplyParams", "vector length %d does not match layout total %d", len(x), l.Total)
	}

	var changed []EntityID
	s.mu.Lock()
	for _, id := range l.Order {
		e, ok := s.entities[id]
		if !ok {
			s.mu.Unlock()
			errors.Invariant("layout references deleted entity %d", id)
		}
		off := l.Offset[id]
		for i := range e.Params {
			if e.Params[i] != x[off+i] {
				copy(e.Params, x[off:off+len(e.Params)])
				changed = append(changed, id)
				break
			}
		}
	}
	if len(changed) > 0 {
		s.generation++
	}
	s.mu.Unlock()

	for _, id := range changed {
		s.notify(Event{Type: EventParamsUpdated, Entity: id})
	}
	return nil
}
