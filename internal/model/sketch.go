package model

import (
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/sketchcad/internal/errors"
)

// EventType represents the type of sketch change event.
type EventType int

const (
	EventEntityAdded EventType = iota
	EventEntityUpdated
	EventEntityRemoved
	EventConstraintAdded
	EventConstraintRemoved
	EventConstraintUpdated
	EventParamsUpdated
)

// Event represents a change in the sketch.
type Event struct {
	Type       EventType
	Entity     EntityID
	Constraint ConstraintID
	Timestamp  time.Time
}

// Sketch owns all entities and constraints of a single sketch. It is
// safe for concurrent use; mutation bumps a generation counter so
// derived caches can detect staleness without locking the sketch.
type Sketch struct {
	mu          sync.RWMutex
	entities    map[EntityID]*Entity
	constraints map[ConstraintID]*Constraint
	// byEntity is the reverse index driving cascade delete.
	byEntity map[EntityID][]ConstraintID

	nextEntity     EntityID
	nextConstraint ConstraintID
	generation     uint64

	watchers []chan Event
}

// NewSketch creates an empty sketch.
func NewSketch() *Sketch {
	return &Sketch{
		entities:       make(map[EntityID]*Entity),
		constraints:    make(map[ConstraintID]*Constraint),
		byEntity:       make(map[EntityID][]ConstraintID),
		nextEntity:     1,
		nextConstraint: 1,
	}
}

// AddEntity creates an entity and returns its identity. Parameter
// arity is validated; the initial parameter values seed the solver.
func (s *Sketch) AddEntity(kind EntityKind, params []float64) (EntityID, error) {
	if err := validateEntityParams(kind, params); err != nil {
		return 0, err
	}

	s.mu.Lock()
	id := s.nextEntity
	s.nextEntity++
	s.entities[id] = &Entity{
		ID:     id,
		Kind:   kind,
		Params: append([]float64(nil), params...),
	}
	s.generation++
	s.mu.Unlock()

	s.notify(Event{Type: EventEntityAdded, Entity: id})
	return id, nil
}

// AddConstraint creates a constraint and returns its identity.
// Structural validity (referenced entities exist, arity and kind
// combination acceptable, value presence) is checked here; solvability
// is not.
func (s *Sketch) AddConstraint(kind ConstraintKind, refs []Ref, value *Value) (ConstraintID, error) {
	s.mu.Lock()
	if err := s.validateConstraint(kind, refs, value); err != nil {
		s.mu.Unlock()
		return 0, err
	}

	id := s.nextConstraint
	s.nextConstraint++
	c := &Constraint{
		ID:   id,
		Kind: kind,
		Refs: append([]Ref(nil), refs...),
	}
	if value != nil {
		v := *value
		c.Value = &v
	}
	s.constraints[id] = c
	for _, r := range refs {
		s.byEntity[r.Entity] = append(s.byEntity[r.Entity], id)
	}
	s.generation++
	s.mu.Unlock()

	s.notify(Event{Type: EventConstraintAdded, Constraint: id})
	return id, nil
}

// RemoveEntity deletes an entity, cascading deletion of every
// constraint that references it first.
func (s *Sketch) RemoveEntity(id EntityID) error {
	s.mu.Lock()
	if _, ok := s.entities[id]; !ok {
		s.mu.Unlock()
		return errors.Structural("RemoveEntity", "entity %d does not exist", id)
	}

	cascaded := append([]ConstraintID(nil), s.byEntity[id]...)
	for _, cid := range cascaded {
		s.removeConstraintLocked(cid)
	}
	delete(s.entities, id)
	delete(s.byEntity, id)
	s.generation++
	s.mu.Unlock()

	for _, cid := range cascaded {
		s.notify(Event{Type: EventConstraintRemoved, Constraint: cid})
	}
	s.notify(Event{Type: EventEntityRemoved, Entity: id})
	return nil
}

// RemoveConstraint deletes a constraint.
func (s *Sketch) RemoveConstraint(id ConstraintID) error {
	s.mu.Lock()
	if _, ok := s.constraints[id]; !ok {
		s.mu.Unlock()
		return errors.Structural("RemoveConstraint", "constraint %d does not exist", id)
	}
	s.removeConstraintLocked(id)
	s.generation++
	s.mu.Unlock()

	s.notify(Event{Type: EventConstraintRemoved, Constraint: id})
	return nil
}

// removeConstraintLocked unlinks a constraint from the reverse index.
// The caller holds the write lock.
func (s *Sketch) removeConstraintLocked(id ConstraintID) {
	c, ok := s.constraints[id]
	if !ok {
		return
	}
	for _, r := range c.Refs {
		refs := s.byEntity[r.Entity]
		for i, cid := range refs {
			if cid == id {
				s.byEntity[r.Entity] = append(refs[:i], refs[i+1:]...)
				break
			}
		}
	}
	delete(s.constraints, id)
}

// Entity retrieves a copy of an entity by identity.
func (s *Sketch) Entity(id EntityID) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Constraint retrieves a copy of a constraint by identity.
func (s *Sketch) Constraint(id ConstraintID) (*Constraint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.constraints[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Entities returns copies of all entities ordered by identity.
func (s *Sketch) Entities() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Constraints returns copies of all constraints ordered by identity.
func (s *Sketch) Constraints() []*Constraint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Constraint, 0, len(s.constraints))
	for _, c := range s.constraints {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConstraintsOn returns the identities of constraints referencing the
// entity, in creation order.
func (s *Sketch) ConstraintsOn(id EntityID) []ConstraintID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]ConstraintID(nil), s.byEntity[id]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EntityCount returns the number of entities.
func (s *Sketch) EntityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// ConstraintCount returns the number of constraints.
func (s *Sketch) ConstraintCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.constraints)
}

// SetParams overwrites an entity's parameter values. The solver is the
// only caller that mutates parameters in bulk; topology never changes
// here.
func (s *Sketch) SetParams(id EntityID, params []float64) error {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return errors.Structural("SetParams", "entity %d does not exist", id)
	}
	if len(params) != len(e.Params) {
		s.mu.Unlock()
		return errors.Structural("SetParams", "entity %d has %d parameters, got %d", id, len(e.Params), len(params))
	}
	copy(e.Params, params)
	s.generation++
	s.mu.Unlock()

	s.notify(Event{Type: EventParamsUpdated, Entity: id})
	return nil
}

// SetConstruction toggles the construction flag of an entity.
func (s *Sketch) SetConstruction(id EntityID, construction bool) error {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return errors.Structural("SetConstruction", "entity %d does not exist", id)
	}
	e.Construction = construction
	s.generation++
	s.mu.Unlock()

	s.notify(Event{Type: EventEntityUpdated, Entity: id})
	return nil
}

// SetPatternRef attaches a pattern back-reference to an entity.
func (s *Sketch) SetPatternRef(id EntityID, ref *PatternRef) error {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return errors.Structural("SetPatternRef", "entity %d does not exist", id)
	}
	e.Pattern = ref
	s.generation++
	s.mu.Unlock()

	s.notify(Event{Type: EventEntityUpdated, Entity: id})
	return nil
}

// SetValue replaces a constraint's driving value. Formula re-evaluation
// updates the literal through here before each solve.
func (s *Sketch) SetValue(id ConstraintID, value *Value) error {
	s.mu.Lock()
	c, ok := s.constraints[id]
	if !ok {
		s.mu.Unlock()
		return errors.Structural("SetValue", "constraint %d does not exist", id)
	}
	if !c.Kind.NeedsValue() {
		s.mu.Unlock()
		return errors.Structural("SetValue", "%s constraints carry no value", c.Kind)
	}
	if value == nil {
		s.mu.Unlock()
		return errors.Structural("SetValue", "%s constraints require a value", c.Kind)
	}
	v := *value
	c.Value = &v
	s.generation++
	s.mu.Unlock()

	s.notify(Event{Type: EventConstraintUpdated, Constraint: id})
	return nil
}

// Generation returns the mutation generation counter. Any entity or
// constraint mutation bumps it.
func (s *Sketch) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Watch returns a channel that receives sketch change events. Slow
// consumers drop events rather than block mutations.
func (s *Sketch) Watch() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, 100)
	s.watchers = append(s.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (s *Sketch) UnWatch(ch <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watchers {
		if w == ch {
			close(w)
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			break
		}
	}
}

func (s *Sketch) notify(ev Event) {
	ev.Timestamp = time.Now()
	s.mu.RLock()
	watchers := s.watchers
	s.mu.RUnlock()
	for _, w := range watchers {
		select {
		case w <- ev:
		default:
			// Skip if channel is full.
		}
	}
}
