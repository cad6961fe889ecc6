package model

import (
	"github.com/conneroisu/sketchcad/internal/errors"
)

// Restore rebuilds a sketch from previously serialized entities and
// constraints, preserving identities. Structural validity is enforced
// the same way as incremental mutation; the persistence layer owns the
// byte format, this owns the semantics.
func Restore(entities []*Entity, constraints []*Constraint) (*Sketch, error) {
	s := NewSketch()

	for _, e := range entities {
		if e.ID <= 0 {
			return nil, errors.Structural("Restore", "entity id %d is not positive", e.ID)
		}
		if _, dup := s.entities[e.ID]; dup {
			return nil, errors.Structural("Restore", "duplicate entity id %d", e.ID)
		}
		if err := validateEntityParams(e.Kind, e.Params); err != nil {
			return nil, err
		}
		s.entities[e.ID] = e.Clone()
		if e.ID >= s.nextEntity {
			s.nextEntity = e.ID + 1
		}
	}

	for _, c := range constraints {
		if c.ID <= 0 {
			return nil, errors.Structural("Restore", "constraint id %d is not positive", c.ID)
		}
		if _, dup := s.constraints[c.ID]; dup {
			return nil, errors.Structural("Restore", "duplicate constraint id %d", c.ID)
		}
		if err := s.validateConstraint(c.Kind, c.Refs, c.Value); err != nil {
			return nil, err
		}
		s.constraints[c.ID] = c.Clone()
		for _, r := range c.Refs {
			s.byEntity[r.Entity] = append(s.byEntity[r.Entity], c.ID)
		}
		if c.ID >= s.nextConstraint {
			s.nextConstraint = c.ID + 1
		}
	}

	return s, nil
}
