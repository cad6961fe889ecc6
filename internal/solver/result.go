package solver

import (
	"github.com/conneroisu/sketchcad/internal/errors"
	"github.com/conneroisu/sketchcad/internal/model"
)

// Status classifies a component (or a whole sketch) after solving.
type Status int

const (
	// FullyConstrained: converged with zero remaining degrees of
	// freedom.
	FullyConstrained Status = iota
	// UnderConstrained: converged with free directions remaining.
	// Entities stay draggable; this is not an error.
	UnderConstrained
	// Redundant: converged, but the Jacobian is rank-deficient
	// relative to the contributed equations. Reported, never blocking.
	Redundant
	// Unsolvable: Newton failed to converge within the iteration cap.
	Unsolvable
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case FullyConstrained:
		return "fully-constrained"
	case UnderConstrained:
		return "under-constrained"
	case Redundant:
		return "redundant"
	case Unsolvable:
		return "unsolvable"
	default:
		return "unknown"
	}
}

// Severity maps a status onto the shared failure scale: redundancy is
// worth a warning, non-convergence an error, anything converged is
// informational.
func (s Status) Severity() errors.Severity {
	switch s {
	case Redundant:
		return errors.SeverityWarning
	case Unsolvable:
		return errors.SeverityError
	default:
		return errors.SeverityInfo
	}
}

// worse returns the more severe of two statuses.
func worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// ComponentResult diagnoses one connected component of the
// entity/constraint graph.
type ComponentResult struct {
	Entities    []model.EntityID
	Constraints []model.ConstraintID

	Status Status
	// DOF counts the internal degrees of freedom left after solving:
	// free parameters minus independent equations, minus any
	// rigid-body motions of the component that no equation pins down.
	// A floating triangle with three side lengths is therefore fully
	// constrained. Components with no equations report their raw free
	// parameter count.
	DOF          int
	FreeParams   int
	Rank         int
	Iterations   int
	ResidualNorm float64

	// Conflicts names the constraints whose individual removal most
	// reduces the residual of an unsolvable component.
	Conflicts []model.ConstraintID
	// Redundant names constraints whose removal does not change the
	// Jacobian rank of a solved component.
	Redundant []model.ConstraintID
}

// Result is the outcome of one solve: a best-effort parameter
// assignment plus per-component diagnostics. It is a value, never an
// error; callers render whatever geometry the assignment yields.
type Result struct {
	Status     Status
	Components []ComponentResult
	Layout     model.Layout
	Params     []float64
	Converged  bool
}

// TotalDOF sums the degrees of freedom across components.
func (r *Result) TotalDOF() int {
	total := 0
	for _, c := range r.Components {
		total += c.DOF
	}
	return total
}

// ComponentOf returns the component containing the entity.
func (r *Result) ComponentOf(id model.EntityID) (*ComponentResult, bool) {
	for i := range r.Components {
		for _, e := range r.Components[i].Entities {
			if e == id {
				return &r.Components[i], true
			}
		}
	}
	return nil, false
}

// Options tunes the Newton iteration. Zero values fall back to the
// documented defaults.
type Options struct {
	ResidualTol    float64 // convergence threshold on the residual max norm
	MaxIterations  int     // iteration cap bounding solve time
	Rcond          float64 // singular value cutoff relative to the largest
	ProbeConflicts bool    // diagnose conflict sets on unsolvable components
}

func (o Options) withDefaults() Options {
	if o.ResidualTol <= 0 {
		o.ResidualTol = 1e-9
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 50
	}
	if o.Rcond <= 0 {
		o.Rcond = 1e-10
	}
	return o
}
