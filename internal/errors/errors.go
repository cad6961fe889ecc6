// Package errors defines the typed failure values the sketch core
// returns across its API boundary. Structural and expression failures
// are errors; solver outcomes are diagnostics carried on the solve
// result, never errors. The core does not panic except on internal
// invariant violations.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity classifies how a failure should surface to the caller.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// StructuralError reports a mutation rejected at add/remove time: a
// missing entity reference, a wrong arity, or an entity kind a
// constraint type does not accept. The model is left unchanged.
type StructuralError struct {
	Op      string // mutation that was rejected, e.g. "AddConstraint"
	Message string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Structural constructs a StructuralError.
func Structural(op, format string, args ...interface{}) *StructuralError {
	return &StructuralError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// IsStructural reports whether err is (or wraps) a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return stderrors.As(err, &se)
}

// ExprErrorKind distinguishes the ways a formula commit can fail.
type ExprErrorKind int

const (
	ExprSyntax ExprErrorKind = iota
	ExprUnknownReference
	ExprCycle
)

// String returns the string representation of the kind.
func (k ExprErrorKind) String() string {
	switch k {
	case ExprSyntax:
		return "syntax"
	case ExprUnknownReference:
		return "unknown reference"
	case ExprCycle:
		return "cyclic reference"
	default:
		return "unknown"
	}
}

// ExpressionError reports a formula rejected at commit time. The
// previously stored formula and value are retained.
type ExpressionError struct {
	Kind    ExprErrorKind
	Name    string // parameter being committed, empty for anonymous evals
	Formula string
	Message string
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("formula %q for %s: %s: %s", e.Formula, e.Name, e.Kind, e.Message)
	}
	return fmt.Sprintf("formula %q: %s: %s", e.Formula, e.Kind, e.Message)
}

// Expression constructs an ExpressionError.
func Expression(kind ExprErrorKind, name, formula, format string, args ...interface{}) *ExpressionError {
	return &ExpressionError{
		Kind:    kind,
		Name:    name,
		Formula: formula,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsExpression reports whether err is (or wraps) an ExpressionError,
// and returns it when so.
func IsExpression(err error) (*ExpressionError, bool) {
	var ee *ExpressionError
	ok := stderrors.As(err, &ee)
	return ee, ok
}

// Invariant panics with a formatted message. It is reserved for bugs
// in the core itself, such as a constraint referencing a deleted
// entity reaching the solver after cascade delete should have removed
// it.
func Invariant(format string, args ...interface{}) {
	panic(fmt.Sprintf("sketchcad internal invariant violated: "+format, args...))
}
