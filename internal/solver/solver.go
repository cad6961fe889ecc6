package solver

import (
	"context"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/conneroisu/sketchcad/internal/model"
)

// Solve maps the sketch's current parameters and constraints to a
// satisfying assignment. The current parameter values seed the Newton
// iteration, so interactive re-solves converge in a few steps. The
// result is always populated with the best assignment reached;
// diagnostics are values, never errors. The only error returned is
// ctx cancellation, polled once per Newton iteration so a superseded
// drag solve can be abandoned.
func Solve(ctx context.Context, sk *model.Sketch, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	sys := compile(sk)
	x := sys.seedVector()
	comps := sys.partition()

	res := &Result{
		Status:    FullyConstrained,
		Layout:    sys.layout,
		Converged: true,
	}

	for i := range comps {
		cr, err := solveComponent(ctx, sys, &comps[i], x, opts)
		if err != nil {
			res.Params = x
			return res, err
		}
		res.Components = append(res.Components, cr)
		res.Status = worse(res.Status, cr.Status)
		if cr.Status == Unsolvable {
			res.Converged = false
		}
	}

	res.Params = x
	return res, nil
}

// outcome captures one component iteration run.
type outcome struct {
	converged    bool
	iterations   int
	residualNorm float64
	rank         int
	rows         int
}

// solveComponent runs damped Newton on one component, mutating the
// relevant entries of x in place, then attaches diagnostics.
func solveComponent(ctx context.Context, sys *system, cp *component, x []float64, opts Options) (ComponentResult, error) {
	cr := ComponentResult{
		Entities:   cp.entities,
		FreeParams: len(cp.vars),
	}
	for _, c := range cp.constraints {
		cr.Constraints = append(cr.Constraints, c.ID)
	}

	out, err := iterate(ctx, sys, cp, x, opts, nil)
	cr.Iterations = out.iterations
	cr.ResidualNorm = out.residualNorm
	cr.Rank = out.rank
	if err != nil {
		cr.Status = Unsolvable
		return cr, err
	}

	if !out.converged {
		cr.Status = Unsolvable
		cr.DOF = 0
		if opts.ProbeConflicts {
			conflicts, perr := probeConflicts(ctx, sys, cp, x, opts, out.residualNorm)
			if perr != nil {
				return cr, perr
			}
			cr.Conflicts = conflicts
		}
		return cr, nil
	}

	// Converged. Derive DOF from the rank at the solution, discounting
	// unpinned rigid motions of the component.
	if out.rows == 0 {
		cr.DOF = len(cp.vars)
	} else {
		rigid := rigidNullDim(sys, cp, x, opts)
		cr.DOF = len(cp.vars) - out.rank - rigid
		if cr.DOF < 0 {
			cr.DOF = 0
		}
	}

	switch {
	case out.rank < out.rows:
		cr.Status = Redundant
		cr.Redundant = findRedundant(sys, cp, x, opts, out.rank)
	case cr.DOF > 0:
		cr.Status = UnderConstrained
	default:
		cr.Status = FullyConstrained
	}
	return cr, nil
}

// iterate runs the damped Newton loop. disabled names constraints
// whose equations are skipped (used by conflict probing).
func iterate(ctx context.Context, sys *system, cp *component, x []float64, opts Options, disabled map[model.ConstraintID]bool) (outcome, error) {
	n := len(cp.vars)
	out := outcome{}

	r, jac, rows := assemble(sys, cp, x, disabled)
	out.rows = rows
	out.residualNorm = maxNorm(r)

	if rows == 0 || n == 0 {
		out.converged = out.residualNorm <= opts.ResidualTol
		return out, nil
	}

	for out.iterations = 0; out.iterations < opts.MaxIterations; out.iterations++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if out.residualNorm <= opts.ResidualTol {
			out.converged = true
			break
		}

		var svd mat.SVD
		if !svd.Factorize(jac, mat.SVDThin) {
			break
		}
		rank := svd.Rank(opts.Rcond)
		if rank == 0 {
			break
		}

		neg := mat.NewVecDense(rows, nil)
		for i, v := range r {
			neg.SetVec(i, -v)
		}
		dx := mat.NewVecDense(n, nil)
		svd.SolveVecTo(dx, neg, rank)

		// Backtracking line search on the residual norm.
		base := norm2(r)
		alpha := 1.0
		improved := false
		for step := 0; step < 10; step++ {
			trial := applyStep(x, cp, dx, alpha)
			tr, _, _ := assembleResiduals(sys, cp, trial, disabled)
			if norm2(tr) < base*(1-1e-4*alpha) {
				copy(x, trial)
				improved = true
				break
			}
			alpha /= 2
		}
		if !improved {
			// Stalled: accept the smallest step once, then give up if
			// it does not help either.
			trial := applyStep(x, cp, dx, alpha)
			tr, _, _ := assembleResiduals(sys, cp, trial, disabled)
			if norm2(tr) >= base {
				break
			}
			copy(x, trial)
		}

		r, jac, _ = assemble(sys, cp, x, disabled)
		out.residualNorm = maxNorm(r)
	}

	if out.residualNorm <= opts.ResidualTol {
		out.converged = true
	}

	// Rank at the final point feeds DOF accounting.
	if jac != nil {
		var svd mat.SVD
		if svd.Factorize(jac, mat.SVDThin) {
			out.rank = svd.Rank(opts.Rcond)
		}
	}
	return out, nil
}

// applyStep returns a copy of x with the component's free variables
// advanced by alpha*dx.
func applyStep(x []float64, cp *component, dx *mat.VecDense, alpha float64) []float64 {
	trial := append([]float64(nil), x...)
	for li, gi := range cp.vars {
		trial[gi] += alpha * dx.AtVec(li)
	}
	return trial
}

// assemble evaluates residuals and the Jacobian at x.
func assemble(sys *system, cp *component, x []float64, disabled map[model.ConstraintID]bool) ([]float64, *mat.Dense, int) {
	r, derivs, rows := assembleResiduals(sys, cp, x, disabled)
	if rows == 0 || len(cp.vars) == 0 {
		return r, nil, rows
	}
	jac := mat.NewDense(rows, len(cp.vars), nil)
	for i, d := range derivs {
		for li, v := range d {
			jac.Set(i, li, v)
		}
	}
	return r, jac, rows
}

// assembleResiduals evaluates residual values and sparse derivative
// rows at x.
func assembleResiduals(sys *system, cp *component, x []float64, disabled map[model.ConstraintID]bool) ([]float64, []map[int]float64, int) {
	ec := &evalCtx{x: x, varOf: cp.varOf}
	var r []float64
	var derivs []map[int]float64
	for _, eq := range cp.eqs {
		if disabled[eq.id] {
			continue
		}
		for _, res := range eq.eval(ec) {
			r = append(r, res.v)
			derivs = append(derivs, res.d)
		}
	}
	return r, derivs, len(r)
}

// rigidNullDim counts how many rigid motions of the component
// (translation x, translation y, rotation about the centroid) remain
// in the null space of the Jacobian at the solution.
func rigidNullDim(sys *system, cp *component, x []float64, opts Options) int {
	n := len(cp.vars)
	if n == 0 {
		return 0
	}
	// A Fixed entity pins the component to the sketch frame; moving
	// the free entities together is then a real freedom, not a rigid
	// motion of the whole component.
	for _, id := range cp.entities {
		if sys.fixed[id] {
			return 0
		}
	}

	gens := rigidGenerators(sys, cp, x)
	if len(gens) == 0 {
		return 0
	}

	g := mat.NewDense(len(gens), n, nil)
	for i, gen := range gens {
		g.SetRow(i, gen)
	}
	rankG := matrixRank(g, opts.Rcond)
	if rankG == 0 {
		return 0
	}

	_, jac, rows := assemble(sys, cp, x, nil)
	if rows == 0 || jac == nil {
		return rankG
	}

	// J * Gᵀ: columns are images of the generators. A generator sits in
	// the null space when its image vanishes at the Jacobian's scale.
	// Ranking jg against its own largest singular value would promote
	// pure round-off to structure, so the cutoff is absolute, anchored
	// to sigma_max of J.
	var jsvd mat.SVD
	if !jsvd.Factorize(jac, mat.SVDThin) {
		return rankG
	}
	cutoff := opts.Rcond * jsvd.Values(nil)[0]
	if cutoff <= 0 {
		cutoff = opts.Rcond
	}

	jg := mat.NewDense(rows, len(gens), nil)
	jg.Mul(jac, g.T())
	return rankG - rankAbove(jg, cutoff)
}

// rankAbove counts singular values strictly above an absolute cutoff.
func rankAbove(m *mat.Dense, cutoff float64) int {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDThin) {
		return 0
	}
	rank := 0
	for _, s := range svd.Values(nil) {
		if s > cutoff {
			rank++
		}
	}
	return rank
}

// rigidGenerators builds translation and rotation tangent vectors in
// the component's local variable space. Radius parameters are
// invariant under rigid motion; arc angle parameters shift with
// rotation.
func rigidGenerators(sys *system, cp *component, x []float64) [][]float64 {
	n := len(cp.vars)
	tx := make([]float64, n)
	ty := make([]float64, n)
	rot := make([]float64, n)

	// Centroid of all positional parameters.
	var cx, cy float64
	var count int
	forEachPositionPair(sys, cp, func(li, lj, gi, gj int) {
		cx += x[gi]
		cy += x[gj]
		count++
	})
	if count > 0 {
		cx /= float64(count)
		cy /= float64(count)
	}

	forEachPositionPair(sys, cp, func(li, lj, gi, gj int) {
		tx[li] = 1
		ty[lj] = 1
		rot[li] = -(x[gj] - cy)
		rot[lj] = x[gi] - cx
	})
	forEachAngleParam(sys, cp, func(li int) {
		rot[li] = 1
	})

	return [][]float64{tx, ty, rot}
}

// forEachPositionPair visits the (x, y) parameter pairs of the
// component's free entities with their local and global indices.
func forEachPositionPair(sys *system, cp *component, fn func(li, lj, gi, gj int)) {
	for _, id := range cp.entities {
		if sys.fixed[id] {
			continue
		}
		e := sys.entities[id]
		off := sys.layout.Offset[id]
		var pairs [][2]int
		switch e.Kind {
		case model.KindPoint, model.KindLine, model.KindSpline:
			for i := 0; i+1 < len(e.Params); i += 2 {
				pairs = append(pairs, [2]int{i, i + 1})
			}
		case model.KindCircle, model.KindArc:
			pairs = append(pairs, [2]int{0, 1})
		}
		for _, p := range pairs {
			gi, gj := off+p[0], off+p[1]
			li, oki := cp.varOf[gi]
			lj, okj := cp.varOf[gj]
			if oki && okj {
				fn(li, lj, gi, gj)
			}
		}
	}
}

// forEachAngleParam visits arc start/end angle parameters.
func forEachAngleParam(sys *system, cp *component, fn func(li int)) {
	for _, id := range cp.entities {
		if sys.fixed[id] {
			continue
		}
		e := sys.entities[id]
		if e.Kind != model.KindArc {
			continue
		}
		off := sys.layout.Offset[id]
		for _, i := range []int{3, 4} {
			if li, ok := cp.varOf[off+i]; ok {
				fn(li)
			}
		}
	}
}

func matrixRank(m *mat.Dense, rcond float64) int {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDThin) {
		return 0
	}
	return svd.Rank(rcond)
}

// findRedundant reports constraints whose removal leaves the Jacobian
// rank unchanged at the solution.
func findRedundant(sys *system, cp *component, x []float64, opts Options, fullRank int) []model.ConstraintID {
	var redundant []model.ConstraintID
	for _, eq := range cp.eqs {
		disabled := map[model.ConstraintID]bool{eq.id: true}
		_, jac, rows := assemble(sys, cp, x, disabled)
		if rows == 0 || jac == nil {
			continue
		}
		if matrixRank(jac, opts.Rcond) == fullRank {
			redundant = append(redundant, eq.id)
		}
	}
	sort.Slice(redundant, func(i, j int) bool { return redundant[i] < redundant[j] })
	return redundant
}

// probeConflicts re-solves the component with each constraint disabled
// in turn and ranks the residual improvement. Constraints whose
// removal lets the component converge form the conflict set; when
// none does, the half best improvers are reported.
func probeConflicts(ctx context.Context, sys *system, cp *component, seed []float64, opts Options, baseNorm float64) ([]model.ConstraintID, error) {
	type probe struct {
		id        model.ConstraintID
		converged bool
		norm      float64
	}

	var mu sync.Mutex
	var probes []probe

	g, gctx := errgroup.WithContext(ctx)
	for _, eq := range cp.eqs {
		id := eq.id
		g.Go(func() error {
			x := append([]float64(nil), seed...)
			out, err := iterate(gctx, sys, cp, x, opts, map[model.ConstraintID]bool{id: true})
			if err != nil {
				return err
			}
			mu.Lock()
			probes = append(probes, probe{id: id, converged: out.converged, norm: out.residualNorm})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var conflicts []model.ConstraintID
	for _, p := range probes {
		if p.converged {
			conflicts = append(conflicts, p.id)
		}
	}
	if len(conflicts) == 0 {
		best := 0.0
		for _, p := range probes {
			if imp := baseNorm - p.norm; imp > best {
				best = imp
			}
		}
		for _, p := range probes {
			if imp := baseNorm - p.norm; best > 0 && imp >= best/2 {
				conflicts = append(conflicts, p.id)
			}
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i] < conflicts[j] })
	return conflicts, nil
}

func maxNorm(r []float64) float64 {
	m := 0.0
	for _, v := range r {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

func norm2(r []float64) float64 {
	s := 0.0
	for _, v := range r {
		s += v * v
	}
	return math.Sqrt(s)
}
