// Package session ties one open sketch to its derived state: the
// formula table driving dimensional values, the last solve result, the
// spatial index, and the profile cache. Derived caches are rebuilt
// lazily against the sketch generation counter; interactive drags
// cancel any solve they supersede.
package session

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/conneroisu/sketchcad/internal/config"
	"github.com/conneroisu/sketchcad/internal/errors"
	"github.com/conneroisu/sketchcad/internal/formula"
	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/logging"
	"github.com/conneroisu/sketchcad/internal/model"
	"github.com/conneroisu/sketchcad/internal/model/doc"
	"github.com/conneroisu/sketchcad/internal/pattern"
	"github.com/conneroisu/sketchcad/internal/profile"
	"github.com/conneroisu/sketchcad/internal/solver"
	"github.com/conneroisu/sketchcad/internal/spatial"
)

// Session is one open sketch plus everything derived from it.
type Session struct {
	ID string

	cfg *config.Config
	log logging.Logger

	sk    *model.Sketch
	table *formula.Table

	mu          sync.Mutex
	index       *spatial.Index
	profiles    []profile.Profile
	profilesGen uint64
	hasProfiles bool
	last        *solver.Result
	calibration geom.Transform2
	patterns    map[int]*patternRecord

	dragMu     sync.Mutex
	dragCancel context.CancelFunc
}

// New creates a session around an empty sketch.
func New(cfg *config.Config, log logging.Logger) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{
		ID:          uuid.NewString(),
		cfg:         cfg,
		log:         log.WithComponent("session"),
		sk:          model.NewSketch(),
		table:       formula.NewTable(),
		index:       spatial.New(cfg.Spatial.GridCell),
		calibration: geom.Identity(),
		patterns:    make(map[int]*patternRecord),
	}
}

// Open loads a sketch document into a new session. Parameters are
// committed in multiple passes so file order does not have to follow
// dependency order.
func Open(path string, cfg *config.Config, log logging.Logger) (*Session, error) {
	sk, d, err := doc.LoadFile(path)
	if err != nil {
		return nil, err
	}
	s := New(cfg, log)
	s.sk = sk
	if err := s.loadParams(d.Params); err != nil {
		return nil, err
	}
	s.log.Info(context.Background(), "sketch loaded",
		"path", path,
		"entities", sk.EntityCount(),
		"constraints", sk.ConstraintCount(),
		"params", len(d.Params))
	return s, nil
}

func (s *Session) loadParams(params []doc.ParamDoc) error {
	pending := append([]doc.ParamDoc(nil), params...)
	for len(pending) > 0 {
		var deferred []doc.ParamDoc
		var lastErr error
		for _, p := range pending {
			f := p.Formula
			if f == "" {
				f = formatLiteral(p.Value)
			}
			if err := s.table.Set(p.Name, f); err != nil {
				if ee, ok := errors.IsExpression(err); ok && ee.Kind == errors.ExprUnknownReference {
					deferred = append(deferred, p)
					lastErr = err
					continue
				}
				return err
			}
		}
		if len(deferred) == len(pending) {
			return lastErr
		}
		pending = deferred
	}
	return nil
}

func formatLiteral(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Save writes the sketch and parameter table to a document file.
func (s *Session) Save(path string) error {
	d := doc.FromSketch(s.sk)
	for _, name := range s.table.Names() {
		f, _ := s.table.Formula(name)
		v, _ := s.table.Get(name)
		d.Params = append(d.Params, doc.ParamDoc{Name: name, Formula: f, Value: v})
	}
	return doc.SaveDocument(path, d)
}

// Sketch returns the underlying sketch.
func (s *Session) Sketch() *model.Sketch { return s.sk }

// Params returns the formula parameter table.
func (s *Session) Params() *formula.Table { return s.table }

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Solve re-evaluates formula-driven constraint values, runs the
// solver, and applies the resulting parameters back to the sketch.
// Parameters are applied even when a component is unsolvable; the
// result carries the diagnostics.
func (s *Session) Solve(ctx context.Context) (*solver.Result, error) {
	return s.solve(ctx, solver.Options{
		ResidualTol:    s.cfg.Solver.ResidualTol,
		MaxIterations:  s.cfg.Solver.MaxIterations,
		Rcond:          s.cfg.Solver.Rcond,
		ProbeConflicts: true,
	})
}

func (s *Session) solve(ctx context.Context, opts solver.Options) (*solver.Result, error) {
	if err := s.refreshValues(); err != nil {
		return nil, err
	}
	res, err := solver.Solve(ctx, s.sk, opts)
	if err != nil {
		return nil, err
	}
	if err := s.sk.ApplyParams(res.Layout, res.Params); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	fields := []interface{}{
		"status", res.Status.String(),
		"components", len(res.Components),
		"dof", res.TotalDOF(),
	}
	switch res.Status.Severity() {
	case errors.SeverityError:
		s.log.Error(ctx, nil, "solve did not converge", fields...)
	case errors.SeverityWarning:
		s.log.Warn(ctx, nil, "solve finished with redundant constraints", fields...)
	default:
		s.log.Debug(ctx, "solve finished", fields...)
	}
	return res, nil
}

// refreshValues evaluates every formula-driven constraint value
// against the current parameter table.
func (s *Session) refreshValues() error {
	for _, c := range s.sk.Constraints() {
		if c.Value == nil || c.Value.Formula == "" {
			continue
		}
		v, err := s.table.Eval(c.Value.Formula)
		if err != nil {
			return err
		}
		if v == c.Value.Literal {
			continue
		}
		if err := s.sk.SetValue(c.ID, model.Formula(c.Value.Formula, v)); err != nil {
			return err
		}
	}
	return nil
}

// Drag moves an entity anchor to target and re-solves. A drag request
// supersedes any in-flight drag solve: the older solve is cancelled
// and its result discarded by the caller observing context.Canceled.
func (s *Session) Drag(ctx context.Context, id model.EntityID, anchor model.Anchor, target geom.Vec) (*solver.Result, error) {
	s.dragMu.Lock()
	if s.dragCancel != nil {
		s.dragCancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.dragCancel = cancel
	s.dragMu.Unlock()

	if err := s.moveAnchor(id, anchor, target); err != nil {
		return nil, err
	}
	// Drags skip conflict probing; diagnostics belong to explicit
	// solves, responsiveness to drags.
	return s.solve(ctx, solver.Options{
		ResidualTol:   s.cfg.Solver.ResidualTol,
		MaxIterations: s.cfg.Solver.MaxIterations,
		Rcond:         s.cfg.Solver.Rcond,
	})
}

// moveAnchor rewrites the entity's seed parameters so the given anchor
// lands on target. The solver then pulls the rest of the component
// along.
func (s *Session) moveAnchor(id model.EntityID, anchor model.Anchor, target geom.Vec) error {
	e, ok := s.sk.Entity(id)
	if !ok {
		return errors.Structural("Drag", "entity %d does not exist", id)
	}
	cur, ok := e.AnchorPoint(anchor)
	if !ok {
		return errors.Structural("Drag", "anchor %s does not resolve on %s entity %d", anchor, e.Kind, id)
	}
	d := target.Sub(cur)

	params := append([]float64(nil), e.Params...)
	switch {
	case e.Kind == model.KindLine && anchor == model.AnchorStart:
		params[0], params[1] = target.X, target.Y
	case e.Kind == model.KindLine && anchor == model.AnchorEnd:
		params[2], params[3] = target.X, target.Y
	case e.Kind == model.KindArc && (anchor == model.AnchorStart || anchor == model.AnchorEnd):
		// Dragging an arc endpoint steers its angle; radius and center
		// stay put and the solver reconciles the rest.
		angle := target.Sub(e.AsArc().Center).Angle()
		if anchor == model.AnchorStart {
			params[3] = angle
		} else {
			params[4] = angle
		}
	default:
		// Whole-body translation: point, circle or arc by center or
		// mid, spline, or a line dragged by its midpoint.
		translateParams(e.Kind, params, d)
	}
	return s.sk.SetParams(id, params)
}

func translateParams(kind model.EntityKind, params []float64, d geom.Vec) {
	switch kind {
	case model.KindPoint, model.KindLine, model.KindSpline:
		for i := 0; i+1 < len(params); i += 2 {
			params[i] += d.X
			params[i+1] += d.Y
		}
	case model.KindCircle, model.KindArc:
		params[0] += d.X
		params[1] += d.Y
	}
}

// patternRecord remembers enough about an applied pattern to
// regenerate its instances later.
type patternRecord struct {
	spec    pattern.Spec
	sources []model.EntityID
	created []model.EntityID
}

// ApplyPattern materializes a pattern and records its spec and sources
// so the pattern can be edited and regenerated later.
func (s *Session) ApplyPattern(sources []model.EntityID, spec pattern.Spec) (pattern.Result, error) {
	res, err := pattern.Apply(s.sk, sources, spec)
	if err != nil {
		return res, err
	}
	s.mu.Lock()
	s.patterns[res.Pattern] = &patternRecord{
		spec:    spec,
		sources: append([]model.EntityID(nil), sources...),
		created: res.Created,
	}
	s.mu.Unlock()
	return res, nil
}

// EditPattern replaces a recorded pattern's layout and regenerates its
// instances under the same pattern id. Prior instances are removed,
// cascading away any constraints on them; instances the user already
// deleted are skipped.
func (s *Session) EditPattern(id int, spec pattern.Spec) (pattern.Result, error) {
	s.mu.Lock()
	rec, ok := s.patterns[id]
	s.mu.Unlock()
	if !ok {
		return pattern.Result{}, errors.Structural("EditPattern", "pattern %d is not recorded in this session", id)
	}
	if err := spec.Validate(); err != nil {
		return pattern.Result{}, err
	}

	for _, eid := range rec.created {
		if _, exists := s.sk.Entity(eid); !exists {
			continue
		}
		if err := s.sk.RemoveEntity(eid); err != nil {
			return pattern.Result{}, err
		}
	}
	res, err := pattern.Reapply(s.sk, rec.sources, spec, id)
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	rec.spec = spec
	rec.created = res.Created
	s.mu.Unlock()
	return res, nil
}

// RegeneratePattern re-materializes a pattern's instances from the
// sources' current geometry, keeping the recorded layout.
func (s *Session) RegeneratePattern(id int) (pattern.Result, error) {
	s.mu.Lock()
	rec, ok := s.patterns[id]
	s.mu.Unlock()
	if !ok {
		return pattern.Result{}, errors.Structural("RegeneratePattern", "pattern %d is not recorded in this session", id)
	}
	return s.EditPattern(id, rec.spec)
}

// Pattern returns the recorded spec of an applied pattern.
func (s *Session) Pattern(id int) (pattern.Spec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.patterns[id]
	if !ok {
		return nil, false
	}
	return rec.spec, true
}

// LastResult returns the most recent solve result, if any.
func (s *Session) LastResult() (*solver.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != nil
}

// Profiles returns the closed regions of the sketch, recomputing only
// when the sketch has changed since the last extraction.
func (s *Session) Profiles() []profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.sk.Generation()
	if s.hasProfiles && gen == s.profilesGen {
		return s.profiles
	}
	s.profiles = profile.Extract(s.sk.Entities(), profile.Options{
		MergeTol:   s.cfg.Profile.MergeTol,
		ArcSamples: s.cfg.Profile.ArcSamples,
	})
	s.profilesGen = gen
	s.hasProfiles = true
	return s.profiles
}

// Index returns the spatial index, synced to the current sketch.
func (s *Session) Index() *spatial.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Sync(s.sk)
	return s.index
}

// Snap resolves the best snap target near a point, in sketch
// coordinates, using the configured snap radius.
func (s *Session) Snap(p geom.Vec) (spatial.Hit, bool) {
	return s.Index().Snap(p, s.cfg.Spatial.SnapRadius)
}

// SetCalibration installs the device-to-sketch transform used by
// screen-space callers.
func (s *Session) SetCalibration(t geom.Transform2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibration = t
}

// ToSketch maps a device-space point into sketch coordinates through
// the calibration transform.
func (s *Session) ToSketch(p geom.Vec) geom.Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibration.Apply(p)
}
