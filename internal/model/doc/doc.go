// Package doc round-trips a sketch's authored state — entity and
// constraint lists including ids, construction flags, and formula text
// — through YAML. The exact byte format belongs to the persistence
// layer; this codec only guarantees lossless reconstruction.
package doc

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sketchcad/internal/model"
)

// Document is the serialized form of a sketch.
type Document struct {
	Entities    []EntityDoc     `yaml:"entities"`
	Constraints []ConstraintDoc `yaml:"constraints"`
	Params      []ParamDoc      `yaml:"params,omitempty"`
}

// EntityDoc serializes one entity.
type EntityDoc struct {
	ID           int         `yaml:"id"`
	Kind         string      `yaml:"kind"`
	Params       []float64   `yaml:"params"`
	Construction bool        `yaml:"construction,omitempty"`
	Style        string      `yaml:"style,omitempty"`
	Pattern      *PatternDoc `yaml:"pattern,omitempty"`
}

// PatternDoc serializes a pattern back-reference.
type PatternDoc struct {
	ID       int `yaml:"id"`
	Instance int `yaml:"instance"`
}

// ConstraintDoc serializes one constraint.
type ConstraintDoc struct {
	ID      int      `yaml:"id"`
	Kind    string   `yaml:"kind"`
	Refs    []RefDoc `yaml:"refs"`
	Value   *float64 `yaml:"value,omitempty"`
	Formula string   `yaml:"formula,omitempty"`
}

// RefDoc serializes an entity reference.
type RefDoc struct {
	Entity int    `yaml:"entity"`
	Anchor string `yaml:"anchor,omitempty"`
}

// ParamDoc serializes a named formula parameter. Formula text is
// stored verbatim, never the evaluated value alone.
type ParamDoc struct {
	Name    string  `yaml:"name"`
	Formula string  `yaml:"formula,omitempty"`
	Value   float64 `yaml:"value"`
}

var entityKinds = map[string]model.EntityKind{
	"point":  model.KindPoint,
	"line":   model.KindLine,
	"circle": model.KindCircle,
	"arc":    model.KindArc,
	"spline": model.KindSpline,
}

var constraintKinds = map[string]model.ConstraintKind{
	"coincident":      model.Coincident,
	"distance":        model.Distance,
	"angle":           model.Angle,
	"parallel":        model.Parallel,
	"perpendicular":   model.Perpendicular,
	"tangent":         model.Tangent,
	"equal":           model.Equal,
	"symmetric":       model.Symmetric,
	"horizontal":      model.Horizontal,
	"vertical":        model.Vertical,
	"fixed":           model.Fixed,
	"point-on-object": model.PointOnObject,
	"concentric":      model.Concentric,
}

var anchors = map[string]model.Anchor{
	"":       model.AnchorSelf,
	"self":   model.AnchorSelf,
	"start":  model.AnchorStart,
	"end":    model.AnchorEnd,
	"center": model.AnchorCenter,
	"mid":    model.AnchorMid,
}

// FromSketch captures a sketch into a document.
func FromSketch(s *model.Sketch) *Document {
	d := &Document{}
	for _, e := range s.Entities() {
		ed := EntityDoc{
			ID:           int(e.ID),
			Kind:         e.Kind.String(),
			Params:       e.Params,
			Construction: e.Construction,
		}
		if e.Style != model.StyleNormal {
			ed.Style = e.Style.String()
		}
		if e.Pattern != nil {
			ed.Pattern = &PatternDoc{ID: e.Pattern.Pattern, Instance: e.Pattern.Instance}
		}
		d.Entities = append(d.Entities, ed)
	}
	for _, c := range s.Constraints() {
		cd := ConstraintDoc{
			ID:   int(c.ID),
			Kind: c.Kind.String(),
		}
		for _, r := range c.Refs {
			rd := RefDoc{Entity: int(r.Entity)}
			if r.Anchor != model.AnchorSelf {
				rd.Anchor = r.Anchor.String()
			}
			cd.Refs = append(cd.Refs, rd)
		}
		if c.Value != nil {
			v := c.Value.Literal
			cd.Value = &v
			cd.Formula = c.Value.Formula
		}
		d.Constraints = append(d.Constraints, cd)
	}
	return d
}

// ToSketch reconstructs a sketch from a document.
func (d *Document) ToSketch() (*model.Sketch, error) {
	var entities []*model.Entity
	for _, ed := range d.Entities {
		kind, ok := entityKinds[ed.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown entity kind %q", ed.Kind)
		}
		e := &model.Entity{
			ID:           model.EntityID(ed.ID),
			Kind:         kind,
			Params:       ed.Params,
			Construction: ed.Construction,
		}
		if ed.Style == "reference" {
			e.Style = model.StyleReference
		}
		if ed.Pattern != nil {
			e.Pattern = &model.PatternRef{Pattern: ed.Pattern.ID, Instance: ed.Pattern.Instance}
		}
		entities = append(entities, e)
	}

	var constraints []*model.Constraint
	for _, cd := range d.Constraints {
		kind, ok := constraintKinds[cd.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown constraint kind %q", cd.Kind)
		}
		c := &model.Constraint{
			ID:   model.ConstraintID(cd.ID),
			Kind: kind,
		}
		for _, rd := range cd.Refs {
			anchor, ok := anchors[rd.Anchor]
			if !ok {
				return nil, fmt.Errorf("unknown anchor %q", rd.Anchor)
			}
			c.Refs = append(c.Refs, model.Ref{Entity: model.EntityID(rd.Entity), Anchor: anchor})
		}
		if cd.Value != nil {
			c.Value = &model.Value{Literal: *cd.Value, Formula: cd.Formula}
		}
		constraints = append(constraints, c)
	}

	return model.Restore(entities, constraints)
}

// Encode writes the document as YAML.
func Encode(w io.Writer, d *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding sketch document: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML document.
func Decode(r io.Reader) (*Document, error) {
	var d Document
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding sketch document: %w", err)
	}
	return &d, nil
}

// LoadFile reads and reconstructs a sketch from a YAML file.
func LoadFile(path string) (*model.Sketch, *Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		return nil, nil, err
	}
	s, err := d.ToSketch()
	if err != nil {
		return nil, nil, err
	}
	return s, d, nil
}

// SaveFile captures a sketch and writes it to a YAML file.
func SaveFile(path string, s *model.Sketch) error {
	return SaveDocument(path, FromSketch(s))
}

// SaveDocument writes an already-built document, typically one carrying
// a parameter table alongside the sketch.
func SaveDocument(path string, d *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Encode(f, d)
}
