// Package scene describes the input of a visibility computation: opaque
// polygon rings, free-standing walls, and named observer positions.
//
// Scenes are read from TOML, YAML or JSON documents. Coordinates are exact:
// integers, decimals and fraction strings ("37/5") all decode to rationals
// without rounding.
//
//	name = "gallery"
//
//	[[polygons]]
//	name = "outer"
//	vertices = [[0, 0], [10, 0], [10, 10], [0, 10]]
//
//	[[walls]]
//	from = [5, 7]
//	to = ["7", "5"]
//
//	[[observers]]
//	name = "guard"
//	at = [2, 2]
package scene

import (
	"github.com/matzehuels/sightline/pkg/arrangement"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
	"github.com/matzehuels/sightline/pkg/visibility"
)

// Scene is a planar subdivision together with the points it is viewed from.
type Scene struct {
	Name      string     `json:"name,omitempty" toml:"name" yaml:"name,omitempty"`
	Polygons  []Polygon  `json:"polygons,omitempty" toml:"polygons" yaml:"polygons,omitempty"`
	Walls     []Wall     `json:"walls,omitempty" toml:"walls" yaml:"walls,omitempty"`
	Observers []Observer `json:"observers,omitempty" toml:"observers" yaml:"observers,omitempty"`
}

// Polygon is a closed ring. Every ring edge, including the closing one, is
// opaque.
type Polygon struct {
	Name     string  `json:"name,omitempty" toml:"name" yaml:"name,omitempty"`
	Vertices []Coord `json:"vertices" toml:"vertices" yaml:"vertices"`
}

// Wall is a single opaque segment.
type Wall struct {
	From Coord `json:"from" toml:"from" yaml:"from"`
	To   Coord `json:"to" toml:"to" yaml:"to"`
}

// Observer is a named query point.
type Observer struct {
	Name string `json:"name" toml:"name" yaml:"name"`
	At   Coord  `json:"at" toml:"at" yaml:"at"`
}

// Edges returns every opaque segment of the scene in declaration order:
// polygon rings first, then walls. Edges may cross; see Arrangement.
func (s *Scene) Edges() []geom.Segment {
	var out []geom.Segment
	for _, p := range s.Polygons {
		n := len(p.Vertices)
		for i := range p.Vertices {
			out = append(out, geom.Seg(p.Vertices[i].Point, p.Vertices[(i+1)%n].Point))
		}
	}
	for _, w := range s.Walls {
		out = append(out, geom.Seg(w.From.Point, w.To.Point))
	}
	return out
}

// Arrangement nodes the scene's edges so that crossing or overlapping walls
// become a proper subdivision. The result can be attached to a
// visibility.Adapter directly.
func (s *Scene) Arrangement() *arrangement.Arrangement {
	return arrangement.Insert(s.Edges(), arrangement.Options{})
}

// Fingerprint returns a stable hash of the noded scene geometry. Observers
// and names do not contribute.
func (s *Scene) Fingerprint() string {
	return visibility.Fingerprint(s.Arrangement().Edges())
}

// Observer returns the observer with the given name.
func (s *Scene) Observer(name string) (Observer, bool) {
	for _, o := range s.Observers {
		if o.Name == name {
			return o, true
		}
	}
	return Observer{}, false
}

// Validate checks names, ring sizes and wall lengths. It does not check
// geometry beyond that; crossing and degenerate configurations are reported
// by triangulation.
func (s *Scene) Validate() error {
	if s.Name != "" {
		if err := errors.ValidateSceneName(s.Name); err != nil {
			return err
		}
	}
	if len(s.Polygons) == 0 && len(s.Walls) == 0 {
		return errors.New(errors.ErrCodeInvalidScene, "scene has no polygons or walls")
	}
	for i, p := range s.Polygons {
		if len(p.Vertices) < 3 {
			return errors.New(errors.ErrCodeInvalidScene,
				"polygon %d (%s) has %d vertices, need at least 3", i, p.Name, len(p.Vertices))
		}
		for j, v := range p.Vertices {
			if !v.valid() {
				return errors.New(errors.ErrCodeInvalidScene, "polygon %d vertex %d is missing", i, j)
			}
		}
	}
	for i, w := range s.Walls {
		if !w.From.valid() || !w.To.valid() {
			return errors.New(errors.ErrCodeInvalidScene, "wall %d is missing an endpoint", i)
		}
		if w.From.Equal(w.To.Point) {
			return errors.New(errors.ErrCodeInvalidScene, "wall %d has zero length", i)
		}
	}
	seen := make(map[string]bool, len(s.Observers))
	for i, o := range s.Observers {
		if err := errors.ValidateObserverName(o.Name); err != nil {
			return err
		}
		if seen[o.Name] {
			return errors.New(errors.ErrCodeInvalidObserver, "duplicate observer %q", o.Name)
		}
		seen[o.Name] = true
		if !o.At.valid() {
			return errors.New(errors.ErrCodeInvalidObserver, "observer %d (%s) has no position", i, o.Name)
		}
	}
	return nil
}

// Bounds returns the lower-left and upper-right corners of the scene's
// geometry, observers included.
func (s *Scene) Bounds() (lo, hi geom.Point, ok bool) {
	var pts []geom.Point
	for _, e := range s.Edges() {
		pts = append(pts, e.A, e.B)
	}
	for _, o := range s.Observers {
		pts = append(pts, o.At.Point)
	}
	if len(pts) == 0 {
		return geom.Point{}, geom.Point{}, false
	}
	lo, hi = geom.NewPoint(pts[0].X, pts[0].Y), geom.NewPoint(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		if p.X.Cmp(lo.X) < 0 {
			lo.X.Set(p.X)
		}
		if p.Y.Cmp(lo.Y) < 0 {
			lo.Y.Set(p.Y)
		}
		if p.X.Cmp(hi.X) > 0 {
			hi.X.Set(p.X)
		}
		if p.Y.Cmp(hi.Y) > 0 {
			hi.Y.Set(p.Y)
		}
	}
	return lo, hi, true
}

var _ visibility.EdgeSource = (*Scene)(nil)
