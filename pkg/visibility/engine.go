package visibility

import (
	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

// Engine computes visibility regions against one triangulation. It never
// modifies the triangulation, so a single Engine may serve concurrent
// queries.
type Engine struct {
	tri       *cdt.Triangulation
	stepLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithStepLimit caps the number of faces a single query may enter. Zero or a
// negative value means no limit.
func WithStepLimit(n int) Option {
	return func(e *Engine) { e.stepLimit = n }
}

// NewEngine returns an engine querying tri.
func NewEngine(tri *cdt.Triangulation, opts ...Option) *Engine {
	e := &Engine{tri: tri}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Triangulation returns the triangulation the engine reads.
func (e *Engine) Triangulation() *cdt.Triangulation { return e.tri }

// Trace is the outcome of one visibility query.
type Trace struct {
	Face     int          // face the walk started in
	Boundary []geom.Point // counter-clockwise boundary of the visible region
	Steps    int          // number of faces entered across free edges
}

// Region returns the counter-clockwise boundary of the region visible from
// q. The point is located first; see RegionFrom for the accepted positions.
func (e *Engine) Region(q geom.Point) ([]geom.Point, error) {
	tr, err := e.Trace(q)
	if err != nil {
		return nil, err
	}
	return tr.Boundary, nil
}

// Trace locates q and walks the triangulation from its face.
func (e *Engine) Trace(q geom.Point) (*Trace, error) {
	loc, err := e.tri.Locate(q)
	if err != nil {
		return nil, err
	}
	if loc.Kind == cdt.OnVertex {
		return nil, errors.New(errors.ErrCodePointNotLocated, "point %s coincides with a vertex", q)
	}
	return e.TraceFrom(q, loc.Face)
}

// RegionFrom returns the visible region of q, which must lie inside face.
//
// q may sit in the interior of the face or on one of its free edges, in which
// case the region on the far side is reached by expanding across that edge.
// Points on a vertex, on a wall, on the outer boundary, or in a face that is
// not enclosed by walls fail with ErrCodePointNotLocated.
func (e *Engine) RegionFrom(q geom.Point, face int) ([]geom.Point, error) {
	tr, err := e.TraceFrom(q, face)
	if err != nil {
		return nil, err
	}
	return tr.Boundary, nil
}

// TraceFrom is RegionFrom with walk statistics.
func (e *Engine) TraceFrom(q geom.Point, face int) (*Trace, error) {
	if err := e.checkStart(q, face); err != nil {
		return nil, err
	}
	return e.walk(q, face)
}

func (e *Engine) checkStart(q geom.Point, face int) error {
	if face < 0 || face >= e.tri.NumFaces() {
		return errors.New(errors.ErrCodePointNotLocated, "face %d does not exist", face)
	}
	f := e.tri.Face(face)
	onEdge, zeros := -1, 0
	for i := 0; i < 3; i++ {
		switch geom.Orient(e.tri.VertexPoint(face, cdt.CCW(i)), e.tri.VertexPoint(face, cdt.CW(i)), q) {
		case geom.Clockwise:
			return errors.New(errors.ErrCodePointNotLocated, "point %s is not inside face %d", q, face)
		case geom.Collinear:
			onEdge = i
			zeros++
		}
	}
	switch {
	case zeros > 1:
		return errors.New(errors.ErrCodePointNotLocated, "point %s coincides with a vertex", q)
	case zeros == 1 && f.IsConstrained(onEdge):
		return errors.New(errors.ErrCodePointNotLocated, "point %s lies on a wall", q)
	case zeros == 1 && f.IsBlocked(onEdge):
		return errors.New(errors.ErrCodePointNotLocated, "point %s lies on the scene boundary", q)
	case !f.Bounded():
		return errors.New(errors.ErrCodePointNotLocated, "point %s is not enclosed by walls", q)
	}
	return nil
}

type taskKind int

const (
	taskExpand taskKind = iota
	taskEmit
)

// task is one entry of the walk's worklist: either a sector to push across
// an edge or a boundary point to report.
type task struct {
	kind        taskKind
	point       geom.Point
	left, right int // bounding vertices of the sector
	face, edge  int // face the sector leaves through edge
}

func emitTask(p geom.Point) task {
	return task{kind: taskEmit, point: p}
}

func expandTask(left, right, face, edge int) task {
	return task{kind: taskExpand, left: left, right: right, face: face, edge: edge}
}

// walk runs the sector expansion with an explicit stack. Tasks produced by
// one step are pushed in reverse, so they are processed in the order right
// side, new vertex, left side, matching a depth-first recursive walk.
func (e *Engine) walk(q geom.Point, face int) (*Trace, error) {
	f := e.tri.Face(face)

	var stack []task
	push := func(ts []task) {
		for i := len(ts) - 1; i >= 0; i-- {
			stack = append(stack, ts[i])
		}
	}

	seed := make([]task, 0, 6)
	for i := 0; i < 3; i++ {
		seed = append(seed, emitTask(e.tri.Point(f.Vertex(cdt.CCW(i)))))
		if !f.IsBlocked(i) {
			seed = append(seed, expandTask(f.Vertex(cdt.CW(i)), f.Vertex(cdt.CCW(i)), face, i))
		}
	}
	push(seed)

	tr := &Trace{Face: face}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.kind == taskEmit {
			tr.Boundary = append(tr.Boundary, t.point)
			continue
		}

		tr.Steps++
		if e.stepLimit > 0 && tr.Steps > e.stepLimit {
			return nil, errors.New(errors.ErrCodeStepLimitExceeded,
				"visibility walk from %s exceeded %d steps", q, e.stepLimit)
		}
		next, err := e.expand(q, t)
		if err != nil {
			return nil, err
		}
		push(next)
	}
	return tr, nil
}

// expand pushes sector t into the face across t.edge and returns the work
// that follows, in boundary order.
func (e *Engine) expand(q geom.Point, t task) ([]task, error) {
	nf := e.tri.Face(t.face).Neighbor(t.edge)
	nindex := e.tri.MirrorIndex(t.face, t.edge)
	n := e.tri.Face(nf)
	rindex, lindex := cdt.CCW(nindex), cdt.CW(nindex)

	v := n.Vertex(nindex)
	rv := n.Vertex(cdt.CW(nindex))
	lv := n.Vertex(cdt.CCW(nindex))
	pv, pr, pl := e.tri.Point(v), e.tri.Point(t.right), e.tri.Point(t.left)

	ro := geom.Orient(q, pr, pv)
	lo := geom.Orient(q, pl, pv)
	p := planFor(ro, lo)
	if !p.valid {
		return nil, errors.New(errors.ErrCodeInternal,
			"unclassifiable sector at %s: right %v, left %v", pv, ro, lo)
	}

	var out []task
	hit := func(through geom.Point, end int) error {
		x, err := geom.RaySegmentIntersection(q, through, pv, e.tri.Point(end))
		if err != nil {
			return err
		}
		out = append(out, emitTask(x))
		return nil
	}

	if p.right != sideNone {
		switch {
		case n.IsBlocked(rindex):
			if t.right != rv {
				if err := hit(pr, rv); err != nil {
					return nil, err
				}
			}
			if lo == geom.CounterClockwise {
				if err := hit(pl, rv); err != nil {
					return nil, err
				}
			}
		case p.right == sideWhole:
			out = append(out, expandTask(t.left, t.right, nf, rindex))
		default:
			out = append(out, expandTask(v, t.right, nf, rindex))
		}
	}

	if p.emit {
		out = append(out, emitTask(pv))
	}

	if p.left != sideNone {
		switch {
		case n.IsBlocked(lindex):
			if ro == geom.Clockwise {
				if err := hit(pr, lv); err != nil {
					return nil, err
				}
			}
			if t.left != lv {
				if err := hit(pl, lv); err != nil {
					return nil, err
				}
			}
		case p.left == sideWhole:
			out = append(out, expandTask(t.left, t.right, nf, lindex))
		default:
			out = append(out, expandTask(t.left, v, nf, lindex))
		}
	}
	return out, nil
}
