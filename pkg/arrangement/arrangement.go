// Package arrangement builds planar subdivisions induced by line segments.
//
// Segments are inserted all at once: they are split at every pair-wise
// intersection, overlapping pieces are merged, and the result is stored as a
// doubly-connected edge list whose faces can be counted, enumerated and
// queried for containment. All arithmetic is exact.
//
// Two uses drive the package. Scenes are normalized through Insert before
// triangulation, so crossing walls become properly noded edges. Visibility
// boundaries are closed into polygons through Assemble, which also verifies
// that the boundary encloses exactly one region.
package arrangement

import (
	"math/big"
	"sort"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

// Options controls how an arrangement is built.
type Options struct {
	// Regularize prunes dangling edges (needles) before faces are formed,
	// leaving only edges that bound an area.
	Regularize bool
}

type halfEdge struct {
	origin int
	twin   int
	next   int
	cycle  int
}

// Arrangement is a planar subdivision of the plane by non-crossing edges.
// It is immutable after construction.
type Arrangement struct {
	vertices   []geom.Point
	halfEdges  []halfEdge
	cycles     [][]int // half-edge ids per boundary cycle
	area       []*big.Rat
	components int
}

// Insert builds the arrangement of the given segments. Zero-length segments
// are ignored.
func Insert(segments []geom.Segment, opts Options) *Arrangement {
	pieces := node(segments)
	if opts.Regularize {
		pieces = pruneNeedles(pieces)
	}
	return build(pieces)
}

// node splits segments at every intersection and removes duplicate pieces.
func node(segments []geom.Segment) []geom.Segment {
	var segs []geom.Segment
	for _, s := range segments {
		if !s.IsDegenerate() {
			segs = append(segs, s.Canonical())
		}
	}

	cuts := make([][]geom.Point, len(segs))
	for i, s := range segs {
		cuts[i] = []geom.Point{s.A, s.B}
	}
	for i := range segs {
		for j := i + 1; j < len(segs); j++ {
			x := geom.SegmentIntersection(segs[i], segs[j])
			switch x.Kind {
			case geom.Touching:
				cuts[i] = append(cuts[i], x.P)
				cuts[j] = append(cuts[j], x.P)
			case geom.Overlapping:
				cuts[i] = append(cuts[i], x.P, x.Q)
				cuts[j] = append(cuts[j], x.P, x.Q)
			}
		}
	}

	seen := make(map[string]bool)
	var out []geom.Segment
	for i := range segs {
		pts := cuts[i]
		sort.Slice(pts, func(a, b int) bool { return pts[a].Cmp(pts[b]) < 0 })
		for k := 0; k+1 < len(pts); k++ {
			if pts[k].Equal(pts[k+1]) {
				continue
			}
			piece := geom.Seg(pts[k], pts[k+1])
			if key := piece.Key(); !seen[key] {
				seen[key] = true
				out = append(out, piece)
			}
		}
	}
	return out
}

// pruneNeedles repeatedly removes edges with an endpoint of degree one.
func pruneNeedles(pieces []geom.Segment) []geom.Segment {
	for {
		degree := make(map[string]int)
		for _, s := range pieces {
			degree[s.A.Key()]++
			degree[s.B.Key()]++
		}
		kept := pieces[:0:0]
		for _, s := range pieces {
			if degree[s.A.Key()] > 1 && degree[s.B.Key()] > 1 {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(pieces) {
			return kept
		}
		pieces = kept
	}
}

// build creates the edge list from noded pieces.
func build(pieces []geom.Segment) *Arrangement {
	a := &Arrangement{}
	index := make(map[string]int)
	vertex := func(p geom.Point) int {
		if id, ok := index[p.Key()]; ok {
			return id
		}
		id := len(a.vertices)
		a.vertices = append(a.vertices, p)
		index[p.Key()] = id
		return id
	}

	outgoing := make(map[int][]int)
	for _, s := range pieces {
		u, v := vertex(s.A), vertex(s.B)
		h := len(a.halfEdges)
		a.halfEdges = append(a.halfEdges,
			halfEdge{origin: u, twin: h + 1, next: -1, cycle: -1},
			halfEdge{origin: v, twin: h, next: -1, cycle: -1},
		)
		outgoing[u] = append(outgoing[u], h)
		outgoing[v] = append(outgoing[v], h+1)
	}

	// Sort outgoing half-edges counter-clockwise and link each incoming
	// half-edge to the outgoing one just clockwise of its twin.
	position := make([]int, len(a.halfEdges))
	for v, out := range outgoing {
		origin := a.vertices[v]
		sort.Slice(out, func(i, j int) bool {
			return angleLess(a.dir(origin, out[i]), a.dir(origin, out[j]))
		})
		for k, h := range out {
			position[h] = k
		}
		outgoing[v] = out
	}
	for h := range a.halfEdges {
		t := a.halfEdges[h].twin
		out := outgoing[a.halfEdges[t].origin]
		k := position[t]
		a.halfEdges[h].next = out[(k-1+len(out))%len(out)]
	}

	for h := range a.halfEdges {
		if a.halfEdges[h].cycle >= 0 {
			continue
		}
		id := len(a.cycles)
		var cycle []int
		for e := h; a.halfEdges[e].cycle < 0; e = a.halfEdges[e].next {
			a.halfEdges[e].cycle = id
			cycle = append(cycle, e)
		}
		a.cycles = append(a.cycles, cycle)
		a.area = append(a.area, geom.SignedArea(a.cyclePoints(cycle)))
	}

	a.components = countComponents(len(a.vertices), a.halfEdges)
	return a
}

func (a *Arrangement) dir(origin geom.Point, h int) geom.Point {
	dest := a.vertices[a.halfEdges[a.halfEdges[h].twin].origin]
	return dest.Sub(origin)
}

// angleLess orders direction vectors by angle in [0, 2π) from the positive
// x axis.
func angleLess(u, v geom.Point) bool {
	hu, hv := halfPlane(u), halfPlane(v)
	if hu != hv {
		return hu < hv
	}
	return geom.Orient(geom.Pt(0, 0), u, v) == geom.CounterClockwise
}

func halfPlane(d geom.Point) int {
	if d.Y.Sign() > 0 || (d.Y.Sign() == 0 && d.X.Sign() > 0) {
		return 0
	}
	return 1
}

func countComponents(n int, hs []halfEdge) int {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, h := range hs {
		ra, rb := find(h.origin), find(hs[h.twin].origin)
		if ra != rb {
			parent[ra] = rb
		}
	}
	c := 0
	for i := range parent {
		if find(i) == i {
			c++
		}
	}
	return c
}

func (a *Arrangement) cyclePoints(cycle []int) []geom.Point {
	pts := make([]geom.Point, len(cycle))
	for i, h := range cycle {
		pts[i] = a.vertices[a.halfEdges[h].origin]
	}
	return pts
}

// NumVertices returns the number of vertices.
func (a *Arrangement) NumVertices() int { return len(a.vertices) }

// NumEdges returns the number of edges.
func (a *Arrangement) NumEdges() int { return len(a.halfEdges) / 2 }

// NumComponents returns the number of connected components of the edge
// graph.
func (a *Arrangement) NumComponents() int { return a.components }

// NumFaces returns the number of faces including the unbounded one, from
// Euler's formula for planar graphs.
func (a *Arrangement) NumFaces() int {
	return a.NumEdges() - a.NumVertices() + a.components + 1
}

// Edges returns every edge as a segment. It lets an arrangement feed
// a visibility adapter directly.
func (a *Arrangement) Edges() []geom.Segment {
	out := make([]geom.Segment, 0, a.NumEdges())
	for h := 0; h < len(a.halfEdges); h += 2 {
		out = append(out, geom.Seg(a.vertices[a.halfEdges[h].origin], a.vertices[a.halfEdges[h+1].origin]))
	}
	return out
}

// BoundedFaces returns the outer boundary of every bounded face in
// counter-clockwise order.
func (a *Arrangement) BoundedFaces() [][]geom.Point {
	var out [][]geom.Point
	for i, c := range a.cycles {
		if a.area[i].Sign() > 0 {
			out = append(out, a.cyclePoints(c))
		}
	}
	return out
}

// Area returns the total area enclosed by the outer boundaries of the
// bounded faces.
func (a *Arrangement) Area() *big.Rat {
	sum := new(big.Rat)
	for _, ar := range a.area {
		if ar.Sign() > 0 {
			sum.Add(sum, ar)
		}
	}
	return sum
}

// OnBoundary reports whether p lies on an edge.
func (a *Arrangement) OnBoundary(p geom.Point) bool {
	for _, e := range a.Edges() {
		if geom.OnSegment(p, e) {
			return true
		}
	}
	return false
}

// Contains reports whether p lies strictly inside a bounded face.
//
// Needles have the same face on both sides, so crossing one does not
// change sides. Only edges whose half-edges lie on different boundary
// cycles are counted.
func (a *Arrangement) Contains(p geom.Point) bool {
	if a.OnBoundary(p) {
		return false
	}
	inside := false
	for h := 0; h < len(a.halfEdges); h += 2 {
		if a.halfEdges[h].cycle == a.halfEdges[h+1].cycle {
			continue
		}
		lo, hi := a.vertices[a.halfEdges[h].origin], a.vertices[a.halfEdges[h+1].origin]
		if lo.Y.Cmp(hi.Y) > 0 {
			lo, hi = hi, lo
		}
		// Half-open rule: count edges with lo.Y <= p.Y < hi.Y.
		if lo.Y.Cmp(p.Y) > 0 || hi.Y.Cmp(p.Y) <= 0 {
			continue
		}
		if geom.Orient(lo, hi, p) == geom.CounterClockwise {
			inside = !inside
		}
	}
	return inside
}

// Region returns the boundary of the only bounded face of a two-face
// arrangement.
func (a *Arrangement) Region() ([]geom.Point, error) {
	faces := a.BoundedFaces()
	if a.NumFaces() != 2 || len(faces) != 1 {
		return nil, errors.New(errors.ErrCodeTopologyInvariant,
			"arrangement has %d faces, want 2", a.NumFaces())
	}
	return faces[0], nil
}
