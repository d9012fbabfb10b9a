package cdt

import (
	"math/big"
	"sort"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

// Number of helper vertices forming the initial enclosing triangle. They
// occupy ids 0..2 while building and are dropped by finish.
const superVertices = 3

type edgeKey [2]int

func undirected(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

type tri struct {
	v     [3]int
	alive bool
}

// builder holds the mutable triangulation while it is being constructed.
// Adjacency is implicit: owner maps each directed edge of a live
// counter-clockwise triangle to that triangle, so the neighbor across a→b is
// the owner of b→a.
type builder struct {
	points []geom.Point
	index  map[string]int
	tris   []tri
	owner  map[edgeKey]int
	fixed  map[edgeKey]bool
	walls  map[edgeKey]bool
}

// Build constructs the constrained Delaunay triangulation of the given
// segments. Every segment becomes a wall; the convex hull of all endpoints
// bounds the result.
//
// Segments may touch, overlap collinearly or end on each other's interiors;
// they are split at shared vertices. Build fails with ErrCodeDegenerateInput
// when the list is empty, a segment has zero length, two segments cross at a
// point interior to both, or all endpoints are collinear.
func Build(segments []geom.Segment) (*Triangulation, error) {
	if len(segments) == 0 {
		return nil, errors.New(errors.ErrCodeDegenerateInput, "no edges to triangulate")
	}
	for i, s := range segments {
		if s.IsDegenerate() {
			return nil, errors.New(errors.ErrCodeDegenerateInput, "edge %d (%s) has zero length", i, s)
		}
	}
	for i := range segments {
		for j := i + 1; j < len(segments); j++ {
			if geom.ProperlyCross(segments[i], segments[j]) {
				return nil, errors.New(errors.ErrCodeDegenerateInput,
					"edges %s and %s cross", segments[i], segments[j])
			}
		}
	}

	b := newBuilder(segments)
	for _, s := range segments {
		b.vertex(s.A)
		b.vertex(s.B)
	}
	input := b.points[superVertices:]
	if len(input) < 3 {
		return nil, errors.New(errors.ErrCodeDegenerateInput, "need at least three distinct vertices, got %d", len(input))
	}

	hull := convexHull(input)
	if len(hull) < 3 {
		return nil, errors.New(errors.ErrCodeDegenerateInput, "all vertices are collinear")
	}

	for v := superVertices; v < len(b.points); v++ {
		if err := b.insertPoint(v); err != nil {
			return nil, err
		}
	}

	for _, s := range splitAtVertices(segments, input) {
		if err := b.insertConstraint(b.index[s.A.Key()], b.index[s.B.Key()], true); err != nil {
			return nil, err
		}
	}

	var rim []geom.Segment
	for i := range hull {
		rim = append(rim, geom.Seg(hull[i], hull[(i+1)%len(hull)]))
	}
	for _, s := range splitAtVertices(rim, input) {
		if err := b.insertConstraint(b.index[s.A.Key()], b.index[s.B.Key()], false); err != nil {
			return nil, err
		}
	}

	return b.finish()
}

func newBuilder(segments []geom.Segment) *builder {
	b := &builder{
		index: make(map[string]int),
		owner: make(map[edgeKey]int),
		fixed: make(map[edgeKey]bool),
		walls: make(map[edgeKey]bool),
	}

	minX, maxX := new(big.Rat).Set(segments[0].A.X), new(big.Rat).Set(segments[0].A.X)
	minY, maxY := new(big.Rat).Set(segments[0].A.Y), new(big.Rat).Set(segments[0].A.Y)
	for _, s := range segments {
		for _, p := range []geom.Point{s.A, s.B} {
			if p.X.Cmp(minX) < 0 {
				minX.Set(p.X)
			}
			if p.X.Cmp(maxX) > 0 {
				maxX.Set(p.X)
			}
			if p.Y.Cmp(minY) < 0 {
				minY.Set(p.Y)
			}
			if p.Y.Cmp(maxY) > 0 {
				maxY.Set(p.Y)
			}
		}
	}
	half := big.NewRat(1, 2)
	cx := new(big.Rat).Mul(new(big.Rat).Add(minX, maxX), half)
	cy := new(big.Rat).Mul(new(big.Rat).Add(minY, maxY), half)
	m := new(big.Rat).Sub(maxX, minX)
	if h := new(big.Rat).Sub(maxY, minY); h.Cmp(m) > 0 {
		m = h
	}
	if m.Sign() == 0 {
		m.SetInt64(1)
	}
	scaled := func(k int64) *big.Rat { return new(big.Rat).Mul(m, big.NewRat(k, 1)) }

	b.points = []geom.Point{
		{X: new(big.Rat).Sub(cx, scaled(20)), Y: new(big.Rat).Sub(cy, scaled(10))},
		{X: new(big.Rat).Add(cx, scaled(20)), Y: new(big.Rat).Sub(cy, scaled(10))},
		{X: new(big.Rat).Set(cx), Y: new(big.Rat).Add(cy, scaled(20))},
	}
	b.addTri(0, 1, 2)
	return b
}

func (b *builder) vertex(p geom.Point) int {
	if id, ok := b.index[p.Key()]; ok {
		return id
	}
	id := len(b.points)
	b.points = append(b.points, p)
	b.index[p.Key()] = id
	return id
}

func (b *builder) addTri(x, y, z int) int {
	id := len(b.tris)
	b.tris = append(b.tris, tri{v: [3]int{x, y, z}, alive: true})
	b.owner[edgeKey{x, y}] = id
	b.owner[edgeKey{y, z}] = id
	b.owner[edgeKey{z, x}] = id
	return id
}

func (b *builder) removeTri(id int) {
	t := &b.tris[id]
	t.alive = false
	for i := 0; i < 3; i++ {
		k := edgeKey{t.v[i], t.v[(i+1)%3]}
		if b.owner[k] == id {
			delete(b.owner, k)
		}
	}
}

// apex returns the vertex of triangle id that is neither x nor y.
func (b *builder) apex(id, x, y int) int {
	for _, w := range b.tris[id].v {
		if w != x && w != y {
			return w
		}
	}
	return -1
}

// insertPoint adds vertex p to the Delaunay triangulation, splitting the
// triangle or edge that contains it and restoring the empty circumcircle
// property by edge flips.
func (b *builder) insertPoint(p int) error {
	pt := b.points[p]
	for id := range b.tris {
		t := b.tris[id]
		if !t.alive {
			continue
		}
		var o [3]geom.Orientation
		inside := true
		for i := 0; i < 3; i++ {
			o[i] = geom.Orient(b.points[t.v[CCW(i)]], b.points[t.v[CW(i)]], pt)
			if o[i] == geom.Clockwise {
				inside = false
				break
			}
		}
		if !inside {
			continue
		}

		edge, zeros := -1, 0
		for i := 0; i < 3; i++ {
			if o[i] == geom.Collinear {
				edge = i
				zeros++
			}
		}
		switch zeros {
		case 0:
			b.splitFace(id, p)
		case 1:
			b.splitEdge(id, edge, p)
		default:
			return errors.New(errors.ErrCodeInternal, "vertex %s inserted twice", pt)
		}
		return nil
	}
	return errors.New(errors.ErrCodeInternal, "vertex %s outside the enclosing triangle", pt)
}

func (b *builder) splitFace(id, p int) {
	x, y, z := b.tris[id].v[0], b.tris[id].v[1], b.tris[id].v[2]
	b.removeTri(id)
	b.addTri(x, y, p)
	b.addTri(y, z, p)
	b.addTri(z, x, p)
	b.legalize(p, [][2]int{{x, y}, {y, z}, {z, x}})
}

func (b *builder) splitEdge(id, i, p int) {
	t := b.tris[id]
	c, x, y := t.v[i], t.v[CCW(i)], t.v[CW(i)]
	b.removeTri(id)
	b.addTri(c, x, p)
	b.addTri(c, p, y)
	edges := [][2]int{{c, x}, {y, c}}

	if other, ok := b.owner[edgeKey{y, x}]; ok {
		d := b.apex(other, y, x)
		b.removeTri(other)
		b.addTri(d, y, p)
		b.addTri(d, p, x)
		edges = append(edges, [2]int{d, y}, [2]int{x, d})
	}
	b.legalize(p, edges)
}

// legalize flips edges x→y opposite the new vertex p until every triangle
// around p satisfies the empty circumcircle property.
func (b *builder) legalize(p int, edges [][2]int) {
	stack := append([][2]int(nil), edges...)
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := e[0], e[1]
		if b.fixed[undirected(x, y)] {
			continue
		}
		near, ok := b.owner[edgeKey{x, y}]
		if !ok || b.apex(near, x, y) != p {
			continue
		}
		far, ok := b.owner[edgeKey{y, x}]
		if !ok {
			continue
		}
		d := b.apex(far, y, x)
		px, py, pp, pd := b.points[x], b.points[y], b.points[p], b.points[d]
		if !geom.InCircle(px, py, pp, pd) {
			continue
		}
		if geom.Orient(px, pd, pp) != geom.CounterClockwise || geom.Orient(pd, py, pp) != geom.CounterClockwise {
			continue
		}
		b.removeTri(near)
		b.removeTri(far)
		b.addTri(x, d, p)
		b.addTri(d, y, p)
		stack = append(stack, [2]int{x, d}, [2]int{d, y})
	}
}

// insertConstraint forces the segment u–v into the triangulation. Vertices
// lying on the segment split it into several constrained edges.
func (b *builder) insertConstraint(u, v int, wall bool) error {
	for u != v {
		next, err := b.constrainStep(u, v, wall)
		if err != nil {
			return err
		}
		u = next
	}
	return nil
}

// constrainStep inserts the part of u–v that ends at the first vertex on the
// segment and returns that vertex.
func (b *builder) constrainStep(u, v int, wall bool) (int, error) {
	mark := func(e int) int {
		k := undirected(u, e)
		b.fixed[k] = true
		if wall {
			b.walls[k] = true
		}
		return e
	}
	if _, ok := b.owner[edgeKey{u, v}]; ok {
		return mark(v), nil
	}
	if _, ok := b.owner[edgeKey{v, u}]; ok {
		return mark(v), nil
	}

	pu, pv := b.points[u], b.points[v]
	seg := geom.Seg(pu, pv)
	start, r, l := -1, -1, -1
	for id, t := range b.tris {
		if !t.alive {
			continue
		}
		k := -1
		for i, w := range t.v {
			if w == u {
				k = i
			}
		}
		if k < 0 {
			continue
		}
		x, y := t.v[CCW(k)], t.v[CW(k)]
		if geom.OnSegment(b.points[x], seg) {
			return mark(x), nil
		}
		if geom.OnSegment(b.points[y], seg) {
			return mark(y), nil
		}
		if geom.Orient(pu, pv, b.points[x]) == geom.Clockwise && geom.Orient(pu, pv, b.points[y]) == geom.CounterClockwise {
			start, r, l = id, x, y
			break
		}
	}
	if start < 0 {
		return 0, errors.New(errors.ErrCodeInternal, "no triangle around %s faces %s", pu, pv)
	}

	right, left := []int{r}, []int{l}
	if err := b.crossable(r, l); err != nil {
		return 0, err
	}
	b.removeTri(start)

	end := -1
	for end < 0 {
		next, ok := b.owner[edgeKey{l, r}]
		if !ok {
			return 0, errors.New(errors.ErrCodeInternal, "walk from %s to %s left the triangulation", pu, pv)
		}
		d := b.apex(next, l, r)
		b.removeTri(next)
		if d == v {
			end = d
			break
		}
		switch geom.Orient(pu, pv, b.points[d]) {
		case geom.CounterClockwise:
			if err := b.crossable(r, d); err != nil {
				return 0, err
			}
			left = append(left, d)
			l = d
		case geom.Clockwise:
			if err := b.crossable(d, l); err != nil {
				return 0, err
			}
			right = append(right, d)
			r = d
		default:
			end = d
		}
	}

	b.fill(end, u, right)
	for i, j := 0, len(left)-1; i < j; i, j = i+1, j-1 {
		left[i], left[j] = left[j], left[i]
	}
	b.fill(u, end, left)
	return mark(end), nil
}

func (b *builder) crossable(x, y int) error {
	if b.fixed[undirected(x, y)] {
		return errors.New(errors.ErrCodeDegenerateInput,
			"edge %s-%s crosses an existing constraint", b.points[x], b.points[y])
	}
	return nil
}

// fill triangulates the pseudo-polygon a → c → chain... → a, where every
// chain vertex lies left of a→c, choosing at each step the apex whose
// circumcircle with the base is empty.
func (b *builder) fill(a, c int, chain []int) {
	if len(chain) == 0 {
		return
	}
	best := 0
	pa, pc := b.points[a], b.points[c]
	for i := 1; i < len(chain); i++ {
		if geom.InCircle(pa, pc, b.points[chain[best]], b.points[chain[i]]) {
			best = i
		}
	}
	x := chain[best]
	b.addTri(a, c, x)
	b.fill(x, c, chain[:best])
	b.fill(a, x, chain[best+1:])
}

// finish drops the helper triangle, compacts faces into an arena and
// resolves adjacency.
func (b *builder) finish() (*Triangulation, error) {
	ids := make(map[int]int)
	var kept []int
	for id, t := range b.tris {
		if !t.alive || t.v[0] < superVertices || t.v[1] < superVertices || t.v[2] < superVertices {
			continue
		}
		ids[id] = len(kept)
		kept = append(kept, id)
	}
	if len(kept) == 0 {
		return nil, errors.New(errors.ErrCodeDegenerateInput, "input does not enclose any area")
	}

	t := &Triangulation{
		points: b.points[superVertices:],
		faces:  make([]Face, len(kept)),
	}
	for fid, id := range kept {
		src := b.tris[id]
		var f Face
		for i := 0; i < 3; i++ {
			f.v[i] = src.v[i] - superVertices
			x, y := src.v[CCW(i)], src.v[CW(i)]
			f.n[i] = NoFace
			if nb, ok := b.owner[edgeKey{y, x}]; ok {
				if g, ok := ids[nb]; ok {
					f.n[i] = g
				}
			}
			f.c[i] = b.walls[undirected(x, y)]
		}
		t.faces[fid] = f
	}
	t.markBounded()
	return t, nil
}

// convexHull returns the strictly convex hull of pts in counter-clockwise
// order (Andrew's monotone chain).
func convexHull(pts []geom.Point) []geom.Point {
	sorted := append([]geom.Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })
	if len(sorted) < 3 {
		return sorted
	}

	hull := make([]geom.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && geom.Orient(hull[len(hull)-2], hull[len(hull)-1], p) != geom.CounterClockwise {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && geom.Orient(hull[len(hull)-2], hull[len(hull)-1], p) != geom.CounterClockwise {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// splitAtVertices cuts every segment at the points lying strictly inside it
// and removes duplicate pieces.
func splitAtVertices(segments []geom.Segment, pts []geom.Point) []geom.Segment {
	seen := make(map[string]bool)
	var out []geom.Segment
	for _, s := range segments {
		c := s.Canonical()
		cuts := []geom.Point{c.A}
		for _, p := range pts {
			if geom.StrictlyOnSegment(p, c) {
				cuts = append(cuts, p)
			}
		}
		cuts = append(cuts, c.B)
		sort.Slice(cuts, func(i, j int) bool { return cuts[i].Cmp(cuts[j]) < 0 })
		for i := 0; i+1 < len(cuts); i++ {
			piece := geom.Seg(cuts[i], cuts[i+1])
			if k := piece.Key(); !seen[k] {
				seen[k] = true
				out = append(out, piece)
			}
		}
	}
	return out
}
