package geom

import (
	"math/big"

	"github.com/matzehuels/sightline/pkg/errors"
)

// Orientation is the turn direction of an ordered point triple.
type Orientation int

// These are the three possible orientations of a, b, c.
const (
	Clockwise        Orientation = -1
	Collinear        Orientation = 0
	CounterClockwise Orientation = 1
)

func (o Orientation) String() string {
	switch o {
	case Clockwise:
		return "clockwise"
	case Collinear:
		return "collinear"
	case CounterClockwise:
		return "counterclockwise"
	}
	return "invalid"
}

// Orient returns CounterClockwise if c lies to the left of the directed line
// a→b, Clockwise if it lies to the right, and Collinear otherwise.
//
// Orient satisfies Orient(a,b,c) == Orient(b,c,a) and
// Orient(c,b,a) == -Orient(a,b,c) for all inputs.
func Orient(a, b, c Point) Orientation {
	return Orientation(Cross(a, b, c).Sign())
}

// InCircle reports whether d lies strictly inside the circumcircle of the
// counter-clockwise triangle a, b, c.
func InCircle(a, b, c, d Point) bool {
	ad, bd, cd := a.Sub(d), b.Sub(d), c.Sub(d)
	alift, blift, clift := dot(ad, ad), dot(bd, bd), dot(cd, cd)

	det := new(big.Rat).Mul(alift, cross(bd, cd))
	det.Sub(det, new(big.Rat).Mul(blift, cross(ad, cd)))
	det.Add(det, new(big.Rat).Mul(clift, cross(ad, bd)))
	return det.Sign() > 0
}

// OnSegment reports whether p lies on the closed segment s.
func OnSegment(p Point, s Segment) bool {
	if Orient(s.A, s.B, p) != Collinear {
		return false
	}
	return between(s.A, s.B, p)
}

// StrictlyOnSegment reports whether p lies on s but is not an endpoint.
func StrictlyOnSegment(p Point, s Segment) bool {
	return OnSegment(p, s) && !p.Equal(s.A) && !p.Equal(s.B)
}

// between reports whether p, already known to be collinear with a and b,
// lies within their bounding box.
func between(a, b, p Point) bool {
	lo, hi := a, b
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	return lo.Cmp(p) <= 0 && p.Cmp(hi) <= 0
}

// RaySegmentIntersection returns the point where the ray starting at origin
// and passing through the point through meets the closed segment s–t.
//
// The returned point lies exactly on the segment. The call fails with an
// ErrCodeNoIntersection error when the ray is parallel to the segment
// (including when it runs along it) or misses it.
func RaySegmentIntersection(origin, through, s, t Point) (Point, error) {
	dir := through.Sub(origin)
	edge := t.Sub(s)
	d := cross(dir, edge)
	if d.Sign() == 0 {
		return Point{}, errors.New(errors.ErrCodeNoIntersection,
			"ray %s→%s is parallel to segment %s-%s", origin, through, s, t)
	}

	rel := s.Sub(origin)
	tRay := new(big.Rat).Quo(cross(rel, edge), d)
	u := new(big.Rat).Quo(cross(rel, dir), d)
	if tRay.Sign() < 0 || u.Sign() < 0 || u.Cmp(big.NewRat(1, 1)) > 0 {
		return Point{}, errors.New(errors.ErrCodeNoIntersection,
			"ray %s→%s misses segment %s-%s", origin, through, s, t)
	}
	return s.Add(edge.Scale(u)), nil
}

// IntersectionKind classifies the result of SegmentIntersection.
type IntersectionKind int

const (
	// Disjoint segments share no point.
	Disjoint IntersectionKind = iota
	// Touching segments share exactly one point.
	Touching
	// Overlapping segments are collinear and share a sub-segment of positive
	// length.
	Overlapping
)

// Intersection is the result of intersecting two closed segments. For
// Touching, P is the common point; for Overlapping, P and Q bound the shared
// sub-segment with P < Q.
type Intersection struct {
	Kind IntersectionKind
	P, Q Point
}

// SegmentIntersection intersects the closed segments a and b exactly.
func SegmentIntersection(a, b Segment) Intersection {
	da := a.B.Sub(a.A)
	db := b.B.Sub(b.A)
	d := cross(da, db)

	if d.Sign() != 0 {
		rel := b.A.Sub(a.A)
		t := new(big.Rat).Quo(cross(rel, db), d)
		u := new(big.Rat).Quo(cross(rel, da), d)
		one := big.NewRat(1, 1)
		if t.Sign() < 0 || t.Cmp(one) > 0 || u.Sign() < 0 || u.Cmp(one) > 0 {
			return Intersection{Kind: Disjoint}
		}
		return Intersection{Kind: Touching, P: a.A.Add(da.Scale(t))}
	}

	if Orient(a.A, a.B, b.A) != Collinear || Orient(a.A, a.B, b.B) != Collinear {
		return Intersection{Kind: Disjoint}
	}

	ca, cb := a.Canonical(), b.Canonical()
	lo, hi := ca.A, ca.B
	if cb.A.Cmp(lo) > 0 {
		lo = cb.A
	}
	if cb.B.Cmp(hi) < 0 {
		hi = cb.B
	}
	switch c := lo.Cmp(hi); {
	case c < 0:
		return Intersection{Kind: Overlapping, P: lo, Q: hi}
	case c == 0:
		return Intersection{Kind: Touching, P: lo}
	}
	return Intersection{Kind: Disjoint}
}

// ProperlyCross reports whether a and b cross at a single point interior to
// both segments.
func ProperlyCross(a, b Segment) bool {
	o1 := Orient(a.A, a.B, b.A)
	o2 := Orient(a.A, a.B, b.B)
	o3 := Orient(b.A, b.B, a.A)
	o4 := Orient(b.A, b.B, a.B)
	return o1*o2 < 0 && o3*o4 < 0
}
