package geom

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
)

// Point is an exact 2D point. The zero value is not usable; construct points
// with Pt, NewPoint or ParsePoint.
type Point struct {
	X, Y *big.Rat
}

// Pt returns the point with integer coordinates (x, y).
func Pt(x, y int64) Point {
	return Point{X: big.NewRat(x, 1), Y: big.NewRat(y, 1)}
}

// NewPoint returns a point holding copies of x and y.
func NewPoint(x, y *big.Rat) Point {
	return Point{X: new(big.Rat).Set(x), Y: new(big.Rat).Set(y)}
}

// ParsePoint parses two coordinates. Each coordinate may be an integer, a
// decimal ("2.5", "1e-3") or a fraction ("37/5").
func ParsePoint(x, y string) (Point, error) {
	rx, err := ParseRat(x)
	if err != nil {
		return Point{}, err
	}
	ry, err := ParseRat(y)
	if err != nil {
		return Point{}, err
	}
	return Point{X: rx, Y: ry}, nil
}

// ParseRat parses a single exact coordinate.
func ParseRat(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid coordinate %q", s)
	}
	return r, nil
}

// RatFromFloat converts a decoded float to the rational its shortest decimal
// representation denotes, so 0.1 in a config file means exactly 1/10.
func RatFromFloat(f float64) (*big.Rat, error) {
	return ParseRat(strconv.FormatFloat(f, 'g', -1, 64))
}

// Equal reports whether p and q are the same point.
func (p Point) Equal(q Point) bool {
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// Cmp orders points lexicographically by X, then Y. Along any line this
// order is monotonic, which the arrangement relies on to sort split points.
func (p Point) Cmp(q Point) int {
	if c := p.X.Cmp(q.X); c != 0 {
		return c
	}
	return p.Y.Cmp(q.Y)
}

// Key returns a canonical string usable as a map key.
func (p Point) Key() string {
	return p.X.RatString() + "," + p.Y.RatString()
}

// String returns the point as "(x, y)" with exact coordinates.
func (p Point) String() string {
	return "(" + p.X.RatString() + ", " + p.Y.RatString() + ")"
}

// Float returns the nearest float64 approximation of p.
func (p Point) Float() r2.Point {
	x, _ := p.X.Float64()
	y, _ := p.Y.Float64()
	return r2.Point{X: x, Y: y}
}

// Sub returns the vector p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: new(big.Rat).Sub(p.X, q.X), Y: new(big.Rat).Sub(p.Y, q.Y)}
}

// Add returns p + v.
func (p Point) Add(v Point) Point {
	return Point{X: new(big.Rat).Add(p.X, v.X), Y: new(big.Rat).Add(p.Y, v.Y)}
}

// Scale returns p scaled by k.
func (p Point) Scale(k *big.Rat) Point {
	return Point{X: new(big.Rat).Mul(p.X, k), Y: new(big.Rat).Mul(p.Y, k)}
}

// MarshalJSON encodes p as a two-element array of exact coordinate strings,
// e.g. ["37/5","10"].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.X.RatString(), p.Y.RatString()})
}

// UnmarshalJSON decodes a two-element array whose elements are JSON numbers
// or coordinate strings.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("point must be an array [x, y]: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("point must have exactly 2 coordinates, got %d", len(raw))
	}
	var xy [2]*big.Rat
	for i, r := range raw {
		c, err := decodeJSONCoord(r)
		if err != nil {
			return err
		}
		xy[i] = c
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

func decodeJSONCoord(raw json.RawMessage) (*big.Rat, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseRat(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("invalid coordinate %s", string(raw))
	}
	return ParseRat(n.String())
}

// Segment is a closed line segment between two points.
type Segment struct {
	A, B Point
}

// Seg returns the segment from a to b.
func Seg(a, b Point) Segment {
	return Segment{A: a, B: b}
}

// IsDegenerate reports whether the segment has zero length.
func (s Segment) IsDegenerate() bool {
	return s.A.Equal(s.B)
}

// Reverse returns the segment with its endpoints swapped.
func (s Segment) Reverse() Segment {
	return Segment{A: s.B, B: s.A}
}

// Canonical returns the segment oriented so that A < B in point order.
func (s Segment) Canonical() Segment {
	if s.A.Cmp(s.B) > 0 {
		return s.Reverse()
	}
	return s
}

// Key returns a canonical, orientation-independent map key.
func (s Segment) Key() string {
	c := s.Canonical()
	return c.A.Key() + ";" + c.B.Key()
}

func (s Segment) String() string {
	return s.A.String() + "-" + s.B.String()
}

// SquaredDistance returns |a - b|².
func SquaredDistance(a, b Point) *big.Rat {
	d := a.Sub(b)
	return dot(d, d)
}

// SignedArea returns the signed area of the polygon whose vertices are pts
// in order: positive for counter-clockwise rings.
func SignedArea(pts []Point) *big.Rat {
	sum := new(big.Rat)
	n := len(pts)
	for i := range pts {
		j := (i + 1) % n
		sum.Add(sum, new(big.Rat).Mul(pts[i].X, pts[j].Y))
		sum.Sub(sum, new(big.Rat).Mul(pts[j].X, pts[i].Y))
	}
	return sum.Mul(sum, big.NewRat(1, 2))
}

func cross(u, v Point) *big.Rat {
	l := new(big.Rat).Mul(u.X, v.Y)
	return l.Sub(l, new(big.Rat).Mul(u.Y, v.X))
}

func dot(u, v Point) *big.Rat {
	l := new(big.Rat).Mul(u.X, v.X)
	return l.Add(l, new(big.Rat).Mul(u.Y, v.Y))
}

// Cross returns the z component of (a - o) × (b - o).
func Cross(o, a, b Point) *big.Rat {
	return cross(a.Sub(o), b.Sub(o))
}
