package cdt

import (
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

// NoFace is the neighbor id across an edge on the outer boundary.
const NoFace = -1

// CCW returns the index following i counter-clockwise within a face.
func CCW(i int) int { return (i + 1) % 3 }

// CW returns the index following i clockwise within a face.
func CW(i int) int { return (i + 2) % 3 }

// Face is a triangle of the triangulation. Vertices are stored in
// counter-clockwise order; edge i is the edge opposite vertex i, running from
// vertex CCW(i) to vertex CW(i).
type Face struct {
	v       [3]int
	n       [3]int
	c       [3]bool
	bounded bool
}

// Vertex returns the vertex id at index i.
func (f Face) Vertex(i int) int { return f.v[i] }

// Neighbor returns the id of the face across edge i, or NoFace.
func (f Face) Neighbor(i int) int { return f.n[i] }

// IsConstrained reports whether edge i is an opaque wall.
func (f Face) IsConstrained(i int) bool { return f.c[i] }

// IsBlocked reports whether edge i cannot be crossed: it is a wall or lies on
// the outer boundary of the triangulation.
func (f Face) IsBlocked(i int) bool { return f.c[i] || f.n[i] == NoFace }

// Bounded reports whether the face lies in a region fully enclosed by walls.
// Faces connected to the convex hull through non-wall edges are unbounded.
func (f Face) Bounded() bool { return f.bounded }

// Index returns the index of vertex v in f, or -1.
func (f Face) Index(v int) int {
	for i, w := range f.v {
		if w == v {
			return i
		}
	}
	return -1
}

// Triangulation is an immutable constrained Delaunay triangulation. Faces
// live in an arena and are addressed by stable integer ids.
type Triangulation struct {
	points []geom.Point
	faces  []Face
}

// NumVertices returns the number of vertices.
func (t *Triangulation) NumVertices() int { return len(t.points) }

// NumFaces returns the number of faces.
func (t *Triangulation) NumFaces() int { return len(t.faces) }

// Point returns the coordinates of vertex v.
func (t *Triangulation) Point(v int) geom.Point { return t.points[v] }

// Face returns the face with the given id.
func (t *Triangulation) Face(id int) Face { return t.faces[id] }

// VertexPoint returns the coordinates of vertex i of face f.
func (t *Triangulation) VertexPoint(f, i int) geom.Point {
	return t.points[t.faces[f].v[i]]
}

// MirrorIndex returns the index of the edge shared with face f inside the
// neighbor across edge i of f, which is also the index of the neighbor's
// vertex opposite that edge. It returns -1 when edge i is on the boundary.
func (t *Triangulation) MirrorIndex(f, i int) int {
	g := t.faces[f].n[i]
	if g == NoFace {
		return -1
	}
	a, b := t.faces[f].v[CCW(i)], t.faces[f].v[CW(i)]
	for j, w := range t.faces[g].v {
		if w != a && w != b {
			return j
		}
	}
	return -1
}

// Edge is an undirected edge of the triangulation, reported once.
type Edge struct {
	Face        int // a face containing the edge
	Index       int // index of the edge within Face
	A, B        int // vertex ids
	Constrained bool
	Boundary    bool
}

// Edges returns every edge of the triangulation exactly once.
func (t *Triangulation) Edges() []Edge {
	var out []Edge
	for id, f := range t.faces {
		for i := 0; i < 3; i++ {
			if f.n[i] != NoFace && f.n[i] < id {
				continue
			}
			out = append(out, Edge{
				Face:        id,
				Index:       i,
				A:           f.v[CCW(i)],
				B:           f.v[CW(i)],
				Constrained: f.c[i],
				Boundary:    f.n[i] == NoFace,
			})
		}
	}
	return out
}

// Stats summarizes the size of a triangulation.
type Stats struct {
	Vertices    int `json:"vertices"`
	Faces       int `json:"faces"`
	Edges       int `json:"edges"`
	Constrained int `json:"constrained"`
	Bounded     int `json:"bounded_faces"`
}

// Stats returns size statistics.
func (t *Triangulation) Stats() Stats {
	s := Stats{Vertices: len(t.points), Faces: len(t.faces)}
	for _, e := range t.Edges() {
		s.Edges++
		if e.Constrained {
			s.Constrained++
		}
	}
	for _, f := range t.faces {
		if f.bounded {
			s.Bounded++
		}
	}
	return s
}

// LocationKind describes where a located point lies relative to the face
// returned by Locate.
type LocationKind int

const (
	// InFace means the point is strictly inside the face.
	InFace LocationKind = iota
	// OnEdge means the point lies in the relative interior of an edge.
	OnEdge
	// OnVertex means the point coincides with a vertex.
	OnVertex
)

func (k LocationKind) String() string {
	switch k {
	case InFace:
		return "face"
	case OnEdge:
		return "edge"
	case OnVertex:
		return "vertex"
	}
	return "unknown"
}

// Location is the result of point location. Edge is set for OnEdge and
// Vertex for OnVertex; both index into Face.
type Location struct {
	Kind   LocationKind
	Face   int
	Edge   int
	Vertex int
}

// Locate finds the face containing p. When p lies on an edge shared by two
// faces, the face with the lower id is returned. Points outside the
// triangulated region fail with ErrCodePointNotLocated.
func (t *Triangulation) Locate(p geom.Point) (Location, error) {
	for id, f := range t.faces {
		var o [3]geom.Orientation
		inside := true
		zeros := 0
		for i := 0; i < 3; i++ {
			o[i] = geom.Orient(t.points[f.v[CCW(i)]], t.points[f.v[CW(i)]], p)
			if o[i] == geom.Clockwise {
				inside = false
				break
			}
			if o[i] == geom.Collinear {
				zeros++
			}
		}
		if !inside {
			continue
		}
		switch zeros {
		case 0:
			return Location{Kind: InFace, Face: id, Edge: -1, Vertex: -1}, nil
		case 1:
			for i := 0; i < 3; i++ {
				if o[i] == geom.Collinear {
					return Location{Kind: OnEdge, Face: id, Edge: i, Vertex: -1}, nil
				}
			}
		default:
			for i := 0; i < 3; i++ {
				if o[i] != geom.Collinear {
					return Location{Kind: OnVertex, Face: id, Edge: -1, Vertex: i}, nil
				}
			}
		}
	}
	return Location{}, errors.New(errors.ErrCodePointNotLocated,
		"point %s is outside the triangulated region", p)
}

// markBounded flags every face that cannot reach the outer boundary without
// crossing a wall.
func (t *Triangulation) markBounded() {
	reach := make([]bool, len(t.faces))
	var stack []int
	for id, f := range t.faces {
		for i := 0; i < 3; i++ {
			if f.n[i] == NoFace && !f.c[i] && !reach[id] {
				reach[id] = true
				stack = append(stack, id)
			}
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		f := t.faces[id]
		for i := 0; i < 3; i++ {
			if g := f.n[i]; g != NoFace && !f.c[i] && !reach[g] {
				reach[g] = true
				stack = append(stack, g)
			}
		}
	}
	for id := range t.faces {
		t.faces[id].bounded = !reach[id]
	}
}
