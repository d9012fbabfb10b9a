package arrangement

import (
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

// Assemble closes an ordered boundary into a polygon and returns its
// arrangement, which must consist of exactly one bounded face and the
// unbounded face.
//
// The call fails with ErrCodeTopologyInvariant when the boundary has fewer
// than three points, repeats a point consecutively, or crosses or touches
// itself so that more (or fewer) than two faces arise.
func Assemble(boundary []geom.Point, opts Options) (*Arrangement, error) {
	n := len(boundary)
	if n < 3 {
		return nil, errors.New(errors.ErrCodeTopologyInvariant,
			"boundary has %d points, need at least 3", n)
	}
	segments := make([]geom.Segment, n)
	for i := range boundary {
		next := boundary[(i+1)%n]
		if boundary[i].Equal(next) {
			return nil, errors.New(errors.ErrCodeTopologyInvariant,
				"boundary repeats point %s at position %d", next, (i+1)%n)
		}
		segments[i] = geom.Seg(boundary[i], next)
	}

	arr := Insert(segments, opts)
	if f := arr.NumFaces(); f != 2 {
		return nil, errors.New(errors.ErrCodeTopologyInvariant,
			"boundary of %d points forms %d faces, want 2", n, f)
	}
	if len(arr.BoundedFaces()) != 1 {
		return nil, errors.New(errors.ErrCodeTopologyInvariant,
			"boundary of %d points encloses no area", n)
	}
	return arr, nil
}

// Polygon is the closed region produced by Assemble.
type Polygon struct {
	Boundary []geom.Point // counter-clockwise, starting at the first input point when it survives
	Arr      *Arrangement
}

// AssemblePolygon is Assemble followed by extraction of the bounded face,
// rotated so that it starts where the input did.
func AssemblePolygon(boundary []geom.Point, opts Options) (*Polygon, error) {
	arr, err := Assemble(boundary, opts)
	if err != nil {
		return nil, err
	}
	region, err := arr.Region()
	if err != nil {
		return nil, err
	}
	for i, p := range region {
		if p.Equal(boundary[0]) {
			rotated := make([]geom.Point, 0, len(region))
			region = append(append(rotated, region[i:]...), region[:i]...)
			break
		}
	}
	return &Polygon{Boundary: region, Arr: arr}, nil
}
