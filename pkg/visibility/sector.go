package visibility

import "github.com/matzehuels/sightline/pkg/geom"

// sidePlan says what happens to one of the two far edges of a newly entered
// face.
type sidePlan int

const (
	// sideNone: the edge lies outside the sector.
	sideNone sidePlan = iota
	// sideWhole: the whole sector passes through the edge. A wall yields the
	// intersections of both bounding rays; a free edge is crossed with the
	// bounds unchanged.
	sideWhole
	// sidePart: the sector is split at the new vertex and only the part on
	// this side passes through the edge.
	sidePart
)

// plan is the action taken when a sector enters a face and meets its third
// vertex v.
type plan struct {
	right sidePlan // edge v–rv, behind the right bound side
	emit  bool     // v itself is on the boundary
	left  sidePlan // edge v–lv
	valid bool
}

// orientIndex maps an orientation to a table row or column.
func orientIndex(o geom.Orientation) int {
	return int(o) + 1
}

// plans is indexed by [orientation(q, right, v)][orientation(q, left, v)],
// with rows and columns ordered clockwise, collinear, counter-clockwise.
//
// Within a valid sector v can be clockwise of the right ray only if it is
// also clockwise of the left ray, and counter-clockwise of the left ray only
// if it is also counter-clockwise of the right ray. The three remaining
// combinations cannot occur and are reported as errors.
var plans = [3][3]plan{
	// v clockwise of the right ray: the sector leaves through the left edge.
	{
		{right: sideNone, emit: false, left: sideWhole, valid: true},
		{},
		{},
	},
	// v on the right ray.
	{
		{right: sideNone, emit: true, left: sidePart, valid: true},
		{right: sideNone, emit: true, left: sideNone, valid: true},
		{},
	},
	// v counter-clockwise of the right ray.
	{
		{right: sidePart, emit: true, left: sidePart, valid: true},
		{right: sidePart, emit: true, left: sideNone, valid: true},
		{right: sideWhole, emit: false, left: sideNone, valid: true},
	},
}

func planFor(ro, lo geom.Orientation) plan {
	return plans[orientIndex(ro)][orientIndex(lo)]
}
