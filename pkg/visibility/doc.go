// Package visibility computes the region visible from a point inside a
// scene of opaque walls.
//
// The algorithm is triangular expansion. The scene is triangulated with every
// wall as a constrained edge (see package cdt). A query starts in the face
// containing the observer and pushes an angular sector across each of the
// face's free edges. Entering a face, a sector meets the face's third vertex
// v, which may fall inside the sector, on one of its bounding rays, or
// outside it. Depending on where v falls, the sector continues through one or
// both of the face's far edges, possibly split at v. When a sector reaches a
// wall it stops, and the points where its bounding rays meet the wall become
// part of the region's boundary.
//
// Boundary points are produced in counter-clockwise order around the
// observer, so the output can be closed into a polygon directly (see package
// arrangement).
//
// # Lifecycle
//
// An [Adapter] owns the triangulation of one scene:
//
//	a := visibility.NewAdapter(logger)
//	if err := a.Attach(scene); err != nil {
//	    return err
//	}
//	defer a.Detach()
//
//	err := a.View(func(e *visibility.Engine) error {
//	    boundary, err := e.Region(q)
//	    ...
//	})
//
// Views run concurrently; Attach and Detach are exclusive.
package visibility
