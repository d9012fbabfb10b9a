// Package cdt builds exact constrained Delaunay triangulations of wall
// segments and answers point location queries against them.
//
// A [Triangulation] is immutable once [Build] returns. Its faces live in an
// arena and refer to each other by integer id, so the structure can be shared
// by any number of concurrent readers without synchronization.
//
// Construction is incremental. Endpoints are inserted one at a time into an
// enclosing helper triangle, with Lawson flips restoring the Delaunay
// property after every insertion. Walls are then forced in by removing the
// triangles they cross and re-triangulating the two pseudo-polygons on either
// side, and finally the convex hull of the input is enforced so that the
// helper triangle can be discarded.
//
// Edge i of a face is opposite vertex i. Its neighbor across that edge is
// [Face.Neighbor](i) and the matching index inside the neighbor is
// [Triangulation.MirrorIndex].
package cdt
