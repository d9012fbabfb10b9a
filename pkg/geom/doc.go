// Package geom is the exact geometric kernel used by every other Sightline
// package.
//
// Coordinates are rational numbers (math/big.Rat), so every predicate in this
// package returns the mathematically correct answer: there is no epsilon and
// no rounding anywhere between reading a scene file and emitting a visibility
// polygon. Floating point only appears in [Point.Float], which exists for
// drawing.
//
// # Points
//
// A [Point] holds two *big.Rat values and is treated as immutable: functions
// in this package never modify their arguments and always allocate fresh
// rationals for results. Points are constructed with [Pt] (integers),
// [NewPoint] (rationals, copied) or [ParsePoint] (decimal or fraction
// strings such as "2.5" or "37/5").
//
// # Predicates
//
//   - [Orient] classifies the turn a→b→c as [CounterClockwise], [Clockwise]
//     or [Collinear].
//   - [InCircle] reports whether a point lies inside the circumcircle of a
//     counter-clockwise triangle.
//   - [RaySegmentIntersection] intersects the ray from an origin through a
//     second point with a closed segment.
//   - [SegmentIntersection] intersects two closed segments, reporting proper
//     crossings, touching points and collinear overlaps.
package geom
