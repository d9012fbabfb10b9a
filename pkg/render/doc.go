// Package render draws scenes, visibility regions and triangulations.
//
// # Scene drawings
//
// [SVG] draws a scene's walls, the region seen from each observer and the
// observers themselves. Exact coordinates are projected to floats only here,
// at the very end of the pipeline.
//
//	svg := render.SVG(sc, []render.View{{Name: "guard", At: q, Boundary: region}}, render.Options{})
//
// # Triangulation dual
//
// [DualDOT] describes the dual graph of a constrained triangulation in
// Graphviz DOT: one node per face, solid links across free edges and dashed
// links or stubs across walls. [RenderDOT] lays it out with Graphviz.
//
// # Format conversion
//
// [ToPDF] and [ToPNG] convert SVG with the external rsvg-convert tool.
//
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0)
package render
