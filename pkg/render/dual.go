package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/sightline/pkg/cdt"
)

// DualDOT describes the dual graph of tri: a node per face, a solid link
// per free interior edge, a dashed red link per interior wall, and a dashed
// stub per edge on the outer boundary. Faces outside every enclosed region
// are grey.
func DualDOT(tri *cdt.Triangulation) string {
	var buf bytes.Buffer
	buf.WriteString("graph dual {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=10, width=0.3, fixedsize=true];\n")
	buf.WriteString("\n")

	for id := 0; id < tri.NumFaces(); id++ {
		f := tri.Face(id)
		c := centroid(tri, id)
		attrs := fmt.Sprintf("label=\"%d\", pos=\"%.4f,%.4f\"", id, c[0], c[1])
		if !f.Bounded() {
			attrs += ", fillcolor=lightgrey"
		}
		fmt.Fprintf(&buf, "  f%d [%s];\n", id, attrs)
	}

	buf.WriteString("\n")
	stub := 0
	for _, e := range tri.Edges() {
		f := tri.Face(e.Face)
		switch {
		case e.Boundary:
			fmt.Fprintf(&buf, "  s%d [shape=point, width=0.05, label=\"\"];\n", stub)
			fmt.Fprintf(&buf, "  f%d -- s%d [style=dashed, color=red];\n", e.Face, stub)
			stub++
		case e.Constrained:
			fmt.Fprintf(&buf, "  f%d -- f%d [style=dashed, color=red];\n", e.Face, f.Neighbor(e.Index))
		default:
			fmt.Fprintf(&buf, "  f%d -- f%d;\n", e.Face, f.Neighbor(e.Index))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func centroid(tri *cdt.Triangulation, id int) [2]float64 {
	var c [2]float64
	for i := 0; i < 3; i++ {
		p := tri.VertexPoint(id, i).Float()
		c[0] += p.X / 3
		c[1] += p.Y / 3
	}
	return c
}

// RenderDOT lays out a DOT graph with Graphviz and returns SVG.
func RenderDOT(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with a
// pixel-sized one so the drawing scales like the scene SVG.
func normalizeViewBox(svg []byte) []byte {
	m := viewBoxRe.FindSubmatch(svg)
	if m == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(m[3]), 64)
	h, _ := strconv.ParseFloat(string(m[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
