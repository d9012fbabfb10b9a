package render

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/geom"
	"github.com/matzehuels/sightline/pkg/scene"
)

func squareScene() *scene.Scene {
	return &scene.Scene{
		Name: "square",
		Polygons: []scene.Polygon{{Vertices: []scene.Coord{
			scene.C(geom.Pt(0, 0)), scene.C(geom.Pt(10, 0)), scene.C(geom.Pt(10, 10)), scene.C(geom.Pt(0, 10)),
		}}},
	}
}

func TestSVG(t *testing.T) {
	sc := squareScene()
	views := []View{{
		Name:     "guard",
		At:       geom.Pt(2, 2),
		Boundary: []geom.Point{geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(10, 10), geom.Pt(0, 10)},
	}}
	out := string(SVG(sc, views, Options{Width: 120, Height: 120, Margin: 10, Labels: true}))

	for _, want := range []string{"<svg", "<title>square</title>", "<polygon", ">guard</text>", "</svg>"} {
		if !strings.Contains(out, want) {
			t.Errorf("SVG lacks %q", want)
		}
	}
	if n := strings.Count(out, "<line"); n != 4 {
		t.Errorf("SVG has %d walls, want 4", n)
	}
	if n := strings.Count(out, "<circle"); n != 1 {
		t.Errorf("SVG has %d observers, want 1", n)
	}
}

func TestSVGSkipsDegenerateViews(t *testing.T) {
	out := string(SVG(squareScene(), []View{{At: geom.Pt(1, 1)}}, Options{}))
	if strings.Contains(out, "<polygon") {
		t.Error("a view without boundary was drawn")
	}
}

func TestProjection(t *testing.T) {
	sc := squareScene()
	p := newProjection(sceneRect(sc, nil), Options{Width: 120, Height: 120, Margin: 10})

	tests := []struct {
		in   geom.Point
		x, y int
	}{
		{geom.Pt(0, 0), 10, 110},
		{geom.Pt(10, 10), 110, 10},
		{geom.Pt(5, 0), 60, 110},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			x, y := p.project(tt.in)
			if x != tt.x || y != tt.y {
				t.Errorf("project(%v) = (%d, %d), want (%d, %d)", tt.in, x, y, tt.x, tt.y)
			}
		})
	}
}

func TestProjectionCentersNarrowScenes(t *testing.T) {
	sc := &scene.Scene{Walls: []scene.Wall{{From: scene.C(geom.Pt(0, 0)), To: scene.C(geom.Pt(0, 10))}}}
	p := newProjection(sceneRect(sc, nil), Options{Width: 120, Height: 120, Margin: 10})
	x, _ := p.project(geom.Pt(0, 5))
	if x != 60 {
		t.Errorf("vertical wall drawn at x=%d, want centered at 60", x)
	}
}

func TestDualDOT(t *testing.T) {
	tri, err := cdt.Build(squareScene().Edges())
	if err != nil {
		t.Fatal(err)
	}
	dot := DualDOT(tri)

	if !strings.HasPrefix(dot, "graph dual {") {
		t.Errorf("DualDOT header: %q", dot[:20])
	}
	if n := strings.Count(dot, "[label=\""); n != 2 {
		t.Errorf("DualDOT has %d face nodes, want 2", n)
	}
	if n := strings.Count(dot, "shape=point"); n != 4 {
		t.Errorf("DualDOT has %d boundary stubs, want 4", n)
	}
	if !strings.Contains(dot, "f0 -- f1;") && !strings.Contains(dot, "f1 -- f0;") {
		t.Errorf("DualDOT lacks the free diagonal link:\n%s", dot)
	}
	if strings.Contains(dot, "lightgrey") {
		t.Error("faces of an enclosed room drawn as unbounded")
	}
}

func TestRenderDOT(t *testing.T) {
	tri, err := cdt.Build(squareScene().Edges())
	if err != nil {
		t.Fatal(err)
	}
	out, err := RenderDOT(context.Background(), DualDOT(tri))
	if err != nil {
		t.Fatalf("RenderDOT: %v", err)
	}
	if !strings.Contains(string(out), "<svg") {
		t.Error("RenderDOT output is not SVG")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="62pt" height="44pt" viewBox="0.00 0.00 62.00 44.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `width="62" height="44"`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg></svg>")); string(got) != "<svg></svg>" {
		t.Errorf("svg without viewBox changed: %s", got)
	}
}
