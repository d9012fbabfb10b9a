package render

import (
	"bytes"
	"fmt"
	"math"

	svg "github.com/ajstarks/svgo"
	"github.com/golang/geo/r2"

	"github.com/matzehuels/sightline/pkg/geom"
	"github.com/matzehuels/sightline/pkg/scene"
)

// Default drawing size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 800
	DefaultMargin = 24
)

// Options controls the SVG output.
type Options struct {
	Width, Height int
	Margin        int

	// Labels draws observer names next to their markers.
	Labels bool
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Margin <= 0 {
		o.Margin = DefaultMargin
	}
	return o
}

// View is the region visible from one observer.
type View struct {
	Name     string
	At       geom.Point
	Boundary []geom.Point
}

var palette = []string{"#4e79a7", "#f28e2b", "#59a14f", "#e15759", "#76b7b2", "#edc948", "#b07aa1"}

const (
	wallStyle     = "stroke:#222;stroke-width:3;stroke-linecap:round"
	observerStyle = "fill:#fff;stroke:#222;stroke-width:2"
	labelStyle    = "font-family:sans-serif;font-size:12px;fill:#222"
)

// SVG draws the scene and the given views. Views are drawn in order, each
// in its own translucent color, below the walls.
func SVG(sc *scene.Scene, views []View, opts Options) []byte {
	opts = opts.withDefaults()
	p := newProjection(sceneRect(sc, views), opts)

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(opts.Width, opts.Height)
	if sc.Name != "" {
		canvas.Title(sc.Name)
	}
	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:#fff")

	canvas.Gid("regions")
	for i, v := range views {
		if len(v.Boundary) < 3 {
			continue
		}
		xs, ys := p.polyline(v.Boundary)
		color := palette[i%len(palette)]
		canvas.Polygon(xs, ys, fmt.Sprintf("fill:%s;fill-opacity:0.35;stroke:%s;stroke-width:1", color, color))
	}
	canvas.Gend()

	canvas.Gid("walls")
	for _, e := range sc.Edges() {
		x1, y1 := p.project(e.A)
		x2, y2 := p.project(e.B)
		canvas.Line(x1, y1, x2, y2, wallStyle)
	}
	canvas.Gend()

	canvas.Gid("observers")
	for _, v := range views {
		x, y := p.project(v.At)
		canvas.Circle(x, y, 5, observerStyle)
		if opts.Labels && v.Name != "" {
			canvas.Text(x+8, y-8, v.Name, labelStyle)
		}
	}
	canvas.Gend()

	canvas.End()
	return buf.Bytes()
}

func sceneRect(sc *scene.Scene, views []View) r2.Rect {
	r := r2.EmptyRect()
	for _, e := range sc.Edges() {
		r = r.AddPoint(e.A.Float()).AddPoint(e.B.Float())
	}
	for _, v := range views {
		r = r.AddPoint(v.At.Float())
		for _, b := range v.Boundary {
			r = r.AddPoint(b.Float())
		}
	}
	return r
}

// projection maps scene coordinates to pixels, preserving aspect ratio and
// flipping the y axis.
type projection struct {
	bounds r2.Rect
	scale  float64
	offset r2.Point
	height int
}

func newProjection(bounds r2.Rect, opts Options) projection {
	if bounds.IsEmpty() {
		bounds = r2.RectFromPoints(r2.Point{}, r2.Point{X: 1, Y: 1})
	}
	size := bounds.Size()
	innerW := float64(opts.Width - 2*opts.Margin)
	innerH := float64(opts.Height - 2*opts.Margin)

	scale := 1.0
	switch {
	case size.X > 0 && size.Y > 0:
		scale = math.Min(innerW/size.X, innerH/size.Y)
	case size.X > 0:
		scale = innerW / size.X
	case size.Y > 0:
		scale = innerH / size.Y
	}
	// Center the drawing in the frame.
	offset := r2.Point{
		X: float64(opts.Margin) + (innerW-size.X*scale)/2,
		Y: float64(opts.Margin) + (innerH-size.Y*scale)/2,
	}
	return projection{bounds: bounds, scale: scale, offset: offset, height: opts.Height}
}

func (p projection) project(pt geom.Point) (int, int) {
	f := pt.Float().Sub(p.bounds.Lo()).Mul(p.scale).Add(p.offset)
	return int(math.Round(f.X)), p.height - int(math.Round(f.Y))
}

func (p projection) polyline(pts []geom.Point) ([]int, []int) {
	xs := make([]int, len(pts))
	ys := make([]int, len(pts))
	for i, pt := range pts {
		xs[i], ys[i] = p.project(pt)
	}
	return xs, ys
}
