package visibility

import (
	"math/big"
	"testing"

	"github.com/matzehuels/sightline/pkg/arrangement"
	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

func ring(pts ...geom.Point) []geom.Segment {
	var out []geom.Segment
	for i := range pts {
		out = append(out, geom.Seg(pts[i], pts[(i+1)%len(pts)]))
	}
	return out
}

func pt(t *testing.T, x, y string) geom.Point {
	t.Helper()
	p, err := geom.ParsePoint(x, y)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func squareRoom(size int64) []geom.Segment {
	return ring(geom.Pt(0, 0), geom.Pt(size, 0), geom.Pt(size, size), geom.Pt(0, size))
}

func obstacleRoom() []geom.Segment {
	return append(squareRoom(10), geom.Seg(geom.Pt(5, 7), geom.Pt(7, 5)))
}

func lRoom() []geom.Segment {
	return ring(geom.Pt(0, 0), geom.Pt(4, 0), geom.Pt(4, 2), geom.Pt(2, 2), geom.Pt(2, 4), geom.Pt(0, 4))
}

func newEngine(t *testing.T, walls []geom.Segment, opts ...Option) *Engine {
	t.Helper()
	tri, err := cdt.Build(walls)
	if err != nil {
		t.Fatalf("cdt.Build: %v", err)
	}
	return NewEngine(tri, opts...)
}

// sameCycle reports whether got equals want up to a cyclic rotation.
func sameCycle(got, want []geom.Point) bool {
	if len(got) != len(want) {
		return false
	}
	if len(got) == 0 {
		return true
	}
	for shift := range got {
		match := true
		for i := range want {
			if !got[(i+shift)%len(got)].Equal(want[i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// checkStarShaped verifies that q sees every boundary point and that the
// boundary winds counter-clockwise around q.
func checkStarShaped(t *testing.T, q geom.Point, boundary []geom.Point, walls []geom.Segment) {
	t.Helper()
	if len(boundary) < 3 {
		t.Fatalf("boundary has %d points", len(boundary))
	}
	if geom.SignedArea(boundary).Sign() <= 0 {
		t.Errorf("boundary is not counter-clockwise: %v", boundary)
	}
	for i, p := range boundary {
		next := boundary[(i+1)%len(boundary)]
		if geom.Orient(p, next, q) == geom.Clockwise {
			t.Errorf("edge %v→%v turns away from %v", p, next, q)
		}
		sight := geom.Seg(q, p)
		for _, w := range walls {
			if geom.ProperlyCross(sight, w) {
				t.Errorf("sight line to %v crosses wall %s", p, w)
			}
		}
	}
}

func TestRegionConvexRoom(t *testing.T) {
	walls := ring(geom.Pt(0, 0), geom.Pt(4, 0), geom.Pt(4, 4), geom.Pt(0, 4))
	e := newEngine(t, walls)
	want := []geom.Point{geom.Pt(0, 0), geom.Pt(4, 0), geom.Pt(4, 4), geom.Pt(0, 4)}

	for _, q := range []geom.Point{geom.Pt(2, 2), geom.Pt(1, 3), pt(t, "7/2", "1/3")} {
		t.Run(q.String(), func(t *testing.T) {
			got, err := e.Region(q)
			if err != nil {
				t.Fatalf("Region: %v", err)
			}
			if !sameCycle(got, want) {
				t.Errorf("Region(%v) = %v, want %v", q, got, want)
			}
			checkStarShaped(t, q, got, walls)
		})
	}
}

func TestRegionSingleObstacle(t *testing.T) {
	walls := obstacleRoom()
	e := newEngine(t, walls)
	q := geom.Pt(2, 2)

	got, err := e.Region(q)
	if err != nil {
		t.Fatalf("Region: %v", err)
	}
	want := []geom.Point{
		geom.Pt(0, 0),
		geom.Pt(10, 0),
		pt(t, "10", "34/5"),
		geom.Pt(7, 5),
		geom.Pt(5, 7),
		pt(t, "34/5", "10"),
		geom.Pt(0, 10),
	}
	if !sameCycle(got, want) {
		t.Errorf("Region() = %v, want %v", got, want)
	}
	checkStarShaped(t, q, got, walls)

	for _, p := range got {
		if p.Equal(geom.Pt(10, 10)) {
			t.Error("occluded corner (10,10) reported as visible")
		}
	}
}

func TestRegionReflexCorner(t *testing.T) {
	walls := lRoom()
	e := newEngine(t, walls)

	tests := []struct {
		name string
		q    geom.Point
		want []geom.Point
	}{
		{
			name: "sees everything",
			q:    pt(t, "1/2", "3/2"),
			want: []geom.Point{
				geom.Pt(0, 0), geom.Pt(4, 0), geom.Pt(4, 2),
				geom.Pt(2, 2), geom.Pt(2, 4), geom.Pt(0, 4),
			},
		},
		{
			name: "shadow behind reflex vertex",
			q:    pt(t, "3", "1/2"),
			want: []geom.Point{
				geom.Pt(0, 0), geom.Pt(4, 0), geom.Pt(4, 2),
				geom.Pt(2, 2), pt(t, "2/3", "4"), geom.Pt(0, 4),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Region(tt.q)
			if err != nil {
				t.Fatalf("Region: %v", err)
			}
			if !sameCycle(got, tt.want) {
				t.Errorf("Region(%v) = %v, want %v", tt.q, got, tt.want)
			}
			checkStarShaped(t, tt.q, got, walls)
		})
	}
}

func TestRegionPillar(t *testing.T) {
	walls := append(squareRoom(10), ring(geom.Pt(4, 4), geom.Pt(6, 4), geom.Pt(6, 6), geom.Pt(4, 6))...)
	e := newEngine(t, walls)
	q := geom.Pt(1, 2)

	got, err := e.Region(q)
	if err != nil {
		t.Fatalf("Region: %v", err)
	}
	checkStarShaped(t, q, got, walls)

	area := geom.SignedArea(got)
	if area.Cmp(big.NewRat(100-4, 1)) >= 0 {
		t.Errorf("area %s should be less than the free floor area", area.RatString())
	}
	for _, p := range got {
		if p.Equal(geom.Pt(6, 6)) {
			t.Error("far pillar corner reported as visible")
		}
	}
}

func TestRegionEndOnWall(t *testing.T) {
	// The wall points straight at q, so its shadow has no width and the
	// region carries a needle from the floor up to the far end of the wall.
	walls := append(squareRoom(20), geom.Seg(geom.Pt(13, 7), geom.Pt(13, 8)))
	e := newEngine(t, walls)
	q := geom.Pt(13, 13)

	got, err := e.Region(q)
	if err != nil {
		t.Fatalf("Region: %v", err)
	}
	want := []geom.Point{
		geom.Pt(0, 20), geom.Pt(0, 0), geom.Pt(13, 0), geom.Pt(13, 7), geom.Pt(13, 8),
		geom.Pt(13, 7), geom.Pt(13, 0), geom.Pt(20, 0), geom.Pt(20, 20),
	}
	if !sameCycle(got, want) {
		t.Fatalf("Region(%v) = %v, want %v", q, got, want)
	}

	for _, opts := range []arrangement.Options{{}, {Regularize: true}} {
		arr, err := arrangement.Assemble(got, opts)
		if err != nil {
			t.Fatalf("Assemble(%+v): %v", opts, err)
		}
		if arr.Area().Cmp(big.NewRat(400, 1)) != 0 {
			t.Errorf("Assemble(%+v) area = %s, want 400", opts, arr.Area().RatString())
		}

		tests := []struct {
			name string
			p    geom.Point
			want bool
		}{
			{"beside the wall", pt(t, "127/10", "36/5"), true},
			{"below the wall", geom.Pt(12, 4), true},
			{"right of the wall", pt(t, "15", "15/2"), true},
			{"open floor", geom.Pt(5, 5), true},
			{"outside", geom.Pt(25, 5), false},
		}
		for _, tt := range tests {
			if got := arr.Contains(tt.p); got != tt.want {
				t.Errorf("Regularize=%v: Contains(%v) %s = %v, want %v", opts.Regularize, tt.p, tt.name, got, tt.want)
			}
		}
		if !opts.Regularize && arr.Contains(pt(t, "13", "15/2")) {
			t.Error("Contains reports a point on the needle as inside")
		}
	}
}

func TestRegionIsDeterministic(t *testing.T) {
	e := newEngine(t, obstacleRoom())
	q := pt(t, "3/2", "17/3")

	first, err := e.Region(q)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Region(q)
		if err != nil {
			t.Fatal(err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d returned %d points, want %d", i, len(again), len(first))
		}
		for j := range first {
			if !again[j].Equal(first[j]) {
				t.Fatalf("run %d differs at %d: %v vs %v", i, j, again[j], first[j])
			}
		}
	}
}

func TestRegionRejectsDegenerateQueries(t *testing.T) {
	e := newEngine(t, obstacleRoom())
	open := newEngine(t, []geom.Segment{
		geom.Seg(geom.Pt(0, 0), geom.Pt(4, 0)),
		geom.Seg(geom.Pt(4, 0), geom.Pt(4, 4)),
	})

	tests := []struct {
		name   string
		engine *Engine
		q      geom.Point
	}{
		{"on boundary wall", e, geom.Pt(5, 0)},
		{"on interior wall", e, geom.Pt(6, 6)},
		{"on vertex", e, geom.Pt(0, 0)},
		{"on obstacle endpoint", e, geom.Pt(7, 5)},
		{"outside", e, geom.Pt(11, 3)},
		{"not enclosed", open, geom.Pt(3, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.engine.Region(tt.q)
			if !errors.Is(err, errors.ErrCodePointNotLocated) {
				t.Errorf("Region(%v) error = %v, want %s", tt.q, err, errors.ErrCodePointNotLocated)
			}
		})
	}
}

func TestRegionFromWrongFace(t *testing.T) {
	e := newEngine(t, obstacleRoom())
	q := geom.Pt(2, 2)
	loc, err := e.Triangulation().Locate(q)
	if err != nil {
		t.Fatal(err)
	}

	for face := 0; face < e.Triangulation().NumFaces(); face++ {
		if face == loc.Face {
			continue
		}
		if loc.Kind == cdt.OnEdge && e.Triangulation().Face(loc.Face).Neighbor(loc.Edge) == face {
			continue
		}
		if _, err := e.RegionFrom(q, face); !errors.Is(err, errors.ErrCodePointNotLocated) {
			t.Errorf("RegionFrom(face %d) error = %v, want %s", face, err, errors.ErrCodePointNotLocated)
		}
	}
	if _, err := e.RegionFrom(q, -1); !errors.Is(err, errors.ErrCodePointNotLocated) {
		t.Errorf("RegionFrom(-1) error = %v", err)
	}
}

func TestRegionOnFreeEdgeMatchesNeighbor(t *testing.T) {
	// (2,2) lies on the diagonal shared by both faces of the square.
	e := newEngine(t, ring(geom.Pt(0, 0), geom.Pt(4, 0), geom.Pt(4, 4), geom.Pt(0, 4)))
	q := geom.Pt(2, 2)
	loc, err := e.Triangulation().Locate(q)
	if err != nil {
		t.Fatal(err)
	}
	if loc.Kind != cdt.OnEdge {
		t.Skipf("query is not on an edge in this triangulation (%v)", loc.Kind)
	}
	other := e.Triangulation().Face(loc.Face).Neighbor(loc.Edge)

	a, err := e.RegionFrom(q, loc.Face)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.RegionFrom(q, other)
	if err != nil {
		t.Fatal(err)
	}
	if !sameCycle(a, b) {
		t.Errorf("regions differ between incident faces: %v vs %v", a, b)
	}
}

func TestStepLimit(t *testing.T) {
	e := newEngine(t, obstacleRoom(), WithStepLimit(1))
	_, err := e.Region(geom.Pt(2, 2))
	if !errors.Is(err, errors.ErrCodeStepLimitExceeded) {
		t.Errorf("error = %v, want %s", err, errors.ErrCodeStepLimitExceeded)
	}
}

func TestTraceSteps(t *testing.T) {
	e := newEngine(t, ring(geom.Pt(0, 0), geom.Pt(4, 0), geom.Pt(4, 4), geom.Pt(0, 4)))
	q := pt(t, "7/2", "1/3")
	tr, err := e.Trace(q)
	if err != nil {
		t.Fatal(err)
	}
	// The only free edge is the diagonal, crossed once.
	if tr.Steps != 1 {
		t.Errorf("Steps = %d, want 1", tr.Steps)
	}
	loc, err := e.Triangulation().Locate(q)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Face != loc.Face {
		t.Errorf("Face = %d, want %d", tr.Face, loc.Face)
	}
}

func TestTraceStepsBounded(t *testing.T) {
	pillar := append(squareRoom(10), ring(geom.Pt(4, 4), geom.Pt(6, 4), geom.Pt(6, 6), geom.Pt(4, 6))...)

	tests := []struct {
		name  string
		walls []geom.Segment
		q     geom.Point
	}{
		{"obstacle", obstacleRoom(), geom.Pt(2, 2)},
		{"obstacle far side", obstacleRoom(), pt(t, "17/2", "9")},
		{"pillar", pillar, geom.Pt(1, 2)},
		{"pillar corner", pillar, pt(t, "19/2", "1/2")},
		{"reflex corner", lRoom(), pt(t, "1/2", "1/2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, tt.walls)
			tr, err := e.Trace(tt.q)
			if err != nil {
				t.Fatal(err)
			}
			f := e.Triangulation().Face(tr.Face)
			seeds := 0
			for i := 0; i < 3; i++ {
				if !f.IsBlocked(i) {
					seeds++
				}
			}
			// Each seed sector enters every face at most once.
			faces := e.Triangulation().Stats().Faces
			if tr.Steps > faces*seeds {
				t.Errorf("Steps = %d, want at most %d faces × %d seeds", tr.Steps, faces, seeds)
			}
			if seeds > 0 && tr.Steps == 0 {
				t.Error("Steps = 0 with open seed edges")
			}
		})
	}
}
