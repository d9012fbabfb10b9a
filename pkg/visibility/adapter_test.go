package visibility

import (
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestAdapterLifecycle(t *testing.T) {
	a := NewAdapter(quietLogger())
	if a.IsAttached() {
		t.Fatal("new adapter should be detached")
	}
	if _, err := a.Region(geom.Pt(1, 1)); !errors.Is(err, errors.ErrCodeDetached) {
		t.Fatalf("Region on detached adapter: %v", err)
	}

	if err := a.Attach(Segments(squareRoom(4))); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if !a.IsAttached() {
		t.Fatal("adapter should be attached")
	}
	got, err := a.Region(pt(t, "1", "1/2"))
	if err != nil {
		t.Fatalf("Region: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("Region() = %v, want 4 corners", got)
	}

	st, err := a.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Faces != 2 {
		t.Errorf("Stats().Faces = %d, want 2", st.Faces)
	}

	a.Detach()
	if a.IsAttached() {
		t.Error("adapter should be detached")
	}
	if a.Fingerprint() != "" {
		t.Error("fingerprint should be cleared on detach")
	}
	err = a.View(func(*Engine) error { return nil })
	if !errors.Is(err, errors.ErrCodeDetached) {
		t.Errorf("View after Detach: %v", err)
	}
}

func TestAdapterBuildsOncePerInput(t *testing.T) {
	a := NewAdapter(quietLogger())
	walls := squareRoom(4)

	if err := a.Attach(Segments(walls)); err != nil {
		t.Fatal(err)
	}
	reordered := []geom.Segment{walls[2].Reverse(), walls[0], walls[3], walls[1].Reverse()}
	if err := a.Attach(Segments(reordered)); err != nil {
		t.Fatal(err)
	}
	if a.Builds() != 1 {
		t.Errorf("Builds() = %d after re-attaching identical input, want 1", a.Builds())
	}

	if err := a.Attach(Segments(obstacleRoom())); err != nil {
		t.Fatal(err)
	}
	if a.Builds() != 2 {
		t.Errorf("Builds() = %d, want 2", a.Builds())
	}
}

func TestAdapterKeepsPreviousOnFailedAttach(t *testing.T) {
	a := NewAdapter(quietLogger())
	if err := a.Attach(Segments(squareRoom(4))); err != nil {
		t.Fatal(err)
	}
	fp := a.Fingerprint()

	bad := Segments{geom.Seg(geom.Pt(0, 0), geom.Pt(0, 0))}
	if err := a.Attach(bad); !errors.Is(err, errors.ErrCodeDegenerateInput) {
		t.Fatalf("Attach(degenerate) error = %v", err)
	}
	if a.Fingerprint() != fp {
		t.Error("failed attach replaced the triangulation")
	}
}

func TestAdapterStepLimitOption(t *testing.T) {
	a := NewAdapter(quietLogger(), WithStepLimit(1))
	if err := a.Attach(Segments(obstacleRoom())); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Region(geom.Pt(2, 2)); !errors.Is(err, errors.ErrCodeStepLimitExceeded) {
		t.Errorf("Region error = %v, want %s", err, errors.ErrCodeStepLimitExceeded)
	}
}

func TestAdapterConcurrentViews(t *testing.T) {
	a := NewAdapter(quietLogger())
	if err := a.Attach(Segments(obstacleRoom())); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := geom.Pt(1+int64(i%4), 1+int64(i/4))
			if _, err := a.Region(q); err != nil && !errors.Is(err, errors.ErrCodePointNotLocated) {
				errs <- err
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.Attach(Segments(obstacleRoom()))
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent query: %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := squareRoom(4)
	b := []geom.Segment{a[3], a[1].Reverse(), a[0], a[2]}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint depends on edge order or orientation")
	}
	if Fingerprint(a) == Fingerprint(squareRoom(5)) {
		t.Error("different inputs share a fingerprint")
	}
}
