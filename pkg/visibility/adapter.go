package visibility

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
)

// EdgeSource supplies the opaque edges of a planar subdivision.
type EdgeSource interface {
	Edges() []geom.Segment
}

// Segments adapts a plain segment slice to EdgeSource.
type Segments []geom.Segment

// Edges implements EdgeSource.
func (s Segments) Edges() []geom.Segment { return s }

// Adapter owns the triangulation built from an input subdivision and hands
// out read-only engines over it.
//
// Queries borrow the engine through View and may run concurrently. Attach
// and Detach wait for every running View to finish, and no View starts while
// they run.
type Adapter struct {
	mu          sync.RWMutex
	tri         *cdt.Triangulation
	engine      *Engine
	fingerprint string
	builds      int

	opts   []Option
	logger *log.Logger
}

// NewAdapter creates a detached adapter. Options are applied to every engine
// it creates.
func NewAdapter(logger *log.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{logger: logger, opts: opts}
}

// Fingerprint returns a stable hash of an edge list. Edge order and
// orientation do not affect the result.
func Fingerprint(edges []geom.Segment) string {
	keys := make([]string, len(edges))
	for i, e := range edges {
		keys[i] = e.Key()
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Attach builds the triangulation for src, replacing any previous one.
// Attaching input identical to the current one does not rebuild.
func (a *Adapter) Attach(src EdgeSource) error {
	edges := src.Edges()
	fp := Fingerprint(edges)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tri != nil && a.fingerprint == fp {
		a.logger.Debug("triangulation reused", "fingerprint", fp[:12])
		return nil
	}

	start := time.Now()
	tri, err := cdt.Build(edges)
	if err != nil {
		return err
	}
	a.tri = tri
	a.engine = NewEngine(tri, a.opts...)
	a.fingerprint = fp
	a.builds++

	st := tri.Stats()
	a.logger.Debug("built triangulation",
		"edges", len(edges),
		"vertices", st.Vertices,
		"faces", st.Faces,
		"constrained", st.Constrained,
		"duration", time.Since(start))
	return nil
}

// Detach releases the triangulation. Subsequent views fail with
// ErrCodeDetached until the next Attach.
func (a *Adapter) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tri = nil
	a.engine = nil
	a.fingerprint = ""
}

// IsAttached reports whether a triangulation is currently held.
func (a *Adapter) IsAttached() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tri != nil
}

// Fingerprint returns the fingerprint of the attached input, or "".
func (a *Adapter) Fingerprint() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fingerprint
}

// Builds returns how many triangulations the adapter has built.
func (a *Adapter) Builds() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.builds
}

// Stats returns statistics of the attached triangulation.
func (a *Adapter) Stats() (cdt.Stats, error) {
	var st cdt.Stats
	err := a.View(func(e *Engine) error {
		st = e.Triangulation().Stats()
		return nil
	})
	return st, err
}

// View calls fn with the current engine. The engine must not be retained
// after fn returns.
func (a *Adapter) View(fn func(*Engine) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.engine == nil {
		return errors.New(errors.ErrCodeDetached, "no triangulation attached")
	}
	return fn(a.engine)
}

// Region is a shorthand for a View computing the region visible from q.
func (a *Adapter) Region(q geom.Point) ([]geom.Point, error) {
	var out []geom.Point
	err := a.View(func(e *Engine) error {
		var err error
		out, err = e.Region(q)
		return err
	})
	return out, err
}
