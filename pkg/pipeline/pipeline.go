// Package pipeline runs visibility queries for whole scenes.
//
// This package implements the triangulate → query → render pipeline shared
// by the CLI and the HTTP service. Results are cached per scene fingerprint
// and observer, so re-running a scene only computes what changed.
//
// # Stages
//
//  1. Build: node the scene's walls and triangulate them (skipped when every
//     requested result is cached)
//  2. Query: compute and assemble the region seen from each observer, with
//     bounded concurrency
//  3. Render: produce the requested artifacts (SVG, PNG, PDF, JSON, DOT)
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, sc, pipeline.Options{
//	    Formats: []string{pipeline.FormatSVG},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts[pipeline.FormatSVG]
package pipeline

import (
	"fmt"
	"io"
	"math/big"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sightline/pkg/cache"
	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
	"github.com/matzehuels/sightline/pkg/render"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultStepLimit caps the faces one query may enter. It is far above
	// what any real scene needs and only guards against runaway input.
	DefaultStepLimit = 1_000_000

	// DefaultWidth and DefaultHeight are the drawing size in pixels.
	DefaultWidth  = render.DefaultWidth
	DefaultHeight = render.DefaultHeight
)

// DefaultWorkers is the default query concurrency.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// Output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatJSON = "json"
	FormatDOT  = "dot"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatJSON: true,
	FormatDOT:  true,
}

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run. It supports JSON for API requests.
type Options struct {
	// Observers selects scene observers by name. Empty means all of them.
	Observers []string `json:"observers,omitempty"`

	// Points adds ad-hoc observers, named q1, q2, ...
	Points []geom.Point `json:"points,omitempty"`

	Workers    int  `json:"workers,omitempty"`
	StepLimit  int  `json:"step_limit,omitempty"`
	Regularize bool `json:"regularize,omitempty"`
	Refresh    bool `json:"refresh,omitempty"`

	// Render options
	Formats []string `json:"formats,omitempty"`
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
	Labels  bool     `json:"labels,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workers must not be negative")
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.StepLimit < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "step limit must not be negative")
	}
	if o.StepLimit == 0 {
		o.StepLimit = DefaultStepLimit
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ValidateFormat checks that a format is supported.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: svg, png, pdf, json, dot)", format)
	}
	return nil
}

// ValidateFormats checks every format.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ParseFormats splits a comma-separated format list.
func ParseFormats(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// RegionKeyOpts returns the cache key options for region lookups.
func (o *Options) RegionKeyOpts() cache.RegionKeyOpts {
	return cache.RegionKeyOpts{StepLimit: o.StepLimit, Regularize: o.Regularize}
}

// ArtifactKeyOpts returns the cache key options for one artifact.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{Format: format, Width: float64(o.Width), Height: float64(o.Height), Labels: o.Labels}
}

// wants reports whether format was requested.
func (o *Options) wants(format string) bool {
	for _, f := range o.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// =============================================================================
// Results
// =============================================================================

// Region is the assembled region seen from one observer.
type Region struct {
	Observer string       `json:"observer"`
	At       geom.Point   `json:"at"`
	Boundary []geom.Point `json:"boundary"`
	Area     string       `json:"area"`
	Vertices int          `json:"vertices"`
}

// AreaRat returns the exact area.
func (r Region) AreaRat() *big.Rat {
	a, ok := new(big.Rat).SetString(r.Area)
	if !ok {
		return new(big.Rat)
	}
	return a
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Fingerprint identifies the scene geometry.
	Fingerprint string `json:"fingerprint"`

	// Triangulation describes the triangulated scene.
	Triangulation cdt.Stats `json:"triangulation"`

	// Regions holds one entry per observer, in request order.
	Regions []Region `json:"regions"`

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte `json:"-"`

	Stats     Stats     `json:"-"`
	CacheInfo CacheInfo `json:"-"`
}

// Stats contains timing information.
type Stats struct {
	BuildTime  time.Duration
	QueryTime  time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks which results came from the cache.
type CacheInfo struct {
	StatsHit   bool // triangulation statistics were cached
	RegionHits int  // number of regions served from cache
	Built      bool // a triangulation was built in this run
	RenderHit  bool // every artifact came from cache
}

func (c CacheInfo) String() string {
	return fmt.Sprintf("stats=%v regions=%d built=%v render=%v", c.StatsHit, c.RegionHits, c.Built, c.RenderHit)
}
