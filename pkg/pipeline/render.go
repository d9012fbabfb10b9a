package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matzehuels/sightline/pkg/cache"
	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/observability"
	"github.com/matzehuels/sightline/pkg/render"
	"github.com/matzehuels/sightline/pkg/scene"
	"github.com/matzehuels/sightline/pkg/visibility"
)

// pngScale doubles the resolution of PNG output.
const pngScale = 2.0

// RenderWithCacheInfo produces the requested artifacts for a result, reusing
// cached ones. It reports whether every artifact came from the cache. The
// adapter is only needed for the dot format and may be nil otherwise.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, sc *scene.Scene, res *Result, a *visibility.Adapter, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	start := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)

	resultHash, err := hashResult(res)
	if err != nil {
		return nil, false, err
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	var todo []string
	for _, f := range opts.Formats {
		key := r.Keyer.ArtifactKey(resultHash, opts.ArtifactKeyOpts(f))
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit && !opts.Refresh {
			observability.Cache().OnCacheHit(ctx, "artifact")
			artifacts[f] = data
			continue
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
		todo = append(todo, f)
	}

	if len(todo) > 0 {
		var tri *cdt.Triangulation
		if a != nil {
			_ = a.View(func(e *visibility.Engine) error {
				tri = e.Triangulation()
				return nil
			})
		}
		opts.Formats = todo
		fresh, err := Render(sc, res, tri, opts)
		if err != nil {
			observability.Pipeline().OnRenderComplete(ctx, todo, time.Since(start), err)
			return nil, false, err
		}
		for f, data := range fresh {
			artifacts[f] = data
			key := r.Keyer.ArtifactKey(resultHash, opts.ArtifactKeyOpts(f))
			if r.Cache.Set(ctx, key, data, cache.TTLArtifact) == nil {
				observability.Cache().OnCacheSet(ctx, "artifact", len(data))
			}
		}
	}

	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(start), nil)
	return artifacts, len(todo) == 0, nil
}

// Render generates output artifacts in the requested formats. The
// triangulation is required for the dot format only.
func Render(sc *scene.Scene, res *Result, tri *cdt.Triangulation, opts Options) (map[string][]byte, error) {
	views := make([]render.View, len(res.Regions))
	for i, reg := range res.Regions {
		views[i] = render.View{Name: reg.Observer, At: reg.At, Boundary: reg.Boundary}
	}
	ropts := render.Options{Width: opts.Width, Height: opts.Height, Labels: opts.Labels}

	var svg []byte
	drawing := func() []byte {
		if svg == nil {
			svg = render.SVG(sc, views, ropts)
		}
		return svg
	}

	artifacts := make(map[string][]byte)
	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data = drawing()
		case FormatPNG:
			data, err = render.ToPNG(drawing(), pngScale)
		case FormatPDF:
			data, err = render.ToPDF(drawing())
		case FormatJSON:
			data, err = json.MarshalIndent(res, "", "  ")
		case FormatDOT:
			if tri == nil {
				return nil, fmt.Errorf("dot output needs a triangulation")
			}
			data = []byte(render.DualDOT(tri))
		default:
			return nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func hashResult(res *Result) (string, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("hash result: %w", err)
	}
	return cache.Hash(data), nil
}
