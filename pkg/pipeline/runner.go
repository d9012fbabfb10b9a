package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/sightline/pkg/arrangement"
	"github.com/matzehuels/sightline/pkg/cache"
	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/observability"
	"github.com/matzehuels/sightline/pkg/scene"
	"github.com/matzehuels/sightline/pkg/visibility"
)

// Runner executes the pipeline with caching.
//
// The Runner holds no per-scene state, so one Runner can serve concurrent
// runs with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching; a nil keyer
// selects the default keyer.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs the complete build → query → render pipeline for a scene.
func (r *Runner) Execute(ctx context.Context, sc *scene.Scene, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	observers, err := SelectObservers(sc, opts)
	if err != nil {
		return nil, err
	}

	arr := sc.Arrangement()
	fp := visibility.Fingerprint(arr.Edges())
	result := &Result{Fingerprint: fp, Artifacts: make(map[string][]byte)}

	stats, statsHit := r.cachedStats(ctx, fp)
	result.CacheInfo.StatsHit = statsHit

	regions, missing := r.lookupRegions(ctx, fp, observers, opts)
	result.CacheInfo.RegionHits = len(observers) - len(missing)

	var adapter *visibility.Adapter
	if len(missing) > 0 || !statsHit || opts.wants(FormatDOT) {
		buildStart := time.Now()
		adapter, err = r.Attach(ctx, arr, fp, opts)
		if err != nil {
			return nil, fmt.Errorf("triangulate: %w", err)
		}
		defer adapter.Detach()
		result.Stats.BuildTime = time.Since(buildStart)
		result.CacheInfo.Built = true

		if stats, err = adapter.Stats(); err != nil {
			return nil, err
		}
		r.storeStats(ctx, fp, stats)
		r.Logger.Info("built triangulation",
			"vertices", stats.Vertices,
			"faces", stats.Faces,
			"constrained", stats.Constrained,
			"duration", result.Stats.BuildTime)
	}
	result.Triangulation = stats

	queryStart := time.Now()
	if err := r.fill(ctx, adapter, fp, observers, regions, missing, opts); err != nil {
		return nil, err
	}
	result.Regions = regions
	result.Stats.QueryTime = time.Since(queryStart)
	r.Logger.Info("computed regions",
		"observers", len(observers),
		"cached", result.CacheInfo.RegionHits,
		"duration", result.Stats.QueryTime)

	if len(opts.Formats) > 0 {
		renderStart := time.Now()
		artifacts, hit, err := r.RenderWithCacheInfo(ctx, sc, result, adapter, opts)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		result.Artifacts = artifacts
		result.CacheInfo.RenderHit = hit
		result.Stats.RenderTime = time.Since(renderStart)
		r.Logger.Info("rendered outputs",
			"formats", opts.Formats,
			"duration", result.Stats.RenderTime)
	}

	return result, nil
}

// Attach builds an adapter over a noded scene.
func (r *Runner) Attach(ctx context.Context, src visibility.EdgeSource, fp string, opts Options) (*visibility.Adapter, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	edges := len(src.Edges())
	start := time.Now()
	observability.Pipeline().OnBuildStart(ctx, fp, edges)

	a := visibility.NewAdapter(r.Logger, visibility.WithStepLimit(opts.StepLimit))
	err := a.Attach(src)
	faces := 0
	if err == nil {
		if st, serr := a.Stats(); serr == nil {
			faces = st.Faces
		}
	}
	observability.Pipeline().OnBuildComplete(ctx, fp, faces, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Query computes the regions seen from observers using an attached adapter,
// running up to opts.Workers queries at once. Results are cached and
// returned in observer order. The first failing query cancels the rest.
func (r *Runner) Query(ctx context.Context, a *visibility.Adapter, fp string, observers []scene.Observer, opts Options) ([]Region, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	out := make([]Region, len(observers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, o := range observers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reg, err := r.queryOne(gctx, a, fp, o, opts)
			if err != nil {
				return fmt.Errorf("observer %s at %s: %w", o.Name, o.At.Point, err)
			}
			out[i] = reg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Regions returns the regions seen from observers, serving cached ones and
// computing the rest with the attached adapter. It also reports how many
// came from the cache.
func (r *Runner) Regions(ctx context.Context, a *visibility.Adapter, fp string, observers []scene.Observer, opts Options) ([]Region, int, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, 0, err
	}
	regions, missing := r.lookupRegions(ctx, fp, observers, opts)
	if err := r.fill(ctx, a, fp, observers, regions, missing, opts); err != nil {
		return nil, 0, err
	}
	return regions, len(observers) - len(missing), nil
}

// lookupRegions serves what it can from the cache and returns the indexes
// of the observers still to compute.
func (r *Runner) lookupRegions(ctx context.Context, fp string, observers []scene.Observer, opts Options) ([]Region, []int) {
	regions := make([]Region, len(observers))
	var missing []int
	for i, o := range observers {
		if !opts.Refresh {
			if reg, ok := r.cachedRegion(ctx, fp, o, opts); ok {
				regions[i] = reg
				continue
			}
		}
		missing = append(missing, i)
	}
	return regions, missing
}

func (r *Runner) fill(ctx context.Context, a *visibility.Adapter, fp string, observers []scene.Observer, regions []Region, missing []int, opts Options) error {
	if len(missing) == 0 {
		return nil
	}
	todo := make([]scene.Observer, len(missing))
	for k, i := range missing {
		todo[k] = observers[i]
	}
	computed, err := r.Query(ctx, a, fp, todo, opts)
	if err != nil {
		return err
	}
	for k, i := range missing {
		regions[i] = computed[k]
	}
	return nil
}

func (r *Runner) queryOne(ctx context.Context, a *visibility.Adapter, fp string, o scene.Observer, opts Options) (Region, error) {
	start := time.Now()
	observability.Pipeline().OnQueryStart(ctx, fp, o.Name)

	reg, err := r.compute(a, o, opts)
	observability.Pipeline().OnQueryComplete(ctx, fp, o.Name, reg.Vertices, time.Since(start), err)
	if err != nil {
		return Region{}, err
	}
	r.Logger.Debug("region", "observer", o.Name, "vertices", reg.Vertices, "area", reg.Area)

	if data, err := json.Marshal(reg); err == nil {
		key := r.Keyer.RegionKey(fp, o.At.Key(), opts.RegionKeyOpts())
		if err := r.Cache.Set(ctx, key, data, cache.TTLResult); err == nil {
			observability.Cache().OnCacheSet(ctx, "region", len(data))
		}
	}
	return reg, nil
}

func (r *Runner) compute(a *visibility.Adapter, o scene.Observer, opts Options) (Region, error) {
	boundary, err := a.Region(o.At.Point)
	if err != nil {
		return Region{}, err
	}
	poly, err := arrangement.AssemblePolygon(boundary, arrangement.Options{Regularize: opts.Regularize})
	if err != nil {
		return Region{}, err
	}
	return Region{
		Observer: o.Name,
		At:       o.At.Point,
		Boundary: poly.Boundary,
		Area:     poly.Arr.Area().RatString(),
		Vertices: len(poly.Boundary),
	}, nil
}

func (r *Runner) cachedRegion(ctx context.Context, fp string, o scene.Observer, opts Options) (Region, bool) {
	key := r.Keyer.RegionKey(fp, o.At.Key(), opts.RegionKeyOpts())
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "region")
		return Region{}, false
	}
	var reg Region
	if err := json.Unmarshal(data, &reg); err != nil {
		observability.Cache().OnCacheMiss(ctx, "region")
		return Region{}, false
	}
	observability.Cache().OnCacheHit(ctx, "region")
	// The cached entry may have been computed under another observer name.
	reg.Observer = o.Name
	return reg, true
}

func (r *Runner) cachedStats(ctx context.Context, fp string) (cdt.Stats, bool) {
	var st cdt.Stats
	data, hit, err := r.Cache.Get(ctx, r.Keyer.StatsKey(fp))
	if err != nil || !hit || json.Unmarshal(data, &st) != nil {
		observability.Cache().OnCacheMiss(ctx, "stats")
		return cdt.Stats{}, false
	}
	observability.Cache().OnCacheHit(ctx, "stats")
	return st, true
}

func (r *Runner) storeStats(ctx context.Context, fp string, st cdt.Stats) {
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if r.Cache.Set(ctx, r.Keyer.StatsKey(fp), data, cache.TTLStats) == nil {
		observability.Cache().OnCacheSet(ctx, "stats", len(data))
	}
}

// SelectObservers resolves the observers a run queries: the named scene
// observers (all when none are named) followed by ad-hoc points.
func SelectObservers(sc *scene.Scene, opts Options) ([]scene.Observer, error) {
	var out []scene.Observer
	if len(opts.Observers) == 0 {
		out = append(out, sc.Observers...)
	} else {
		for _, name := range opts.Observers {
			o, ok := sc.Observer(name)
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidObserver, "scene has no observer %q", name)
			}
			out = append(out, o)
		}
	}
	if len(opts.Observers) == 0 && len(opts.Points) > 0 {
		// Ad-hoc points replace the scene's own observers.
		out = out[:0]
	}
	for i, p := range opts.Points {
		out = append(out, scene.Observer{Name: fmt.Sprintf("q%d", i+1), At: scene.C(p)})
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no observers to query")
	}
	return out, nil
}

// Close releases the runner's cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

var _ visibility.EdgeSource = (*arrangement.Arrangement)(nil)
