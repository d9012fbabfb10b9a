package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
	"github.com/matzehuels/sightline/pkg/pipeline"
	"github.com/matzehuels/sightline/pkg/scene"
)

// queryFlags holds the flags of the query command.
type queryFlags struct {
	points     []string
	names      []string
	formats    string
	output     string
	noCache    bool
	refresh    bool
	workers    int
	stepLimit  int
	regularize bool
	labels     bool
	width      int
	height     int
}

// queryCommand creates the query command.
func (c *CLI) queryCommand() *cobra.Command {
	var f queryFlags

	cmd := &cobra.Command{
		Use:   "query <scene>",
		Short: "Compute the regions visible from observers in a scene",
		Long: `Compute the exact region visible from each observer of a scene.

By default every observer declared in the scene is queried. Use --name to pick
some of them, or --observer to query ad-hoc points instead.`,
		Example: `  sightline query room.toml
  sightline query room.toml --name guard -f svg,json
  sightline query room.yaml --observer 2,3 --observer "7/2,1/3" -o out/room.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd, args[0], f)
		},
	}

	cmd.Flags().StringArrayVarP(&f.points, "observer", "q", nil, "ad-hoc observer as x,y (repeatable)")
	cmd.Flags().StringSliceVarP(&f.names, "name", "n", nil, "scene observers to query (default all)")
	cmd.Flags().StringVarP(&f.formats, "format", "f", "", "output formats: svg, png, pdf, json, dot (comma-separated)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (single format) or base path")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute even if results are cached")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent queries (default from config)")
	cmd.Flags().IntVar(&f.stepLimit, "step-limit", 0, "maximum faces entered per query (default from config)")
	cmd.Flags().BoolVar(&f.regularize, "regularize", false, "drop antennas and isolated points from regions")
	cmd.Flags().BoolVar(&f.labels, "labels", false, "label observers in drawings")
	cmd.Flags().IntVar(&f.width, "width", 0, "drawing width in pixels")
	cmd.Flags().IntVar(&f.height, "height", 0, "drawing height in pixels")

	return cmd
}

func (c *CLI) runQuery(cmd *cobra.Command, input string, f queryFlags) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	p := newPrinter(cmd.OutOrStdout())

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	sc, err := scene.Load(input)
	if err != nil {
		return err
	}

	opts := cfg.PipelineOptions()
	flags := cmd.Flags()
	if flags.Changed("workers") {
		opts.Workers = f.workers
	}
	if flags.Changed("step-limit") {
		opts.StepLimit = f.stepLimit
	}
	if flags.Changed("regularize") {
		opts.Regularize = f.regularize
	}
	if flags.Changed("width") {
		opts.Width = f.width
	}
	if flags.Changed("height") {
		opts.Height = f.height
	}
	opts.Observers = f.names
	opts.Refresh = f.refresh
	opts.Labels = f.labels
	opts.Formats = pipeline.ParseFormats(f.formats)
	opts.Logger = logger
	for _, s := range f.points {
		pt, err := parseObserver(s)
		if err != nil {
			return err
		}
		opts.Points = append(opts.Points, pt)
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, f.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	spin := newSpinner(ctx, cmd.ErrOrStderr(), "Computing visibility...")
	spin.Start()
	res, err := runner.Execute(ctx, sc, opts)
	spin.Stop()
	if err != nil {
		return err
	}
	prog.done("Computed regions", "count", len(res.Regions), "cached", res.CacheInfo.RegionHits)

	p.info("Scene %s", StyleTitle.Render(sc.Name))
	p.facts(!res.CacheInfo.Built,
		fmt.Sprintf("%d vertices", res.Triangulation.Vertices),
		fmt.Sprintf("%d faces", res.Triangulation.Faces),
		fmt.Sprintf("%d constrained edges", res.Triangulation.Constrained))
	for _, r := range res.Regions {
		p.keyValue(r.Observer, fmt.Sprintf("area %s · %d vertices · at %s",
			StyleNumber.Render(r.Area), r.Vertices, r.At))
	}
	if n := res.CacheInfo.RegionHits; n > 0 {
		p.detail("%d of %d regions from cache", n, len(res.Regions))
	}

	if len(res.Artifacts) == 0 {
		return nil
	}
	paths, err := writeArtifacts(res.Artifacts, opts.Formats, f.output, input)
	if err != nil {
		return err
	}
	p.success("Wrote %d files", len(paths))
	for _, path := range paths {
		p.file(path)
	}
	return nil
}

// parseObserver parses an "x,y" observer flag. Coordinates may be integers,
// decimals or fractions.
func parseObserver(s string) (geom.Point, error) {
	x, y, ok := strings.Cut(s, ",")
	if !ok || strings.Contains(y, ",") {
		return geom.Point{}, errors.New(errors.ErrCodeInvalidObserver, "observer %q must be x,y", s)
	}
	pt, err := geom.ParsePoint(x, y)
	if err != nil {
		return geom.Point{}, errors.Wrap(errors.ErrCodeInvalidObserver, err, "observer %q", s)
	}
	return pt, nil
}

// writeArtifacts writes one file per format and returns the paths in format
// order.
func writeArtifacts(artifacts map[string][]byte, formats []string, output, input string) ([]string, error) {
	base := basePath(output, input)
	single := len(formats) == 1 && output != "" && hasFormatExt(output)

	var paths []string
	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			continue
		}
		path := base + "." + format
		if single {
			path = output
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return paths, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// basePath derives the path that format extensions are appended to. Without
// an output it is the input path minus its extension.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	if hasFormatExt(output) {
		return strings.TrimSuffix(output, filepath.Ext(output))
	}
	return output
}

func hasFormatExt(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return ext != "" && pipeline.ValidFormats[ext]
}
