package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/pipeline"
	"github.com/matzehuels/sightline/pkg/render"
	"github.com/matzehuels/sightline/pkg/scene"
	"github.com/matzehuels/sightline/pkg/visibility"
)

// triangulateCommand creates the triangulate command.
func (c *CLI) triangulateCommand() *cobra.Command {
	var (
		formats string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "triangulate <scene>",
		Short: "Build and inspect the constrained triangulation of a scene",
		Long: `Build the constrained triangulation of a scene and print its size.

With --format, also write the dual graph of the bounded faces: dot writes the
Graphviz source, svg lays it out with Graphviz, json writes the statistics.`,
		Example: `  sightline triangulate room.toml
  sightline triangulate room.toml -f dot,svg -o room-dual`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			p := newPrinter(cmd.OutOrStdout())

			fs := pipeline.ParseFormats(formats)
			for _, f := range fs {
				switch f {
				case pipeline.FormatDOT, pipeline.FormatSVG, pipeline.FormatJSON:
				default:
					return errors.New(errors.ErrCodeInvalidFormat, "triangulate writes dot, svg or json, not %q", f)
				}
			}

			sc, err := scene.Load(args[0])
			if err != nil {
				return err
			}
			arr := sc.Arrangement()
			fp := visibility.Fingerprint(arr.Edges())

			runner := pipeline.NewRunner(nil, nil, logger)
			prog := newProgress(logger)
			a, err := runner.Attach(ctx, arr, fp, pipeline.Options{})
			if err != nil {
				return err
			}
			defer a.Detach()
			prog.done("Built triangulation", "scene", sc.Name)

			var (
				st  cdt.Stats
				dot string
			)
			err = a.View(func(e *visibility.Engine) error {
				tri := e.Triangulation()
				st = tri.Stats()
				dot = render.DualDOT(tri)
				return nil
			})
			if err != nil {
				return err
			}

			p.info("Scene %s", StyleTitle.Render(sc.Name))
			p.keyValue("fingerprint", fp[:12])
			p.keyValue("vertices", fmt.Sprint(st.Vertices))
			p.keyValue("faces", fmt.Sprintf("%d (%d bounded)", st.Faces, st.Bounded))
			p.keyValue("edges", fmt.Sprintf("%d (%d constrained)", st.Edges, st.Constrained))

			if len(fs) == 0 {
				return nil
			}
			artifacts := make(map[string][]byte, len(fs))
			for _, f := range fs {
				switch f {
				case pipeline.FormatDOT:
					artifacts[f] = []byte(dot)
				case pipeline.FormatSVG:
					svg, err := render.RenderDOT(ctx, dot)
					if err != nil {
						return fmt.Errorf("render dual graph: %w", err)
					}
					artifacts[f] = svg
				case pipeline.FormatJSON:
					data, err := json.MarshalIndent(struct {
						Fingerprint string    `json:"fingerprint"`
						Stats       cdt.Stats `json:"triangulation"`
					}{fp, st}, "", "  ")
					if err != nil {
						return err
					}
					artifacts[f] = data
				}
			}

			paths, err := writeArtifacts(artifacts, fs, output, args[0])
			if err != nil {
				return err
			}
			p.success("Wrote %d files", len(paths))
			for _, path := range paths {
				p.file(path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&formats, "format", "f", "", "output formats: dot, svg, json (comma-separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path")

	return cmd
}
