package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/probelens/probelens/pkg/cache"
	"github.com/probelens/probelens/pkg/engine"
	perrors "github.com/probelens/probelens/pkg/errors"
	"github.com/probelens/probelens/pkg/render"
)

// renderFormats maps each output format to its file extension.
var renderFormats = map[string]string{
	"svg":  ".svg",
	"png":  ".png",
	"dot":  ".dot",
	"json": ".json",
}

// newRenderCmd creates the render command, which turns a saved snapshot into
// a visual artifact (SVG, PNG, DOT or normalized JSON).
func newRenderCmd(configPath *string) *cobra.Command {
	var (
		format  string
		out     string
		noCache bool
		title   string
		flat    bool
	)

	cmd := &cobra.Command{
		Use:   "render <snapshot.json>",
		Short: "Render a snapshot to SVG, PNG, DOT or JSON",
		Long: `Render reads a snapshot produced by replay (or fetched from a running
server) and writes a visual artifact. The built-in SVG renderer emits a
self-contained document; png and the graphviz-backed layouts shell through
the embedded graphviz engine. Artifacts are cached by snapshot content, so
re-rendering an unchanged snapshot is free.`,
		Example: `  probelens render snapshot.json
  probelens render snapshot.json --format png --out graph.png
  probelens render snapshot.json --format dot | dot -Tsvg > graph.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			if _, ok := renderFormats[format]; !ok {
				return perrors.New(perrors.ErrCodeInvalidFormat, "unsupported format %q (expected svg, png, dot or json)", format)
			}

			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}

			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return perrors.Wrap(perrors.ErrCodeFileNotFound, err, "read snapshot %s", args[0])
			}
			snap, err := render.DecodeJSON(data)
			if err != nil {
				return err
			}

			backend, err := newCache(ctx, cfg, noCache)
			if err != nil {
				logger.Warn("cache unavailable, rendering without it", "error", err)
				backend = cache.NewNullCache()
			}
			defer backend.Close()

			// The graphviz rasterization can take a while on big graphs.
			var sp *Spinner
			if format == "png" {
				sp = newSpinnerWithContext(ctx, "Rendering with graphviz")
				sp.Start()
			}
			artifact, cached, err := renderArtifact(ctx, backend, snap, format, title, flat)
			if sp != nil {
				if err != nil {
					sp.StopWithError("Render failed")
				} else {
					sp.Stop()
				}
			}
			if err != nil {
				return err
			}

			if out == "" && format != "json" && format != "dot" {
				out = outputPath(args[0], renderFormats[format])
			}
			if out == "" || out == "-" {
				if _, err := os.Stdout.Write(artifact); err != nil {
					return perrors.Wrap(perrors.ErrCodeInternal, err, "write artifact")
				}
				return nil
			}
			if err := os.WriteFile(out, artifact, 0o644); err != nil {
				return perrors.Wrap(perrors.ErrCodeInternal, err, "write artifact %s", out)
			}

			printSuccess("Rendered %s", format)
			printStats(len(snap.Nodes), len(snap.Edges), cached)
			printFile(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "svg", "output format: svg, png, dot or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: derived from input, or stdout for dot/json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the artifact cache")
	cmd.Flags().StringVar(&title, "title", "", "title embedded in the SVG output")
	cmd.Flags().BoolVar(&flat, "flat", false, "omit expansion overlays from the SVG output")
	return cmd
}

// renderArtifact produces the requested artifact, consulting the cache first.
// The cache key is derived from snapshot content with the capture timestamp
// zeroed, so replays of the same stream share artifacts.
func renderArtifact(ctx context.Context, backend cache.Cache, snap engine.Snapshot, format, title string, flat bool) ([]byte, bool, error) {
	hashable := snap
	hashable.TakenAt = time.Time{}
	stable, err := render.EncodeJSON(hashable)
	if err != nil {
		return nil, false, err
	}
	if format == "json" {
		return stable, false, nil
	}

	keyer := cache.NewDefaultKeyer()
	key := keyer.ArtifactKey(cache.Hash(stable), cache.ArtifactKeyOpts{Format: format + cacheVariant(title, flat)})
	if data, ok, err := backend.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}

	var artifact []byte
	switch format {
	case "svg":
		opts := []render.SVGOption{}
		if title != "" {
			opts = append(opts, render.WithTitle(title))
		}
		if flat {
			opts = append(opts, render.WithoutOverlays())
		}
		artifact = render.SVG(snap, opts...)
	case "dot":
		artifact = []byte(render.ToDOT(snap))
	case "png":
		artifact, err = render.GraphvizPNG(ctx, render.ToDOT(snap))
		if err != nil {
			return nil, false, err
		}
	}

	// Best effort; a failed cache write never fails the render.
	_ = backend.Set(ctx, key, artifact, 24*time.Hour)
	return artifact, false, nil
}

// cacheVariant folds presentation flags into the format component of the
// artifact key, since they change the bytes produced for the same snapshot.
func cacheVariant(title string, flat bool) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "+title=%s", title)
	}
	if flat {
		b.WriteString("+flat")
	}
	return b.String()
}

// outputPath swaps the extension of the input path for the artifact's.
func outputPath(in, ext string) string {
	if i := strings.LastIndex(in, "."); i > 0 {
		return in[:i] + ext
	}
	return in + ext
}
