// Command zonedex builds a disk-resident inverted index over a corpus
// of zoned XML documents. Flag parsing and glob expansion are the
// out-of-scope "process entrypoint" collaborators spec.md §1 pins by
// interface only; everything downstream is pipeline.Run.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v2"

	"zonedex/internal/status"
	"zonedex/internal/tuning"
	"zonedex/pipeline"
)

func main() {
	app := &cli.App{
		Name:  "zonedex",
		Usage: "build a zoned inverted index over an XML corpus",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "input file glob (may be repeated); supports ** via doublestar",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "dest",
				Aliases:  []string{"d"},
				Usage:    "destination directory for the final dictionary",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "buffer-dir",
				Usage: "directory for intermediate sorted runs",
				Value: "",
			},
			&cli.StringSliceFlag{
				Name:     "zone",
				Aliases:  []string{"z"},
				Usage:    "XML element name to index (repeat in traversal order)",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "parallel parse workers (0 = derive from host topology)",
				Value: 0,
			},
			&cli.IntFlag{
				Name:  "tree-capacity",
				Usage: "max distinct terms per accumulator before spill (0 = derive from host memory)",
				Value: 0,
			},
			&cli.IntFlag{
				Name:  "block-size",
				Usage: "terms per front-coded block",
				Value: 6,
			},
			&cli.BoolFlag{
				Name:  "compress",
				Usage: "gzip-compress run and dictionary lexical/index files",
				Value: false,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		status.Errf("%v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	inputFiles, err := expandGlobs(c.StringSlice("input"))
	if err != nil {
		return fmt.Errorf("expanding --input: %w", err)
	}
	if len(inputFiles) == 0 {
		return fmt.Errorf("no input files matched the given --input globs")
	}

	profile := tuning.Default().Override(c.Int("workers"), 0, c.Int("tree-capacity"))

	bufferDir := c.String("buffer-dir")
	if bufferDir == "" {
		bufferDir = c.String("dest") + ".runs"
	}

	cfg := pipeline.Config{
		InputFiles:   inputFiles,
		Destination:  c.String("dest"),
		BufferDir:    bufferDir,
		Workers:      profile.Workers,
		TreeCapacity: profile.TreeCapacity,
		BlockSize:    c.Int("block-size"),
		Zones:        c.StringSlice("zone"),
		Compress:     c.Bool("compress"),
	}

	timer := status.NewTimer()
	result, err := pipeline.Run(context.Background(), cfg)
	if err != nil {
		return err
	}
	timer.ReportDuration("files", len(inputFiles))
	status.Notef("wrote %d terms (%d total lexemes) across %d spilled runs to %s",
		result.TermCount, result.TotalLexemes, result.RunCount, cfg.Destination)
	return nil
}

// expandGlobs resolves every doublestar pattern in patterns against the
// working directory, de-duplicating and sorting the result so the
// pipeline's file-to-docId manifest is stable across runs.
func expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			if !seen[pattern] {
				seen[pattern] = true
				out = append(out, pattern)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
