package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fuunylmz/Re-aniname/internal/app"
	"github.com/fuunylmz/Re-aniname/internal/classifier"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/naming"
	"github.com/fuunylmz/Re-aniname/internal/resolver"
	"github.com/fuunylmz/Re-aniname/internal/ui"
)

type analysis struct {
	Input       string           `json:"input"`
	MediaInfo   *media.MediaInfo `json:"media_info,omitempty"`
	Destination string           `json:"destination,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func newAnalyzeCmd() *cobra.Command {
	var (
		parent string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file-or-name>...",
		Short: "Show how files would be identified and named",
		Long: `Classify and resolve each argument without touching the filesystem.

An existing file is analyzed with its folder name and neighbouring files as
hints. Any other argument is treated as a bare release name.

All arguments share one title cache, as files of one batch do.

Examples:
  reaniname analyze "[SubsPlease] Sousou no Frieren - 05 (1080p).mkv"
  reaniname analyze /downloads/Show/*.mkv --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup(app.Options{}, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			cache := resolver.NewCache()
			results := make([]analysis, 0, len(args))
			for _, arg := range args {
				res := analysis{Input: arg}
				info, err := analyzeOne(cmd, a, arg, parent, cache)
				if err != nil {
					res.Error = err.Error()
				} else {
					res.MediaInfo = &info
					if dst, err := naming.DestinationPath(info, filepath.Ext(arg)); err == nil {
						res.Destination = dst
					} else {
						res.Error = err.Error()
					}
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, results)
			}
			for _, res := range results {
				ui.Section(out, filepath.Base(res.Input))
				if res.MediaInfo != nil {
					fmt.Fprintln(out, ui.MediaInfoTable(*res.MediaInfo))
				}
				if res.Destination != "" {
					fmt.Fprintln(out, "→ "+ui.Path(res.Destination))
				}
				if res.Error != "" {
					ui.ErrorMsg(out, "%s", res.Error)
				}
			}
			stats := cache.Stats()
			fmt.Fprintln(out, ui.Dim(fmt.Sprintf("catalog lookups: %d, cache hits: %d", stats.Misses, stats.Hits)))
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "parent folder name hint for bare release names")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func analyzeOne(cmd *cobra.Command, a *app.App, arg, parent string, cache *resolver.Cache) (media.MediaInfo, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			abs = arg
		}
		return a.Resolver.Resolve(cmd.Context(), media.NewScannedFile(abs, info.Size()), cache)
	}
	return a.Resolver.ResolveName(cmd.Context(), filepath.Base(arg), classifier.Hints{ParentFolder: parent}, cache)
}
