package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fuunylmz/Re-aniname/internal/app"
	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/ui"
)

// errBatchFailed makes the process exit non-zero when files failed.
var errBatchFailed = errors.New("some files failed")

type organizeFlags struct {
	output    string
	mode      string
	workers   int
	minSizeMB int
	recursive bool
	overwrite bool
	dryRun    bool
	noHistory bool
	asJSON    bool
}

func newOrganizeCmd() *cobra.Command {
	var f organizeFlags

	cmd := &cobra.Command{
		Use:   "organize [source]",
		Short: "Identify, rename and place video files into the library",
		Long: `Organize every video file under source (or the single source file) into
the output library. Source defaults to [library].scan_path.

Files already present at their destination are left alone, so running the
same batch twice is safe. Ctrl+C stops the batch: files in progress finish,
files not yet started are reported as skipped.

Examples:
  reaniname organize /downloads --output /media --mode link
  reaniname organize /downloads/Show.S01E01.mkv --dry-run
  reaniname organize --preset anime --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrganize(cmd, args, f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "library root (default: [library].output_dir)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "placement mode: move, copy, link, symlink")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "concurrent files (default: [pipeline].workers)")
	cmd.Flags().IntVar(&f.minSizeMB, "min-size-mb", -1, "skip files smaller than this (default: [library].min_size_mb)")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", true, "descend into subdirectories")
	cmd.Flags().BoolVarP(&f.overwrite, "force", "f", false, "replace existing destination files")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "compute destinations without touching files")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record the batch in history")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the batch report as JSON")

	return cmd
}

func runOrganize(cmd *cobra.Command, args []string, f organizeFlags) error {
	var bar *ui.ProgressBar
	if !f.asJSON {
		bar = ui.NewProgressBar(cmd.ErrOrStderr(), "organize")
	}
	opts := app.Options{}
	if bar != nil {
		opts.Progress = bar.Func()
	}

	a, cleanup, err := setup(opts, func(cfg *config.Config) {
		if f.output != "" {
			cfg.Library.OutputDir = f.output
		}
		if f.mode != "" {
			cfg.Library.Mode = f.mode
		}
		if f.workers > 0 {
			cfg.Pipeline.Workers = f.workers
		}
		if f.minSizeMB >= 0 {
			cfg.Library.MinSizeMB = f.minSizeMB
		}
		if cmd.Flags().Changed("recursive") {
			cfg.Library.Recursive = f.recursive
		}
		if f.overwrite {
			cfg.Library.Overwrite = true
		}
		if f.noHistory {
			cfg.History.Enabled = false
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	source := a.Config.Library.ScanPath
	if len(args) > 0 {
		source = args[0]
	}
	if source == "" {
		return fmt.Errorf("no source given (pass a path or set [library].scan_path)")
	}

	batchOpts, scanOpts, err := pipeline.OptionsFromConfig(a.Config)
	if err != nil {
		return err
	}
	batchOpts.Placement.DryRun = f.dryRun

	report, err := a.Pipeline.Organize(cmd.Context(), source, scanOpts, batchOpts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		if len(report.Files) == 0 {
			ui.InfoMsg(out, "No video files found under %s", source)
			return nil
		}
		fmt.Fprintln(out, ui.ReportTable(report))
		ui.ReportSummary(out, report)
		if report.DryRun {
			ui.InfoMsg(out, "Dry run: nothing was written")
		}
	}

	if report.Summary.Failed > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Error(fmt.Sprintf("%d of %d files failed", report.Summary.Failed, report.Summary.Total)))
		return errBatchFailed
	}
	return nil
}
