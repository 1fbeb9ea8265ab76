package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fuunylmz/Re-aniname/internal/scanner"
	"github.com/fuunylmz/Re-aniname/internal/ui"
)

func newScanCmd() *cobra.Command {
	var (
		recursive bool
		minSizeMB int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "List the video files a batch would pick up",
		Long: `List video files under a directory (or a single file) that pass the
extension and size filters. Nothing is classified or moved.

Examples:
  reaniname scan /downloads
  reaniname scan /downloads --min-size-mb 0 --recursive=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := scanner.Options{
				Recursive:    recursive,
				MinSizeBytes: int64(minSizeMB) << 20,
			}
			files, err := scanner.New(nil).ScanPath(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, files)
			}
			if len(files) == 0 {
				ui.InfoMsg(out, "No video files found under %s", args[0])
				return nil
			}

			var total int64
			for _, f := range files {
				total += f.Size
			}
			fmt.Fprintln(out, ui.FilesTable(files))
			fmt.Fprintf(out, "%d files, %s\n", len(files), ui.FormatBytes(total))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "descend into subdirectories")
	cmd.Flags().IntVar(&minSizeMB, "min-size-mb", int(scanner.DefaultMinSize>>20), "skip files smaller than this")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}
