package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/fuunylmz/Re-aniname/internal/activity"
	"github.com/fuunylmz/Re-aniname/internal/database"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
)

// maxCell bounds path columns so tables stay readable in a terminal.
const maxCell = 60

// Table renders headers and rows; columns listed in right are right-aligned.
func Table(headers []string, rows [][]string, right ...int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if !IsTerminal() {
		tw.SetStyle(table.StyleLight)
	}

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		for _, c := range right {
			if c == i {
				cfg.Align = text.AlignRight
			}
		}
		configs = append(configs, cfg)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// FilesTable lists scan results.
func FilesTable(files []media.ScannedFile) string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Name, FormatBytes(f.Size), truncate(filepath.Dir(f.Path), maxCell)})
	}
	return Table([]string{"File", "Size", "Directory"}, rows, 1)
}

// MediaInfoTable renders one resolved record as key/value rows.
func MediaInfoTable(info media.MediaInfo) string {
	rows := [][]string{
		{"Type", Kind(info.Kind)},
		{"Title", info.Title},
	}
	if info.OriginalTitle != "" {
		rows = append(rows, []string{"Original title", info.OriginalTitle})
	}
	if y := info.YearOr(0); y > 0 {
		rows = append(rows, []string{"Year", strconv.Itoa(y)})
	}
	if info.Season != nil {
		rows = append(rows, []string{"Season", strconv.Itoa(*info.Season)})
	}
	if info.Episode != nil {
		rows = append(rows, []string{"Episode", strconv.Itoa(*info.Episode)})
	}
	for _, kv := range [][2]string{
		{"Resolution", info.Resolution},
		{"Source", info.Source},
		{"Group", info.Group},
	} {
		if kv[1] != "" {
			rows = append(rows, []string{kv[0], kv[1]})
		}
	}
	if info.CatalogID > 0 {
		rows = append(rows, []string{"Catalog id", strconv.FormatInt(info.CatalogID, 10)})
	}
	return Table([]string{"Field", "Value"}, rows)
}

// ReportTable lists every file of a batch, failures first.
func ReportTable(r *pipeline.Report) string {
	rows := make([][]string, 0, len(r.Files))
	for _, fr := range r.SortedByStatus() {
		detail := fr.Destination()
		if fr.File.Error != "" {
			detail = fr.File.Error
		} else if fr.Result != nil && fr.Result.AlreadyPresent {
			detail += " " + Dim("(already present)")
		}
		label := ""
		if fr.File.Info != nil {
			label = fr.File.Info.Label()
		}
		rows = append(rows, []string{
			Status(fr.File.Status),
			truncate(fr.File.Name, maxCell),
			label,
			truncate(detail, maxCell),
		})
	}
	return Table([]string{"Status", "File", "Resolved", "Destination / Error"}, rows)
}

// ReportSummary prints the one-line totals of a batch.
func ReportSummary(w io.Writer, r *pipeline.Report) {
	s := r.Summary
	line := fmt.Sprintf("%d files: %s, %s, %s (%d already present) in %s; cache %d hits / %d lookups",
		s.Total,
		Success(fmt.Sprintf("%d succeeded", s.Succeeded)),
		Error(fmt.Sprintf("%d failed", s.Failed)),
		Warning(fmt.Sprintf("%d skipped", s.Skipped)),
		s.AlreadyPresent,
		FormatDuration(r.Duration()),
		r.Cache.Hits, r.Cache.Misses)
	if r.DryRun {
		line += " " + Dim("[dry run]")
	}
	if r.Cancelled {
		line += " " + Warning("[cancelled]")
	}
	fmt.Fprintln(w, line)
}

// BatchesTable lists stored batch summaries.
func BatchesTable(batches []database.BatchRecord) string {
	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		rows = append(rows, []string{
			b.ID,
			FormatAge(b.StartedAt),
			b.Mode,
			strconv.Itoa(b.Total),
			strconv.Itoa(b.Succeeded),
			strconv.Itoa(b.Failed),
			strconv.Itoa(b.Skipped),
			truncate(b.Root, maxCell),
		})
	}
	return Table([]string{"Batch", "Started", "Mode", "Total", "OK", "Failed", "Skipped", "Root"}, rows, 3, 4, 5, 6)
}

// BatchFilesTable lists the stored files of one batch.
func BatchFilesTable(files []database.FileRecord) string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		detail := f.Destination
		if f.Error != "" {
			detail = f.Error
		}
		rows = append(rows, []string{
			Status(media.Status(f.Status)),
			truncate(filepath.Base(f.SourcePath), maxCell),
			f.MediaType,
			f.Title,
			truncate(detail, maxCell),
		})
	}
	return Table([]string{"Status", "File", "Type", "Title", "Destination / Error"}, rows)
}

// ActivityTable lists journal entries.
func ActivityTable(entries []activity.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Target
		if e.Error != "" {
			detail = e.Error
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			Status(media.Status(e.Status)),
			truncate(filepath.Base(e.Source), maxCell),
			truncate(detail, maxCell),
		})
	}
	return Table([]string{"Time", "Status", "File", "Target / Error"}, rows)
}

// truncate shortens s to maxLen runes with an ellipsis.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
