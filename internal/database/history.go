package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fuunylmz/Re-aniname/internal/pipeline"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a batch id is unknown.
var ErrNotFound = errors.New("batch not found")

var _ pipeline.Recorder = (*HistoryDB)(nil)

// BatchRecord is a stored batch summary.
type BatchRecord struct {
	ID           string    `json:"id"`
	Root         string    `json:"root,omitempty"`
	OutputDir    string    `json:"output_dir"`
	Mode         string    `json:"mode"`
	Total        int       `json:"total"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"`
	Cancelled    bool      `json:"cancelled"`
	CacheHits    int       `json:"cache_hits"`
	CacheMisses  int       `json:"cache_misses"`
	CacheUnified int       `json:"cache_unified"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// FileRecord is one stored file outcome.
type FileRecord struct {
	BatchID        string `json:"batch_id"`
	FileID         string `json:"file_id"`
	SourcePath     string `json:"source_path"`
	Status         string `json:"status"`
	Destination    string `json:"destination,omitempty"`
	Error          string `json:"error,omitempty"`
	MediaType      string `json:"media_type,omitempty"`
	Title          string `json:"title,omitempty"`
	Year           *int   `json:"year,omitempty"`
	Season         *int   `json:"season,omitempty"`
	Episode        *int   `json:"episode,omitempty"`
	CatalogID      int64  `json:"catalog_id,omitempty"`
	AlreadyPresent bool   `json:"already_present,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
}

// Record stores a finished batch and all its files in one transaction.
func (h *HistoryDB) Record(ctx context.Context, r *pipeline.Report) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (
			id, root, output_dir, mode, total, succeeded, failed, skipped, cancelled,
			cache_hits, cache_misses, cache_unified, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Root, r.OutputDir, string(r.Mode),
		r.Summary.Total, r.Summary.Succeeded, r.Summary.Failed, r.Summary.Skipped, r.Cancelled,
		r.Cache.Hits, r.Cache.Misses, r.Cache.Unified,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", r.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO batch_files (
			batch_id, file_id, source_path, status, destination, error,
			media_type, title, year, season, episode, catalog_id,
			already_present, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare file insert: %w", err)
	}
	defer stmt.Close()

	for _, fr := range r.Files {
		var (
			kind, title           string
			year, season, episode sql.NullInt64
			catalogID             sql.NullInt64
			present               bool
		)
		if info := fr.File.Info; info != nil {
			kind = string(info.Kind)
			title = info.Title
			year = nullInt(info.Year)
			season = nullInt(info.Season)
			episode = nullInt(info.Episode)
			if info.CatalogID > 0 {
				catalogID = sql.NullInt64{Int64: info.CatalogID, Valid: true}
			}
		}
		if fr.Result != nil {
			present = fr.Result.AlreadyPresent
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, fr.File.ID, fr.File.Path, string(fr.File.Status), fr.Destination(), fr.File.Error,
			kind, title, year, season, episode, catalogID,
			present, fr.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert file %s: %w", fr.File.Path, err)
		}
	}
	return tx.Commit()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

const batchColumns = `id, root, output_dir, mode, total, succeeded, failed, skipped, cancelled,
	cache_hits, cache_misses, cache_unified, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (BatchRecord, error) {
	var (
		b                 BatchRecord
		started, finished string
	)
	err := row.Scan(&b.ID, &b.Root, &b.OutputDir, &b.Mode, &b.Total, &b.Succeeded, &b.Failed, &b.Skipped, &b.Cancelled,
		&b.CacheHits, &b.CacheMisses, &b.CacheUnified, &started, &finished)
	if err != nil {
		return b, err
	}
	b.StartedAt, _ = time.Parse(timeLayout, started)
	b.FinishedAt, _ = time.Parse(timeLayout, finished)
	return b, nil
}

// ListBatches returns the most recent batches, newest first.
func (h *HistoryDB) ListBatches(ctx context.Context, limit int) ([]BatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBatch returns one batch with its files in processing order.
func (h *HistoryDB) GetBatch(ctx context.Context, id string) (*BatchRecord, []FileRecord, error) {
	b, err := scanBatch(h.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT batch_id, file_id, source_path, status, destination, error,
		       media_type, title, year, season, episode, catalog_id,
		       already_present, duration_ms
		FROM batch_files WHERE batch_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var (
			f                     FileRecord
			year, season, episode sql.NullInt64
			catalogID             sql.NullInt64
		)
		if err := rows.Scan(&f.BatchID, &f.FileID, &f.SourcePath, &f.Status, &f.Destination, &f.Error,
			&f.MediaType, &f.Title, &year, &season, &episode, &catalogID,
			&f.AlreadyPresent, &f.DurationMs); err != nil {
			return nil, nil, err
		}
		f.Year, f.Season, f.Episode = intPtr(year), intPtr(season), intPtr(episode)
		f.CatalogID = catalogID.Int64
		files = append(files, f)
	}
	return &b, files, rows.Err()
}

// PruneBefore deletes batches that started before cutoff and returns how
// many were removed.
func (h *HistoryDB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM batches WHERE started_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
