// Package activity keeps a per-day JSONL journal of every file a batch
// touched.
package activity

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fuunylmz/Re-aniname/internal/pipeline"
)

const (
	filePrefix = "activity-"
	fileSuffix = ".jsonl"
	dateLayout = "2006-01-02"
)

type Entry struct {
	Timestamp  time.Time `json:"ts"`
	BatchID    string    `json:"batch_id"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	Source     string    `json:"source"`
	Target     string    `json:"target,omitempty"`
	MediaType  string    `json:"media_type,omitempty"`
	Title      string    `json:"title,omitempty"`
	Year       *int      `json:"year,omitempty"`
	Season     *int      `json:"season,omitempty"`
	Episode    *int      `json:"episode,omitempty"`
	CatalogID  int64     `json:"catalog_id,omitempty"`
	Present    bool      `json:"already_present,omitempty"`
	Bytes      int64     `json:"bytes,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Logger appends entries to activity-YYYY-MM-DD.jsonl files in one
// directory. It is safe for concurrent use.
type Logger struct {
	mu          sync.Mutex
	logDir      string
	currentFile *os.File
	currentDate string
	now         func() time.Time
}

var _ pipeline.Recorder = (*Logger)(nil)

func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}
	return &Logger{logDir: logDir, now: time.Now}, nil
}

func (l *Logger) Log(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	today := entry.Timestamp.Format(dateLayout)
	if l.currentDate != today || l.currentFile == nil {
		if err := l.rotateFile(today); err != nil {
			return err
		}
	}
	_, err = l.currentFile.Write(append(line, '\n'))
	return err
}

// Record journals every file of a finished batch.
func (l *Logger) Record(_ context.Context, report *pipeline.Report) error {
	ts := report.FinishedAt
	if ts.IsZero() {
		ts = l.now()
	}
	for _, fr := range report.Files {
		if err := l.Log(entryFor(report, fr, ts)); err != nil {
			return err
		}
	}
	return nil
}

func entryFor(report *pipeline.Report, fr pipeline.FileReport, ts time.Time) Entry {
	e := Entry{
		Timestamp:  ts,
		BatchID:    report.ID,
		Action:     string(report.Mode),
		Status:     string(fr.File.Status),
		Source:     fr.File.Path,
		DurationMs: fr.Duration.Milliseconds(),
		Error:      fr.File.Error,
	}
	if info := fr.File.Info; info != nil {
		e.MediaType = string(info.Kind)
		e.Title = info.Title
		e.Year = info.Year
		e.Season = info.Season
		e.Episode = info.Episode
		e.CatalogID = info.CatalogID
	}
	if fr.Result != nil {
		e.Target = fr.Result.Destination
		e.Present = fr.Result.AlreadyPresent
		e.Bytes = fr.Result.Bytes
	}
	return e
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentFile != nil {
		err := l.currentFile.Close()
		l.currentFile = nil
		return err
	}
	return nil
}

// PruneOld deletes journal files older than retentionDays.
func (l *Logger) PruneOld(retentionDays int) error {
	cutoff := l.now().AddDate(0, 0, -retentionDays)

	files, err := l.journalFiles()
	if err != nil {
		return err
	}
	for _, name := range files {
		fileDate, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			os.Remove(filepath.Join(l.logDir, name))
		}
	}
	return nil
}

func (l *Logger) rotateFile(date string) error {
	if l.currentFile != nil {
		l.currentFile.Close()
	}

	filePath := filepath.Join(l.logDir, filePrefix+date+fileSuffix)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	l.currentFile = file
	l.currentDate = date
	return nil
}

func (l *Logger) Dir() string {
	return l.logDir
}

func (l *Logger) journalFiles() ([]string, error) {
	entries, err := os.ReadDir(l.logDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), filePrefix) && strings.HasSuffix(entry.Name(), fileSuffix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Recent returns up to limit entries, newest first.
func (l *Logger) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := l.journalFiles()
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	slices.Reverse(files)

	var results []Entry
	for _, name := range files {
		fileEntries, err := readEntries(filepath.Join(l.logDir, name))
		if err != nil {
			continue
		}
		slices.Reverse(fileEntries)
		for _, e := range fileEntries {
			results = append(results, e)
			if len(results) >= limit {
				return results, nil
			}
		}
	}
	return results, nil
}

func readEntries(filePath string) ([]Entry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return decode(file)
}

// decode reads JSONL entries, skipping malformed lines.
func decode(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var entry Entry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, sc.Err()
}
