// Package scanner discovers candidate video files under a directory tree.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
)

// DefaultMinSize is the size threshold used when a caller does not pick one.
const DefaultMinSize int64 = 10 << 20

// VideoExtensions is the allow-list of extensions the scanner emits.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".ts":   true,
	".iso":  true,
}

// IsVideo reports whether path has an allowed video extension.
func IsVideo(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Options controls a scan. MinSizeBytes is applied as-is; zero disables
// the size filter.
type Options struct {
	Recursive    bool
	MinSizeBytes int64
}

// DefaultOptions is a recursive scan with the 10 MiB threshold.
func DefaultOptions() Options {
	return Options{Recursive: true, MinSizeBytes: DefaultMinSize}
}

// FilesystemError reports a directory that could not be read.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("reading directory %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// IsFilesystemError reports whether err is a FilesystemError.
func IsFilesystemError(err error) bool {
	var target *FilesystemError
	return errors.As(err, &target)
}

// Scanner walks source trees.
type Scanner struct {
	logger *logging.Logger
}

// New returns a Scanner logging through logger (nil means discard).
func New(logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scanner{logger: logger}
}

// Scan returns every video file under root that passes the size filter,
// sorted by path. Unstat-able entries are logged and skipped; an
// unreadable directory aborts the scan with a FilesystemError.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) ([]media.ScannedFile, error) {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	var files []media.ScannedFile
	if err := s.walk(ctx, root, opts, &files); err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	s.logger.Debug("scanner", "Scan complete",
		logging.F("root", root),
		logging.F("files", len(files)),
		logging.F("recursive", opts.Recursive))
	return files, nil
}

// ScanPath accepts either a directory (scanned with opts) or a single
// file. A single file skips the size filter but must be a video.
func (s *Scanner) ScanPath(ctx context.Context, path string, opts Options) ([]media.ScannedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FilesystemError{Path: path, Err: err}
	}
	if info.IsDir() {
		return s.Scan(ctx, path, opts)
	}
	if !IsVideo(path) {
		return nil, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return []media.ScannedFile{media.NewScannedFile(abs, info.Size())}, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, opts Options, out *[]media.ScannedFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return &FilesystemError{Path: dir, Err: err}
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if !opts.Recursive {
				continue
			}
			if err := s.walk(ctx, path, opts, out); err != nil {
				return err
			}
			continue
		}

		if !IsVideo(entry.Name()) {
			continue
		}

		// follow symlinked files but never symlinked directories
		info, err := os.Stat(path)
		if err != nil {
			s.logger.Warn("scanner", "Skipping unreadable entry",
				logging.F("path", path),
				logging.F("error", err.Error()))
			continue
		}
		if info.IsDir() || info.Size() < opts.MinSizeBytes {
			continue
		}

		*out = append(*out, media.NewScannedFile(path, info.Size()))
	}
	return nil
}
