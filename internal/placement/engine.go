// Package placement puts resolved media files into the library tree by
// moving, copying or linking them, subtitles included.
package placement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/naming"
)

// Replaceable in tests to simulate cross-device failures.
var (
	renameFunc  = os.Rename
	linkFunc    = os.Link
	symlinkFunc = os.Symlink
)

// Mode is how a file reaches its destination.
type Mode string

const (
	ModeMove    Mode = "move"
	ModeCopy    Mode = "copy"
	ModeLink    Mode = "link"
	ModeSymlink Mode = "symlink"
)

// Modes lists the supported modes.
var Modes = []Mode{ModeMove, ModeCopy, ModeLink, ModeSymlink}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid placement mode %q (want move, copy, link or symlink)", s)
}

const DefaultDirMode os.FileMode = 0o755

// Options configure an Engine.
type Options struct {
	Mode      Mode
	Overwrite bool
	DryRun    bool
	DirMode   os.FileMode
}

// Result describes one placement.
type Result struct {
	Source         string   `json:"source"`
	Destination    string   `json:"destination"`
	Mode           Mode     `json:"mode"`
	AlreadyPresent bool     `json:"already_present,omitempty"`
	DryRun         bool     `json:"dry_run,omitempty"`
	Bytes          int64    `json:"bytes,omitempty"`
	Sidecars       []string `json:"sidecars,omitempty"`
	SidecarErrors  []string `json:"sidecar_errors,omitempty"`
}

// Engine performs placements. It is safe for concurrent use; placements
// that resolve to the same destination run one at a time, so the later one
// finds the earlier result in place.
type Engine struct {
	opts   Options
	logger *logging.Logger
}

// New validates opts and returns an Engine.
func New(opts Options, logger *logging.Logger) (*Engine, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode
	if opts.DirMode == 0 {
		opts.DirMode = DefaultDirMode
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{opts: opts, logger: logger}, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Destination computes where file would be placed under root.
func Destination(file media.ScannedFile, root string) (string, error) {
	if file.Info == nil {
		return "", &PlacementError{Op: "name", Src: file.Path, Err: errors.New("file has no resolved metadata")}
	}
	rel, err := naming.DestinationPath(*file.Info, file.Ext)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// Place puts file under destRoot according to its resolved metadata,
// then carries matching subtitle sidecars along. A destination that
// already exists is left alone unless Overwrite is set; when it holds a
// different file the sidecars are left behind too. Sidecar failures are
// reported in the result and never fail the placement.
func (e *Engine) Place(ctx context.Context, file media.ScannedFile, destRoot string) (*Result, error) {
	dst, err := Destination(file, destRoot)
	if err != nil {
		return nil, err
	}
	src, err := filepath.Abs(file.Path)
	if err != nil {
		return nil, &PlacementError{Op: "resolve", Src: file.Path, Dst: dst, Err: err}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return nil, &PlacementError{Op: "resolve", Src: src, Dst: dst, Err: err}
	}

	result := &Result{Source: src, Destination: dst, Mode: e.opts.Mode, DryRun: e.opts.DryRun}
	sidecars, sideErr := FindSidecars(src, dst)
	if sideErr != nil {
		e.logger.Warn("placement", "Could not list sidecars",
			logging.F("source", src),
			logging.F("error", sideErr.Error()))
	}

	if e.opts.DryRun {
		for _, sc := range sidecars {
			result.Sidecars = append(result.Sidecars, sc.Destination)
		}
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := destLocks.lock(dst)
	defer unlock()

	state, n, err := e.transfer(src, dst)
	if err != nil {
		return nil, err
	}
	result.AlreadyPresent = state != placed
	result.Bytes = n

	switch state {
	case occupied:
		// another file holds the destination; its subtitles are not ours to pair
		e.logger.Info("placement", "Destination holds another file, skipping file and sidecars",
			logging.F("source", src),
			logging.F("destination", dst),
			logging.F("sidecars", len(sidecars)))
		return result, nil
	case identical:
		e.logger.Info("placement", "Destination already present, skipping",
			logging.F("destination", dst))
	default:
		e.logger.Info("placement", "Placed file",
			logging.F("mode", string(e.opts.Mode)),
			logging.F("source", src),
			logging.F("destination", dst))
	}

	for _, sc := range sidecars {
		if _, _, err := e.transfer(sc.Source, sc.Destination); err != nil {
			e.logger.Warn("placement", "Sidecar placement failed",
				logging.F("sidecar", sc.Source),
				logging.F("error", err.Error()))
			result.SidecarErrors = append(result.SidecarErrors, err.Error())
			continue
		}
		result.Sidecars = append(result.Sidecars, sc.Destination)
	}
	return result, nil
}

// outcome is what transfer did with a destination.
type outcome int

const (
	placed    outcome = iota
	identical         // destination is the source itself
	occupied          // destination holds some other file and was kept
)

// transfer applies the engine mode to one path pair.
func (e *Engine) transfer(src, dst string) (state outcome, n int64, err error) {
	if err := os.MkdirAll(filepath.Dir(dst), e.opts.DirMode); err != nil {
		return placed, 0, &PlacementError{Op: "mkdir", Dst: filepath.Dir(dst), Err: err}
	}

	if dstInfo, err := os.Lstat(dst); err == nil {
		if srcInfo, statErr := os.Stat(src); statErr == nil && os.SameFile(srcInfo, dstInfo) {
			return identical, 0, nil
		}
		if !e.opts.Overwrite {
			return occupied, 0, nil
		}
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			return placed, 0, &PlacementError{Op: "remove", Dst: dst, Err: err}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return placed, 0, &PlacementError{Op: "stat", Dst: dst, Err: err}
	}

	switch e.opts.Mode {
	case ModeMove:
		err := renameFunc(src, dst)
		if err == nil {
			return placed, 0, nil
		}
		if !isEXDEV(err) {
			return placed, 0, &PlacementError{Op: "move", Src: src, Dst: dst, Err: err}
		}
		e.logger.Debug("placement", "Cross-device move, copying instead",
			logging.F("source", src),
			logging.F("destination", dst))
		n, err := copyFile(src, dst)
		if err != nil {
			return placed, n, &PlacementError{Op: "move", Src: src, Dst: dst, Err: err}
		}
		if err := os.Remove(src); err != nil {
			return placed, n, &PlacementError{Op: "remove source", Src: src, Dst: dst, Err: err}
		}
		return placed, n, nil
	case ModeCopy:
		n, err := copyFile(src, dst)
		if err != nil {
			return placed, n, &PlacementError{Op: "copy", Src: src, Dst: dst, Err: err}
		}
		return placed, n, nil
	case ModeLink:
		if err := linkFunc(src, dst); err != nil {
			if isLinkRefused(err) {
				return placed, 0, &CrossDeviceLinkError{Src: src, Dst: dst, Err: err}
			}
			return placed, 0, &PlacementError{Op: "link", Src: src, Dst: dst, Err: err}
		}
		return placed, 0, nil
	case ModeSymlink:
		if err := symlinkFunc(src, dst); err != nil {
			return placed, 0, &PlacementError{Op: "symlink", Src: src, Dst: dst, Err: err}
		}
		return placed, 0, nil
	default:
		return placed, 0, &PlacementError{Op: "place", Src: src, Dst: dst, Err: fmt.Errorf("unsupported mode %q", e.opts.Mode)}
	}
}
