// Package naming turns resolved metadata into canonical library paths and
// extracts rough metadata guesses from release filenames.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/fuunylmz/Re-aniname/internal/media"
)

const (
	MoviesRoot = "Movies"
	TVRoot     = "TV Shows"
	AnimeRoot  = "Anime"
)

// UnknownMediaTypeError is returned when a record carries a kind the
// library layout has no folder for.
type UnknownMediaTypeError struct {
	Kind media.Kind
}

func (e *UnknownMediaTypeError) Error() string {
	return fmt.Sprintf("unknown media type: %q", string(e.Kind))
}

// IsUnknownMediaType reports whether err is an UnknownMediaTypeError.
func IsUnknownMediaType(err error) bool {
	var target *UnknownMediaTypeError
	return errors.As(err, &target)
}

var illegalChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// Sanitize strips characters that are illegal on common filesystems and
// normalizes to NFC so composed and decomposed spellings agree.
func Sanitize(s string) string {
	s = illegalChars.ReplaceAllString(s, "")
	return strings.TrimSpace(norm.NFC.String(s))
}

// FolderName renders "Title (Year)", or just the title when the year is unknown.
func FolderName(title string, year int) string {
	if year > 0 {
		return fmt.Sprintf("%s (%d)", title, year)
	}
	return title
}

func FormatSeasonFolder(season int) string {
	return fmt.Sprintf("Season %02d", season)
}

func FormatEpisode(season, episode int) string {
	return fmt.Sprintf("S%02dE%02d", season, episode)
}

// NormalizeExt lower-cases ext and makes sure it starts with a dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// DestinationPath computes the library-relative path for a file.
//
//	Movies/<T (Y)>/<T (Y)>[ - [res]].ext
//	TV Shows|Anime/<T (Y)>/Season SS/SxxEyy.ext
//
// It performs no I/O and returns the same path for the same input.
func DestinationPath(info media.MediaInfo, ext string) (string, error) {
	title := Sanitize(info.Title)
	if title == "" {
		return "", fmt.Errorf("cannot name file: title is empty after sanitizing %q", info.Title)
	}
	ext = NormalizeExt(ext)
	folder := FolderName(title, info.YearOr(0))

	switch info.Kind {
	case media.KindMovie:
		name := folder
		if res := Sanitize(info.Resolution); res != "" {
			name += " - [" + res + "]"
		}
		return filepath.Join(MoviesRoot, folder, name+ext), nil
	case media.KindSeries, media.KindAnime:
		root := TVRoot
		if info.Kind == media.KindAnime {
			root = AnimeRoot
		}
		season := info.SeasonOr(1)
		episode := info.EpisodeOr(1)
		return filepath.Join(root, folder, FormatSeasonFolder(season), FormatEpisode(season, episode)+ext), nil
	default:
		return "", &UnknownMediaTypeError{Kind: info.Kind}
	}
}
