// Package catalog looks up canonical titles and years in an external media
// database (TMDB).
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fuunylmz/Re-aniname/internal/media"
)

// SearchKind selects the catalog namespace to search.
type SearchKind string

const (
	SearchMovie SearchKind = "movie"
	SearchTV    SearchKind = "tv"
)

// KindFor maps a media kind to a catalog namespace.
func KindFor(k media.Kind) SearchKind {
	if k.IsEpisodic() {
		return SearchTV
	}
	return SearchMovie
}

// Query is one catalog search.
type Query struct {
	Title    string
	Kind     SearchKind
	Year     int
	Language string
}

// Season is one season entry of a TV match.
type Season struct {
	Number       int    `json:"season_number"`
	Name         string `json:"name,omitempty"`
	EpisodeCount int    `json:"episode_count,omitempty"`
}

// Regular reports whether the season is a numbered season (not specials).
func (s Season) Regular() bool { return s.Number > 0 }

// Match is the best result of a lookup.
type Match struct {
	ID            int64
	Kind          SearchKind
	Title         string
	OriginalTitle string
	Year          int
	Seasons       []Season
	Raw           json.RawMessage
}

// RegularSeasons counts seasons numbered above zero.
func (m *Match) RegularSeasons() int {
	n := 0
	for _, s := range m.Seasons {
		if s.Regular() {
			n++
		}
	}
	return n
}

// Catalog is the external metadata source. Search returns (nil, nil) when
// nothing matches.
type Catalog interface {
	Search(ctx context.Context, q Query) (*Match, error)
	FetchSeasons(ctx context.Context, id int64) ([]Season, error)
}

// Error wraps a failed catalog call. It never fails a file; callers fall
// back to the unenriched guess.
type Error struct {
	Op         string
	Query      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("catalog %s %q: http %d", e.Op, e.Query, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("catalog %s %q: %v", e.Op, e.Query, e.Err)
	default:
		return fmt.Sprintf("catalog %s %q failed", e.Op, e.Query)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsCatalogError reports whether err is a catalog Error.
func IsCatalogError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}
