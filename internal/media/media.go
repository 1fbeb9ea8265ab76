// Package media holds the records that flow through the organize pipeline:
// scanned files and the metadata resolved for them.
package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Kind is the media category produced by classification.
type Kind string

const (
	KindMovie  Kind = "Movie"
	KindSeries Kind = "Series"
	KindAnime  Kind = "Anime"
)

// ParseKind maps loose classifier output onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch cases.Fold().String(strings.TrimSpace(s)) {
	case "movie", "film":
		return KindMovie, nil
	case "series", "tv", "show", "tvshow", "tv show":
		return KindSeries, nil
	case "anime":
		return KindAnime, nil
	default:
		return Kind(s), fmt.Errorf("unknown media kind %q", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindMovie || k == KindSeries || k == KindAnime
}

// IsEpisodic reports whether files of this kind carry season/episode numbers.
func (k Kind) IsEpisodic() bool {
	return k == KindSeries || k == KindAnime
}

func (k Kind) String() string {
	return string(k)
}

// MediaInfo is the resolved metadata for one file. Treat values as
// immutable: the With* helpers return modified copies.
type MediaInfo struct {
	Kind          Kind            `json:"type"`
	Title         string          `json:"title"`
	OriginalTitle string          `json:"originalTitle,omitempty"`
	Year          *int            `json:"year,omitempty"`
	Season        *int            `json:"season,omitempty"`
	Episode       *int            `json:"episode,omitempty"`
	Resolution    string          `json:"resolution,omitempty"`
	Source        string          `json:"source,omitempty"`
	Group         string          `json:"group,omitempty"`
	CatalogID     int64           `json:"catalogId,omitempty"`
	Catalog       json.RawMessage `json:"catalog,omitempty"`
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

// YearOr returns the year or def when unknown.
func (m MediaInfo) YearOr(def int) int {
	if m.Year == nil || *m.Year <= 0 {
		return def
	}
	return *m.Year
}

// SeasonOr returns the season or def when absent.
func (m MediaInfo) SeasonOr(def int) int {
	if m.Season == nil {
		return def
	}
	return *m.Season
}

// EpisodeOr returns the episode or def when absent.
func (m MediaInfo) EpisodeOr(def int) int {
	if m.Episode == nil {
		return def
	}
	return *m.Episode
}

// WithSeason returns a copy with the season replaced.
func (m MediaInfo) WithSeason(season int) MediaInfo {
	m.Season = Int(season)
	return m
}

// WithTitles returns a copy with title, original title and year replaced.
// An empty original title or nil year keeps the existing value.
func (m MediaInfo) WithTitles(title, originalTitle string, year *int) MediaInfo {
	if title != "" {
		m.Title = title
	}
	if originalTitle != "" {
		m.OriginalTitle = originalTitle
	}
	if year != nil && *year > 0 {
		m.Year = Int(*year)
	}
	return m
}

// WithCatalog returns a copy carrying the catalog id and raw record.
func (m MediaInfo) WithCatalog(id int64, raw json.RawMessage) MediaInfo {
	m.CatalogID = id
	if len(raw) > 0 {
		m.Catalog = append(json.RawMessage(nil), raw...)
	}
	return m
}

// Validate checks the invariants every resolved record must hold.
func (m MediaInfo) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Title) == "" {
		errs = append(errs, errors.New("title is empty"))
	}
	if m.Season != nil && *m.Season < 0 {
		errs = append(errs, fmt.Errorf("season %d is negative", *m.Season))
	}
	if m.Episode != nil && *m.Episode < 0 {
		errs = append(errs, fmt.Errorf("episode %d is negative", *m.Episode))
	}
	return errors.Join(errs...)
}

// Label renders a short human description, e.g. "Breaking Bad (2008) S01E01".
func (m MediaInfo) Label() string {
	var sb strings.Builder
	sb.WriteString(m.Title)
	if y := m.YearOr(0); y > 0 {
		fmt.Fprintf(&sb, " (%d)", y)
	}
	if m.Kind.IsEpisodic() {
		fmt.Fprintf(&sb, " S%02dE%02d", m.SeasonOr(1), m.EpisodeOr(1))
	}
	return sb.String()
}
