package catalog

import (
	"context"
	"errors"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
)

// QueryStep picks which title of the guess to search with and the
// language to ask results in.
type QueryStep struct {
	UseOriginal bool
	Language    string
}

// DefaultPlan searches the original title in English, the main title in
// Chinese, then the original title in Japanese.
var DefaultPlan = []QueryStep{
	{UseOriginal: true, Language: "en-US"},
	{UseOriginal: false, Language: "zh-CN"},
	{UseOriginal: true, Language: "ja-JP"},
}

// Queries expands plan against info, skipping steps whose title is empty.
func Queries(info media.MediaInfo, plan []QueryStep) []Query {
	kind := KindFor(info.Kind)
	year := info.YearOr(0)
	var out []Query
	for _, step := range plan {
		title := info.Title
		if step.UseOriginal {
			title = info.OriginalTitle
		}
		if title == "" {
			continue
		}
		out = append(out, Query{Title: title, Kind: kind, Year: year, Language: step.Language})
	}
	return out
}

// Lookup runs the default query plan and returns the first match. A
// failing query is logged and the plan continues. For TV matches the
// season list is fetched; a failure there leaves Seasons empty.
//
// The returned error is non-nil only when nothing matched and at least
// one query failed.
func Lookup(ctx context.Context, c Catalog, info media.MediaInfo, logger *logging.Logger) (*Match, error) {
	var errs []error
	for _, q := range Queries(info, DefaultPlan) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("catalog", "Searching",
			logging.F("query", q.Title),
			logging.F("language", q.Language),
			logging.F("kind", string(q.Kind)))

		match, err := c.Search(ctx, q)
		if err != nil {
			logger.Warn("catalog", "Search failed, trying next query",
				logging.F("query", q.Title),
				logging.F("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		if match == nil || match.ID <= 0 {
			continue
		}

		logger.Info("catalog", "Found match",
			logging.F("query", q.Title),
			logging.F("id", match.ID),
			logging.F("title", match.Title))

		if match.Kind == SearchTV && match.Seasons == nil {
			seasons, err := c.FetchSeasons(ctx, match.ID)
			if err != nil {
				logger.Warn("catalog", "Season fetch failed",
					logging.F("id", match.ID),
					logging.F("error", err.Error()))
			} else {
				match.Seasons = seasons
			}
		}
		return match, nil
	}
	return nil, errors.Join(errs...)
}
