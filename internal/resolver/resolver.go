// Package resolver turns a scanned file into verified, batch-consistent
// metadata: classifier guess, catalog enrichment, cross-file unification
// and the single-season correction.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fuunylmz/Re-aniname/internal/catalog"
	"github.com/fuunylmz/Re-aniname/internal/classifier"
	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
)

// ClassificationError means the classifier could not produce a guess. It
// fails the file.
type ClassificationError struct {
	File string
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.File, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// IsClassificationError reports whether err is a ClassificationError.
func IsClassificationError(err error) bool {
	var target *ClassificationError
	return errors.As(err, &target)
}

// Resolver combines a classifier with an optional catalog.
type Resolver struct {
	classifier classifier.Classifier
	catalog    catalog.Catalog
	logger     *logging.Logger
}

// New creates a Resolver. cat may be nil, in which case catalog
// enrichment is skipped.
func New(cls classifier.Classifier, cat catalog.Catalog, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{classifier: cls, catalog: cat, logger: logger}
}

// HasCatalog reports whether catalog enrichment is enabled.
func (r *Resolver) HasCatalog() bool {
	return r.catalog != nil
}

// Resolve classifies file using its parent folder and neighbouring video
// files as hints, then enriches the guess through cache.
func (r *Resolver) Resolve(ctx context.Context, file media.ScannedFile, cache *Cache) (media.MediaInfo, error) {
	if cache == nil {
		cache = NewCache()
	}
	dir := filepath.Dir(file.Path)
	hints := classifier.Hints{
		ParentFolder: filepath.Base(dir),
		Siblings:     siblingsOf(cache.dirSiblings(dir, r.readVideoNames), file.Name),
	}
	return r.ResolveName(ctx, file.Name, hints, cache)
}

// ResolveName is Resolve for a bare filename with caller-provided hints.
func (r *Resolver) ResolveName(ctx context.Context, filename string, hints classifier.Hints, cache *Cache) (media.MediaInfo, error) {
	if cache == nil {
		cache = NewCache()
	}
	info, err := r.classifier.Classify(ctx, filename, hints)
	if err != nil {
		return media.MediaInfo{}, &ClassificationError{File: filename, Err: err}
	}

	if r.catalog != nil {
		if frag, ok := r.fragment(ctx, info, cache); ok {
			info = merge(info, frag)
			info = r.correctSeason(filename, info, frag)
		}
	}

	if info.Kind.IsEpisodic() && info.Season == nil {
		info = info.WithSeason(1)
	}
	return info, nil
}

// fragment returns the catalog data for info, from the title cache when
// possible. Concurrent misses on one key share a single lookup.
func (r *Resolver) fragment(ctx context.Context, info media.MediaInfo, cache *Cache) (Fragment, bool) {
	key, cacheable := NormalizeKey(info.Title, info.YearOr(0))
	if !cacheable {
		f, err := r.lookup(ctx, info, cache)
		return r.settle(info, f, err)
	}

	if f, ok := cache.title(key); ok {
		r.logger.Debug("resolver", "Title cache hit",
			logging.F("key", key),
			logging.F("catalog_id", f.ID))
		return f, true
	}

	v, err, _ := cache.group.Do(key, func() (any, error) {
		if f, ok := cache.title(key); ok {
			return &f, nil
		}
		return r.lookup(ctx, info, cache)
	})
	f, _ := v.(*Fragment)
	return r.settle(info, f, err)
}

func (r *Resolver) settle(info media.MediaInfo, f *Fragment, err error) (Fragment, bool) {
	if err != nil {
		r.logger.Warn("resolver", "Catalog lookup failed, keeping classifier guess",
			logging.F("title", info.Title),
			logging.F("error", err.Error()))
		return Fragment{}, false
	}
	if f == nil {
		r.logger.Debug("resolver", "No catalog match", logging.F("title", info.Title))
		return Fragment{}, false
	}
	return *f, true
}

func (r *Resolver) lookup(ctx context.Context, info media.MediaInfo, cache *Cache) (*Fragment, error) {
	cache.miss()
	match, err := catalog.Lookup(ctx, r.catalog, info, r.logger)
	if err != nil {
		return nil, err
	}
	if match == nil || match.ID <= 0 {
		return nil, nil
	}

	f, unified := cache.unify(fragmentFromMatch(match))
	if unified && f.Title != match.Title {
		r.logger.Info("resolver", "Unified title with earlier match",
			logging.F("catalog_id", f.ID),
			logging.F("found", match.Title),
			logging.F("using", f.Title))
	}

	year := info.YearOr(0)
	if key, ok := NormalizeKey(info.Title, year); ok {
		cache.storeTitle(key, f)
	}
	if info.OriginalTitle != "" {
		if key, ok := NormalizeKey(info.OriginalTitle, year); ok {
			cache.storeTitle(key, f)
		}
	}
	return &f, nil
}

func merge(info media.MediaInfo, f Fragment) media.MediaInfo {
	var year *int
	if f.Year > 0 {
		year = media.Int(f.Year)
	}
	return info.WithTitles(f.Title, f.OriginalTitle, year).WithCatalog(f.ID, f.Raw)
}

// correctSeason maps season N>1 to season 1 for shows the catalog lists
// with a single regular season. Absolute-numbered anime releases often
// carry a later season number the catalog does not know about.
func (r *Resolver) correctSeason(filename string, info media.MediaInfo, f Fragment) media.MediaInfo {
	if !info.Kind.IsEpisodic() || info.Season == nil || *info.Season <= 1 {
		return info
	}
	regular, known := f.RegularSeasons()
	if !known || regular != 1 {
		return info
	}
	r.logger.Info("resolver", "Correcting season for single-season show",
		logging.F("file", filename),
		logging.F("title", info.Title),
		logging.F("from", *info.Season),
		logging.F("to", 1))
	return info.WithSeason(1)
}

func (r *Resolver) readVideoNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.logger.Debug("resolver", "Could not list siblings",
			logging.F("dir", dir),
			logging.F("error", err.Error()))
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && scanner.IsVideo(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names
}

func siblingsOf(names []string, self string) []string {
	out := make([]string, 0, min(len(names), classifier.MaxSiblings))
	for _, n := range names {
		if n == self {
			continue
		}
		out = append(out, n)
		if len(out) == classifier.MaxSiblings {
			break
		}
	}
	return out
}
