package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuunylmz/Re-aniname/internal/catalog"
	"github.com/fuunylmz/Re-aniname/internal/classifier"
	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/naming"
)

type stubClassifier struct {
	mu    sync.Mutex
	infos map[string]media.MediaInfo
	err   error
	hints []classifier.Hints
}

func (s *stubClassifier) Classify(_ context.Context, filename string, hints classifier.Hints) (media.MediaInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = append(s.hints, hints)
	if s.err != nil {
		return media.MediaInfo{}, s.err
	}
	info, ok := s.infos[filename]
	if !ok {
		return media.MediaInfo{}, errors.New("no guess")
	}
	return info, nil
}

type stubCatalog struct {
	byTitle  map[string]*catalog.Match
	seasons  map[int64][]catalog.Season
	err      error
	delay    time.Duration
	searches atomic.Int32
}

func (s *stubCatalog) Search(_ context.Context, q catalog.Query) (*catalog.Match, error) {
	s.searches.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	m, ok := s.byTitle[q.Title]
	if !ok {
		return nil, nil
	}
	cp := *m
	cp.Kind = q.Kind
	return &cp, nil
}

func (s *stubCatalog) FetchSeasons(_ context.Context, id int64) ([]catalog.Season, error) {
	return s.seasons[id], nil
}

func seasons(numbers ...int) []catalog.Season {
	out := make([]catalog.Season, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, catalog.Season{Number: n})
	}
	return out
}

func TestNormalizeKey(t *testing.T) {
	key, ok := NormalizeKey("Breaking Bad!", 2008)
	assert.True(t, ok)
	assert.Equal(t, "breakingbad-2008", key)

	key, ok = NormalizeKey("Sousou no Frieren", 0)
	assert.True(t, ok)
	assert.Equal(t, "sousounofrieren-any", key)

	_, ok = NormalizeKey("Up", 2009)
	assert.False(t, ok)

	_, ok = NormalizeKey("葬送的芙莉莲", 2023)
	assert.False(t, ok)
}

func TestResolve_NoCatalogReturnsGuess(t *testing.T) {
	cls := &stubClassifier{infos: map[string]media.MediaInfo{
		"a.mkv": {Kind: media.KindAnime, Title: "Show", Episode: media.Int(3)},
	}}
	r := New(cls, nil, logging.Nop())
	info, err := r.ResolveName(context.Background(), "a.mkv", classifier.Hints{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Show", info.Title)
	assert.Equal(t, 1, info.SeasonOr(-1))
	assert.Zero(t, info.CatalogID)
}

func TestResolve_ClassifierFailure(t *testing.T) {
	r := New(&stubClassifier{err: errors.New("502")}, nil, logging.Nop())
	_, err := r.ResolveName(context.Background(), "a.mkv", classifier.Hints{}, NewCache())
	require.Error(t, err)
	assert.True(t, IsClassificationError(err))
}

func TestResolve_MergesCatalogMatch(t *testing.T) {
	cls := &stubClassifier{infos: map[string]media.MediaInfo{
		"Inception.mkv": {Kind: media.KindMovie, Title: "Inception", Resolution: "1080p"},
	}}
	cat := &stubCatalog{byTitle: map[string]*catalog.Match{
		"Inception": {ID: 27205, Title: "盗梦空间", OriginalTitle: "Inception", Year: 2010, Raw: []byte(`{"id":27205}`)},
	}}
	r := New(cls, cat, logging.Nop())

	info, err := r.ResolveName(context.Background(), "Inception.mkv", classifier.Hints{}, NewCache())
	require.NoError(t, err)
	assert.Equal(t, "盗梦空间", info.Title)
	assert.Equal(t, "Inception", info.OriginalTitle)
	assert.Equal(t, 2010, info.YearOr(0))
	assert.Equal(t, int64(27205), info.CatalogID)
	assert.Equal(t, "1080p", info.Resolution)
	assert.JSONEq(t, `{"id":27205}`, string(info.Catalog))
}

func TestResolve_TitleCacheAvoidsSecondLookup(t *testing.T) {
	cls := &stubClassifier{infos: map[string]media.MediaInfo{
		"e1.mkv": {Kind: media.KindSeries, Title: "Breaking Bad", Season: media.Int(1), Episode: media.Int(1)},
		"e2.mkv": {Kind: media.KindSeries, Title: "Breaking Bad", Season: media.Int(1), Episode: media.Int(2)},
	}}
	cat := &stubCatalog{
		byTitle: map[string]*catalog.Match{"Breaking Bad": {ID: 1396, Title: "Breaking Bad", Year: 2008}},
		seasons: map[int64][]catalog.Season{1396: seasons(0, 1, 2, 3, 4, 5)},
	}
	r := New(cls, cat, logging.Nop())
	cache := NewCache()

	first, err := r.ResolveName(context.Background(), "e1.mkv", classifier.Hints{}, cache)
	require.NoError(t, err)
	second, err := r.ResolveName(context.Background(), "e2.mkv", classifier.Hints{}, cache)
	require.NoError(t, err)

	assert.Equal(t, int32(1), cat.searches.Load())
	assert.Equal(t, first.CatalogID, second.CatalogID)
	assert.Equal(t, 2, second.EpisodeOr(0))
	assert.Equal(t, 1, cache.Stats().Hits)
	assert.Equal(t, 1, cache.Stats().Misses)
}

func TestResolve_UnifiesTitlesByCatalogID(t *testing.T) {
	cls := &stubClassifier{infos: map[string]media.MediaInfo{
		"a.mkv": {Kind: media.KindAnime, Title: "Frieren", Season: media.Int(1), Episode: media.Int(1)},
		"b.mkv": {Kind: media.KindAnime, Title: "Sousou no Frieren", Season: media.Int(1), Episode: media.Int(2)},
	}}
	cat := &stubCatalog{
		byTitle: map[string]*catalog.Match{
			"Frieren":           {ID: 209867, Title: "Frieren: Beyond Journey's End", OriginalTitle: "葬送のフリーレン", Year: 2023},
			"Sousou no Frieren": {ID: 209867, Title: "葬送的芙莉莲", OriginalTitle: "葬送のフリーレン", Year: 2023},
		},
		seasons: map[int64][]catalog.Season{209867: seasons(1)},
	}
	r := New(cls, cat, logging.Nop())
	cache := NewCache()

	a, err := r.ResolveName(context.Background(), "a.mkv", classifier.Hints{}, cache)
	require.NoError(t, err)
	b, err := r.ResolveName(context.Background(), "b.mkv", classifier.Hints{}, cache)
	require.NoError(t, err)

	assert.Equal(t, a.Title, b.Title)
	assert.Equal(t, a.YearOr(0), b.YearOr(0))
	assert.Equal(t, "Frieren: Beyond Journey's End", b.Title)
	assert.Equal(t, 1, cache.Stats().Unified)

	pathA, err := naming.DestinationPath(a, ".mkv")
	require.NoError(t, err)
	pathB, err := naming.DestinationPath(b, ".mkv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(pathA), filepath.Dir(pathB), "both episodes land in one season folder")
	assert.Equal(t, filepath.Join(filepath.Dir(pathA), "S01E02.mkv"), pathB)
}

func TestResolve_SeasonCorrection(t *testing.T) {
	tests := []struct {
		name    string
		seasons []catalog.Season
		season  int
		want    int
	}{
		{"single regular season", seasons(0, 1), 2, 1},
		{"two regular seasons", seasons(0, 1, 2), 2, 2},
		{"season one untouched", seasons(1), 1, 1},
		{"unknown seasons", nil, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := &stubClassifier{infos: map[string]media.MediaInfo{
				"x.mkv": {Kind: media.KindAnime, Title: "Some Show", Season: media.Int(tt.season), Episode: media.Int(5)},
			}}
			cat := &stubCatalog{
				byTitle: map[string]*catalog.Match{"Some Show": {ID: 5, Title: "Some Show"}},
				seasons: map[int64][]catalog.Season{5: tt.seasons},
			}
			info, err := New(cls, cat, logging.Nop()).ResolveName(context.Background(), "x.mkv", classifier.Hints{}, NewCache())
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.SeasonOr(-1))
		})
	}
}

func TestResolve_SeasonCorrectionOnCacheHit(t *testing.T) {
	cls := &stubClassifier{infos: map[string]media.MediaInfo{
		"s1.mkv": {Kind: media.KindAnime, Title: "Some Show", Season: media.Int(1), Episode: media.Int(1)},
		"s2.mkv": {Kind: media.KindAnime, Title: "Some Show", Season: media.Int(2), Episode: media.Int(13)},
	}}
	cat := &stubCatalog{
		byTitle: map[string]*catalog.Match{"Some Show": {ID: 5, Title: "Some Show"}},
		seasons: map[int64][]catalog.Season{5: seasons(1)},
	}
	r := New(cls, cat, logging.Nop())
	cache := NewCache()
	_, err := r.ResolveName(context.Background(), "s1.mkv", classifier.Hints{}, cache)
	require.NoError(t, err)
	info, err := r.ResolveName(context.Background(), "s2.mkv", classifier.Hints{}, cache)
	require.NoError(t, err)
	assert.Equal(t, 1, info.SeasonOr(-1))
	assert.Equal(t, int32(1), cat.searches.Load())
}

func TestResolve_CatalogFailureKeepsGuess(t *testing.T) {
	cls := &stubClassifier{infos: map[string]media.MediaInfo{
		"x.mkv": {Kind: media.KindMovie, Title: "Arrival", Year: media.Int(2016)},
	}}
	cat := &stubCatalog{err: &catalog.Error{Op: "search", StatusCode: 500}}
	info, err := New(cls, cat, logging.Nop()).ResolveName(context.Background(), "x.mkv", classifier.Hints{}, NewCache())
	require.NoError(t, err)
	assert.Equal(t, "Arrival", info.Title)
	assert.Zero(t, info.CatalogID)
}

func TestResolve_ConcurrentSameKeyOneLookup(t *testing.T) {
	infos := map[string]media.MediaInfo{}
	for i := 0; i < 8; i++ {
		infos[filepath.Join("ep", string(rune('a'+i))+".mkv")] = media.MediaInfo{Kind: media.KindSeries, Title: "The Wire", Season: media.Int(1), Episode: media.Int(i + 1)}
	}
	cls := &stubClassifier{infos: infos}
	cat := &stubCatalog{
		byTitle: map[string]*catalog.Match{"The Wire": {ID: 1438, Title: "The Wire", Year: 2002}},
		seasons: map[int64][]catalog.Season{1438: seasons(1, 2, 3, 4, 5)},
		delay:   50 * time.Millisecond,
	}
	r := New(cls, cat, logging.Nop())
	cache := NewCache()

	var wg sync.WaitGroup
	for name := range infos {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			info, err := r.ResolveName(context.Background(), name, classifier.Hints{}, cache)
			assert.NoError(t, err)
			assert.Equal(t, int64(1438), info.CatalogID)
		}(name)
	}
	wg.Wait()
	assert.Equal(t, int32(1), cat.searches.Load())
}

func TestResolve_SiblingHints(t *testing.T) {
	dir := t.TempDir()
	show := filepath.Join(dir, "Show")
	require.NoError(t, os.MkdirAll(show, 0o755))
	for _, name := range []string{"e01.mkv", "e02.mkv", "notes.txt", "e03.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(show, name), []byte("x"), 0o644))
	}
	cls := &stubClassifier{infos: map[string]media.MediaInfo{
		"e01.mkv": {Kind: media.KindAnime, Title: "Show"},
	}}
	r := New(cls, nil, logging.Nop())

	_, err := r.Resolve(context.Background(), media.NewScannedFile(filepath.Join(show, "e01.mkv"), 1), NewCache())
	require.NoError(t, err)
	require.Len(t, cls.hints, 1)
	assert.Equal(t, "Show", cls.hints[0].ParentFolder)
	assert.Equal(t, []string{"e02.mkv", "e03.mp4"}, cls.hints[0].Siblings)
}

func TestSiblingsOf_Capped(t *testing.T) {
	var names []string
	for i := 0; i < 30; i++ {
		names = append(names, string(rune('A'+i))+".mkv")
	}
	got := siblingsOf(names, "A.mkv")
	assert.Len(t, got, classifier.MaxSiblings)
	assert.NotContains(t, got, "A.mkv")
}
