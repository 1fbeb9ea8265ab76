package naming

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuunylmz/Re-aniname/internal/media"
)

func TestDestinationPath(t *testing.T) {
	tests := []struct {
		name string
		info media.MediaInfo
		ext  string
		want string
	}{
		{
			name: "movie with resolution",
			info: media.MediaInfo{Kind: media.KindMovie, Title: "Inception", Year: media.Int(2010), Resolution: "1080p"},
			ext:  ".mkv",
			want: "Movies/Inception (2010)/Inception (2010) - [1080p].mkv",
		},
		{
			name: "movie without year",
			info: media.MediaInfo{Kind: media.KindMovie, Title: "Inception"},
			ext:  ".mkv",
			want: "Movies/Inception/Inception.mkv",
		},
		{
			name: "movie with zero year",
			info: media.MediaInfo{Kind: media.KindMovie, Title: "Inception", Year: media.Int(0)},
			ext:  "MKV",
			want: "Movies/Inception/Inception.mkv",
		},
		{
			name: "series",
			info: media.MediaInfo{Kind: media.KindSeries, Title: "Breaking Bad", Year: media.Int(2008), Season: media.Int(1), Episode: media.Int(1), Resolution: "4k"},
			ext:  ".mp4",
			want: "TV Shows/Breaking Bad (2008)/Season 01/S01E01.mp4",
		},
		{
			name: "anime specials",
			info: media.MediaInfo{Kind: media.KindAnime, Title: "Frieren", Year: media.Int(2023), Season: media.Int(0), Episode: media.Int(3)},
			ext:  ".mkv",
			want: "Anime/Frieren (2023)/Season 00/S00E03.mkv",
		},
		{
			name: "episodic defaults",
			info: media.MediaInfo{Kind: media.KindAnime, Title: "Frieren"},
			ext:  ".mkv",
			want: "Anime/Frieren/Season 01/S01E01.mkv",
		},
		{
			name: "illegal characters stripped",
			info: media.MediaInfo{Kind: media.KindMovie, Title: ` Mission: Impossible / "Fallout"? `, Year: media.Int(2018)},
			ext:  ".mkv",
			want: "Movies/Mission Impossible  Fallout (2018)/Mission Impossible  Fallout (2018).mkv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DestinationPath(tt.info, tt.ext)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestDestinationPath_Idempotent(t *testing.T) {
	info := media.MediaInfo{Kind: media.KindSeries, Title: "Show", Year: media.Int(2020), Season: media.Int(2), Episode: media.Int(7)}
	first, err := DestinationPath(info, ".mkv")
	require.NoError(t, err)
	second, err := DestinationPath(info, ".mkv")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDestinationPath_NFC(t *testing.T) {
	composed := media.MediaInfo{Kind: media.KindMovie, Title: "Am\u00e9lie", Year: media.Int(2001)}
	decomposed := media.MediaInfo{Kind: media.KindMovie, Title: "Ame\u0301lie", Year: media.Int(2001)}
	a, err := DestinationPath(composed, ".mkv")
	require.NoError(t, err)
	b, err := DestinationPath(decomposed, ".mkv")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDestinationPath_UnknownKind(t *testing.T) {
	_, err := DestinationPath(media.MediaInfo{Kind: "Documentary", Title: "X"}, ".mkv")
	require.Error(t, err)
	assert.True(t, IsUnknownMediaType(err))
	assert.Contains(t, err.Error(), "Documentary")
}

func TestDestinationPath_EmptyTitle(t *testing.T) {
	_, err := DestinationPath(media.MediaInfo{Kind: media.KindMovie, Title: "???"}, ".mkv")
	assert.Error(t, err)
}

func TestGuess(t *testing.T) {
	tests := []struct {
		filename string
		parent   string
		kind     media.Kind
		title    string
		year     int
		season   *int
		episode  *int
		res      string
		group    string
	}{
		{
			filename: "Breaking.Bad.S01E01.720p.HDTV.x264-GROUP.mkv",
			kind:     media.KindSeries, title: "Breaking Bad",
			season: media.Int(1), episode: media.Int(1), res: "720p", group: "GROUP",
		},
		{
			filename: "Inception.2010.1080p.BluRay.x264-SPARKS.mkv",
			kind:     media.KindMovie, title: "Inception", year: 2010, res: "1080p", group: "SPARKS",
		},
		{
			filename: "Blade.Runner.2049.2017.2160p.WEB-DL.mkv",
			kind:     media.KindMovie, title: "Blade Runner 2049", year: 2017, res: "2160p",
		},
		{
			filename: "Spider-Man (2002).mkv",
			kind:     media.KindMovie, title: "Spider-Man", year: 2002,
		},
		{
			filename: "[SubsPlease] Sousou no Frieren - 05 (1080p) [ABCD1234].mkv",
			kind:     media.KindAnime, title: "Sousou no Frieren",
			episode: media.Int(5), res: "1080p", group: "SubsPlease",
		},
		{
			filename: "[Group] Some Show S2 - 03 [1080p].mkv",
			kind:     media.KindAnime, title: "Some Show",
			season: media.Int(2), episode: media.Int(3), res: "1080p", group: "Group",
		},
		{
			filename: "[Group] Some Show - NCOP1 [1080p].mkv",
			kind:     media.KindAnime, title: "Some Show",
			season: media.Int(0), episode: media.Int(1), group: "Group", res: "1080p",
		},
		{
			filename: "Show.3x12.mkv",
			kind:     media.KindSeries, title: "Show",
			season: media.Int(3), episode: media.Int(12),
		},
		{
			filename: "[Group] Another Show - 07.mkv",
			parent:   "Season 2",
			kind:     media.KindAnime, title: "Another Show",
			season: media.Int(2), episode: media.Int(7), group: "Group",
		},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := Guess(tt.filename, tt.parent)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.title, got.Title)
			assert.Equal(t, tt.year, got.YearOr(0))
			assert.Equal(t, tt.season, got.Season)
			assert.Equal(t, tt.episode, got.Episode)
			assert.Equal(t, tt.res, got.Resolution)
			assert.Equal(t, tt.group, got.Group)
		})
	}
}

func TestGuess_FallsBackToParentFolder(t *testing.T) {
	got, err := Guess("1080p.mkv", "Arrival (2016)")
	require.NoError(t, err)
	assert.Equal(t, "Arrival", got.Title)
}

func TestGuess_NoTitle(t *testing.T) {
	_, err := Guess("1080p.mkv", "")
	assert.Error(t, err)
}
