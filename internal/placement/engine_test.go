package placement

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/naming"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
}

func resolvedFile(path string, info media.MediaInfo) media.ScannedFile {
	f := media.NewScannedFile(path, 1)
	f.Attach(info)
	return f
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts, logging.Nop())
	require.NoError(t, err)
	return e
}

var inception = media.MediaInfo{Kind: media.KindMovie, Title: "Inception", Year: media.Int(2010), Resolution: "1080p"}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"move", "COPY", " link ", "symlink"} {
		_, err := ParseMode(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseMode("teleport")
	assert.Error(t, err)

	_, err = New(Options{Mode: "teleport"}, nil)
	assert.Error(t, err)
}

func TestPlace_CopyMovieWithSidecars(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "Inception.2010.1080p.mkv")
	writeFile(t, src, "video")
	writeFile(t, filepath.Join(in, "Inception.2010.1080p.srt"), "subs")
	writeFile(t, filepath.Join(in, "Inception.2010.1080p.en.forced.ass"), "subs")
	writeFile(t, filepath.Join(in, "Other.srt"), "no")

	e := newEngine(t, Options{Mode: ModeCopy})
	res, err := e.Place(context.Background(), resolvedFile(src, inception), out)
	require.NoError(t, err)

	want := filepath.Join(out, "Movies", "Inception (2010)", "Inception (2010) - [1080p].mkv")
	assert.Equal(t, want, res.Destination)
	assert.False(t, res.AlreadyPresent)
	assert.Equal(t, int64(5), res.Bytes)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))

	st, err := os.Stat(want)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), st.Mode().Perm())

	assert.FileExists(t, src)
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(want), "*"+partSuffix))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
	assert.ElementsMatch(t, []string{
		filepath.Join(out, "Movies", "Inception (2010)", "Inception (2010) - [1080p].srt"),
		filepath.Join(out, "Movies", "Inception (2010)", "Inception (2010) - [1080p].en.forced.ass"),
	}, res.Sidecars)
	assert.Empty(t, res.SidecarErrors)
}

func TestPlace_SeriesHardLink(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "Breaking.Bad.S01E01.mkv")
	writeFile(t, src, "ep")

	info := media.MediaInfo{Kind: media.KindSeries, Title: "Breaking Bad", Year: media.Int(2008), Season: media.Int(1), Episode: media.Int(1)}
	e := newEngine(t, Options{Mode: ModeLink})
	res, err := e.Place(context.Background(), resolvedFile(src, info), out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "TV Shows", "Breaking Bad (2008)", "Season 01", "S01E01.mkv"), res.Destination)

	srcInfo, err := os.Stat(src)
	require.NoError(t, err)
	dstInfo, err := os.Stat(res.Destination)
	require.NoError(t, err)
	assert.True(t, os.SameFile(srcInfo, dstInfo))
}

func TestPlace_RerunIsNoop(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "one")
	file := resolvedFile(src, inception)

	e := newEngine(t, Options{Mode: ModeCopy})
	first, err := e.Place(context.Background(), file, out)
	require.NoError(t, err)
	require.False(t, first.AlreadyPresent)

	writeFile(t, src, "two")
	second, err := e.Place(context.Background(), file, out)
	require.NoError(t, err)
	assert.True(t, second.AlreadyPresent)
	assert.Equal(t, first.Destination, second.Destination)

	data, err := os.ReadFile(second.Destination)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestPlace_OverwriteReplaces(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "new")
	file := resolvedFile(src, inception)

	dst, err := Destination(file, out)
	require.NoError(t, err)
	writeFile(t, dst, "old")

	e := newEngine(t, Options{Mode: ModeCopy, Overwrite: true})
	res, err := e.Place(context.Background(), file, out)
	require.NoError(t, err)
	assert.False(t, res.AlreadyPresent)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestPlace_OverwriteKeepsHardLinkedSource(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "data")
	file := resolvedFile(src, inception)

	e := newEngine(t, Options{Mode: ModeLink, Overwrite: true})
	_, err := e.Place(context.Background(), file, out)
	require.NoError(t, err)
	res, err := e.Place(context.Background(), file, out)
	require.NoError(t, err)
	assert.True(t, res.AlreadyPresent)
	assert.FileExists(t, src)
}

func TestPlace_Move(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "data")

	e := newEngine(t, Options{Mode: ModeMove})
	res, err := e.Place(context.Background(), resolvedFile(src, inception), out)
	require.NoError(t, err)
	assert.NoFileExists(t, src)
	assert.FileExists(t, res.Destination)
}

func TestPlace_Symlink(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "data")

	e := newEngine(t, Options{Mode: ModeSymlink})
	res, err := e.Place(context.Background(), resolvedFile(src, inception), out)
	require.NoError(t, err)

	target, err := os.Readlink(res.Destination)
	require.NoError(t, err)
	assert.Equal(t, src, target)
	assert.True(t, filepath.IsAbs(target))
}

func TestPlace_DryRunTouchesNothing(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "data")
	writeFile(t, filepath.Join(in, "a.srt"), "subs")

	e := newEngine(t, Options{Mode: ModeMove, DryRun: true})
	res, err := e.Place(context.Background(), resolvedFile(src, inception), out)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Sidecars, 1)
	assert.FileExists(t, src)
	assert.NoFileExists(t, res.Destination)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPlace_UnknownKind(t *testing.T) {
	in := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "data")

	e := newEngine(t, Options{Mode: ModeCopy})
	_, err := e.Place(context.Background(), resolvedFile(src, media.MediaInfo{Kind: "Documentary", Title: "X"}), t.TempDir())
	require.Error(t, err)
	assert.True(t, naming.IsUnknownMediaType(err))
}

func TestPlace_NoMetadata(t *testing.T) {
	e := newEngine(t, Options{Mode: ModeCopy})
	_, err := e.Place(context.Background(), media.NewScannedFile("/in/a.mkv", 1), t.TempDir())
	require.Error(t, err)
	assert.True(t, IsPlacementError(err))
}

func TestPlace_MissingSourceFails(t *testing.T) {
	e := newEngine(t, Options{Mode: ModeCopy})
	_, err := e.Place(context.Background(), resolvedFile(filepath.Join(t.TempDir(), "gone.mkv"), inception), t.TempDir())
	require.Error(t, err)
	assert.True(t, IsPlacementError(err))
}

func TestFindSidecars(t *testing.T) {
	in := t.TempDir()
	video := filepath.Join(in, "Show - 01.mkv")
	writeFile(t, video, "v")
	writeFile(t, filepath.Join(in, "Show - 01.SRT"), "s")
	writeFile(t, filepath.Join(in, "Show - 01.zh.ass"), "s")
	writeFile(t, filepath.Join(in, "Show - 012.srt"), "s")
	writeFile(t, filepath.Join(in, "Show - 01.nfo"), "n")

	got, err := FindSidecars(video, "/lib/S01E01.mkv")
	require.NoError(t, err)
	dests := make([]string, 0, len(got))
	for _, sc := range got {
		dests = append(dests, sc.Destination)
	}
	assert.ElementsMatch(t, []string{"/lib/S01E01.SRT", "/lib/S01E01.zh.ass"}, dests)
}

func TestPlace_SameDestinationConcurrently(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	info := media.MediaInfo{Kind: media.KindSeries, Title: "Show", Season: media.Int(1), Episode: media.Int(5)}

	contents := map[string]string{
		filepath.Join(in, "Show.S01E05.1080p.mkv"): strings.Repeat("A", 1<<20),
		filepath.Join(in, "Show.S01E05.720p.mkv"):  strings.Repeat("B", 1<<20),
	}
	for path, data := range contents {
		writeFile(t, path, data)
	}

	e := newEngine(t, Options{Mode: ModeCopy})
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*Result
	)
	for path := range contents {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			res, err := e.Place(context.Background(), resolvedFile(path, info), out)
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(path)
	}
	wg.Wait()

	require.Len(t, results, 2)
	presentCount := 0
	var winner string
	for _, res := range results {
		require.NotNil(t, res)
		if res.AlreadyPresent {
			presentCount++
		} else {
			winner = res.Source
		}
	}
	assert.Equal(t, 1, presentCount)

	dst := filepath.Join(out, "TV Shows", "Show", "Season 01", "S01E05.mkv")
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, contents[winner], string(data))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(dst), "*"+partSuffix))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
	assert.Zero(t, destLocks.size())
}

func TestPlace_OccupiedDestinationSkipsSidecars(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	info := media.MediaInfo{Kind: media.KindSeries, Title: "Show", Season: media.Int(1), Episode: media.Int(5)}

	first := filepath.Join(in, "Show.S01E05.1080p.mkv")
	writeFile(t, first, "A")
	second := filepath.Join(in, "Show.S01E05.720p.mkv")
	writeFile(t, second, "B")
	writeFile(t, filepath.Join(in, "Show.S01E05.720p.srt"), "subs for B")

	e := newEngine(t, Options{Mode: ModeCopy})
	_, err := e.Place(context.Background(), resolvedFile(first, info), out)
	require.NoError(t, err)

	res, err := e.Place(context.Background(), resolvedFile(second, info), out)
	require.NoError(t, err)
	assert.True(t, res.AlreadyPresent)
	assert.Empty(t, res.Sidecars)
	assert.NoFileExists(t, filepath.Join(out, "TV Shows", "Show", "Season 01", "S01E05.srt"))
}

func TestLockTable_SerializesAndReleases(t *testing.T) {
	table := newLockTable()
	unlock := table.lock("/lib/a.mkv")
	assert.Equal(t, 1, table.size())

	acquired := make(chan struct{})
	go func() {
		release := table.lock("/lib/a.mkv")
		close(acquired)
		release()
	}()

	other := table.lock("/lib/b.mkv")
	other()

	select {
	case <-acquired:
		t.Fatal("second lock on the same path acquired while held")
	default:
	}
	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return table.size() == 0 }, time.Second, 10*time.Millisecond)
}
