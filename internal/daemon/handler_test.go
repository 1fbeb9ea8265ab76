package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuunylmz/Re-aniname/internal/classifier"
	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/placement"
	"github.com/fuunylmz/Re-aniname/internal/resolver"
	"github.com/fuunylmz/Re-aniname/internal/watcher"
)

func newTestHandler(t *testing.T, out string, debounce time.Duration) *MediaHandler {
	t.Helper()
	p := pipeline.New(resolver.New(classifier.Heuristic{}, nil, logging.Nop()), logging.Nop())
	h := NewMediaHandler(MediaHandlerConfig{
		Pipeline: p,
		Options: pipeline.Options{
			OutputDir: out,
			Workers:   1,
			Placement: placement.Options{Mode: placement.ModeCopy},
		},
		DebounceTime: debounce,
	})
	t.Cleanup(h.Shutdown)
	return h
}

func TestMediaHandler_IsMediaFile(t *testing.T) {
	h := newTestHandler(t, t.TempDir(), time.Millisecond)
	assert.True(t, h.IsMediaFile("/in/Show.S01E01.MKV"))
	assert.False(t, h.IsMediaFile("/in/Show.S01E01.nfo"))
}

func TestMediaHandler_OrganizesAfterDebounce(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "Breaking.Bad.S01E01.720p.HDTV.x264-GROUP.mkv")
	require.NoError(t, os.WriteFile(src, []byte("episode"), 0o644))

	h := newTestHandler(t, out, 20*time.Millisecond)
	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventCreate, Path: src}))
	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventWrite, Path: src}))
	assert.Equal(t, 1, h.Pending())

	want := filepath.Join(out, "TV Shows", "Breaking Bad", "Season 01", "S01E01.mkv")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(want)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return h.Stats().SeriesProcessed == 1 }, time.Second, 10*time.Millisecond)
	stats := h.Stats()
	assert.Equal(t, int64(1), stats.Total())
	assert.Equal(t, int64(len("episode")), stats.BytesTransferred)
	assert.Zero(t, stats.Errors)
	assert.Zero(t, h.Pending())
}

func TestMediaHandler_DeleteCancelsPending(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "Inception.2010.1080p.BluRay.x264-SPARKS.mkv")
	require.NoError(t, os.WriteFile(src, []byte("movie"), 0o644))

	h := newTestHandler(t, out, time.Hour)
	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventCreate, Path: src}))
	assert.Equal(t, 1, h.Pending())

	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventDelete, Path: src}))
	assert.Zero(t, h.Pending())
}

func TestMediaHandler_ShutdownDropsPending(t *testing.T) {
	h := newTestHandler(t, t.TempDir(), time.Hour)
	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventCreate, Path: "/in/a.mkv"}))
	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventCreate, Path: "/in/b.mkv"}))
	assert.Equal(t, 2, h.Pending())

	h.Shutdown()
	assert.Zero(t, h.Pending())

	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventCreate, Path: "/in/c.mkv"}))
	assert.Zero(t, h.Pending())
}

func TestMediaHandler_SkipsSmallFiles(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "Inception.2010.1080p.BluRay.x264-SPARKS.mkv")
	require.NoError(t, os.WriteFile(src, []byte("tiny"), 0o644))

	h := newTestHandler(t, out, time.Hour)
	h.minSize = 1 << 20
	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventCreate, Path: src}))
	h.processFile(src, pendingEntry(h, src))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, h.Stats().Total())
}

func pendingEntry(h *MediaHandler, path string) *pendingFile {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending[path]
}

func TestMediaHandler_SupersededTimerLeavesNewerPending(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "Breaking.Bad.S01E01.720p.HDTV.x264-GROUP.mkv")
	require.NoError(t, os.WriteFile(src, []byte("episode"), 0o644))

	h := newTestHandler(t, out, time.Hour)
	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventCreate, Path: src}))
	first := pendingEntry(h, src)
	require.NoError(t, h.HandleFileEvent(watcher.FileEvent{Type: watcher.EventWrite, Path: src}))
	second := pendingEntry(h, src)
	require.NotSame(t, first, second)

	// the first timer fires after the write already replaced it
	h.processFile(src, first)
	assert.Equal(t, 1, h.Pending())
	assert.Zero(t, h.Stats().Total())
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)

	h.processFile(src, second)
	assert.Zero(t, h.Pending())
	assert.Equal(t, int64(1), h.Stats().SeriesProcessed)
	assert.FileExists(t, filepath.Join(out, "TV Shows", "Breaking Bad", "Season 01", "S01E01.mkv"))
}

func TestStats_RecordFile(t *testing.T) {
	s := NewStats()

	movie := media.NewScannedFile("/in/m.mkv", 10)
	movie.Status = media.StatusSuccess
	movie.Info = &media.MediaInfo{Kind: media.KindMovie, Title: "M"}
	s.RecordFile(pipeline.FileReport{File: movie, Result: &placement.Result{Bytes: 10}})

	anime := media.NewScannedFile("/in/a.mkv", 5)
	anime.Status = media.StatusSuccess
	anime.Info = &media.MediaInfo{Kind: media.KindAnime, Title: "A"}
	s.RecordFile(pipeline.FileReport{File: anime, Result: &placement.Result{AlreadyPresent: true}})

	failed := media.NewScannedFile("/in/f.mkv", 5)
	failed.Status = media.StatusFailed
	s.RecordFile(pipeline.FileReport{File: failed})

	snap := s.Snapshot()
	assert.Equal(t, int64(1), snap.MoviesProcessed)
	assert.Zero(t, snap.AnimeProcessed)
	assert.Equal(t, int64(1), snap.AlreadyPresent)
	assert.Equal(t, int64(10), snap.BytesTransferred)
	assert.Equal(t, int64(1), snap.Errors)
	assert.False(t, snap.LastProcessed.IsZero())
}
