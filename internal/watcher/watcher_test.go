package watcher

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
)

type recordingHandler struct {
	mu     sync.Mutex
	events []FileEvent
}

func (h *recordingHandler) HandleFileEvent(event FileEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) IsMediaFile(path string) bool {
	return strings.HasSuffix(path, ".mkv")
}

func (h *recordingHandler) seen(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e.Path == path {
			return true
		}
	}
	return false
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func startWatcher(t *testing.T, h Handler, dir string) {
	t.Helper()
	w, err := NewWatcher(h)
	require.NoError(t, err)
	require.NoError(t, w.Watch([]string{dir}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
}

func TestNewWatcher_RequiresHandler(t *testing.T) {
	_, err := NewWatcher(nil)
	assert.Error(t, err)
}

func TestWatch_MissingPath(t *testing.T) {
	w, err := NewWatcher(&recordingHandler{})
	require.NoError(t, err)
	defer w.Close()

	err = w.Watch([]string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestWatcher_ReportsVideoFiles(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, h, dir)

	video := filepath.Join(dir, "Show.S01E01.mkv")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return h.seen(video) }, 2*time.Second, 20*time.Millisecond)
	assert.False(t, h.seen(filepath.Join(dir, "notes.txt")))
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, h, dir)

	sub := filepath.Join(dir, "Season 1")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// let the watcher register the new directory
	time.Sleep(100 * time.Millisecond)

	video := filepath.Join(sub, "Show.S01E02.mkv")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return h.seen(video) }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_SkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	hiddenDir := filepath.Join(dir, ".partial")
	require.NoError(t, os.Mkdir(hiddenDir, 0o755))

	h := &recordingHandler{}
	startWatcher(t, h, dir)

	require.NoError(t, os.WriteFile(filepath.Join(hiddenDir, "a.mkv"), []byte("x"), 0o644))
	visible := filepath.Join(dir, "b.mkv")
	require.NoError(t, os.WriteFile(visible, []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return h.seen(visible) }, 2*time.Second, 20*time.Millisecond)
	assert.False(t, h.seen(filepath.Join(hiddenDir, "a.mkv")))
	assert.GreaterOrEqual(t, h.count(), 1)
}
