//go:build unix

package placement

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlace_HardLinkCrossDevice(t *testing.T) {
	old := linkFunc
	linkFunc = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EXDEV}
	}
	defer func() { linkFunc = old }()

	in := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "data")

	e := newEngine(t, Options{Mode: ModeLink})
	_, err := e.Place(context.Background(), resolvedFile(src, inception), t.TempDir())
	require.Error(t, err)
	assert.True(t, IsCrossDeviceLink(err))
	assert.Contains(t, err.Error(), "same drive/partition")
	assert.ErrorIs(t, err, syscall.EXDEV)
}

func TestPlace_HardLinkPermissionDenied(t *testing.T) {
	old := linkFunc
	linkFunc = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EPERM}
	}
	defer func() { linkFunc = old }()

	in := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "data")

	e := newEngine(t, Options{Mode: ModeLink})
	_, err := e.Place(context.Background(), resolvedFile(src, inception), t.TempDir())
	assert.True(t, IsCrossDeviceLink(err))
}

func TestPlace_MoveCrossDeviceFallsBackToCopy(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	in := t.TempDir()
	src := filepath.Join(in, "a.mkv")
	writeFile(t, src, "data")

	e := newEngine(t, Options{Mode: ModeMove})
	res, err := e.Place(context.Background(), resolvedFile(src, inception), t.TempDir())
	require.NoError(t, err)
	assert.NoFileExists(t, src)

	data, err := os.ReadFile(res.Destination)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
