package placement

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const copyBufferSize = 4 << 20

// partSuffix marks an in-progress copy. A crash leaves a .part file
// behind but never a truncated file under the final name.
const partSuffix = ".part"

// copyFile streams src into dst via a uniquely named temporary file in
// dst's directory, keeping src's permission bits.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("source is not a regular file: %s", src)
	}

	out, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*"+partSuffix)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmp := out.Name()
	done := false
	defer func() {
		if !done {
			_ = out.Close()
			_ = os.Remove(tmp)
		}
	}()

	n, err := io.CopyBuffer(out, in, make([]byte, copyBufferSize))
	if err != nil {
		return n, fmt.Errorf("copy data: %w", err)
	}
	if n != info.Size() {
		return n, fmt.Errorf("short copy: %d of %d bytes", n, info.Size())
	}
	if err := out.Sync(); err != nil {
		return n, fmt.Errorf("sync: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("close: %w", err)
	}
	done = true

	// CreateTemp always uses 0600
	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("finalize: %w", err)
	}
	return n, nil
}
