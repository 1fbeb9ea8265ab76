//go:build unix

package placement

import (
	"errors"
	"syscall"
)

func isEXDEV(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// isLinkRefused reports errors for which a hard link can never succeed
// between the two paths.
func isLinkRefused(err error) bool {
	return errors.Is(err, syscall.EXDEV) || errors.Is(err, syscall.EPERM)
}
