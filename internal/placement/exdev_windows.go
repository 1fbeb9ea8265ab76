//go:build windows

package placement

import (
	"errors"
	"syscall"
)

const (
	errorAccessDenied  syscall.Errno = 5
	errorNotSameDevice syscall.Errno = 17
)

func isEXDEV(err error) bool {
	return errors.Is(err, errorNotSameDevice)
}

func isLinkRefused(err error) bool {
	return errors.Is(err, errorNotSameDevice) || errors.Is(err, errorAccessDenied)
}
