package placement

import (
	"errors"
	"fmt"
)

// CrossDeviceLinkError is returned when a hard link cannot be created
// because source and destination live on different filesystems (or the
// filesystem refuses hard links).
type CrossDeviceLinkError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceLinkError) Error() string {
	return fmt.Sprintf("Hard link failed (Cross-device or Permission error). Source and destination MUST be on the same drive/partition for hard links. (%s -> %s: %v)", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceLinkError) Unwrap() error { return e.Err }

// IsCrossDeviceLink reports whether err is a CrossDeviceLinkError.
func IsCrossDeviceLink(err error) bool {
	var target *CrossDeviceLinkError
	return errors.As(err, &target)
}

// PlacementError wraps any other filesystem failure while placing a file.
type PlacementError struct {
	Op  string
	Src string
	Dst string
	Err error
}

func (e *PlacementError) Error() string {
	if e.Src == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Dst, e.Err)
	}
	return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
}

func (e *PlacementError) Unwrap() error { return e.Err }

// IsPlacementError reports whether err is a PlacementError.
func IsPlacementError(err error) bool {
	var target *PlacementError
	return errors.As(err, &target)
}
