//go:build !unix && !windows

package placement

func isEXDEV(error) bool { return false }

func isLinkRefused(error) bool { return false }
