//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package filedev

import "os"

func lock(_ *os.File) error {
	return nil
}

func unlock(_ *os.File) error {
	return nil
}
