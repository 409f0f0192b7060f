//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package filedev

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func lock(file *os.File) error {
	err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EWOULDBLOCK):
		return errors.WithStack(ErrLocked)
	default:
		return errors.WithStack(err)
	}
}

func unlock(file *os.File) error {
	return errors.WithStack(unix.Flock(int(file.Fd()), unix.LOCK_UN))
}
