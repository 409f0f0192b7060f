package filedev

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

var _ io.ReadWriteSeeker = &FileDev{}

// ErrLocked is returned if device file is already used by another owner.
var ErrLocked = errors.New("device file is locked by another owner")

// FileDev uses file handle as a device.
type FileDev struct {
	file *os.File
	size int64
}

// New returns new filedev.
func New(file *os.File) (*FileDev, error) {
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &FileDev{
		file: file,
		size: size,
	}, nil
}

// Open opens the device file, creating it with the requested size if it does not exist.
// The file is locked exclusively, so only one owner may use it at a time.
func Open(path string, size int64) (*FileDev, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := lock(file); err != nil {
		_ = file.Close()
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.WithStack(err)
	}
	if info.Size() == 0 && size > 0 {
		if err := file.Truncate(size); err != nil {
			_ = file.Close()
			return nil, errors.WithStack(err)
		}
	}

	fd, err := New(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return fd, nil
}

// Seek seeks the position.
func (fd *FileDev) Seek(offset int64, whence int) (int64, error) {
	n, err := fd.file.Seek(offset, whence)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Read reads data from the file.
func (fd *FileDev) Read(p []byte) (int, error) {
	n, err := io.ReadFull(fd.file, p)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Write writes data to the file.
func (fd *FileDev) Write(p []byte) (int, error) {
	n, err := fd.file.Write(p)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Sync syncs data to the file.
func (fd *FileDev) Sync() error {
	if err := fd.file.Sync(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Size returns the byte size of the file.
func (fd *FileDev) Size() int64 {
	return fd.size
}

// Close releases the lock and closes the file.
func (fd *FileDev) Close() error {
	if err := unlock(fd.file); err != nil {
		_ = fd.file.Close()
		return err
	}
	return errors.WithStack(fd.file.Close())
}
