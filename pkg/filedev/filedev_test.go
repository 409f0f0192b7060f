package filedev

import (
	"io"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

const size = 64 * 1024

func TestOpenCreatesFile(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "dev")
	dev, err := Open(path, size)
	requireT.NoError(err)
	t.Cleanup(func() {
		_ = dev.Close()
	})

	requireT.EqualValues(size, dev.Size())
}

func TestWriteRead(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "dev")
	dev, err := Open(path, size)
	requireT.NoError(err)

	_, err = dev.Seek(100, io.SeekStart)
	requireT.NoError(err)
	n, err := dev.Write([]byte{0x01, 0x02, 0x03})
	requireT.NoError(err)
	requireT.Equal(3, n)
	requireT.NoError(dev.Sync())
	requireT.NoError(dev.Close())

	// Size passed on reopening is ignored because file exists.
	dev, err = Open(path, 2*size)
	requireT.NoError(err)
	defer dev.Close()

	requireT.EqualValues(size, dev.Size())

	_, err = dev.Seek(100, io.SeekStart)
	requireT.NoError(err)
	buf := make([]byte, 3)
	n, err = dev.Read(buf)
	requireT.NoError(err)
	requireT.Equal(3, n)
	requireT.Equal([]byte{0x01, 0x02, 0x03}, buf)
}

func TestExclusiveOwner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("locking is not supported")
	}

	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "dev")
	dev, err := Open(path, size)
	requireT.NoError(err)

	_, err = Open(path, size)
	requireT.ErrorIs(err, ErrLocked)

	requireT.NoError(dev.Close())

	dev, err = Open(path, size)
	requireT.NoError(err)
	requireT.NoError(dev.Close())
}
