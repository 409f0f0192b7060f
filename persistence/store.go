package persistence

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/sst/types"
)

const (
	// MinBlockSize is the smallest supported block size.
	MinBlockSize = 512

	// ErasedByte is the value of every byte of an erased block.
	ErasedByte = 0xff
)

// Dev is the interface required from the device.
type Dev interface {
	io.ReadWriteSeeker
	Sync() error
	Size() int64
}

// Store is the block store adapter. It exposes the device as a sequence of blocks which may be read,
// programmed and erased.
type Store struct {
	dev       Dev
	blockSize int64
	nBlocks   uint64
	erased    []byte
}

// Open opens the block store on top of the device.
func Open(dev Dev, blockSize int64) (*Store, error) {
	if blockSize < MinBlockSize || blockSize&(blockSize-1) != 0 {
		return nil, errors.Errorf("block size must be a power of two not smaller than %d, provided: %d",
			MinBlockSize, blockSize)
	}

	nBlocks := dev.Size() / blockSize
	if nBlocks == 0 {
		return nil, errors.Errorf("device is too small, size: %d, block size: %d", dev.Size(), blockSize)
	}

	return &Store{
		dev:       dev,
		blockSize: blockSize,
		nBlocks:   uint64(nBlocks),
		erased:    bytes.Repeat([]byte{ErasedByte}, int(blockSize)),
	}, nil
}

// BlockSize returns the size of the block.
func (s *Store) BlockSize() int64 {
	return s.blockSize
}

// NBlocks returns the number of usable blocks.
func (s *Store) NBlocks() uint64 {
	return s.nBlocks
}

// ReadBlock reads raw block bytes from the addressed block.
func (s *Store) ReadBlock(address types.BlockAddress, p []byte) error {
	if len(p) == 0 || int64(len(p)) > s.blockSize {
		return errors.Errorf("invalid size of output buffer: %d", len(p))
	}
	if err := s.seek(address); err != nil {
		return err
	}
	if _, err := s.dev.Read(p); err != nil {
		return errors.Wrapf(types.ErrStorageIO, "reading block %d failed: %s", address, err)
	}
	return nil
}

// ProgramBlock writes raw block bytes to the addressed block.
func (s *Store) ProgramBlock(address types.BlockAddress, p []byte) error {
	if len(p) == 0 || int64(len(p)) > s.blockSize {
		return errors.Errorf("invalid size of input buffer: %d", len(p))
	}
	if err := s.seek(address); err != nil {
		return err
	}
	if _, err := s.dev.Write(p); err != nil {
		return errors.Wrapf(types.ErrStorageIO, "programming block %d failed: %s", address, err)
	}
	return nil
}

// EraseBlock brings the addressed block to the erased state.
func (s *Store) EraseBlock(address types.BlockAddress) error {
	if err := s.seek(address); err != nil {
		return err
	}
	if _, err := s.dev.Write(s.erased); err != nil {
		return errors.Wrapf(types.ErrStorageIO, "erasing block %d failed: %s", address, err)
	}
	return nil
}

// Read reads bytes starting at the beginning of the addressed block. Reading may span many blocks.
func (s *Store) Read(address types.BlockAddress, p []byte) error {
	for len(p) > 0 {
		n := int64(len(p))
		if n > s.blockSize {
			n = s.blockSize
		}
		if err := s.ReadBlock(address, p[:n]); err != nil {
			return err
		}
		p = p[n:]
		address++
	}
	return nil
}

// Program writes bytes starting at the beginning of the addressed block. Writing may span many blocks.
func (s *Store) Program(address types.BlockAddress, p []byte) error {
	for len(p) > 0 {
		n := int64(len(p))
		if n > s.blockSize {
			n = s.blockSize
		}
		if err := s.ProgramBlock(address, p[:n]); err != nil {
			return err
		}
		p = p[n:]
		address++
	}
	return nil
}

// Erase erases the range of blocks.
func (s *Store) Erase(r types.BlockRange) error {
	for address := r.Start; address < r.End(); address++ {
		if err := s.EraseBlock(address); err != nil {
			return err
		}
	}
	return nil
}

// Sync forces data to be written to the dev.
func (s *Store) Sync() error {
	if err := s.dev.Sync(); err != nil {
		return errors.Wrapf(types.ErrStorageIO, "sync failed: %s", err)
	}
	return nil
}

func (s *Store) seek(address types.BlockAddress) error {
	if uint64(address) >= s.nBlocks {
		return errors.Wrapf(types.ErrStorageIO, "block %d is outside the device of %d blocks", address, s.nBlocks)
	}
	if _, err := s.dev.Seek(int64(address)*s.blockSize, io.SeekStart); err != nil {
		return errors.Wrapf(types.ErrStorageIO, "seeking to block %d failed: %s", address, err)
	}
	return nil
}
