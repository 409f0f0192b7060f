package gate

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/outofforest/sst"
	"github.com/outofforest/sst/token"
	"github.com/outofforest/sst/types"
)

// Gate is the only entry point to the object system shared by many callers.
// It admits one call at a time and translates arguments and errors to the primitive form.
type Gate struct {
	sem    *semaphore.Weighted
	system *sst.System
}

// New returns new gate.
func New(system *sst.System) *Gate {
	return &Gate{
		sem:    semaphore.NewWeighted(1),
		system: system,
	}
}

// Prepare prepares the object system.
func (g *Gate) Prepare(ctx context.Context) types.ResultCode {
	return g.call(ctx, g.system.Prepare)
}

// Create creates the object.
func (g *Gate) Create(ctx context.Context, uuid uint32, tok []byte, objectType, size uint32) types.ResultCode {
	return g.call(ctx, func() error {
		t, err := token.FromBytes(tok)
		if err != nil {
			return err
		}
		return g.system.Create(types.UUID(uuid), t, types.ObjectType(objectType), size)
	})
}

// CreateWithFlags creates the object with initial policy flags.
func (g *Gate) CreateWithFlags(
	ctx context.Context,
	uuid uint32,
	tok []byte,
	objectType, size, flags uint32,
) types.ResultCode {
	return g.call(ctx, func() error {
		t, err := token.FromBytes(tok)
		if err != nil {
			return err
		}
		return g.system.CreateWithAttributes(types.UUID(uuid), t, types.ObjectType(objectType), size,
			types.Attributes{Flags: types.Flags(flags)})
	})
}

// Read reads len(out) bytes of the object starting at offset.
func (g *Gate) Read(ctx context.Context, uuid uint32, tok []byte, offset uint32, out []byte) types.ResultCode {
	return g.call(ctx, func() error {
		t, err := token.FromBytes(tok)
		if err != nil {
			return err
		}
		return g.system.Read(types.UUID(uuid), t, offset, out)
	})
}

// Write writes data to the object starting at offset.
func (g *Gate) Write(ctx context.Context, uuid uint32, tok []byte, offset uint32, data []byte) types.ResultCode {
	return g.call(ctx, func() error {
		t, err := token.FromBytes(tok)
		if err != nil {
			return err
		}
		return g.system.Write(types.UUID(uuid), t, offset, data)
	})
}

// Delete deletes the object.
func (g *Gate) Delete(ctx context.Context, uuid uint32, tok []byte) types.ResultCode {
	return g.call(ctx, func() error {
		t, err := token.FromBytes(tok)
		if err != nil {
			return err
		}
		return g.system.Delete(types.UUID(uuid), t)
	})
}

// GetInfo returns the information about the object.
func (g *Gate) GetInfo(ctx context.Context, uuid uint32, tok []byte) (types.Info, types.ResultCode) {
	var info types.Info
	code := g.call(ctx, func() error {
		t, err := token.FromBytes(tok)
		if err != nil {
			return err
		}
		info, err = g.system.GetInfo(types.UUID(uuid), t)
		return err
	})
	return info, code
}

// GetAttributes returns the policy flags of the object.
func (g *Gate) GetAttributes(ctx context.Context, uuid uint32, tok []byte) (uint32, types.ResultCode) {
	var attrs types.Attributes
	code := g.call(ctx, func() error {
		t, err := token.FromBytes(tok)
		if err != nil {
			return err
		}
		attrs, err = g.system.GetAttributes(types.UUID(uuid), t)
		return err
	})
	return uint32(attrs.Flags), code
}

// SetAttributes sets the policy flags of the object.
func (g *Gate) SetAttributes(ctx context.Context, uuid uint32, tok []byte, flags uint32) types.ResultCode {
	return g.call(ctx, func() error {
		t, err := token.FromBytes(tok)
		if err != nil {
			return err
		}
		return g.system.SetAttributes(types.UUID(uuid), t, types.Attributes{Flags: types.Flags(flags)})
	})
}

// WipeAll destroys all the objects.
func (g *Gate) WipeAll(ctx context.Context) types.ResultCode {
	return g.call(ctx, g.system.WipeAll)
}

func (g *Gate) call(ctx context.Context, fn func() error) types.ResultCode {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return types.Busy
	}
	defer g.sem.Release(1)

	return types.CodeOf(fn())
}
