package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/sst/types"
)

func tok(b byte) Token {
	var t Token
	for i := range t {
		t[i] = b
	}
	return t
}

func TestValidate(t *testing.T) {
	assertT := assert.New(t)

	k1 := tok(0x01)
	assertT.True(Validate(k1, tok(0x01)))
	assertT.False(Validate(k1, tok(0x02)))
	assertT.False(Validate(k1, Token{}))

	// Prefix match is not enough.
	k2 := k1
	k2[Size-1] = 0x00
	assertT.False(Validate(k1, k2))

	k3 := k1
	k3[0] = 0x00
	assertT.False(Validate(k1, k3))
}

func TestFromBytes(t *testing.T) {
	requireT := require.New(t)

	tk, err := FromBytes(make([]byte, Size))
	requireT.NoError(err)
	requireT.Equal(Token{}, tk)

	b := make([]byte, Size)
	b[5] = 0x05
	tk, err = FromBytes(b)
	requireT.NoError(err)
	requireT.EqualValues(0x05, tk[5])

	_, err = FromBytes(make([]byte, Size-1))
	requireT.ErrorIs(err, types.ErrNotAuthorized)

	_, err = FromBytes(make([]byte, Size+1))
	requireT.ErrorIs(err, types.ErrNotAuthorized)
}

func TestDefaultPolicy(t *testing.T) {
	requireT := require.New(t)

	p := Policy{}
	for _, op := range []Operation{OpRead, OpWrite, OpDelete, OpGetInfo, OpGetAttributes, OpSetAttributes} {
		requireT.True(p.RequiresToken(op), op.String())
		requireT.NoError(p.Authorize(op, tok(0x01), tok(0x01)))
		requireT.ErrorIs(p.Authorize(op, tok(0x01), tok(0x02)), types.ErrNotAuthorized)
	}
}

func TestPublicMetadataPolicy(t *testing.T) {
	requireT := require.New(t)

	p := Policy{PublicInfo: true, PublicAttributes: true}
	requireT.False(p.RequiresToken(OpGetInfo))
	requireT.False(p.RequiresToken(OpGetAttributes))
	requireT.True(p.RequiresToken(OpSetAttributes))
	requireT.True(p.RequiresToken(OpRead))

	requireT.NoError(p.Authorize(OpGetInfo, tok(0x01), tok(0x02)))
	requireT.NoError(p.Authorize(OpGetAttributes, tok(0x01), tok(0x02)))
	requireT.ErrorIs(p.Authorize(OpSetAttributes, tok(0x01), tok(0x02)), types.ErrNotAuthorized)
}
