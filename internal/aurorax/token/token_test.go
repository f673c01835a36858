package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndVerify(t *testing.T) {
	pub, priv, err := Keypair()
	require.NoError(t, err)

	tok := Create([]byte("hello aurora"), 1000, 2000, 7, pub, priv)
	assert.True(t, tok.Verify())
	assert.Len(t, tok.ID, 16)
}

func TestVerifyFailsOnTamperedPayload(t *testing.T) {
	pub, priv, err := Keypair()
	require.NoError(t, err)

	tok := Create([]byte("hello aurora"), 1000, 2000, 7, pub, priv)
	tok.Payload = []byte("tampered!!!!")
	assert.False(t, tok.Verify())
}

func TestWireRoundTrip(t *testing.T) {
	pub, priv, err := Keypair()
	require.NoError(t, err)

	tok := Create([]byte("payload bytes for wire round trip"), 111, 222, 3, pub, priv)
	encoded := tok.Encode()

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, tok.ID, decoded.ID)
	assert.Equal(t, tok.Payload, decoded.Payload)
	assert.Equal(t, tok.CreatedTS, decoded.CreatedTS)
	assert.Equal(t, tok.ExpiryTS, decoded.ExpiryTS)
	assert.Equal(t, []byte(tok.PublicKey), []byte(decoded.PublicKey))
	assert.Equal(t, tok.Signature, decoded.Signature)
	assert.True(t, decoded.Verify())
}

func TestDecodeOverrun(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrWireOverrun)
}

func TestProofShapeDeterministic(t *testing.T) {
	p1 := NewProofShape("tok-1", []string{"aaaa", "bbbb"}, false)
	p2 := NewProofShape("tok-1", []string{"aaaa", "bbbb"}, false)
	assert.Equal(t, p1.RootHash, p2.RootHash)

	p3 := NewProofShape("tok-1", []string{"bbbb", "aaaa"}, false)
	assert.NotEqual(t, p1.RootHash, p3.RootHash)
}
