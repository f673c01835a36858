// Package token implements the Aurora-X authenticated payload: creation,
// the length-prefixed wire form, and the opaque sign/verify primitives
// consumed by the engine. The signature scheme itself carries no novelty
// (spec §1 Non-goals) — it is ed25519 from the standard library, treated as
// an opaque collaborator per §6.
package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Token is the single authenticated payload Aurora-X delivers. It is
// immutable after Create.
type Token struct {
	ID         string
	Payload    []byte
	CreatedTS  uint64
	ExpiryTS   uint64
	PublicKey  ed25519.PublicKey
	Signature  []byte
}

// h64 returns the opaque 16-hex-char hash §6 specifies, derived from a
// blake2b-64 digest truncated to 8 bytes.
func h64(data []byte) string {
	sum := blake2b.Sum512(data)
	return hex.EncodeToString(sum[:8])
}

// idFor computes the token ID: a 64-bit hash of payload+ttl+nonce hex-encoded.
func idFor(payload []byte, expiryTS uint64, nonce uint64) string {
	buf := make([]byte, len(payload)+8+8)
	copy(buf, payload)
	binary.LittleEndian.PutUint64(buf[len(payload):], expiryTS)
	binary.LittleEndian.PutUint64(buf[len(payload)+8:], nonce)
	return h64(buf)
}

// signedMessage returns the bytes the signature covers: id ∥ payload ∥ expiry.
func signedMessage(id string, payload []byte, expiryTS uint64) []byte {
	buf := make([]byte, 0, len(id)+len(payload)+8)
	buf = append(buf, []byte(id)...)
	buf = append(buf, payload...)
	expBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(expBuf, expiryTS)
	buf = append(buf, expBuf...)
	return buf
}

// Create builds and signs a new Token. nonce disambiguates otherwise
// identical payload+ttl pairs created in the same step.
func Create(payload []byte, createdTS, expiryTS, nonce uint64, pub ed25519.PublicKey, priv ed25519.PrivateKey) Token {
	id := idFor(payload, expiryTS, nonce)
	sig := ed25519.Sign(priv, signedMessage(id, payload, expiryTS))
	return Token{
		ID:        id,
		Payload:   payload,
		CreatedTS: createdTS,
		ExpiryTS:  expiryTS,
		PublicKey: append(ed25519.PublicKey(nil), pub...),
		Signature: sig,
	}
}

// Verify checks the token's signature against its own public key. A false
// result does not invalidate a recovered payload — per §7 a bad signature is
// surfaced (SigBad) while delivery still stands.
func (t Token) Verify() bool {
	return ed25519.Verify(t.PublicKey, signedMessage(t.ID, t.Payload, t.ExpiryTS), t.Signature)
}

// Keypair generates a fresh ed25519 keypair, the opaque keypair() of §6.
func Keypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("token: generate keypair: %w", err)
	}
	return pub, priv, nil
}
