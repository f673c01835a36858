package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
)

const (
	publicKeySize = ed25519.PublicKeySize // 32
	signatureSize = ed25519.SignatureSize // 64
)

// ErrWireOverrun is returned when a wire buffer is too short for the field
// it claims to hold. Per §7 this is a structural failure and is surfaced,
// never recovered locally.
var ErrWireOverrun = fmt.Errorf("token: wire buffer overrun")

// Encode serializes t into the little-endian wire form from §6:
// len_id:u32 ∥ id_bytes ∥ len_payload:u32 ∥ payload_bytes ∥ created:u64 ∥
// expiry:u64 ∥ public_key:32 ∥ signature:64.
func (t Token) Encode() []byte {
	idBytes := []byte(t.ID)
	size := 4 + len(idBytes) + 4 + len(t.Payload) + 8 + 8 + publicKeySize + signatureSize
	buf := make([]byte, size)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(idBytes)))
	off += 4
	off += copy(buf[off:], idBytes)

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(t.Payload)))
	off += 4
	off += copy(buf[off:], t.Payload)

	binary.LittleEndian.PutUint64(buf[off:], t.CreatedTS)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], t.ExpiryTS)
	off += 8

	off += copy(buf[off:], t.PublicKey)
	copy(buf[off:], t.Signature)

	return buf
}

// Decode parses the wire form produced by Encode. Any buffer too short for
// a claimed length returns ErrWireOverrun.
func Decode(buf []byte) (Token, error) {
	var t Token
	off := 0

	idLen, err := readU32(buf, off)
	if err != nil {
		return t, err
	}
	off += 4
	id, off2, err := readBytes(buf, off, int(idLen))
	if err != nil {
		return t, err
	}
	off = off2

	payloadLen, err := readU32(buf, off)
	if err != nil {
		return t, err
	}
	off += 4
	payload, off2, err := readBytes(buf, off, int(payloadLen))
	if err != nil {
		return t, err
	}
	off = off2

	created, off2, err := readU64At(buf, off)
	if err != nil {
		return t, err
	}
	off = off2

	expiry, off2, err := readU64At(buf, off)
	if err != nil {
		return t, err
	}
	off = off2

	pub, off2, err := readBytes(buf, off, publicKeySize)
	if err != nil {
		return t, err
	}
	off = off2

	sig, _, err := readBytes(buf, off, signatureSize)
	if err != nil {
		return t, err
	}

	t.ID = string(id)
	t.Payload = payload
	t.CreatedTS = created
	t.ExpiryTS = expiry
	t.PublicKey = ed25519.PublicKey(pub)
	t.Signature = sig
	return t, nil
}

func readU32(buf []byte, off int) (uint32, error) {
	if off+4 > len(buf) {
		return 0, ErrWireOverrun
	}
	return binary.LittleEndian.Uint32(buf[off : off+4]), nil
}

func readU64At(buf []byte, off int) (uint64, int, error) {
	if off+8 > len(buf) {
		return 0, 0, ErrWireOverrun
	}
	return binary.LittleEndian.Uint64(buf[off : off+8]), off + 8, nil
}

func readBytes(buf []byte, off, n int) ([]byte, int, error) {
	if n < 0 || off+n > len(buf) {
		return nil, 0, ErrWireOverrun
	}
	out := make([]byte, n)
	copy(out, buf[off:off+n])
	return out, off + n, nil
}
