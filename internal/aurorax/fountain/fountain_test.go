package fountain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
)

func randomPayload(seed uint64, n int) []byte {
	src := prng.New(seed)
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(src.Uint64())
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := randomPayload(42, 4096)
	const blockSize = 256

	enc := NewEncoder(payload, blockSize, prng.New(1))
	k := enc.K()

	dec := NewDecoder(k, blockSize)
	symbols := enc.EmitN(k + 8)
	for _, s := range symbols {
		dec.Add(s)
	}

	ok, out := dec.Solve()
	require.True(t, ok)
	assert.Equal(t, payload, out[:len(payload)])
}

func TestDecodeInsufficientSymbolsFails(t *testing.T) {
	payload := randomPayload(43, 2048)
	const blockSize = 256

	enc := NewEncoder(payload, blockSize, prng.New(2))
	k := enc.K()

	dec := NewDecoder(k, blockSize)
	for _, s := range enc.EmitN(k - 1) {
		dec.Add(s)
	}

	ok, out := dec.Solve()
	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestDuplicateSymbolsDoNotAdvanceRank(t *testing.T) {
	payload := randomPayload(44, 1024)
	const blockSize = 128

	enc := NewEncoder(payload, blockSize, prng.New(3))
	dec := NewDecoder(enc.K(), blockSize)

	sym := enc.Emit()
	added1 := dec.Add(sym)
	added2 := dec.Add(sym)

	assert.True(t, added1)
	assert.False(t, added2)
	assert.Equal(t, 1, dec.Rank())
	assert.Equal(t, 2, dec.SymbolsSeen())
	assert.Equal(t, 1, dec.SymbolsUsed())
}

func TestDegreeClampedToK(t *testing.T) {
	cdf := degreeCDF(1)
	assert.Equal(t, 1, sampleDegree(cdf, 0.99))
}
