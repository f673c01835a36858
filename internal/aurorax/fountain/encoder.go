package fountain

import (
	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
)

// Encoder partitions a payload into K fixed-size blocks and emits rateless
// output symbols over them (spec §4.1).
type Encoder struct {
	blockSize int
	blocks    [][]byte
	k         int
	rng       *prng.Source
}

// NewEncoder partitions payload into K = ceil(len(payload)/blockSize) equal
// blocks, zero-padding the last one. rng drives seed selection and must be
// the caller's seeded source to keep the run reproducible.
func NewEncoder(payload []byte, blockSize int, rng *prng.Source) *Encoder {
	if blockSize <= 0 {
		blockSize = 1
	}
	k := (len(payload) + blockSize - 1) / blockSize
	if k == 0 {
		k = 1
	}
	blocks := make([][]byte, k)
	for i := 0; i < k; i++ {
		block := make([]byte, blockSize)
		start := i * blockSize
		end := start + blockSize
		if end > len(payload) {
			end = len(payload)
		}
		if start < len(payload) {
			copy(block, payload[start:end])
		}
		blocks[i] = block
	}
	return &Encoder{blockSize: blockSize, blocks: blocks, k: k, rng: rng}
}

// K returns the source block count.
func (e *Encoder) K() int { return e.k }

// BlockSize returns T, the fixed block size for this spawn.
func (e *Encoder) BlockSize() int { return e.blockSize }

// Emit returns one output symbol: a fresh seed, the degree and index set it
// deterministically expands to, and the XOR of those source blocks.
func (e *Encoder) Emit() Symbol {
	seed := e.rng.Uint32()
	degree, indices := degreeAndIndicesForSeed(seed, e.k)

	data := make([]byte, e.blockSize)
	for _, idx := range indices {
		xorInto(data, e.blocks[idx])
	}
	return Symbol{Seed: seed, Degree: uint32(degree), Data: data}
}

// EmitN returns n output symbols.
func (e *Encoder) EmitN(n int) []Symbol {
	out := make([]Symbol, n)
	for i := range out {
		out[i] = e.Emit()
	}
	return out
}
