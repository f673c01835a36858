package fountain

// Decoder accumulates rateless symbols and attempts a Gauss-Jordan solve
// over GF(2) (spec §4.1). K and the block size T are fixed for a spawn's
// segment; Decoder is built once per segment and fed symbols as they
// arrive.
type Decoder struct {
	k, blockSize int
	pivots       []*pivotRow // indexed by column; nil until that column has a pivot
	rank         int
	solvedData   []byte // set once Solve succeeds
	solved       bool

	symbolsSeen int // every Add call, including redundant/duplicate rows
	symbolsUsed int // Add calls that became a new pivot (contributed rank)
}

type pivotRow struct {
	bits bitset
	data []byte
}

// NewDecoder prepares a decoder for K blocks of size T.
func NewDecoder(k, blockSize int) *Decoder {
	return &Decoder{
		k:         k,
		blockSize: blockSize,
		pivots:    make([]*pivotRow, k),
	}
}

// K returns the source block count this decoder targets.
func (d *Decoder) K() int { return d.k }

// Rank returns the current row-echelon rank (number of independent rows
// contributed so far), 0 ≤ rank ≤ K.
func (d *Decoder) Rank() int { return d.rank }

// SymbolsSeen returns how many symbols have been fed to Add, including
// redundant ones.
func (d *Decoder) SymbolsSeen() int { return d.symbolsSeen }

// SymbolsUsed returns how many fed symbols were linearly independent and so
// contributed to the rank.
func (d *Decoder) SymbolsUsed() int { return d.symbolsUsed }

// Add incorporates one symbol's row into the echelon form via forward
// elimination. Returns true if the row was independent (advanced the rank).
func (d *Decoder) Add(sym Symbol) bool {
	if d.solved {
		d.symbolsSeen++
		return false
	}
	d.symbolsSeen++

	_, indices := degreeAndIndicesForSeed(sym.Seed, d.k)
	bits := bitsetFromIndices(d.k, indices)
	data := make([]byte, d.blockSize)
	copy(data, sym.Data)

	for {
		lead := bits.lowestSet()
		if lead < 0 {
			return false // zero row: redundant
		}
		if d.pivots[lead] == nil {
			d.pivots[lead] = &pivotRow{bits: bits, data: data}
			d.rank++
			d.symbolsUsed++
			if d.rank == d.k {
				d.backSubstitute()
			}
			return true
		}
		bits = bits.xor(d.pivots[lead].bits)
		data = xorBytes(data, d.pivots[lead].data)
	}
}

// backSubstitute reduces the echelon form to a fully solved system once
// every column has a pivot, then stitches the block values together. Pivot
// selection during forward elimination always scans downward from the
// current row's lowest set bit (spec §4.1 tie-break).
func (d *Decoder) backSubstitute() {
	for col := d.k - 1; col >= 0; col-- {
		row := d.pivots[col]
		for _, higher := range row.bits.bitsAbove(col) {
			row.data = xorBytes(row.data, d.pivots[higher].data)
		}
		row.bits = bitsetFromIndices(d.k, []int{col})
	}

	out := make([]byte, 0, d.k*d.blockSize)
	for col := 0; col < d.k; col++ {
		out = append(out, d.pivots[col].data...)
	}
	d.solvedData = out
	d.solved = true
}

// Solve returns (true, bytes) once rank has reached K; otherwise (false, nil).
func (d *Decoder) Solve() (bool, []byte) {
	if !d.solved {
		return false, nil
	}
	out := make([]byte, len(d.solvedData))
	copy(out, d.solvedData)
	return true, out
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	copy(out, a)
	xorInto(out, b)
	return out
}
