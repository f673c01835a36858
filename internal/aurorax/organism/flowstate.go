package organism

// FlowState is the per-flow-key adaptation state the Organism owns (spec
// §3). Invariants: CritOverhead ≥ BaseCritOverhead, BulkOverhead ≥
// BaseBulkOverhead, both in [1.0, MaxOverhead(Genotype)]; GoodStreak and
// BadStreak are never both non-zero.
type FlowState struct {
	Genotype Genotype

	BaseCritOverhead float64
	BaseBulkOverhead float64
	CritOverhead     float64
	BulkOverhead     float64

	AvgCoverage  float64
	SuccessCount int
	FailCount    int
	PanicBoost   int
	GoodStreak   int
	BadStreak    int

	Initialized bool
	Age         int
}

// clamp returns v bounded to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampOverheads enforces the FlowState invariants after any mutation.
func (fs *FlowState) clampOverheads(maxOverhead float64) {
	fs.CritOverhead = clamp(fs.CritOverhead, maxf(1.0, fs.BaseCritOverhead), maxOverhead)
	fs.BulkOverhead = clamp(fs.BulkOverhead, maxf(1.0, fs.BaseBulkOverhead), maxOverhead)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
