// Package energy implements the capacity-bounded charge/discharge store
// each node owns (spec §3, §5 — "mutated only by tick/spend/harvest on its
// owning node").
package energy

// Store tracks a node's state of charge as a fraction of its capacity.
type Store struct {
	capacityJ float64
	chargeJ   float64
}

// New creates a Store at the given capacity (joules), starting charged to
// initialFraction of capacity (clamped to [0,1]).
func New(capacityJ, initialFraction float64) *Store {
	if initialFraction < 0 {
		initialFraction = 0
	}
	if initialFraction > 1 {
		initialFraction = 1
	}
	return &Store{capacityJ: capacityJ, chargeJ: capacityJ * initialFraction}
}

// SOC returns the state of charge in [0,1].
func (s *Store) SOC() float64 {
	if s.capacityJ <= 0 {
		return 0
	}
	frac := s.chargeJ / s.capacityJ
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}

// Harvest adds joules harvested this tick, clamped to capacity.
func (s *Store) Harvest(joules float64) {
	s.chargeJ += joules
	if s.chargeJ > s.capacityJ {
		s.chargeJ = s.capacityJ
	}
}

// Spend attempts to withdraw joules; returns false (no-op) if insufficient
// charge is available — spec §7's "energy insufficient" disposition.
func (s *Store) Spend(joules float64) bool {
	if joules > s.chargeJ {
		return false
	}
	s.chargeJ -= joules
	return true
}
