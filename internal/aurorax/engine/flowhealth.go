package engine

import "github.com/aurora-x/aurora-x/internal/aurorax/organism"

const (
	healthAlphaCov   = 0.2
	healthAlphaFail  = 0.1
	healthAlphaPanic = 0.1
)

// FlowHealth is the engine-scope per-flow-class EWMA view the Optimizer's
// regime decision and the interactive health events both read from (spec
// §3, §4.5 step 10).
type FlowHealth struct {
	EWMACoverage  float64
	EWMAFailRate  float64
	EWMAPanicRate float64
	SuccessCount  int
	FailCount     int
	GoodStreak    int
	BadStreak     int

	initialized bool
}

// Observe folds one integrate outcome into the class's health EWMAs.
func (h *FlowHealth) Observe(coverage float64, delivered bool, panicActive bool) {
	failVal := 0.0
	if !delivered {
		failVal = 1.0
	}
	panicVal := 0.0
	if panicActive {
		panicVal = 1.0
	}

	if !h.initialized {
		h.EWMACoverage = coverage
		h.EWMAFailRate = failVal
		h.EWMAPanicRate = panicVal
		h.initialized = true
	} else {
		h.EWMACoverage = healthAlphaCov*coverage + (1-healthAlphaCov)*h.EWMACoverage
		h.EWMAFailRate = healthAlphaFail*failVal + (1-healthAlphaFail)*h.EWMAFailRate
		h.EWMAPanicRate = healthAlphaPanic*panicVal + (1-healthAlphaPanic)*h.EWMAPanicRate
	}

	if delivered {
		h.SuccessCount++
		h.GoodStreak++
		h.BadStreak = 0
	} else {
		h.FailCount++
		h.BadStreak++
		h.GoodStreak = 0
	}
}

// FlowHealthSet holds the three engine-scope class trackers.
type FlowHealthSet struct {
	Nerve, Gland, Muscle FlowHealth
}

// For returns the tracker for a flow class.
func (s *FlowHealthSet) For(c organism.FlowClass) *FlowHealth {
	switch c {
	case organism.Nerve:
		return &s.Nerve
	case organism.Gland:
		return &s.Gland
	default:
		return &s.Muscle
	}
}
