package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthyBelowMinSampleCount(t *testing.T) {
	m := New()
	r := m.Observe(Sample{DutyLeft: 0.0, NerveFailRate: 0.9})
	assert.Equal(t, Healthy, r)
}

func TestCriticalOnLowDutyLeftSustained(t *testing.T) {
	m := New()
	var last Regime
	for i := 0; i < 10; i++ {
		last = m.Observe(Sample{DutyLeft: 0.15})
	}
	assert.Equal(t, Critical, last)
	assert.Equal(t, Conservative, RegimeFor(last, Sample{}))
}

func TestDegradedBand(t *testing.T) {
	m := New()
	var last Regime
	for i := 0; i < 10; i++ {
		last = m.Observe(Sample{DutyLeft: 0.25})
	}
	assert.Equal(t, Degraded, last)
}

func TestHealthyPromotesToAggressiveOnlyWhenClean(t *testing.T) {
	m := New()
	var last Regime
	for i := 0; i < 10; i++ {
		last = m.Observe(Sample{DutyLeft: 0.9, NerveFailRate: 0.01, GlandFailRate: 0.01, MuscleFailRate: 0.01})
	}
	assert.Equal(t, Healthy, last)

	dirty := Sample{NerveFailRate: 0.2, GlandFailRate: 0.01, NerveCoverage: 0.99, GlandCoverage: 0.99}
	assert.Equal(t, Normal, RegimeFor(last, dirty))

	clean := Sample{NerveFailRate: 0.01, GlandFailRate: 0.01, NerveCoverage: 0.99, GlandCoverage: 0.99}
	assert.Equal(t, Aggressive, RegimeFor(last, clean))
}
