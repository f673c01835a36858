package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
)

func TestSimulatorDeterministicUnderFixedSeed(t *testing.T) {
	run := func(seed uint64) []bool {
		sim := NewSimulator(prng.New(seed), 1000, nil)
		var outcomes []bool
		for i := 0; i < 20; i++ {
			outcomes = append(outcomes, sim.LoraTx([]byte("hello")) == nil)
		}
		return outcomes
	}

	a := run(42)
	b := run(42)
	assert.Equal(t, a, b)
}

func TestDutyLeftHintReflectsSetValue(t *testing.T) {
	sim := NewSimulator(prng.New(1), 1000, nil)
	sim.SetDutyLeftHint(0.42)
	assert.InDelta(t, 0.42, sim.DutyLeftHint(), 1e-9)
}

func TestFHSSNextVariesWithSalt(t *testing.T) {
	sim := NewSimulator(prng.New(7), 1000, nil)
	a := sim.FHSSNext(0)
	b := sim.FHSSNext(200)
	assert.NotEqual(t, a, b)
}
