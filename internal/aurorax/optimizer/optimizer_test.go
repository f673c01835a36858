package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aurora-x/aurora-x/internal/aurorax/organism"
	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
	"github.com/aurora-x/aurora-x/internal/aurorax/safety"
	"github.com/aurora-x/aurora-x/internal/aurorax/telemetry"
)

func baseNetworkState(chan_ *telemetry.ChannelState) NetworkState {
	return NetworkState{
		SOCSrc:           0.8,
		DutyLeftRF:       0.5,
		SymbolsHave:      10,
		SymbolsNeed:      20,
		DeadlineTotalS:   10,
		DeadlineLeftS:    5,
		Chan:             chan_,
		Priority:         organism.Normal,
		AllowIR:          true,
		AllowBackscatter: true,
	}
}

func TestArgmaxHysteresisHoldsWithinMargin(t *testing.T) {
	ch := telemetry.NewChannelState()
	ch.ObserveSNR(telemetry.RF, 10.0)
	ch.ObserveSNR(telemetry.IR, 9.5)
	ch.ObserveSNR(telemetry.Backscatter, -5.0)

	opt := New(Config{UseArgmax: true}, prng.New(1), nil)
	first := opt.selectMode(baseNetworkState(ch))
	assert.Equal(t, telemetry.RF, first)

	ch.ObserveSNR(telemetry.IR, 12.5) // EWMA -> 10.25: above RF, but within the 1dB margin
	second := opt.selectMode(baseNetworkState(ch))

	assert.Equal(t, first, second)
}

func TestArgmaxSwitchesBeyondMargin(t *testing.T) {
	ch := telemetry.NewChannelState()
	ch.ObserveSNR(telemetry.RF, 10.0)
	ch.ObserveSNR(telemetry.IR, 5.0)
	ch.ObserveSNR(telemetry.Backscatter, -5.0)

	opt := New(Config{UseArgmax: true}, prng.New(1), nil)
	first := opt.selectMode(baseNetworkState(ch))
	assert.Equal(t, telemetry.RF, first)

	ch.ObserveSNR(telemetry.IR, 20.0) // now far beyond RF + 1dB
	for i := 0; i < 10; i++ {
		ch.ObserveSNR(telemetry.IR, 20.0)
	}
	second := opt.selectMode(baseNetworkState(ch))
	assert.Equal(t, telemetry.IR, second)
}

func TestEnergyOverrideForcesBackscatter(t *testing.T) {
	ch := telemetry.NewChannelState()
	opt := New(Config{}, prng.New(2), nil)
	ns := baseNetworkState(ch)
	ns.SOCSrc = 0.1
	decision := opt.Decide(ns)
	assert.Equal(t, telemetry.Backscatter, decision.Mode)
}

func TestEnergyOverrideRespectsBackscatterOff(t *testing.T) {
	ch := telemetry.NewChannelState()
	opt := New(Config{}, prng.New(2), nil)
	ns := baseNetworkState(ch)
	ns.SOCSrc = 0.1
	ns.AllowBackscatter = false
	decision := opt.Decide(ns)
	assert.NotEqual(t, telemetry.Backscatter, decision.Mode)
}

func TestArgmaxNeverPicksDisallowedMode(t *testing.T) {
	ch := telemetry.NewChannelState()
	ch.ObserveSNR(telemetry.RF, 1.0)
	ch.ObserveSNR(telemetry.IR, 20.0)
	ch.ObserveSNR(telemetry.Backscatter, 30.0)

	opt := New(Config{UseArgmax: true}, prng.New(3), nil)
	ns := baseNetworkState(ch)
	ns.AllowIR = false
	ns.AllowBackscatter = false
	mode := opt.selectMode(ns)
	assert.Equal(t, telemetry.RF, mode)
}

func TestBanditNeverPicksDisallowedArm(t *testing.T) {
	ch := telemetry.NewChannelState()
	opt := New(Config{}, prng.New(4), nil)
	ns := baseNetworkState(ch)
	ns.AllowIR = false
	ns.AllowBackscatter = false
	for i := 0; i < 20; i++ {
		mode := opt.selectMode(ns)
		assert.Equal(t, telemetry.RF, mode)
	}
}

func TestTargetReliabilityByPriorityAndRegime(t *testing.T) {
	assert.Equal(t, 0.999, targetReliability(organism.Critical, false, safety.Normal))
	assert.Equal(t, 0.97, targetReliability(organism.Normal, false, safety.Normal))
	assert.InDelta(t, 0.85, targetReliability(organism.Bulk, false, safety.Aggressive), 1e-9)
}

func TestAttemptsClampedToCap(t *testing.T) {
	tries := estimateAttempts(0.999, 0.5, 10)
	assert.LessOrEqual(t, tries, 10)
	assert.GreaterOrEqual(t, tries, 1)
}
