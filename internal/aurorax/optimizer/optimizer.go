// Package optimizer implements the per-step joint mode/attempt/timing
// decision (spec §4.3): a bandit or hysteresis-gated argmax selector over
// transport modes, reliability targeting, and RF/timing parameter choice.
package optimizer

import (
	"log/slog"
	"math"

	"github.com/aurora-x/aurora-x/internal/aurorax/organism"
	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
	"github.com/aurora-x/aurora-x/internal/aurorax/safety"
	"github.com/aurora-x/aurora-x/internal/aurorax/telemetry"
)

// NetworkState is the per-step snapshot the Optimizer decides from (spec
// §3).
type NetworkState struct {
	SOCSrc         float64
	DutyLeftRF     float64
	SymbolsHave    int
	SymbolsNeed    int
	DeadlineTotalS float64
	DeadlineLeftS  float64
	Chan           *telemetry.ChannelState
	Priority       organism.Priority
	EmergencyMode  bool
	CovertSeq      uint8

	// AllowIR and AllowBackscatter mirror the Intention's optical/backscatter
	// on|off flags (spec §6); RF is never gateable. Both selectors and the
	// energy override restrict themselves to the allowed set (spec §4.3:
	// "if soc_src < 0.18 and backscatter is allowed, force BACKSCATTER").
	AllowIR          bool
	AllowBackscatter bool
}

// allowedModes reports which of the three modes ns permits.
func allowedModes(ns NetworkState) [3]bool {
	return [3]bool{true, ns.AllowIR, ns.AllowBackscatter}
}

// Decision is the Optimizer's output: a named record replacing the
// source's bit-packed tries/overhead fields (spec §9 design note).
type Decision struct {
	Mode          telemetry.Mode
	Tries         int
	RedundancyHint int
	JitterMs      int
	MinSpacingMs  int
	PreambleSym   int
	RFBandwidthKHz int
	TargetReliability float64
	Budget        float64
}

// Config is the Optimizer's tunable surface, set from the Intention's
// selector key (spec §6); SetConfig replaces it.
type Config struct {
	UseArgmax bool // selector: argmax (true) or UCB bandit (false)
}

// Optimizer holds the bandit state, last-chosen mode (for hysteresis), and
// current regime.
type Optimizer struct {
	cfg      Config
	bandit   *bandit
	lastMode telemetry.Mode
	hasLast  bool
	regime   safety.OptimizerRegime
	rng      *prng.Source
	logger   *slog.Logger
}

// New creates an Optimizer starting in the NORMAL regime.
func New(cfg Config, rng *prng.Source, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		cfg:    cfg,
		bandit: newBandit(),
		regime: safety.Normal,
		rng:    rng,
		logger: logger.With("component", "optimizer"),
	}
}

// SetConfig hot-swaps the selector configuration.
func (o *Optimizer) SetConfig(cfg Config) { o.cfg = cfg }

// UpdateRegime applies the safety monitor's classification, logging on
// change (spec §4.4).
func (o *Optimizer) UpdateRegime(r safety.Regime, latest safety.Sample) {
	next := safety.RegimeFor(r, latest)
	if next != o.regime {
		o.logger.Info("regime change", "from", o.regime.String(), "to", next.String(), "safety", r.String())
	}
	o.regime = next
}

// Regime returns the Optimizer's current operating posture.
func (o *Optimizer) Regime() safety.OptimizerRegime { return o.regime }

func targetReliability(priority organism.Priority, emergency bool, regime safety.OptimizerRegime) float64 {
	var r float64
	switch priority {
	case organism.Critical:
		r = 0.999
	case organism.Normal:
		r = 0.97
	default:
		r = 0.9
	}
	if emergency && r < 0.999 {
		r = 0.999
	}
	switch regime {
	case safety.Conservative:
		if priority == organism.Critical || priority == organism.Normal {
			if r < 0.995 {
				r = 0.995
			}
		}
	case safety.Aggressive:
		if priority == organism.Bulk {
			r -= 0.05
			if r < 0.85 {
				r = 0.85
			}
		}
	}
	return r
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func urgencyAndBudget(have, need int, deadlineTotal, deadlineLeft, dutyLeft float64) (urgency, budget float64) {
	timePress := 1 - math.Exp(-6*(1-deadlineLeft/deadlineTotal))
	var symPress float64
	if need > 0 {
		symPress = sigmoid(10 * (float64(need-have)/float64(need) - 0.5))
	}
	urgency = math.Max(timePress, symPress)
	budget = clampf(math.Min(0.6*dutyLeft, 0.1+0.7*urgency*dutyLeft), 0.02, dutyLeft)
	return urgency, budget
}

func clampf(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type modeThreshold struct{ x0, k float64 }

var perThresholds = map[telemetry.Mode]modeThreshold{
	telemetry.RF:          {x0: -7.5, k: 0.9},
	telemetry.IR:          {x0: 4.0, k: 1.1},
	telemetry.Backscatter: {x0: 1.5, k: 1.0},
}

// perFromSNR is the logistic PER-from-SNR model (spec §4.3).
func perFromSNR(snr float64, mode telemetry.Mode) float64 {
	th := perThresholds[mode]
	return 1.0 / (1.0 + math.Exp(th.k*(snr-th.x0)))
}

func attemptCap(budget float64, regime safety.OptimizerRegime) int {
	var cap int
	switch {
	case budget >= 0.5:
		cap = 48
	case budget >= 0.25:
		cap = 32
	default:
		cap = 20
	}
	switch regime {
	case safety.Aggressive:
		cap += 8
	case safety.Conservative:
		cap -= 8
	}
	if cap < 1 {
		cap = 1
	}
	return cap
}

func estimateAttempts(r, perEst float64, cap int) int {
	if perEst >= 1.0 {
		return cap
	}
	pS := 1 - perEst
	if pS <= 0 {
		return cap
	}
	tries := int(math.Ceil(math.Log(1-r) / math.Log(1-pS)))
	return int(clampf(float64(tries), 1, float64(cap)))
}

func redundancyHint(r, per float64, priority organism.Priority, regime safety.OptimizerRegime) int {
	red := 5.0
	if per > 0 && per < 1 {
		red = math.Max(5, math.Ceil(0.6*math.Log(1-r)/math.Log(per)))
	}
	switch regime {
	case safety.Conservative:
		if priority == organism.Critical || priority == organism.Normal {
			red *= 1.2
		}
	case safety.Aggressive:
		if priority == organism.Bulk {
			red *= 0.9
			if red < 3 {
				red = 3
			}
		}
	}
	return int(red)
}

// Decide produces the joint decision for one step (spec §4.3).
func (o *Optimizer) Decide(ns NetworkState) Decision {
	mode := o.selectMode(ns)

	if ns.SOCSrc < 0.18 && ns.AllowBackscatter {
		mode = telemetry.Backscatter
	}

	r := targetReliability(ns.Priority, ns.EmergencyMode, o.regime)
	urgency, budget := urgencyAndBudget(ns.SymbolsHave, ns.SymbolsNeed, ns.DeadlineTotalS, ns.DeadlineLeftS, ns.DutyLeftRF)

	jamming := 0.0
	perHistory := 0.0
	snr := 0.0
	if ns.Chan != nil {
		jamming = ns.Chan.JammingScore()
		perHistory = ns.Chan.PER(mode)
		snr = ns.Chan.SNR(mode)
	}
	w := clampf(0.5+0.4*jamming, 0.1, 0.9)
	perFromSNRv := perFromSNR(snr, mode)
	perEst := w*perHistory + (1-w)*perFromSNRv

	cap := attemptCap(budget, o.regime)
	tries := estimateAttempts(r, perEst, cap)
	redundancy := redundancyHint(r, perEst, ns.Priority, o.regime)

	jitter := int(math.Round((1-ns.DutyLeftRF)*40)) + boolInt(ns.SOCSrc < 0.3, 12) + o.rng.Jitter(0, 4)
	minSpacing := 8
	if ns.SOCSrc < 0.3 {
		minSpacing = 18
	}
	preamble := int(clampf(float64(8+int(10*urgency)+o.rng.Jitter(0, 4)), 6, 24))
	bw := 125
	if o.rng.Intn(2) == 1 {
		bw = 250
	}

	return Decision{
		Mode:              mode,
		Tries:             tries,
		RedundancyHint:    redundancy,
		JitterMs:          jitter,
		MinSpacingMs:      minSpacing,
		PreambleSym:       preamble,
		RFBandwidthKHz:    bw,
		TargetReliability: r,
		Budget:            budget,
	}
}

func boolInt(b bool, v int) int {
	if b {
		return v
	}
	return 0
}

const argmaxHysteresisDB = 1.0

func (o *Optimizer) selectMode(ns NetworkState) telemetry.Mode {
	allowed := allowedModes(ns)
	if ns.Chan == nil {
		return telemetry.RF
	}
	if o.cfg.UseArgmax {
		best, bestSNR := telemetry.RF, ns.Chan.SNR(telemetry.RF)
		for _, m := range []telemetry.Mode{telemetry.IR, telemetry.Backscatter} {
			if !allowed[m] {
				continue
			}
			if snr := ns.Chan.SNR(m); snr > bestSNR {
				best, bestSNR = m, snr
			}
		}
		if !o.hasLast || !allowed[o.lastMode] {
			o.lastMode, o.hasLast = best, true
			return best
		}
		if best != o.lastMode && bestSNR > ns.Chan.SNR(o.lastMode)+argmaxHysteresisDB {
			o.lastMode = best
		}
		return o.lastMode
	}

	idx := o.bandit.bestAllowed(allowed)
	mode := telemetry.Mode(idx)
	o.lastMode, o.hasLast = mode, true
	return mode
}

// Feedback updates the bandit arm for the mode actually used this step
// (spec §4.3). okCount/triesReal come from the send loop's outcomes.
func (o *Optimizer) Feedback(mode telemetry.Mode, okCount, triesReal int) {
	reward := float64(okCount) / float64(maxInt(1, triesReal))
	reward = clampf(reward, 0, 1)
	o.bandit.update(int(mode), reward)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
