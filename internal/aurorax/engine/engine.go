// Package engine orchestrates one token's delivery attempt: the
// single-threaded, step-synchronous loop of spec §4.5, unifying what the
// source repo ran as two duplicated batch/interactive loops (spec §9
// design note) into one Step function driven by either caller.
package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/aurora-x/aurora-x/internal/aurorax/duty"
	"github.com/aurora-x/aurora-x/internal/aurorax/hal"
	"github.com/aurora-x/aurora-x/internal/aurorax/optimizer"
	"github.com/aurora-x/aurora-x/internal/aurorax/organism"
	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
	"github.com/aurora-x/aurora-x/internal/aurorax/safety"
	"github.com/aurora-x/aurora-x/internal/aurorax/telemetry"
	"github.com/aurora-x/aurora-x/internal/aurorax/token"
)

// StepOutcome is what one Step call resolved to.
type StepOutcome int

const (
	StepContinue StepOutcome = iota
	StepDelivered
	StepTimeout
)

func (o StepOutcome) String() string {
	switch o {
	case StepDelivered:
		return "DELIVERED"
	case StepTimeout:
		return "TIMEOUT"
	default:
		return "CONTINUE"
	}
}

const (
	defaultMaxSteps    = 500
	configPollInterval = 20
	harvestJoulesPerStep = 0.05
)

// attemptBitrateBps is the nominal link bitrate charged against the duty
// limiter's airtime budget per mode (spec §7 "duty-cycle exhausted" is
// computed from real per-attempt airtime, not the inter-attempt spacing).
var attemptBitrateBps = map[telemetry.Mode]float64{
	telemetry.RF:          5470,
	telemetry.IR:          9600,
	telemetry.Backscatter: 1200,
}

// attemptEnergyJoules is the nominal per-attempt energy draw by mode —
// backscatter's ambient-power design makes it far cheaper than an active
// RF or IR transmit (spec §1 "energy budgets").
var attemptEnergyJoules = map[telemetry.Mode]float64{
	telemetry.RF:          0.4,
	telemetry.IR:          0.25,
	telemetry.Backscatter: 0.02,
}

// attemptAirtimeMillis estimates one attempt's real on-air time from the
// packet size and the mode's nominal bitrate.
func attemptAirtimeMillis(mode telemetry.Mode, sizeBytes int) float64 {
	if sizeBytes <= 0 {
		sizeBytes = 1
	}
	bitrate := attemptBitrateBps[mode]
	if bitrate <= 0 {
		bitrate = 1200
	}
	return float64(sizeBytes) * 8.0 / bitrate * 1000.0
}

// Engine drives one token's delivery loop end to end.
type Engine struct {
	Organism  *organism.Organism
	Optimizer *optimizer.Optimizer
	Safety    *safety.Monitor
	HAL       hal.Capabilities
	Duty      *duty.Limiter
	Chan      *telemetry.ChannelState
	Sink      *telemetry.Sink
	Config    *ConfigLoader

	Source *Node
	Dest   *Node

	rng *prng.Source
	log *slog.Logger

	tok       token.Token
	profile   organism.Profile
	intention Intention
	blockSize int
	kTotal    int

	deadlineS    float64
	elapsedS     float64
	stepNum      int
	maxSteps     int
	flowHealth   FlowHealthSet
	interactive  bool
}

// New assembles an Engine for one token and its delivery intention. kTotal
// is the KTotal of the Organism.Spawn call the caller made on tok's payload
// beforehand — the caller owns that call so it can place the resulting
// packets on Source's outbound queue.
func New(
	org *organism.Organism,
	opt *optimizer.Optimizer,
	mon *safety.Monitor,
	capabilities hal.Capabilities,
	limiter *duty.Limiter,
	chanState *telemetry.ChannelState,
	sink *telemetry.Sink,
	cfgLoader *ConfigLoader,
	source, dest *Node,
	rng *prng.Source,
	logger *slog.Logger,
	tok token.Token,
	profile organism.Profile,
	intention Intention,
	blockSize, kTotal int,
	maxSteps int,
	interactive bool,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	if cfgLoader != nil {
		cfg := cfgLoader.Current()
		org.SetAdaptationConfig(organism.AdaptationConfig{
			AlphaUpBase:   cfg.AlphaUp,
			AlphaDownBase: cfg.AlphaDown,
			PanicSteps:    cfg.PanicBoostSteps,
			SuccessProb: map[organism.FlowClass]float64{
				organism.Nerve:  cfg.SuccessProbNerve,
				organism.Gland:  cfg.SuccessProbGland,
				organism.Muscle: cfg.SuccessProbMuscle,
			},
		})
	}
	if capabilities != nil {
		if err := capabilities.RadioInit(); err != nil {
			logger.Warn("radio init failed", "err", err)
		}
		if intention.RISTiles > 0 {
			if err := capabilities.RISSetPhases(make([]byte, intention.RISTiles)); err != nil {
				logger.Warn("ris set phases failed", "err", err)
			}
		}
	}
	return &Engine{
		Organism:    org,
		Optimizer:   opt,
		Safety:      mon,
		HAL:         capabilities,
		Duty:        limiter,
		Chan:        chanState,
		Sink:        sink,
		Config:      cfgLoader,
		Source:      source,
		Dest:        dest,
		rng:         rng,
		log:         logger.With("component", "engine"),
		tok:         tok,
		profile:     profile,
		intention:   intention,
		blockSize:   blockSize,
		kTotal:      kTotal,
		deadlineS:   intention.DeadlineS,
		maxSteps:    maxSteps,
		interactive: interactive,
	}
}

func derivePriority(fracLeft float64) organism.Priority {
	switch {
	case fracLeft < 0.15:
		return organism.Critical
	case fracLeft < 0.40:
		return organism.Normal
	default:
		return organism.Bulk
	}
}

func countForToken(packets []organism.Packet, tokenID string) int {
	n := 0
	for _, p := range packets {
		if p.TokenID == tokenID {
			n++
		}
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clampf(v, 0, 1) }

func stepSleep(deadlineLeft float64) time.Duration {
	switch {
	case deadlineLeft < 2:
		return 2 * time.Millisecond
	case deadlineLeft < 5:
		return 6 * time.Millisecond
	default:
		return 12 * time.Millisecond
	}
}

// probeSNR is the nominal per-mode SNR (dB) the engine-side channel probe
// reports, with ±1 dB of noise added per probe (spec §4.5 step 3); the real
// per-attempt pass/fail classification still happens inside the HAL on
// transmit.
var probeSNR = map[telemetry.Mode]float64{
	telemetry.RF:          8.0,
	telemetry.IR:          10.0,
	telemetry.Backscatter: 3.0,
}

func (e *Engine) transmit(mode telemetry.Mode, pkt *organism.Packet) error {
	var data []byte
	if pkt != nil {
		data = pkt.Fp.Data
	}
	switch mode {
	case telemetry.RF:
		return e.HAL.LoraTx(data)
	case telemetry.IR:
		return e.HAL.IRTx(data, 9600)
	default:
		return e.HAL.BSModulate(data, 1200)
	}
}

// Step advances the engine by one cycle of spec §4.5's 12-step algorithm.
func (e *Engine) Step(ctx context.Context) (StepOutcome, error) {
	if err := ctx.Err(); err != nil {
		return StepTimeout, err
	}
	e.stepNum++
	e.Duty.Advance()
	e.Source.Energy.Harvest(harvestJoulesPerStep)

	if e.stepNum%configPollInterval == 0 && e.Config != nil {
		cfg := e.Config.Reload()
		e.Organism.SetAdaptationConfig(organism.AdaptationConfig{
			AlphaUpBase:   cfg.AlphaUp,
			AlphaDownBase: cfg.AlphaDown,
			PanicSteps:    cfg.PanicBoostSteps,
			SuccessProb: map[organism.FlowClass]float64{
				organism.Nerve:  cfg.SuccessProbNerve,
				organism.Gland:  cfg.SuccessProbGland,
				organism.Muscle: cfg.SuccessProbMuscle,
			},
		})
	}

	e.elapsedS += 0.01 // nominal per-step clock advance; real spacing sleeps dominate wall time
	deadlineLeft := e.deadlineS - e.elapsedS
	if deadlineLeft <= 0 {
		return StepTimeout, nil
	}

	have := countForToken(e.Dest.Inbound(), e.tok.ID)
	k := e.kTotal
	if k <= 0 {
		k = 1
	}
	eres := math.Max(0, float64(k-have)) / float64(k)
	e.log.Debug("residual estimate", "eres", eres)

	// Ambient interferer sampling drives the jamming score the Optimizer
	// weighs PER history against, and the coherence time gates how often
	// re-probing the channel is worthwhile (spec §3 ChannelState fields).
	interfererLevel := clamp01(0.05 + 0.1*e.rng.Float64())
	if e.rng.Float64() < 0.04 {
		interfererLevel = clamp01(interfererLevel + 0.6)
	}
	e.Chan.ObserveInterferer(interfererLevel)
	e.Chan.SetCoherenceTime(clampf(2.0*(1-e.Chan.JammingScore()), 0.2, 2.0))

	probeEvery := clampInt(int(e.Chan.CoherenceTime()/0.01), 1, 200)
	if e.stepNum%probeEvery == 0 {
		for mode, snr := range probeSNR {
			e.Chan.ObserveSNR(mode, snr+e.rng.Float64()*2-1)
		}
	}

	// stepPriority is the per-step urgency class spec §4.5 step 4 derives
	// from remaining deadline fraction; it drives the Optimizer's target
	// reliability and attempt caps. It is distinct from e.profile.Priority,
	// which is the FlowProfile's invariant priority (spec §3) and stays
	// fixed for the token's lifetime — the Organism's flow key must not
	// drift step to step.
	fracLeft := deadlineLeft / e.deadlineS
	stepPriority := derivePriority(fracLeft)
	emergency := fracLeft < 0.08 && float64(have) < 0.75*float64(k)

	ns := optimizer.NetworkState{
		SOCSrc:           e.Source.Energy.SOC(),
		DutyLeftRF:       e.Duty.DutyLeft(),
		SymbolsHave:      have,
		SymbolsNeed:      k,
		DeadlineTotalS:   e.deadlineS,
		DeadlineLeftS:    deadlineLeft,
		Chan:             e.Chan,
		Priority:         stepPriority,
		EmergencyMode:    emergency,
		AllowIR:          e.intention.Optical,
		AllowBackscatter: e.intention.Backscatter,
	}
	decision := e.Optimizer.Decide(ns)
	if stepPriority == organism.Critical && decision.Tries < 2 {
		decision.Tries = 2
	}

	okCount, triesReal := e.sendLoop(decision.Mode, decision.Tries, decision.MinSpacingMs, decision.JitterMs,
		decision.RFBandwidthKHz, decision.PreambleSym)

	if e.Source.Energy.SOC() < 0.25 && e.intention.Backscatter {
		extra := clampInt(decision.RedundancyHint/3, 2, 8)
		ok, tries := e.sendLoop(telemetry.Backscatter, extra, decision.MinSpacingMs+4, decision.JitterMs+4,
			decision.RFBandwidthKHz, decision.PreambleSym)
		okCount += ok
		triesReal += tries
	}

	e.Optimizer.Feedback(decision.Mode, okCount, triesReal)

	received := e.Dest.Inbound()
	result := e.Organism.Integrate(e.profile, e.tok.ID, k, e.blockSize, received)

	fs, _ := e.Organism.State(e.profile)
	fh := e.flowHealth.For(e.profile.FlowClass)
	fh.Observe(result.Coverage, result.Delivered, fs.PanicBoost > 0)

	sample := safety.Sample{
		DutyLeft:       e.Duty.DutyLeft(),
		NerveFailRate:  e.flowHealth.Nerve.EWMAFailRate,
		GlandFailRate:  e.flowHealth.Gland.EWMAFailRate,
		MuscleFailRate: e.flowHealth.Muscle.EWMAFailRate,
		NerveCoverage:  e.flowHealth.Nerve.EWMACoverage,
		GlandCoverage:  e.flowHealth.Gland.EWMACoverage,
	}
	regime := e.Safety.Observe(sample)
	e.Optimizer.UpdateRegime(regime, sample)

	if e.Sink != nil {
		reward := 0.0
		if triesReal > 0 {
			reward = float64(okCount) / float64(triesReal)
		}
		_ = e.Sink.WriteStep(telemetry.StepSample{
			Step:      e.stepNum,
			Have:      have,
			Need:      k,
			Mode:      decision.Mode.String(),
			Tries:     decision.Tries,
			Successes: okCount,
			Reward:    reward,
			SNRRF:     e.Chan.SNR(telemetry.RF),
			SNRIR:     e.Chan.SNR(telemetry.IR),
			SNRBS:     e.Chan.SNR(telemetry.Backscatter),
			SOCSrc:    e.Source.Energy.SOC(),
			DutyLeft:  e.Duty.DutyLeft(),
			ElapsedS:  e.elapsedS,
		})
		if e.interactive {
			e.Sink.EmitHealth(telemetry.HealthEvent{
				Step:   e.stepNum,
				Class:  e.profile.FlowClass.String(),
				Cov:    fh.EWMACoverage,
				Fail:   fh.EWMAFailRate,
				GS:     fh.GoodStreak,
				BS:     fh.BadStreak,
				Safety: regime.String(),
				Mode:   decision.Mode.String(),
			})
		}
	}

	if result.Delivered {
		return StepDelivered, nil
	}
	if e.stepNum >= e.maxSteps {
		return StepTimeout, nil
	}
	return StepContinue, nil
}

// Run drives Step to completion, used by both the batch harness and the
// interactive driver (spec §9 design note: one step function, two
// callers). It returns the terminal outcome and the exit code spec §6
// assigns it (0 delivered, 1 otherwise).
func (e *Engine) Run(ctx context.Context) (StepOutcome, int, error) {
	for {
		outcome, err := e.Step(ctx)
		if err != nil {
			return outcome, 1, err
		}
		if outcome != StepContinue {
			code := 1
			if outcome == StepDelivered {
				code = 0
			}
			return outcome, code, nil
		}
		deadlineLeft := e.deadlineS - e.elapsedS
		select {
		case <-ctx.Done():
			return StepTimeout, 1, ctx.Err()
		case <-time.After(stepSleep(deadlineLeft)):
		}
	}
}

// rfLoraSF and rfLoraCR are the nominal LoRa radio parameters the engine
// pins LoraCfg to; only bandwidth, preamble length, and carrier (via
// FHSSNext) vary per attempt (spec §4.3 "picks ... RF parameters").
const (
	rfLoraSF = 7
	rfLoraCR = 5
)

// sendLoop fires triesWanted attempts on mode, simulating arrival at Dest
// for each HAL pass, and sleeping the spec's inter-attempt spacing between
// attempts (spec §4.5 step 6). Each attempt charges both the duty limiter's
// real on-air time and the source node's energy store; either budget being
// exhausted is a no-op per spec §7, ending this call's remaining attempts.
// A listen-before-talk sense precedes each attempt: a busy channel is
// logged as a failed outcome without consuming the transmit budget, per
// the same spec §7 table.
func (e *Engine) sendLoop(mode telemetry.Mode, triesWanted, minSpacingMs, jitterMs, bwKHz, preambleSym int) (okCount, triesReal int) {
	for i := 0; i < triesWanted; i++ {
		pkt, hasPkt := e.Source.popOutbound()
		var pktPtr *organism.Packet
		if hasPkt {
			pktPtr = &pkt
		}
		size := e.blockSize
		if hasPkt {
			size = len(pkt.Fp.Data)
		}

		lbtBusy := e.rng.Float64() < 0.04+0.25*e.Chan.JammingScore()
		e.Chan.ObserveLBT(lbtBusy)
		if lbtBusy {
			triesReal++
			e.Chan.ObserveOutcome(mode, false)
			e.log.Debug("lbt busy, outcome logged as failure", "mode", mode.String())
			if hasPkt {
				e.Source.requeueOutbound(pkt)
			}
			time.Sleep(time.Duration(minSpacingMs+e.rng.Jitter(0, jitterMs)) * time.Millisecond)
			continue
		}

		airtime := attemptAirtimeMillis(mode, size)
		if !e.Duty.TrySpend(airtime) {
			if hasPkt {
				e.Source.requeueOutbound(pkt)
			}
			break // duty-cycle exhausted: no-op per spec §7, optimizer reduces attempts next step
		}
		if !e.Source.Energy.Spend(attemptEnergyJoules[mode]) {
			if hasPkt {
				e.Source.requeueOutbound(pkt)
			}
			break // energy insufficient: no-op per spec §7
		}

		if mode == telemetry.RF {
			freq := e.HAL.FHSSNext(byte(e.stepNum + i))
			if err := e.HAL.LoraCfg(freq, bwKHz, rfLoraSF, rfLoraCR, preambleSym); err != nil {
				e.log.Warn("lora cfg failed", "err", err)
			}
		}

		triesReal++
		err := e.transmit(mode, pktPtr)
		pass := err == nil
		e.Chan.ObserveOutcome(mode, pass)
		if pass {
			okCount++
			if hasPkt {
				e.Dest.Receive(pkt)
			}
		} else if hasPkt {
			e.Source.requeueOutbound(pkt)
		}
		sleepMs := minSpacingMs + e.rng.Jitter(0, jitterMs)
		time.Sleep(time.Duration(sleepMs) * time.Millisecond)
	}
	return okCount, triesReal
}
