// Package organism implements the Organism component of spec §4.2: per
// flow-class redundancy adaptation via an immune-system-style feedback law,
// plus the rateless-FEC spawn/integrate contract it rides on.
package organism

import (
	"log/slog"
	"math"
	"sync"

	"github.com/aurora-x/aurora-x/internal/aurorax/fountain"
	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
)

// AdaptationConfig holds the base gains the interactive config can reload
// (spec §4.2, "Base values come from the interactive config"). SuccessProb
// wires the config's success_prob_nerve/gland/muscle fields — parsed but
// never consumed in the source (spec §9 open question) — into a per-class
// override of alpha_up_base: a class with a higher expected success
// probability reacts less aggressively to any single failure, since that
// failure is more likely to be a transient blip than the new normal.
type AdaptationConfig struct {
	AlphaUpBase   float64
	AlphaDownBase float64
	PanicSteps    int
	SuccessProb   map[FlowClass]float64
}

// DefaultAdaptationConfig returns the spec's stated defaults.
func DefaultAdaptationConfig() AdaptationConfig {
	return AdaptationConfig{AlphaUpBase: 0.10, AlphaDownBase: 0.02, PanicSteps: 3}
}

// alphaUpBaseFor applies the SuccessProb override, if any, to the base
// alpha_up gain for class: alpha_up_base * (1 - success_prob).
func (c AdaptationConfig) alphaUpBaseFor(class FlowClass) float64 {
	if c.SuccessProb == nil {
		return c.AlphaUpBase
	}
	p, ok := c.SuccessProb[class]
	if !ok {
		return c.AlphaUpBase
	}
	return c.AlphaUpBase * (1 - p)
}

// Profile is the per-token FlowProfile (spec §3), invariant across a
// token's lifetime.
type Profile struct {
	DeadlineS     float64
	Reliability   float64
	DutyLimit     float64
	Priority      Priority
	FlowClass     FlowClass
	GenotypeHint  *Genotype
}

// SegmentKind labels which fountain segment a packet's symbol belongs to.
type SegmentKind int

const (
	SegCritical SegmentKind = iota
	SegBulk
)

func (k SegmentKind) String() string {
	if k == SegCritical {
		return "CRITICAL"
	}
	return "BULK"
}

// Packet is the spec's Pkt: a fountain symbol plus routing metadata. Seq is
// left zero by Spawn — the sending node assigns it when the packet enters
// its outbound buffer (spec §3 ownership: nodes own their outbound queues).
type Packet struct {
	Fp      fountain.Symbol
	Seq     uint64
	TokenID string
	Kind    SegmentKind
}

// SpawnResult is the {packets, K_total, payload_size} tuple from spec §4.2.
type SpawnResult struct {
	Packets     []Packet
	KTotal      int
	PayloadSize int
}

// IntegrateResult is the {delivered, coverage, symbols_used,
// total_symbols_seen, payload_bytes} tuple from spec §4.2.
type IntegrateResult struct {
	Delivered        bool
	Coverage         float64
	SymbolsUsed      int
	TotalSymbolsSeen int
	PayloadBytes     []byte
}

// segmentMemory remembers a flow's last spawn segmentation, so integrate
// can size its decoders without needing the sender's payload in hand —
// grounded on the original implementation's _K_critical/_K_bulk fields.
type segmentMemory struct {
	kCrit, kBulk             int
	critBytes, bulkBytes     int
	blockSize                int
}

// Organism owns FlowState keyed by flow key, and drives spawn/integrate.
type Organism struct {
	mu      sync.Mutex
	cfg     AdaptationConfig
	states  map[FlowKey]*FlowState
	memory  map[FlowKey]segmentMemory
	rng     *prng.Source
	logger  *slog.Logger
}

// New creates an Organism. rng must be the caller's seeded source to keep
// symbol emission reproducible (spec §5).
func New(cfg AdaptationConfig, rng *prng.Source, logger *slog.Logger) *Organism {
	if logger == nil {
		logger = slog.Default()
	}
	return &Organism{
		cfg:    cfg,
		states: make(map[FlowKey]*FlowState),
		memory: make(map[FlowKey]segmentMemory),
		rng:    rng,
		logger: logger.With("component", "organism"),
	}
}

// SetAdaptationConfig hot-swaps the base gains (interactive config reload).
func (o *Organism) SetAdaptationConfig(cfg AdaptationConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
}

func flowKeyFor(p Profile) FlowKey {
	return FlowKey{Class: p.FlowClass, Priority: p.Priority}
}

// stateFor returns the FlowState for key, initializing it on first use.
func (o *Organism) stateFor(key FlowKey, p Profile) *FlowState {
	if fs, ok := o.states[key]; ok {
		return fs
	}
	genotype := DefaultGenotype(p.FlowClass)
	if p.GenotypeHint != nil {
		genotype = *p.GenotypeHint
	}
	baseCrit := critOverheadFactor(p.FlowClass)
	baseBulk := bulkOverheadFactor(p.FlowClass)
	fs := &FlowState{
		Genotype:         genotype,
		BaseCritOverhead: baseCrit,
		BaseBulkOverhead: baseBulk,
		CritOverhead:     baseCrit,
		BulkOverhead:     baseBulk,
		Initialized:      true,
	}
	o.states[key] = fs
	return fs
}

// State returns a copy of the current FlowState for key, or the zero value
// and false if the flow has never spawned.
func (o *Organism) State(p Profile) (FlowState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fs, ok := o.states[flowKeyFor(p)]
	if !ok {
		return FlowState{}, false
	}
	return *fs, true
}

func segmentPayload(payload []byte, class FlowClass) (crit, bulk []byte) {
	hint := sizeHint(class)
	critSize := hint
	if critSize > len(payload) {
		critSize = len(payload)
	}
	return payload[:critSize], payload[critSize:]
}

// Spawn produces the outbound symbol batch for one token (spec §4.2).
func (o *Organism) Spawn(profile Profile, tokenID string, payload []byte, blockSize int) SpawnResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := flowKeyFor(profile)
	fs := o.stateFor(key, profile)

	crit, bulk := segmentPayload(payload, profile.FlowClass)

	encCrit := fountain.NewEncoder(crit, blockSize, o.rng)
	kCrit := encCrit.K()
	if len(crit) == 0 {
		kCrit = 0
	}

	var encBulk *fountain.Encoder
	kBulk := 0
	if len(bulk) > 0 {
		encBulk = fountain.NewEncoder(bulk, blockSize, o.rng)
		kBulk = encBulk.K()
	}

	panicActive := fs.PanicBoost > 0
	critMult, bulkMult := 1.0, 1.0
	if panicActive {
		critMult = 2.0
		bulkMult = 1.5
		fs.PanicBoost--
	}

	var packets []Packet
	if kCrit > 0 {
		n := int(math.Ceil(float64(kCrit) * fs.CritOverhead * critMult))
		for _, sym := range encCrit.EmitN(n) {
			packets = append(packets, Packet{Fp: sym, TokenID: tokenID, Kind: SegCritical})
		}
	}
	if kBulk > 0 {
		n := int(math.Ceil(float64(kBulk) * fs.BulkOverhead * bulkMult))
		for _, sym := range encBulk.EmitN(n) {
			packets = append(packets, Packet{Fp: sym, TokenID: tokenID, Kind: SegBulk})
		}
	}

	o.memory[key] = segmentMemory{
		kCrit:     kCrit,
		kBulk:     kBulk,
		critBytes: len(crit),
		bulkBytes: len(bulk),
		blockSize: blockSize,
	}
	fs.Age++

	return SpawnResult{Packets: packets, KTotal: kCrit + kBulk, PayloadSize: len(payload)}
}

// Integrate decodes whatever has been received so far and runs the
// adaptation rule (spec §4.2). kHint is used only when this flow has never
// spawned in this process (e.g. a pure receiver) — otherwise the
// remembered segmentation from the last Spawn call is authoritative.
func (o *Organism) Integrate(profile Profile, tokenID string, kHint int, blockSize int, received []Packet) IntegrateResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := flowKeyFor(profile)
	fs := o.stateFor(key, profile)

	var filtered []Packet
	for _, p := range received {
		if p.TokenID == tokenID {
			filtered = append(filtered, p)
		}
	}

	result := IntegrateResult{TotalSymbolsSeen: len(filtered)}
	if len(filtered) == 0 {
		return result
	}

	mem, ok := o.memory[key]
	if !ok {
		kCrit := kHint / 2
		mem = segmentMemory{
			kCrit:     kCrit,
			kBulk:     kHint - kCrit,
			critBytes: kCrit * blockSize,
			bulkBytes: (kHint - kCrit) * blockSize,
			blockSize: blockSize,
		}
	}

	var critPkts, bulkPkts []Packet
	for _, p := range filtered {
		if p.Kind == SegCritical {
			critPkts = append(critPkts, p)
		} else {
			bulkPkts = append(bulkPkts, p)
		}
	}

	var critBytes, bulkBytes []byte
	critOK, bulkOK := false, false
	symbolsUsed := 0

	if len(critPkts) > 0 && mem.kCrit > 0 {
		dec := fountain.NewDecoder(mem.kCrit, mem.blockSize)
		for _, p := range critPkts {
			dec.Add(p.Fp)
		}
		symbolsUsed += dec.SymbolsUsed()
		if ok, bytes := dec.Solve(); ok {
			critOK = true
			critBytes = bytes
		}
	}
	if len(bulkPkts) > 0 && mem.kBulk > 0 {
		dec := fountain.NewDecoder(mem.kBulk, mem.blockSize)
		for _, p := range bulkPkts {
			dec.Add(p.Fp)
		}
		symbolsUsed += dec.SymbolsUsed()
		if ok, bytes := dec.Solve(); ok {
			bulkOK = true
			bulkBytes = bytes
		}
	}
	result.SymbolsUsed = symbolsUsed

	coveredBytes := 0
	if critOK {
		coveredBytes += len(critBytes)
	}
	if bulkOK {
		coveredBytes += len(bulkBytes)
	}
	expectedTotal := mem.critBytes + mem.bulkBytes
	if expectedTotal > 0 {
		result.Coverage = clamp(float64(coveredBytes)/float64(expectedTotal), 0, 1)
	}

	if critOK || bulkOK {
		out := make([]byte, 0, len(critBytes)+len(bulkBytes))
		if critOK {
			out = append(out, critBytes...)
		}
		if bulkOK {
			out = append(out, bulkBytes...)
		}
		result.PayloadBytes = out
	}

	result.Delivered = result.Coverage >= 1.0

	o.adapt(profile, fs, result.Coverage, result.Delivered, result.SymbolsUsed, result.TotalSymbolsSeen)

	return result
}

const (
	alphaCov             = 0.2
	goodStreakThreshold  = 4
	coverageGoodThreshold = 0.85
)

// adapt is the immune-memory feedback rule (spec §4.2): it reacts to a
// single integrate outcome by nudging CritOverhead/BulkOverhead toward more
// or less redundancy, with a panic escalation path for NERVE/GLAND flows.
func (o *Organism) adapt(profile Profile, fs *FlowState, coverage float64, delivered bool, symbolsUsed, totalSeen int) {
	gp := ParamsFor(fs.Genotype)
	alphaUp := o.cfg.alphaUpBaseFor(profile.FlowClass) * gp.AlphaUpMult
	alphaDown := o.cfg.AlphaDownBase * gp.AlphaDownMult

	if fs.SuccessCount+fs.FailCount == 0 {
		fs.AvgCoverage = coverage
	} else {
		fs.AvgCoverage = alphaCov*coverage + (1.0-alphaCov)*fs.AvgCoverage
	}

	if delivered {
		fs.SuccessCount++
	} else {
		fs.FailCount++
	}

	if delivered {
		fs.GoodStreak++
		fs.BadStreak = 0
	} else {
		fs.BadStreak++
		fs.GoodStreak = 0
	}

	if !delivered {
		fs.CritOverhead += alphaUp * gp.PanicMult
		fs.BulkOverhead += alphaUp * 0.5 * gp.PanicMult

		if profile.FlowClass == Nerve || profile.FlowClass == Gland {
			if o.cfg.PanicSteps > fs.PanicBoost {
				fs.PanicBoost = o.cfg.PanicSteps
			}
			fs.CritOverhead += alphaUp * gp.PanicMult

			if fs.BadStreak >= 3 {
				fs.CritOverhead += alphaUp * 0.5 * gp.PanicMult
				fs.BulkOverhead += alphaUp * 0.5 * gp.PanicMult
			}
		}
	}

	if delivered && totalSeen > 0 {
		efficiency := float64(symbolsUsed) / float64(totalSeen)
		if efficiency < 0.5 {
			fs.CritOverhead -= alphaDown
			fs.BulkOverhead -= alphaDown
		}
	}

	if delivered && fs.PanicBoost == 0 &&
		fs.GoodStreak >= goodStreakThreshold &&
		fs.AvgCoverage >= coverageGoodThreshold {
		delta := alphaDown
		if profile.FlowClass == Muscle {
			delta *= 1.5
		}
		fs.CritOverhead -= delta
		fs.BulkOverhead -= delta
	}

	fs.clampOverheads(gp.MaxOverhead)

	o.logger.Debug("adapt",
		"class", profile.FlowClass.String(),
		"priority", profile.Priority.String(),
		"coverage", coverage,
		"avg_coverage", fs.AvgCoverage,
		"delivered", delivered,
		"used", symbolsUsed,
		"seen", totalSeen,
		"crit_overhead", fs.CritOverhead,
		"bulk_overhead", fs.BulkOverhead,
		"panic_boost", fs.PanicBoost,
		"good_streak", fs.GoodStreak,
		"bad_streak", fs.BadStreak,
		"genotype", fs.Genotype.String(),
	)
}
