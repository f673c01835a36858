package organism

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
)

func randomPayload(seed uint64, n int) []byte {
	src := prng.New(seed)
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(src.Uint64())
	}
	return out
}

// drop drops packets pseudo-randomly at the given loss rate, using src so
// the scenario stays reproducible.
func drop(src *prng.Source, packets []Packet, loss float64) []Packet {
	var kept []Packet
	for _, p := range packets {
		if src.Float64() >= loss {
			kept = append(kept, p)
		}
	}
	return kept
}

func roundTrip(t *testing.T, seed uint64, payloadSize, blockSize int, loss float64, profile Profile) (SpawnResult, IntegrateResult) {
	t.Helper()
	rng := prng.New(seed)
	org := New(DefaultAdaptationConfig(), rng, nil)

	payload := randomPayload(seed, payloadSize)
	spawned := org.Spawn(profile, "tok-1", payload, blockSize)
	received := drop(rng, spawned.Packets, loss)
	result := org.Integrate(profile, "tok-1", spawned.KTotal, blockSize, received)
	return spawned, result
}

func TestGoodChannelMuscle(t *testing.T) {
	profile := Profile{Priority: Normal, FlowClass: Muscle}
	_, result := roundTrip(t, 300, 4096, 128, 0.0, profile)

	assert.True(t, result.Delivered)
	assert.GreaterOrEqual(t, result.Coverage, 0.99)
}

func TestGoodChannelNerve(t *testing.T) {
	profile := Profile{DeadlineS: 1.5, Reliability: 0.99, Priority: Critical, FlowClass: Nerve}
	rng := prng.New(100)
	org := New(DefaultAdaptationConfig(), rng, nil)

	payload := randomPayload(100, 1024)
	const blockSize = 128
	spawned := org.Spawn(profile, "tok-nerve", payload, blockSize)

	fsBefore, ok := org.State(profile)
	require.True(t, ok)
	assert.Equal(t, 3.0, fsBefore.CritOverhead)

	result := org.Integrate(profile, "tok-nerve", spawned.KTotal, blockSize, spawned.Packets)
	assert.True(t, result.Delivered)
	assert.GreaterOrEqual(t, result.Coverage, 0.99)
}

func TestBadChannelGland55PercentLoss(t *testing.T) {
	profile := Profile{Priority: Normal, FlowClass: Gland}
	rng := prng.New(500)
	org := New(DefaultAdaptationConfig(), rng, nil)

	fsInit, _ := org.State(profile)
	_ = fsInit // not yet spawned

	payload := randomPayload(500, 2048)
	const blockSize = 128
	spawned := org.Spawn(profile, "tok-bad", payload, blockSize)

	baseline, ok := org.State(profile)
	require.True(t, ok)

	received := drop(rng, spawned.Packets, 0.55)
	result := org.Integrate(profile, "tok-bad", spawned.KTotal, blockSize, received)

	assert.False(t, result.Delivered)
	assert.Less(t, result.Coverage, 0.9)

	after, ok := org.State(profile)
	require.True(t, ok)
	assert.GreaterOrEqual(t, after.PanicBoost, 3)
	assert.Greater(t, after.CritOverhead, baseline.CritOverhead)
	assert.Greater(t, after.BulkOverhead, baseline.BulkOverhead)
}

func TestAdaptationConvergesAfterRecovery(t *testing.T) {
	profile := Profile{Priority: Normal, FlowClass: Gland}
	rng := prng.New(700)
	org := New(DefaultAdaptationConfig(), rng, nil)
	const blockSize = 128

	var overheadsAfterLossyRuns []float64
	for i := 0; i < 5; i++ {
		payload := randomPayload(700+uint64(i), 2048)
		spawned := org.Spawn(profile, "tok-adapt", payload, blockSize)
		received := drop(rng, spawned.Packets, 0.5)
		org.Integrate(profile, "tok-adapt", spawned.KTotal, blockSize, received)

		fs, _ := org.State(profile)
		overheadsAfterLossyRuns = append(overheadsAfterLossyRuns, fs.CritOverhead)
	}

	peak, _ := org.State(profile)
	assert.GreaterOrEqual(t, peak.CritOverhead, peak.BaseCritOverhead)

	var overheadsDuringRecovery []float64
	for i := 0; i < 10; i++ {
		payload := randomPayload(800+uint64(i), 2048)
		spawned := org.Spawn(profile, "tok-adapt", payload, blockSize)
		received := drop(rng, spawned.Packets, 0.0)
		org.Integrate(profile, "tok-adapt", spawned.KTotal, blockSize, received)

		fs, _ := org.State(profile)
		overheadsDuringRecovery = append(overheadsDuringRecovery, fs.CritOverhead)
	}

	final, ok := org.State(profile)
	require.True(t, ok)

	// Floor invariant: overhead never drops below the flow class's base overhead.
	assert.GreaterOrEqual(t, final.CritOverhead, final.BaseCritOverhead)
	assert.GreaterOrEqual(t, final.BulkOverhead, final.BaseBulkOverhead)

	// Recovery should trend the overhead back down from its post-loss peak,
	// once good_streak/avg_coverage clear the calm-state thinning thresholds.
	assert.LessOrEqual(t, overheadsDuringRecovery[len(overheadsDuringRecovery)-1], peak.CritOverhead)

	_ = overheadsAfterLossyRuns
	_ = math.Abs // placeholder for future tolerance comparisons
}

func TestPanicBoostDecrementsEachSpawn(t *testing.T) {
	profile := Profile{Priority: Critical, FlowClass: Nerve}
	rng := prng.New(900)
	org := New(DefaultAdaptationConfig(), rng, nil)
	const blockSize = 64

	payload := randomPayload(900, 512)
	spawned := org.Spawn(profile, "tok-panic", payload, blockSize)
	// Keep a single packet so total_symbols_seen > 0 but decoding still
	// fails, forcing the failure path that arms panic_boost.
	require.NotEmpty(t, spawned.Packets)
	org.Integrate(profile, "tok-panic", spawned.KTotal, blockSize, spawned.Packets[:1])

	armed, _ := org.State(profile)
	require.Greater(t, armed.PanicBoost, 0)

	org.Spawn(profile, "tok-panic-2", payload, blockSize)
	after, _ := org.State(profile)
	assert.Equal(t, armed.PanicBoost-1, after.PanicBoost)
}
