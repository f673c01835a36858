package engine

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurora-x/aurora-x/internal/aurorax/duty"
	"github.com/aurora-x/aurora-x/internal/aurorax/hal"
	"github.com/aurora-x/aurora-x/internal/aurorax/optimizer"
	"github.com/aurora-x/aurora-x/internal/aurorax/organism"
	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
	"github.com/aurora-x/aurora-x/internal/aurorax/safety"
	"github.com/aurora-x/aurora-x/internal/aurorax/telemetry"
	"github.com/aurora-x/aurora-x/internal/aurorax/token"
)

func newTestEngine(t *testing.T, seed uint64) (*Engine, token.Token) {
	t.Helper()

	path := t.TempDir() + "/telemetry.jsonl"
	t.Setenv("AURORA_TELEMETRY_PATH", path)

	rng := prng.New(seed)
	org := organism.New(organism.DefaultAdaptationConfig(), rng, nil)
	opt := optimizer.New(optimizer.Config{}, rng, nil)
	mon := safety.New()
	sim := hal.NewSimulator(prng.New(seed+1), 10000, nil)
	limiter := duty.New(50, 200, 0.3)
	chanState := telemetry.NewChannelState()
	sink, err := telemetry.NewSink(false, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close(); os.Remove(path) })

	source := NewNode(1000, 1.0)
	dest := NewNode(1000, 1.0)

	pub, priv, err := token.Keypair()
	require.NoError(t, err)
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}
	tok := token.Create(payload, 0, 1000, 1, pub, priv)

	profile := organism.Profile{DeadlineS: 5.0, Reliability: 0.97, Priority: organism.Normal, FlowClass: organism.Gland}
	const blockSize = 64
	spawned := org.Spawn(profile, tok.ID, tok.Payload, blockSize)
	source.Enqueue(spawned.Packets)

	intention := Intention{DeadlineS: 5.0, Reliability: 0.97, Duty: 0.3, Optical: true, Backscatter: true}

	e := New(org, opt, mon, sim, limiter, chanState, sink, nil, source, dest, rng, nil,
		tok, profile, intention, blockSize, spawned.KTotal, 500, false)
	return e, tok
}

func TestEngineStepAdvancesAndEventuallyTerminates(t *testing.T) {
	e, _ := newTestEngine(t, 42)
	ctx := context.Background()

	outcome, code, err := e.Run(ctx)
	require.NoError(t, err)
	require.Contains(t, []StepOutcome{StepDelivered, StepTimeout}, outcome)
	require.Contains(t, []int{0, 1}, code)
}

func TestEngineDeterministicUnderFixedSeed(t *testing.T) {
	e1, _ := newTestEngine(t, 99)
	e2, _ := newTestEngine(t, 99)
	ctx := context.Background()

	o1, c1, err1 := e1.Run(ctx)
	o2, c2, err2 := e2.Run(ctx)

	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, o1, o2)
	require.Equal(t, c1, c2)
}
