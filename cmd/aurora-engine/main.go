// Command aurora-engine is the batch harness: it builds one Engine for a
// single token, drives it to completion, and exits 0 on delivery or 1
// otherwise (spec §6). It also serves /healthz and /metrics so the run can
// be observed externally while it drives (spec's "CSV batch harness and
// interactive dashboard" are out of scope — this replaces both with a
// minimal HTTP surface per the SPEC_FULL ambient-stack expansion).
package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurora-x/aurora-x/internal/aurorax/duty"
	"github.com/aurora-x/aurora-x/internal/aurorax/engine"
	"github.com/aurora-x/aurora-x/internal/aurorax/hal"
	"github.com/aurora-x/aurora-x/internal/aurorax/optimizer"
	"github.com/aurora-x/aurora-x/internal/aurorax/organism"
	"github.com/aurora-x/aurora-x/internal/aurorax/prng"
	"github.com/aurora-x/aurora-x/internal/aurorax/safety"
	"github.com/aurora-x/aurora-x/internal/aurorax/store"
	"github.com/aurora-x/aurora-x/internal/aurorax/telemetry"
	"github.com/aurora-x/aurora-x/internal/aurorax/token"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("loading .env failed", "err", err)
	}

	var (
		intentionFlag = flag.String("intention", "", "deadline:...;reliability:...;duty:...;optical:on|off;backscatter:on|off;ris:N;selector:argmax")
		flowClassFlag = flag.String("class", "GLAND", "NERVE|GLAND|MUSCLE")
		seedFlag      = flag.Uint64("seed", 1, "PRNG seed for reproducible runs")
		payloadSize   = flag.Int("payload-size", 2048, "random payload size in bytes when no --payload-file is given")
		interactive   = flag.Bool("interactive", false, "emit per-class health events on stdout")
		addr          = flag.String("addr", ":9090", "address for /healthz and /metrics")
		ledgerPath    = flag.String("ledger", "aurora_runs.db", "sqlite run ledger path")
	)
	flag.Parse()

	intention, err := engine.ParseIntention(*intentionFlag)
	if err != nil {
		logger.Error("bad intention string", "err", err)
		return 1
	}

	flowClass := parseFlowClass(*flowClassFlag)

	rng := prng.New(*seedFlag)
	payload := make([]byte, *payloadSize)
	if _, err := rand.Read(payload); err != nil {
		logger.Error("generate payload failed", "err", err)
		return 1
	}

	pub, priv, err := token.Keypair()
	if err != nil {
		logger.Error("keypair generation failed", "err", err)
		return 1
	}
	now := uint64(time.Now().Unix())
	tok := token.Create(payload, now, now+uint64(intention.DeadlineS)+5, rng.Uint64(), pub, priv)

	org := organism.New(organism.DefaultAdaptationConfig(), rng, logger)
	opt := optimizer.New(optimizer.Config{UseArgmax: intention.UseArgmax}, rng, logger)
	mon := safety.New()
	sim := hal.NewSimulator(rng, 2000, logger)
	// stepMillis=200 calibrates the window so a normal duty fraction admits
	// several real attempts: budget = 50*200*duty, e.g. 1000ms at duty=0.1,
	// comfortably covering a handful of ~100-200ms RF/IR attempts (spec §7
	// "duty-cycle exhausted" should be reachable, not permanent).
	limiter := duty.New(50, 200, intention.Duty)
	chanState := telemetry.NewChannelState()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	sink, err := telemetry.NewSink(*interactive, metrics, logger)
	if err != nil {
		logger.Error("open telemetry sink failed", "err", err)
		return 1
	}
	defer sink.Close()

	cfgLoader, err := engine.NewConfigLoader("aurora_interactive_config.json", logger)
	if err != nil {
		logger.Error("build config loader failed", "err", err)
		return 1
	}

	source := engine.NewNode(5000, 1.0)
	dest := engine.NewNode(5000, 1.0)

	profile := organism.Profile{
		DeadlineS:   intention.DeadlineS,
		Reliability: intention.Reliability,
		DutyLimit:   intention.Duty,
		Priority:    organism.Normal,
		FlowClass:   flowClass,
	}
	const blockSize = 128
	spawned := org.Spawn(profile, tok.ID, tok.Payload, blockSize)
	source.Enqueue(spawned.Packets)

	eng := engine.New(org, opt, mon, sim, limiter, chanState, sink, cfgLoader,
		source, dest, rng, logger, tok, profile, intention, blockSize, spawned.KTotal,
		0, *interactive)

	ledger, err := store.Open(*ledgerPath)
	if err != nil {
		logger.Error("open run ledger failed", "err", err)
		return 1
	}
	defer ledger.Close()

	srv := startObservabilityServer(*addr, reg, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(intention.DeadlineS*2)*time.Second+5*time.Second)
	defer cancel()

	outcome, code, err := eng.Run(ctx)
	if err != nil {
		logger.Error("engine run errored", "err", err)
		code = 1
	}

	result := eng.Dest.Inbound()
	delivered := outcome == engine.StepDelivered
	coverage := 0.0
	if delivered {
		coverage = 1.0
	}

	leafHashes := make([]string, 0, len(result))
	for _, p := range result {
		leafHashes = append(leafHashes, token.LeafHash(p.Fp.Data))
	}
	proof := token.NewProofShape(tok.ID, leafHashes, !tok.Verify())
	proofJSON, err := json.Marshal(proof)
	if err != nil {
		logger.Warn("marshal proof shape failed", "err", err)
		proofJSON = []byte("{}")
	}

	runCtx := context.Background()
	if err := ledger.RecordRun(runCtx, store.RunRecord{
		TokenID:    tok.ID,
		FlowClass:  flowClass.String(),
		Priority:   profile.Priority.String(),
		Delivered:  delivered,
		Coverage:   coverage,
		Steps:      len(result),
		SigBad:     !tok.Verify(),
		ProofJSON:  string(proofJSON),
		FinishedAt: time.Now(),
	}); err != nil {
		logger.Warn("record run failed", "err", err)
	}

	if rec, ok, err := ledger.RunByToken(runCtx, tok.ID); err != nil {
		logger.Warn("read back run ledger failed", "err", err)
	} else if ok {
		logger.Info("run ledger confirms", "delivered", rec.Delivered, "steps", rec.Steps)
	}

	logger.Info("run finished", "outcome", outcome.String(), "exit_code", code)
	return code
}

func parseFlowClass(s string) organism.FlowClass {
	switch s {
	case "NERVE":
		return organism.Nerve
	case "MUSCLE":
		return organism.Muscle
	default:
		return organism.Gland
	}
}

func startObservabilityServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("observability server stopped", "err", err)
		}
	}()
	return srv
}
