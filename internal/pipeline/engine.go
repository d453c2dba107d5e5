package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nix0283/CITARION-dev-sub004/internal/calibration"
	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/config"
	"github.com/nix0283/CITARION-dev-sub004/internal/ensemble"
	"github.com/nix0283/CITARION-dev-sub004/internal/features"
	"github.com/nix0283/CITARION-dev-sub004/internal/learner"
	"github.com/nix0283/CITARION-dev-sub004/internal/persistence"
	"github.com/nix0283/CITARION-dev-sub004/internal/signals"
	"github.com/nix0283/CITARION-dev-sub004/internal/telemetry"
)

// Candles is one OHLCV window for evaluation. Volume may be nil.
type Candles struct {
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Evaluation is the full output of one pipeline tick.
type Evaluation struct {
	Features       features.Vector
	Ensemble       ensemble.Result
	CalibratedProb float64 // Platt-calibrated LONG probability
	Smoothed       classifier.Result
	Signal         signals.Signal
}

// Engine owns one symbol's classification pipeline. It is constructed per
// symbol by the orchestrating context; there are no process-wide singletons.
// All methods are safe for the single-writer-per-symbol model of the caller.
type Engine struct {
	cfg       config.Config
	extractor *features.Extractor
	clf       *classifier.Lawrence
	platt     *calibration.PlattScaler
	smoother  *calibration.Smoother
	agg       *ensemble.Aggregator
	lrn       *learner.Learner
	adapter   *signals.Adapter
	store     persistence.Store
	metrics   *telemetry.Metrics
}

// Option customizes engine construction.
type Option func(*Engine)

// WithStore attaches a snapshot store for export/import and autosave.
func WithStore(store persistence.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// trainerHook bridges the learner to the classifier so engine metrics stay in
// one place.
type trainerHook struct{ e *Engine }

func (t trainerHook) TrainBatch(samples []classifier.TrainingSample) error {
	if err := t.e.clf.TrainBatch(samples); err != nil {
		return err
	}
	if t.e.metrics != nil {
		t.e.metrics.BatchesFlushed.Inc()
		t.e.metrics.WindowSize.Set(float64(t.e.clf.Len()))
	}
	return nil
}

// NewEngine wires the full pipeline for one symbol. The default ensemble
// carries the Lawrence classifier plus the momentum, trend, and session rule
// members.
func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:       cfg,
		extractor: features.NewExtractor(cfg.Features),
		clf:       classifier.NewLawrence(cfg.Classifier),
		platt:     calibration.NewPlattScaler(),
		smoother:  calibration.NewSmoother(cfg.Smoother),
		agg:       ensemble.NewAggregator(cfg.Ensemble),
		adapter:   signals.NewAdapter(cfg.Signals),
	}
	e.lrn = learner.New(cfg.Learner, trainerHook{e})
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics != nil {
		e.agg.OnSkip(func(member string) {
			e.metrics.MemberSkips.WithLabelValues(member).Inc()
		})
	}

	members := []struct {
		m ensemble.Member
		w float64
	}{
		{ensemble.NewLawrenceMember(e.clf), 2.0},
		{ensemble.MomentumMember{}, 1.0},
		{ensemble.TrendMember{}, 1.0},
		{ensemble.SessionMember{}, 0.5},
	}
	for _, mw := range members {
		if err := e.agg.Register(mw.m, mw.w); err != nil {
			return nil, fmt.Errorf("register ensemble member: %w", err)
		}
	}
	return e, nil
}

// Evaluate runs one full tick: feature extraction, ensemble classification,
// calibration/smoothing, and signal gating. Errors carry the stage, symbol,
// and timestamp for replay.
func (e *Engine) Evaluate(ctx context.Context, candles Candles, ts time.Time) (*Evaluation, error) {
	start := time.Now()

	fv, err := e.extractor.Extract(candles.High, candles.Low, candles.Close, candles.Volume, ts)
	if err != nil {
		return nil, fmt.Errorf("extract features (%s @ %s): %w", e.cfg.Symbol, ts.Format(time.RFC3339), err)
	}

	ens, err := e.agg.Predict(ctx, fv)
	if err != nil {
		return nil, fmt.Errorf("ensemble predict (%s @ %s): %w", e.cfg.Symbol, ts.Format(time.RFC3339), err)
	}

	eval := &Evaluation{Features: fv, Ensemble: ens}

	probability := ens.Probability
	confidence := ens.Confidence

	if e.cfg.UsePlatt {
		score := ens.Probabilities[classifier.Long] - ens.Probabilities[classifier.Short]
		eval.CalibratedProb = e.platt.Predict(score)
		if ens.Direction == classifier.Long {
			probability = eval.CalibratedProb
		} else if ens.Direction == classifier.Short {
			probability = 1 - eval.CalibratedProb
		}
	}

	if e.cfg.UseSmoother && e.clf.Trained() {
		smoothed, err := e.smoother.Smooth(fv, e.clf.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("kernel smoothing (%s @ %s): %w", e.cfg.Symbol, ts.Format(time.RFC3339), err)
		}
		eval.Smoothed = smoothed

		base := resultFromEnsemble(ens, fv)
		base.Probability = probability
		base.Confidence = confidence
		blended := e.smoother.Blend(base, smoothed)
		probability = blended.Probability
		confidence = blended.Confidence
	}

	price := candles.Close[len(candles.Close)-1]
	eval.Signal = e.adapter.ProcessSignal(rawScore(ens.Direction), signals.Metadata{
		Timestamp:   ts,
		Price:       price,
		Confidence:  confidence,
		Probability: probability,
		Symbol:      e.cfg.Symbol,
	})

	if e.metrics != nil {
		e.metrics.Evaluations.WithLabelValues(e.cfg.Symbol, string(ens.Direction)).Inc()
		e.metrics.EvalDuration.Observe(time.Since(start).Seconds())
		e.metrics.SignalsEmitted.WithLabelValues(
			string(eval.Signal.Action), fmt.Sprintf("%t", eval.Signal.Filters.Passed),
		).Inc()
	}
	log.Debug().
		Str("symbol", e.cfg.Symbol).
		Str("direction", string(ens.Direction)).
		Float64("confidence", confidence).
		Float64("agreement", ens.Agreement).
		Bool("signal_passed", eval.Signal.Filters.Passed).
		Msg("evaluation complete")
	return eval, nil
}

// rawScore encodes a direction for the signal adapter's threshold bands.
func rawScore(d classifier.Direction) float64 {
	switch d {
	case classifier.Long:
		return 1
	case classifier.Short:
		return -1
	default:
		return 0
	}
}

func resultFromEnsemble(ens ensemble.Result, fv features.Vector) classifier.Result {
	return classifier.Result{
		Direction:     ens.Direction,
		Probability:   ens.Probability,
		Confidence:    ens.Confidence,
		Probabilities: ens.Probabilities,
		Features:      fv,
	}
}

// Train buffers one labeled sample through the online learner.
func (e *Engine) Train(sample classifier.TrainingSample) error {
	if err := e.lrn.AddSample(sample); err != nil {
		return fmt.Errorf("train (%s): %w", e.cfg.Symbol, err)
	}
	return nil
}

// ReportOutcome feeds drift detection with the correctness of the last
// acted-on prediction.
func (e *Engine) ReportOutcome(correct bool) {
	before := e.lrn.Stats().DriftCount
	e.lrn.ReportOutcome(correct)
	after := e.lrn.Stats()
	if e.metrics != nil {
		if after.DriftCount > before {
			e.metrics.DriftEvents.Inc()
		}
		e.metrics.CurrentAccuracy.Set(after.CurrentAccuracy)
		e.metrics.RecentAccuracy.Set(after.RecentAccuracy)
	}
}

// ResolveOutcome grades the last evaluation's member predictions against the
// realized direction and feeds both the ensemble performance tracker and
// drift detection.
func (e *Engine) ResolveOutcome(eval *Evaluation, actual classifier.Direction) {
	for name, res := range eval.Ensemble.MemberResults {
		if err := e.agg.UpdatePerformance(name, res.Direction == actual); err != nil {
			log.Warn().Str("member", name).Err(err).Msg("performance update skipped")
		}
	}
	e.ReportOutcome(eval.Ensemble.Direction == actual)
}

// Tick drives time-based work from the orchestrating loop: learner
// force-flush and, when a store is attached, snapshot autosave.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	if err := e.lrn.Tick(now); err != nil {
		return fmt.Errorf("tick flush (%s): %w", e.cfg.Symbol, err)
	}
	if e.store != nil {
		if err := e.ExportSnapshot(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RefreshCalibration refits the Platt scaler from a snapshot of the training
// window. Classification calls are never interrupted: the snapshot is a copy.
// At most the most recent 200 samples are scored to bound the refit cost.
func (e *Engine) RefreshCalibration() error {
	snapshot := e.clf.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}
	if len(snapshot) > 200 {
		snapshot = snapshot[len(snapshot)-200:]
	}
	scores := make([]float64, 0, len(snapshot))
	targets := make([]bool, 0, len(snapshot))
	for _, s := range snapshot {
		res, err := e.clf.Classify(s.Features)
		if err != nil {
			return fmt.Errorf("calibration refresh (%s): %w", e.cfg.Symbol, err)
		}
		scores = append(scores, res.Probabilities[classifier.Long]-res.Probabilities[classifier.Short])
		targets = append(targets, s.Label == classifier.Long)
	}
	e.platt.Fit(scores, targets)
	log.Info().Str("symbol", e.cfg.Symbol).Int("samples", len(scores)).Bool("fitted", e.platt.Fitted()).
		Msg("platt calibration refreshed")
	return nil
}

// ExportSnapshot persists the training window and calibration parameters.
func (e *Engine) ExportSnapshot(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("export snapshot (%s): no store configured", e.cfg.Symbol)
	}
	a, b, fitted := e.platt.Params()
	snap := &persistence.Snapshot{
		Symbol:    e.cfg.Symbol,
		CreatedAt: time.Now().UTC(),
		Samples:   e.clf.Snapshot(),
		Platt:     persistence.PlattParams{A: a, B: b, Fitted: fitted},
	}
	if err := e.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("export snapshot (%s): %w", e.cfg.Symbol, err)
	}
	return nil
}

// ImportSnapshot restores the training window and calibration parameters.
func (e *Engine) ImportSnapshot(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("import snapshot (%s): no store configured", e.cfg.Symbol)
	}
	snap, err := e.store.Load(ctx, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("import snapshot (%s): %w", e.cfg.Symbol, err)
	}
	if err := e.clf.Import(snap.Samples); err != nil {
		return fmt.Errorf("import snapshot (%s): %w", e.cfg.Symbol, err)
	}
	e.platt.SetParams(snap.Platt.A, snap.Platt.B, snap.Platt.Fitted)
	if e.metrics != nil {
		e.metrics.WindowSize.Set(float64(e.clf.Len()))
	}
	log.Info().Str("symbol", e.cfg.Symbol).Int("samples", len(snap.Samples)).Msg("snapshot imported")
	return nil
}

// Flush forces a training pass over any buffered samples.
func (e *Engine) Flush() error { return e.lrn.Flush() }

// Stats returns the learner's counters and gauges.
func (e *Engine) Stats() learner.Stats { return e.lrn.Stats() }

// Performances returns every ensemble member's performance record.
func (e *Engine) Performances() []ensemble.Performance { return e.agg.Performances() }

// ProcessSignal exposes the gate-and-translate layer for callers that compute
// their own raw scores (exit intents use the +/-2 encoding).
func (e *Engine) ProcessSignal(rawScore float64, meta signals.Metadata) signals.Signal {
	return e.adapter.ProcessSignal(rawScore, meta)
}

// Position returns the adapter's current position, or nil when flat.
func (e *Engine) Position() *signals.Position { return e.adapter.Position() }
