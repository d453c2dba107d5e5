package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/config"
	"github.com/nix0283/CITARION-dev-sub004/internal/pipeline"
)

// runSelftest exercises the full pipeline on a synthetic trending series and
// verifies the basic invariants hold end to end.
func runSelftest(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg.Signals.UseSessionFilter = false
	engine, err := pipeline.NewEngine(cfg)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(42))
	n := 400
	high := make([]float64, 0, n)
	low := make([]float64, 0, n)
	closes := make([]float64, 0, n)
	vol := make([]float64, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price *= 1 + 0.002 + 0.001*rng.NormFloat64()
		high = append(high, price*1.002)
		low = append(low, price*0.998)
		closes = append(closes, price)
		vol = append(vol, 1000+100*rng.Float64())
	}

	ctx := context.Background()
	ts := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	var lastEval *pipeline.Evaluation

	for i := 60; i < n; i++ {
		window := pipeline.Candles{High: high[:i+1], Low: low[:i+1], Close: closes[:i+1], Volume: vol[:i+1]}
		eval, err := engine.Evaluate(ctx, window, ts.Add(time.Duration(i)*time.Minute))
		if err != nil {
			return fmt.Errorf("selftest evaluate bar %d: %w", i, err)
		}
		if eval.Ensemble.Agreement < 0 || eval.Ensemble.Agreement > 1 {
			return fmt.Errorf("selftest: agreement %v out of range", eval.Ensemble.Agreement)
		}
		if math.IsNaN(eval.CalibratedProb) || eval.CalibratedProb <= 0 || eval.CalibratedProb >= 1 {
			return fmt.Errorf("selftest: calibrated probability %v not in (0,1)", eval.CalibratedProb)
		}
		if err := engine.Train(classifier.TrainingSample{
			Features:  eval.Features,
			Label:     classifier.Long, // series trends up by construction
			Weight:    1,
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			return fmt.Errorf("selftest train bar %d: %w", i, err)
		}
		engine.ResolveOutcome(eval, classifier.Long)
		lastEval = eval
	}

	if err := engine.Flush(); err != nil {
		return fmt.Errorf("selftest flush: %w", err)
	}
	if err := engine.RefreshCalibration(); err != nil {
		return fmt.Errorf("selftest calibration: %w", err)
	}

	stats := engine.Stats()
	if stats.TotalSamples == 0 || stats.ProcessedBatches == 0 {
		return fmt.Errorf("selftest: learner never trained (samples=%d batches=%d)",
			stats.TotalSamples, stats.ProcessedBatches)
	}

	fmt.Printf("selftest OK: %d samples, %d batches, last direction %s (confidence %.2f)\n",
		stats.TotalSamples, stats.ProcessedBatches,
		lastEval.Ensemble.Direction, lastEval.Ensemble.Confidence)
	return nil
}
