package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/config"
	"github.com/nix0283/CITARION-dev-sub004/internal/pipeline"
)

type candle struct {
	ts                     time.Time
	high, low, close, vol  float64
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	warmup, _ := cmd.Flags().GetInt("warmup")
	horizon, _ := cmd.Flags().GetInt("horizon")
	labelThreshold, _ := cmd.Flags().GetFloat64("label-threshold")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	engine, err := pipeline.NewEngine(cfg)
	if err != nil {
		return err
	}

	candles, err := loadCandles(args[0])
	if err != nil {
		return err
	}
	if len(candles) <= warmup+horizon {
		return fmt.Errorf("need more than %d candles, got %d", warmup+horizon, len(candles))
	}
	log.Info().Str("file", args[0]).Int("candles", len(candles)).Msg("replay starting")

	ctx := context.Background()
	var evaluated, passed, correct, graded int

	for i := warmup; i < len(candles)-horizon; i++ {
		window := candles[:i+1]
		eval, err := engine.Evaluate(ctx, toWindow(window), window[i].ts)
		if err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		evaluated++
		if eval.Signal.Filters.Passed {
			passed++
		}

		// Label this bar from the realized move over the horizon.
		actual := labelMove(candles[i].close, candles[i+horizon].close, labelThreshold)
		engine.ResolveOutcome(eval, actual)
		if eval.Ensemble.Direction != classifier.Neutral {
			graded++
			if eval.Ensemble.Direction == actual {
				correct++
			}
		}
		if err := engine.Train(classifier.TrainingSample{
			Features:  eval.Features,
			Label:     actual,
			Weight:    1,
			Timestamp: window[i].ts,
		}); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if err := engine.Tick(ctx, window[i].ts); err != nil {
			log.Warn().Err(err).Msg("tick failed")
		}
		if i%200 == 0 {
			if err := engine.RefreshCalibration(); err != nil {
				return err
			}
		}
	}

	stats := engine.Stats()
	fmt.Printf("Replay complete: %d bars evaluated\n", evaluated)
	fmt.Printf("  signals passed gates:  %d\n", passed)
	if graded > 0 {
		fmt.Printf("  directional accuracy:  %.1f%% (%d/%d)\n", 100*float64(correct)/float64(graded), correct, graded)
	}
	fmt.Printf("  training samples:      %d (batches: %d)\n", stats.TotalSamples, stats.ProcessedBatches)
	fmt.Printf("  drift events:          %d (active: %t)\n", stats.DriftCount, stats.DriftDetected)
	for _, p := range engine.Performances() {
		fmt.Printf("  member %-10s accuracy %.2f (recent %.2f, n=%d)\n", p.Name, p.Accuracy, p.RecentAccuracy, p.Total)
	}
	return nil
}

func labelMove(from, to, threshold float64) classifier.Direction {
	if from == 0 {
		return classifier.Neutral
	}
	move := (to - from) / from
	switch {
	case move > threshold:
		return classifier.Long
	case move < -threshold:
		return classifier.Short
	default:
		return classifier.Neutral
	}
}

func toWindow(candles []candle) pipeline.Candles {
	w := pipeline.Candles{
		High:   make([]float64, len(candles)),
		Low:    make([]float64, len(candles)),
		Close:  make([]float64, len(candles)),
		Volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		w.High[i], w.Low[i], w.Close[i], w.Volume[i] = c.high, c.low, c.close, c.vol
	}
	return w
}

// loadCandles reads timestamp,open,high,low,close,volume rows. The timestamp
// is RFC3339 or unix seconds; a header row is skipped automatically.
func loadCandles(path string) ([]candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse candle file: %w", err)
	}

	candles := make([]candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+1, len(row))
		}
		ts, err := parseTimestamp(row[0])
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		vals := make([]float64, 5)
		for j := 1; j < 6; j++ {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil || math.IsNaN(v) {
				return nil, fmt.Errorf("row %d col %d: bad number %q", i+1, j+1, row[j])
			}
			vals[j-1] = v
		}
		candles = append(candles, candle{ts: ts, high: vals[1], low: vals[2], close: vals[3], vol: vals[4]})
	}
	return candles, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
