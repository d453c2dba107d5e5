package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "citarion"
	version = "v1.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Signal-classification and online-learning core",
		Version: version,
		Long: `CITARION classifies short-term market direction (LONG/SHORT/NEUTRAL) from
streaming price/volume features and adapts its decision model as outcomes
arrive: Lorentzian k-NN over a bounded training window, ensemble aggregation,
probability calibration, drift-aware online retraining, and signal gating.`,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config (defaults apply when omitted)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		level, _ := cmd.Flags().GetString("log-level")
		if lvl, err := zerolog.ParseLevel(level); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}

	replayCmd := &cobra.Command{
		Use:   "replay [candles.csv]",
		Short: "Replay a candle file through the pipeline",
		Long: `Replay runs the full pipeline over a CSV candle history
(timestamp,open,high,low,close,volume), training on realized outcomes as it
goes, and prints classification and signal statistics.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}
	replayCmd.Flags().Int("warmup", 50, "Bars consumed before classification starts")
	replayCmd.Flags().Int("horizon", 5, "Bars ahead used to label outcomes")
	replayCmd.Flags().Float64("label-threshold", 0.001, "Fractional move that labels LONG/SHORT vs NEUTRAL")

	selftestCmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the pipeline end-to-end on synthetic data",
		RunE:  runSelftest,
	}

	rootCmd.AddCommand(replayCmd, selftestCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
