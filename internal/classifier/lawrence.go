package classifier

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nix0283/CITARION-dev-sub004/internal/features"
)

// Config controls the k-NN classifier.
type Config struct {
	K          int `yaml:"k"`           // neighbors per query (default: 8)
	WindowSize int `yaml:"window_size"` // training window capacity (default: 2000)
}

// DefaultConfig returns the production classifier settings.
func DefaultConfig() Config {
	return Config{K: 8, WindowSize: 2000}
}

// Lawrence is a k-nearest-neighbor classifier over a bounded sliding window of
// labeled feature vectors, using the Lorentzian distance metric. There is no
// incremental index: every classification re-scans the full window, which is
// O(window x dims) and comfortably sub-millisecond at the default capacity.
//
// Training and classification may be called from different goroutines; the
// window is guarded so a classify never observes a partial eviction.
type Lawrence struct {
	mu     sync.RWMutex
	cfg    Config
	window []TrainingSample
	dims   int
}

// NewLawrence creates an untrained classifier.
func NewLawrence(cfg Config) *Lawrence {
	def := DefaultConfig()
	if cfg.K <= 0 {
		cfg.K = def.K
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	return &Lawrence{cfg: cfg, window: make([]TrainingSample, 0, cfg.WindowSize)}
}

// Train appends one sample, evicting the oldest once the window is full.
func (l *Lawrence) Train(sample TrainingSample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trainLocked(sample)
}

// TrainBatch appends samples atomically: either every sample is accepted or
// none past the first invalid one, with the window left consistent.
func (l *Lawrence) TrainBatch(samples []TrainingSample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range samples {
		if err := l.trainLocked(s); err != nil {
			return fmt.Errorf("batch sample %d: %w", i, err)
		}
	}
	return nil
}

func (l *Lawrence) trainLocked(sample TrainingSample) error {
	n := sample.Features.Len()
	if n == 0 {
		return fmt.Errorf("training sample has no features")
	}
	if l.dims != 0 && n != l.dims {
		return &DimensionError{Got: n, Want: l.dims}
	}
	if sample.Weight <= 0 || math.IsNaN(sample.Weight) || math.IsInf(sample.Weight, 0) {
		return fmt.Errorf("training sample weight must be a positive finite number, got %v", sample.Weight)
	}
	switch sample.Label {
	case Long, Short, Neutral:
	default:
		return fmt.Errorf("unknown training label %q", sample.Label)
	}

	if l.dims == 0 {
		l.dims = n
	}
	l.window = append(l.window, sample)
	if len(l.window) > l.cfg.WindowSize {
		evict := len(l.window) - l.cfg.WindowSize
		l.window = append(l.window[:0], l.window[evict:]...)
		log.Debug().Int("evicted", evict).Int("window", len(l.window)).Msg("training window at capacity")
	}
	return nil
}

// Classify votes among the k nearest stored samples. An empty window yields
// the defined NEUTRAL result with confidence 0.
func (l *Lawrence) Classify(fv features.Vector) (Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.window) == 0 {
		return NeutralResult(fv), nil
	}
	if fv.Len() != l.dims {
		return Result{}, &DimensionError{Got: fv.Len(), Want: l.dims}
	}

	query := fv.Values()
	type neighbor struct {
		dist   float64
		label  Direction
		weight float64
	}
	neighbors := make([]neighbor, 0, len(l.window))
	for _, s := range l.window {
		d, err := LorentzianDistance(query, s.Features.Values())
		if err != nil {
			return Result{}, err
		}
		neighbors = append(neighbors, neighbor{dist: d, label: s.Label, weight: s.Weight})
	}
	// Stable sort keeps insertion order among equidistant samples, so ties
	// resolve deterministically.
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })

	k := l.cfg.K
	if k > len(neighbors) {
		k = len(neighbors)
	}

	votes := map[Direction]float64{}
	total := 0.0
	for _, nb := range neighbors[:k] {
		w := nb.weight / (1 + nb.dist)
		votes[nb.label] += w
		total += w
	}
	if total <= 0 {
		return NeutralResult(fv), nil
	}

	probs := make(map[Direction]float64, 3)
	for _, d := range Directions {
		probs[d] = votes[d] / total
	}

	best, second := Neutral, 0.0
	bestP := -1.0
	for _, d := range Directions {
		p := probs[d]
		if p > bestP {
			second = bestP
			bestP = p
			best = d
		} else if p > second {
			second = p
		}
	}
	if second < 0 {
		second = 0
	}

	return Result{
		Direction:     best,
		Probability:   bestP,
		Confidence:    bestP - second,
		Probabilities: probs,
		Features:      fv,
	}, nil
}

// Len reports the current window length.
func (l *Lawrence) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.window)
}

// Trained reports whether any training data has been seen.
func (l *Lawrence) Trained() bool { return l.Len() > 0 }

// Snapshot returns a copy of the training window, oldest first. Calibrators
// fit from this copy so they never hold a live reference into the window.
func (l *Lawrence) Snapshot() []TrainingSample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]TrainingSample, len(l.window))
	copy(out, l.window)
	return out
}

// Import replaces the window with previously exported samples, applying the
// usual validation and capacity bound.
func (l *Lawrence) Import(samples []TrainingSample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window = l.window[:0]
	l.dims = 0
	for i, s := range samples {
		if err := l.trainLocked(s); err != nil {
			return fmt.Errorf("import sample %d: %w", i, err)
		}
	}
	return nil
}
