package calibration

import (
	"fmt"
	"math"
	"sort"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/features"
)

// Kernel selects the weighting function for Nadaraya-Watson smoothing.
type Kernel string

const (
	Gaussian     Kernel = "gaussian"
	Epanechnikov Kernel = "epanechnikov"
	Uniform      Kernel = "uniform"
	Triangular   Kernel = "triangular"
)

// SmootherConfig controls kernel regression smoothing.
type SmootherConfig struct {
	Kernel    Kernel  `yaml:"kernel"`    // default: gaussian
	Bandwidth float64 `yaml:"bandwidth"` // kernel bandwidth h (default: 1.0)
	K         int     `yaml:"k"`         // neighbors to smooth over (default: 16)
	// BlendThreshold: the smoothed result only replaces the base result when
	// its own confidence exceeds this, so noisy smoothing near the class
	// boundary cannot degrade a high-confidence base prediction.
	BlendThreshold float64 `yaml:"blend_threshold"` // default: 0.5
}

// DefaultSmootherConfig returns production smoothing settings.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{Kernel: Gaussian, Bandwidth: 1.0, K: 16, BlendThreshold: 0.5}
}

// Smoother re-estimates classifier output with a kernel-weighted average of
// neighbor labels (Nadaraya-Watson). It owns no training data: callers pass a
// snapshot of the classifier's window on each call.
type Smoother struct {
	cfg SmootherConfig
}

// NewSmoother creates a smoother, filling unset config fields with defaults.
func NewSmoother(cfg SmootherConfig) *Smoother {
	def := DefaultSmootherConfig()
	if cfg.Kernel == "" {
		cfg.Kernel = def.Kernel
	}
	if cfg.Bandwidth <= 0 {
		cfg.Bandwidth = def.Bandwidth
	}
	if cfg.K <= 0 {
		cfg.K = def.K
	}
	if cfg.BlendThreshold <= 0 {
		cfg.BlendThreshold = def.BlendThreshold
	}
	return &Smoother{cfg: cfg}
}

// Smooth produces a kernel-regression estimate for the query from the given
// training snapshot. An empty snapshot yields the neutral result.
func (s *Smoother) Smooth(fv features.Vector, snapshot []classifier.TrainingSample) (classifier.Result, error) {
	if len(snapshot) == 0 {
		return classifier.NeutralResult(fv), nil
	}

	query := fv.Values()
	type neighbor struct {
		dist   float64
		label  classifier.Direction
		weight float64
	}
	neighbors := make([]neighbor, 0, len(snapshot))
	for _, sample := range snapshot {
		d, err := classifier.LorentzianDistance(query, sample.Features.Values())
		if err != nil {
			return classifier.Result{}, fmt.Errorf("kernel smoothing: %w", err)
		}
		neighbors = append(neighbors, neighbor{dist: d, label: sample.Label, weight: sample.Weight})
	}
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })

	k := s.cfg.K
	if k > len(neighbors) {
		k = len(neighbors)
	}

	votes := map[classifier.Direction]float64{}
	total := 0.0
	for _, nb := range neighbors[:k] {
		w := s.kernelWeight(nb.dist/s.cfg.Bandwidth) * nb.weight / (1 + nb.dist)
		votes[nb.label] += w
		total += w
	}
	if total <= 0 {
		return classifier.NeutralResult(fv), nil
	}

	probs := make(map[classifier.Direction]float64, 3)
	for _, d := range classifier.Directions {
		probs[d] = votes[d] / total
	}
	best := classifier.Neutral
	bestP, second := -1.0, 0.0
	for _, d := range classifier.Directions {
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
	return classifier.Result{
		Direction:     best,
		Probability:   bestP,
		Confidence:    bestP - second,
		Probabilities: probs,
		Features:      fv,
	}, nil
}

// Blend returns the smoothed result when its confidence clears the blend
// threshold, otherwise the base result unchanged.
func (s *Smoother) Blend(base, smoothed classifier.Result) classifier.Result {
	if smoothed.Confidence > s.cfg.BlendThreshold {
		return smoothed
	}
	return base
}

func (s *Smoother) kernelWeight(u float64) float64 {
	switch s.cfg.Kernel {
	case Epanechnikov:
		if math.Abs(u) >= 1 {
			return 0
		}
		return 0.75 * (1 - u*u)
	case Uniform:
		if math.Abs(u) >= 1 {
			return 0
		}
		return 0.5
	case Triangular:
		if math.Abs(u) >= 1 {
			return 0
		}
		return 1 - math.Abs(u)
	default: // gaussian
		return math.Exp(-0.5*u*u) / math.Sqrt(2*math.Pi)
	}
}
