package classifier

import (
	"fmt"
	"time"

	"github.com/nix0283/CITARION-dev-sub004/internal/features"
)

// Direction is a market-direction class label.
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// Directions lists the three classes in a fixed order for iteration.
var Directions = []Direction{Long, Short, Neutral}

// TrainingSample is one labeled observation. Samples are owned by the
// classifier's training window once trained; callers must not retain
// references expecting later mutation to be visible.
type TrainingSample struct {
	Features  features.Vector `json:"features"`
	Label     Direction       `json:"label"`
	Weight    float64         `json:"weight"`
	Timestamp time.Time       `json:"timestamp"`
}

// Result is the outcome of a single classification.
// Confidence is the gap between the winning class's probability and the
// runner-up's; it is always in [0,1].
type Result struct {
	Direction     Direction             `json:"direction"`
	Probability   float64               `json:"probability"`
	Confidence    float64               `json:"confidence"`
	Probabilities map[Direction]float64 `json:"probabilities"`
	Features      features.Vector       `json:"features"`
}

// NeutralResult is the defined output for an untrained or empty classifier.
func NeutralResult(fv features.Vector) Result {
	return Result{
		Direction:   Neutral,
		Probability: 1.0 / 3.0,
		Confidence:  0,
		Probabilities: map[Direction]float64{
			Long: 1.0 / 3.0, Short: 1.0 / 3.0, Neutral: 1.0 / 3.0,
		},
		Features: fv,
	}
}

// DimensionError reports a feature-vector length mismatch between a query and
// the stored training data. Queries are never silently truncated.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("feature dimension mismatch: got %d, want %d", e.Got, e.Want)
}
