package features

import (
	"encoding/json"
	"fmt"
	"math"
)

// Feature keys in extraction order. The classifier relies on every vector
// produced by one extractor carrying the same keys in the same positions.
const (
	KeyMomentum        = "momentum"
	KeyVolatilityRatio = "volatility_ratio"
	KeyTrendStrength   = "trend_strength"
	KeyVolumeRatio     = "volume_ratio"
	KeyPriceVelocity   = "price_velocity"
	KeyEfficiencyRatio = "efficiency_ratio"
	KeySessionFactor   = "session_factor"
	KeyDayFactor       = "day_factor"
)

// Vector is an ordered, immutable mapping from feature names to normalized
// scalars. Accessors return copies so callers cannot mutate internal state.
type Vector struct {
	keys   []string
	values []float64
}

// NewVector builds a feature vector from parallel key/value slices. Non-finite
// values are rejected up front so they can never reach a training window.
func NewVector(keys []string, values []float64) (Vector, error) {
	if len(keys) != len(values) {
		return Vector{}, fmt.Errorf("feature keys/values length mismatch: %d vs %d", len(keys), len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Vector{}, fmt.Errorf("feature %q is not finite: %v", keys[i], v)
		}
	}
	k := make([]string, len(keys))
	v := make([]float64, len(values))
	copy(k, keys)
	copy(v, values)
	return Vector{keys: k, values: v}, nil
}

// Len returns the number of dimensions.
func (v Vector) Len() int { return len(v.values) }

// Keys returns a copy of the ordered feature names.
func (v Vector) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Values returns a copy of the ordered feature values.
func (v Vector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Get returns the value for a named feature.
func (v Vector) Get(key string) (float64, bool) {
	for i, k := range v.keys {
		if k == key {
			return v.values[i], true
		}
	}
	return 0, false
}

type vectorJSON struct {
	Keys   []string  `json:"keys"`
	Values []float64 `json:"values"`
}

// MarshalJSON preserves key order so snapshots round-trip exactly.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(vectorJSON{Keys: v.keys, Values: v.values})
}

func (v *Vector) UnmarshalJSON(data []byte) error {
	var raw vectorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	vec, err := NewVector(raw.Keys, raw.Values)
	if err != nil {
		return err
	}
	*v = vec
	return nil
}
