package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int, step float64) (high, low, closes, vol []float64) {
	price := 100.0
	for i := 0; i < n; i++ {
		price += step
		high = append(high, price+0.5)
		low = append(low, price-0.5)
		closes = append(closes, price)
		vol = append(vol, 1000)
	}
	return high, low, closes, vol
}

func TestExtractEmptyInputFailsFast(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	_, err := e.Extract(nil, nil, nil, nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty price series")
}

func TestExtractRaggedInputFailsFast(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	_, err := e.Extract([]float64{1, 2}, []float64{1}, []float64{1, 2}, nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ragged")
}

func TestExtractShortHistoryReturnsNeutralDefaults(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	high, low, closes, vol := series(5, 1)

	fv, err := e.Extract(high, low, closes, vol, time.Date(2025, 3, 3, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	mom, _ := fv.Get(KeyMomentum)
	volRatio, _ := fv.Get(KeyVolatilityRatio)
	trend, _ := fv.Get(KeyTrendStrength)
	vr, _ := fv.Get(KeyVolumeRatio)
	vel, _ := fv.Get(KeyPriceVelocity)
	eff, _ := fv.Get(KeyEfficiencyRatio)

	assert.Equal(t, 0.0, mom, "momentum centers at 0")
	assert.Equal(t, 0.5, volRatio, "volatility ratio centers at 0.5")
	assert.Equal(t, 0.5, trend, "trend strength centers at 0.5")
	assert.Equal(t, 0.5, vr, "volume ratio centers at 0.5")
	assert.Equal(t, 0.0, vel, "velocity centers at 0")
	assert.Equal(t, 0.5, eff, "efficiency ratio centers at 0.5")
}

func TestExtractBoundedOutputs(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	high, low, closes, vol := series(100, 5) // strong uptrend

	fv, err := e.Extract(high, low, closes, vol, time.Now().UTC())
	require.NoError(t, err)
	for i, v := range fv.Values() {
		assert.GreaterOrEqual(t, v, -1.0, "feature %s", fv.Keys()[i])
		assert.LessOrEqual(t, v, 1.0, "feature %s", fv.Keys()[i])
	}
}

func TestExtractUptrendFeatures(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	high, low, closes, vol := series(60, 2)

	fv, err := e.Extract(high, low, closes, vol, time.Now().UTC())
	require.NoError(t, err)

	mom, _ := fv.Get(KeyMomentum)
	trend, _ := fv.Get(KeyTrendStrength)
	eff, _ := fv.Get(KeyEfficiencyRatio)
	assert.Positive(t, mom)
	assert.Equal(t, 1.0, trend, "every bar moves up")
	assert.Equal(t, 1.0, eff, "no retracement means perfect efficiency")
}

func TestSessionAndDayFactors(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	high, low, closes, vol := series(5, 1)

	// 13:00 UTC Wednesday: London/New York overlap on a weekday.
	busy := time.Date(2025, 3, 5, 13, 0, 0, 0, time.UTC)
	fv, err := e.Extract(high, low, closes, vol, busy)
	require.NoError(t, err)
	sf, _ := fv.Get(KeySessionFactor)
	df, _ := fv.Get(KeyDayFactor)
	assert.Equal(t, 1.0, sf)
	assert.Equal(t, 1.0, df)

	// 02:00 UTC Sunday: dead hours on a weekend.
	quiet := time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC)
	fv, err = e.Extract(high, low, closes, vol, quiet)
	require.NoError(t, err)
	sf, _ = fv.Get(KeySessionFactor)
	df, _ = fv.Get(KeyDayFactor)
	assert.Equal(t, 0.25, sf)
	assert.Equal(t, 0.40, df)
}

func TestVectorImmutability(t *testing.T) {
	fv, err := NewVector([]string{"a", "b"}, []float64{0.1, 0.2})
	require.NoError(t, err)

	vals := fv.Values()
	vals[0] = 99
	keys := fv.Keys()
	keys[0] = "mutated"

	got, ok := fv.Get("a")
	require.True(t, ok)
	assert.Equal(t, 0.1, got, "returned slices are copies")
}

func TestVectorRejectsNonFinite(t *testing.T) {
	_, err := NewVector([]string{"a"}, []float64{math.NaN()})
	assert.Error(t, err)

	_, err = NewVector([]string{"a"}, []float64{math.Inf(1)})
	assert.Error(t, err)
}
