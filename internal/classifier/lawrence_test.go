package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix0283/CITARION-dev-sub004/internal/features"
)

func vec(t *testing.T, vals ...float64) features.Vector {
	t.Helper()
	keys := make([]string, len(vals))
	for i := range vals {
		keys[i] = string(rune('a' + i))
	}
	fv, err := features.NewVector(keys, vals)
	require.NoError(t, err)
	return fv
}

func sample(t *testing.T, label Direction, vals ...float64) TrainingSample {
	t.Helper()
	return TrainingSample{Features: vec(t, vals...), Label: label, Weight: 1, Timestamp: time.Now()}
}

func TestLorentzianDistanceProperties(t *testing.T) {
	a := []float64{0.1, 0.5, 0.9}
	b := []float64{0.4, 0.2, 0.7}

	dab, err := LorentzianDistance(a, b)
	require.NoError(t, err)
	dba, err := LorentzianDistance(b, a)
	require.NoError(t, err)

	assert.Equal(t, dab, dba, "symmetric")
	assert.Positive(t, dab, "non-negative, positive for distinct vectors")

	daa, err := LorentzianDistance(a, a)
	require.NoError(t, err)
	assert.Zero(t, daa, "zero iff identical")
}

func TestLorentzianDistanceDimensionMismatch(t *testing.T) {
	_, err := LorentzianDistance([]float64{1}, []float64{1, 2})
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 1, dimErr.Got)
	assert.Equal(t, 2, dimErr.Want)
}

func TestClassifyEmptyWindowIsNeutral(t *testing.T) {
	clf := NewLawrence(DefaultConfig())

	res, err := clf.Classify(vec(t, 0.3, 0.7))
	require.NoError(t, err)
	assert.Equal(t, Neutral, res.Direction)
	assert.Zero(t, res.Confidence)
	assert.False(t, clf.Trained())
}

func TestTrainValidation(t *testing.T) {
	clf := NewLawrence(Config{K: 3, WindowSize: 10})
	require.NoError(t, clf.Train(sample(t, Long, 0.5)))

	err := clf.Train(sample(t, Long, 0.5, 0.6))
	var dimErr *DimensionError
	assert.ErrorAs(t, err, &dimErr, "dimension change rejected")

	bad := sample(t, Long, 0.5)
	bad.Weight = 0
	assert.Error(t, clf.Train(bad), "non-positive weight rejected")

	bad = sample(t, Direction("SIDEWAYS"), 0.5)
	assert.Error(t, clf.Train(bad), "unknown label rejected")
}

func TestWindowEvictionKeepsCapAndOrder(t *testing.T) {
	clf := NewLawrence(Config{K: 3, WindowSize: 5})

	for i := 0; i < 8; i++ {
		s := sample(t, Long, float64(i)/10)
		s.Timestamp = time.Unix(int64(i), 0)
		require.NoError(t, clf.Train(s))
		assert.LessOrEqual(t, clf.Len(), 5, "window never exceeds capacity")
	}

	window := clf.Snapshot()
	require.Len(t, window, 5)
	assert.Equal(t, time.Unix(3, 0), window[0].Timestamp, "oldest surviving sample is #3")
	assert.Equal(t, time.Unix(7, 0), window[4].Timestamp)
}

func TestClassifyDimensionMismatchFailsFast(t *testing.T) {
	clf := NewLawrence(DefaultConfig())
	require.NoError(t, clf.Train(sample(t, Long, 0.1, 0.2)))

	_, err := clf.Classify(vec(t, 0.1))
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
}

func TestAlternatingLabelsYieldCoinFlip(t *testing.T) {
	clf := NewLawrence(DefaultConfig())

	rsi := vec(t, 0.8)
	for i := 0; i < 20; i++ {
		label := Long
		if i%2 == 1 {
			label = Short
		}
		require.NoError(t, clf.Train(TrainingSample{
			Features: rsi, Label: label, Weight: 1, Timestamp: time.Now(),
		}))
	}

	res, err := clf.Classify(rsi)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Probabilities[Long], 1e-9)
	assert.InDelta(t, 0.5, res.Probabilities[Short], 1e-9)
	assert.InDelta(t, 0, res.Confidence, 1e-9)
}

func TestNearestNeighborsDominateVote(t *testing.T) {
	clf := NewLawrence(Config{K: 3, WindowSize: 100})

	// Cluster of LONG samples near the query, SHORT samples far away.
	for i := 0; i < 5; i++ {
		require.NoError(t, clf.Train(sample(t, Long, 0.80, 0.80)))
		require.NoError(t, clf.Train(sample(t, Short, 0.05, 0.05)))
	}

	res, err := clf.Classify(vec(t, 0.79, 0.81))
	require.NoError(t, err)
	assert.Equal(t, Long, res.Direction)
	assert.Greater(t, res.Confidence, 0.9)
}

func TestSampleWeightTiltsVote(t *testing.T) {
	clf := NewLawrence(Config{K: 2, WindowSize: 10})

	heavy := sample(t, Short, 0.5)
	heavy.Weight = 10
	require.NoError(t, clf.Train(heavy))
	require.NoError(t, clf.Train(sample(t, Long, 0.5)))

	res, err := clf.Classify(vec(t, 0.5))
	require.NoError(t, err)
	assert.Equal(t, Short, res.Direction, "10x weight outvotes an equidistant neighbor")
}

func TestSnapshotIsACopy(t *testing.T) {
	clf := NewLawrence(DefaultConfig())
	require.NoError(t, clf.Train(sample(t, Long, 0.4)))

	snap := clf.Snapshot()
	snap[0].Label = Short

	again := clf.Snapshot()
	assert.Equal(t, Long, again[0].Label)
}

func TestImportRoundTrip(t *testing.T) {
	src := NewLawrence(DefaultConfig())
	for i := 0; i < 10; i++ {
		require.NoError(t, src.Train(sample(t, Long, float64(i)/10, 0.5)))
	}

	dst := NewLawrence(DefaultConfig())
	require.NoError(t, dst.Import(src.Snapshot()))
	assert.Equal(t, src.Len(), dst.Len())

	res, err := dst.Classify(vec(t, 0.5, 0.5))
	require.NoError(t, err)
	assert.Equal(t, Long, res.Direction)
}
