package ensemble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/features"
)

// stubMember returns a canned result, optionally after a delay.
type stubMember struct {
	name  string
	dir   classifier.Direction
	conf  float64
	delay time.Duration
	err   error
}

func (s stubMember) Name() string { return s.name }

func (s stubMember) Predict(ctx context.Context, fv features.Vector) (classifier.Result, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return classifier.Result{}, ctx.Err()
		}
	}
	if s.err != nil {
		return classifier.Result{}, s.err
	}
	return classifier.Result{
		Direction:     s.dir,
		Confidence:    s.conf,
		Probability:   0.5 + s.conf/2,
		Probabilities: map[classifier.Direction]float64{s.dir: 0.5 + s.conf/2},
		Features:      fv,
	}, nil
}

func testVector(t *testing.T) features.Vector {
	t.Helper()
	fv, err := features.NewVector([]string{"momentum"}, []float64{0.4})
	require.NoError(t, err)
	return fv
}

func newTestAggregator(t *testing.T, cfg Config, members ...Member) *Aggregator {
	t.Helper()
	agg := NewAggregator(cfg)
	for _, m := range members {
		require.NoError(t, agg.Register(m, 1.0))
	}
	return agg
}

func TestPredictNoMembersFails(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	_, err := agg.Predict(context.Background(), testVector(t))
	assert.Error(t, err)
}

func TestRegisterDuplicateFails(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	require.NoError(t, agg.Register(stubMember{name: "m"}, 1))
	assert.Error(t, agg.Register(stubMember{name: "m"}, 1))
	assert.Error(t, agg.Register(stubMember{name: "n"}, -1), "negative weight rejected")
}

func TestUnanimousAgreement(t *testing.T) {
	agg := newTestAggregator(t, Config{Strategy: HardVoting},
		stubMember{name: "a", dir: classifier.Long, conf: 0.8},
		stubMember{name: "b", dir: classifier.Long, conf: 0.6},
		stubMember{name: "c", dir: classifier.Long, conf: 0.7},
	)

	res, err := agg.Predict(context.Background(), testVector(t))
	require.NoError(t, err)
	assert.Equal(t, classifier.Long, res.Direction)
	assert.Equal(t, 1.0, res.Agreement)
	assert.Zero(t, res.Entropy, "unanimous vote has zero entropy")
	assert.Equal(t, 1.0, res.ConsensusStrength)
}

func TestSplitVoteDiagnostics(t *testing.T) {
	agg := newTestAggregator(t, Config{Strategy: HardVoting},
		stubMember{name: "a", dir: classifier.Long, conf: 0.8},
		stubMember{name: "b", dir: classifier.Short, conf: 0.8},
		stubMember{name: "c", dir: classifier.Neutral, conf: 0.8},
	)

	res, err := agg.Predict(context.Background(), testVector(t))
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, res.Agreement, 1e-9)
	assert.InDelta(t, 1.0, res.Entropy, 1e-9, "maximal three-way split")
	assert.InDelta(t, 0.0, res.ConsensusStrength, 1e-9)
	assert.GreaterOrEqual(t, res.Agreement, 0.0)
	assert.LessOrEqual(t, res.Agreement, 1.0)
}

func TestHardVotingMajority(t *testing.T) {
	agg := newTestAggregator(t, Config{Strategy: HardVoting},
		stubMember{name: "a", dir: classifier.Long, conf: 0.2},
		stubMember{name: "b", dir: classifier.Long, conf: 0.3},
		stubMember{name: "c", dir: classifier.Short, conf: 0.9},
	)

	res, err := agg.Predict(context.Background(), testVector(t))
	require.NoError(t, err)
	assert.Equal(t, classifier.Long, res.Direction)
	assert.InDelta(t, 2.0/3.0, res.Confidence, 1e-9, "hard voting confidence is the winning share")
}

func TestWeightedAverageUsesConfidence(t *testing.T) {
	agg := NewAggregator(Config{Strategy: WeightedAverage})
	require.NoError(t, agg.Register(stubMember{name: "strong", dir: classifier.Short, conf: 0.9}, 1.0))
	require.NoError(t, agg.Register(stubMember{name: "weak1", dir: classifier.Long, conf: 0.1}, 1.0))
	require.NoError(t, agg.Register(stubMember{name: "weak2", dir: classifier.Long, conf: 0.1}, 1.0))

	res, err := agg.Predict(context.Background(), testVector(t))
	require.NoError(t, err)
	assert.Equal(t, classifier.Short, res.Direction, "one confident member outweighs two hesitant ones")
}

func TestDynamicWeightingScalesByAccuracy(t *testing.T) {
	agg := NewAggregator(Config{Strategy: WeightedAverage, DynamicWeighting: true})
	require.NoError(t, agg.Register(stubMember{name: "sharp", dir: classifier.Long, conf: 0.6}, 1.0))
	require.NoError(t, agg.Register(stubMember{name: "dull", dir: classifier.Short, conf: 0.6}, 1.0))

	for i := 0; i < 10; i++ {
		require.NoError(t, agg.UpdatePerformance("sharp", true))
		require.NoError(t, agg.UpdatePerformance("dull", i == 0)) // 10% accuracy
	}

	res, err := agg.Predict(context.Background(), testVector(t))
	require.NoError(t, err)
	assert.Equal(t, classifier.Long, res.Direction, "accurate member dominates at equal static weight")
}

func TestStackingBoostsAgreeingHighPerformers(t *testing.T) {
	base := newTestAggregator(t, Config{Strategy: WeightedAverage},
		stubMember{name: "a", dir: classifier.Long, conf: 0.6},
		stubMember{name: "b", dir: classifier.Long, conf: 0.6},
	)
	stacked := newTestAggregator(t, Config{Strategy: Stacking},
		stubMember{name: "a", dir: classifier.Long, conf: 0.6},
		stubMember{name: "b", dir: classifier.Long, conf: 0.6},
	)
	for _, agg := range []*Aggregator{base, stacked} {
		for i := 0; i < 10; i++ {
			require.NoError(t, agg.UpdatePerformance("a", true))
			require.NoError(t, agg.UpdatePerformance("b", i%2 == 0)) // 60% accuracy
		}
	}

	baseRes, err := base.Predict(context.Background(), testVector(t))
	require.NoError(t, err)
	stackedRes, err := stacked.Predict(context.Background(), testVector(t))
	require.NoError(t, err)

	assert.Equal(t, baseRes.Direction, stackedRes.Direction)
	assert.Greater(t, stackedRes.Confidence, baseRes.Confidence)
	assert.LessOrEqual(t, stackedRes.Confidence, 1.0)
}

func TestSlowMemberDegradesGracefully(t *testing.T) {
	agg := NewAggregator(Config{Strategy: HardVoting, MemberTimeout: 50 * time.Millisecond})
	require.NoError(t, agg.Register(stubMember{name: "fast", dir: classifier.Long, conf: 0.7}, 1.0))
	require.NoError(t, agg.Register(stubMember{name: "slow", dir: classifier.Short, conf: 0.9, delay: 2 * time.Second}, 1.0))

	start := time.Now()
	res, err := agg.Predict(context.Background(), testVector(t))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "aggregation does not wait out the slow member")
	assert.Equal(t, classifier.Long, res.Direction)
	assert.Len(t, res.MemberResults, 1, "only the completed member contributes")
}

func TestSkipHookCountsTimedOutAndFailedMembers(t *testing.T) {
	agg := NewAggregator(Config{Strategy: HardVoting, MemberTimeout: 50 * time.Millisecond})
	require.NoError(t, agg.Register(stubMember{name: "fast", dir: classifier.Long, conf: 0.7}, 1.0))
	require.NoError(t, agg.Register(stubMember{name: "slow", dir: classifier.Short, conf: 0.9, delay: 2 * time.Second}, 1.0))
	require.NoError(t, agg.Register(stubMember{name: "broken", err: errors.New("window unavailable")}, 1.0))

	var mu sync.Mutex
	skips := map[string]int{}
	agg.OnSkip(func(member string) {
		mu.Lock()
		defer mu.Unlock()
		skips[member]++
	})

	_, err := agg.Predict(context.Background(), testVector(t))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"slow": 1, "broken": 1}, skips, "one skip per failed member, none for completions")
}

func TestRemoveDropsPerformanceRecordAtomically(t *testing.T) {
	agg := newTestAggregator(t, DefaultConfig(),
		stubMember{name: "a", dir: classifier.Long, conf: 0.5},
		stubMember{name: "b", dir: classifier.Short, conf: 0.5},
	)
	require.NoError(t, agg.UpdatePerformance("a", true))

	agg.Remove("a")
	assert.Len(t, agg.Performances(), 1)
	assert.Error(t, agg.UpdatePerformance("a", true), "removed member has no record")
}

func TestRecentAccuracyWindowIsBounded(t *testing.T) {
	agg := newTestAggregator(t, Config{RecentWindow: 5},
		stubMember{name: "a", dir: classifier.Long, conf: 0.5},
	)

	for i := 0; i < 5; i++ {
		require.NoError(t, agg.UpdatePerformance("a", false))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, agg.UpdatePerformance("a", true))
	}

	perfs := agg.Performances()
	require.Len(t, perfs, 1)
	assert.Equal(t, 10, perfs[0].Total)
	assert.InDelta(t, 0.5, perfs[0].Accuracy, 1e-9)
	assert.Equal(t, 1.0, perfs[0].RecentAccuracy, "old misses fell out of the recent window")
}
