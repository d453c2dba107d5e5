package ensemble

import (
	"context"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/features"
)

// Member is one classifier in the ensemble. Implementations must be safe for
// concurrent Predict calls; the aggregator fans out to all members at once.
type Member interface {
	Name() string
	Predict(ctx context.Context, fv features.Vector) (classifier.Result, error)
}

// LawrenceMember wraps the k-NN classifier as the ensemble's primary member.
type LawrenceMember struct {
	clf *classifier.Lawrence
}

func NewLawrenceMember(clf *classifier.Lawrence) *LawrenceMember {
	return &LawrenceMember{clf: clf}
}

func (m *LawrenceMember) Name() string { return "lawrence" }

func (m *LawrenceMember) Predict(_ context.Context, fv features.Vector) (classifier.Result, error) {
	return m.clf.Classify(fv)
}

// ruleResult builds a two-sided rule decision from a signed score in [-1,1].
func ruleResult(fv features.Vector, score float64) classifier.Result {
	probs := map[classifier.Direction]float64{
		classifier.Long:    (1 + score) / 3,
		classifier.Short:   (1 - score) / 3,
		classifier.Neutral: 1.0 / 3.0,
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
	}
}

// MomentumMember votes on raw momentum and price velocity.
type MomentumMember struct{}

func (MomentumMember) Name() string { return "momentum" }

func (MomentumMember) Predict(_ context.Context, fv features.Vector) (classifier.Result, error) {
	mom, _ := fv.Get(features.KeyMomentum)
	vel, _ := fv.Get(features.KeyPriceVelocity)
	return ruleResult(fv, 0.7*mom+0.3*vel), nil
}

// TrendMember votes on trend strength and efficiency; direction comes from
// the momentum sign, conviction from how clean the trend is.
type TrendMember struct{}

func (TrendMember) Name() string { return "trend" }

func (TrendMember) Predict(_ context.Context, fv features.Vector) (classifier.Result, error) {
	trend, _ := fv.Get(features.KeyTrendStrength)
	eff, _ := fv.Get(features.KeyEfficiencyRatio)
	mom, _ := fv.Get(features.KeyMomentum)

	strength := (trend - 0.5) * 2 * eff
	if mom < 0 {
		strength = -strength
	}
	return ruleResult(fv, strength), nil
}

// SessionMember scales the momentum vote by session and day activity, so the
// same move carries less conviction in thin hours.
type SessionMember struct{}

func (SessionMember) Name() string { return "session" }

func (SessionMember) Predict(_ context.Context, fv features.Vector) (classifier.Result, error) {
	mom, _ := fv.Get(features.KeyMomentum)
	session, _ := fv.Get(features.KeySessionFactor)
	day, _ := fv.Get(features.KeyDayFactor)
	return ruleResult(fv, mom*session*day), nil
}
