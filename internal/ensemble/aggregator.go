package ensemble

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/features"
)

// Strategy selects how member results are combined.
type Strategy string

const (
	HardVoting      Strategy = "vote"     // majority class wins
	WeightedAverage Strategy = "weighted" // confidence x effective weight per class
	Stacking        Strategy = "stacking" // weighted average plus accuracy-based adjustment
)

// Config controls the ensemble aggregator.
type Config struct {
	Strategy         Strategy      `yaml:"strategy"`          // default: weighted
	DynamicWeighting bool          `yaml:"dynamic_weighting"` // scale static weights by accuracy
	MemberTimeout    time.Duration `yaml:"member_timeout"`    // per-member prediction budget (default: 300ms)
	RecentWindow     int           `yaml:"recent_window"`     // recent-outcome history per member (default: 100)
}

// DefaultConfig returns production aggregation settings.
func DefaultConfig() Config {
	return Config{
		Strategy:         WeightedAverage,
		DynamicWeighting: true,
		MemberTimeout:    300 * time.Millisecond,
		RecentWindow:     100,
	}
}

// Result is the combined ensemble decision plus agreement diagnostics.
type Result struct {
	Direction         classifier.Direction             `json:"direction"`
	Probability       float64                          `json:"probability"`
	Confidence        float64                          `json:"confidence"`
	Agreement         float64                          `json:"agreement"`          // largest same-direction share
	Entropy           float64                          `json:"entropy"`            // normalized vote entropy, 0=unanimous
	ConsensusStrength float64                          `json:"consensus_strength"` // agreement x (1-entropy)
	Strategy          Strategy                         `json:"strategy"`
	MemberResults     map[string]classifier.Result     `json:"member_results"`
	Probabilities     map[classifier.Direction]float64 `json:"probabilities"`
}

type memberEntry struct {
	member  Member
	weight  float64
	perf    *Performance
	breaker *gobreaker.CircuitBreaker
}

// Aggregator fans a feature vector out to every registered member and
// combines the results. Members that time out or whose breaker is open are
// skipped; aggregation degrades to the members that completed.
type Aggregator struct {
	mu      sync.RWMutex
	cfg     Config
	members map[string]*memberEntry
	onSkip  func(member string)
}

// NewAggregator creates an empty aggregator.
func NewAggregator(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.MemberTimeout <= 0 {
		cfg.MemberTimeout = def.MemberTimeout
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	return &Aggregator{cfg: cfg, members: make(map[string]*memberEntry)}
}

// Register adds a member with a static weight. The performance record and
// circuit breaker are created in the same critical section, so a member is
// never visible without them.
func (a *Aggregator) Register(m Member, weight float64) error {
	if weight < 0 {
		return fmt.Errorf("member %q: weight must be non-negative, got %v", m.Name(), weight)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	name := m.Name()
	if _, exists := a.members[name]; exists {
		return fmt.Errorf("member %q already registered", name)
	}
	st := gobreaker.Settings{Name: name}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.Timeout = 30 * time.Second
	a.members[name] = &memberEntry{
		member:  m,
		weight:  weight,
		perf:    newPerformance(name, a.cfg.RecentWindow),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
	return nil
}

// OnSkip installs a hook invoked once per member skipped during a Predict,
// with the member's name. Telemetry uses it to count timeouts and open
// breakers.
func (a *Aggregator) OnSkip(fn func(member string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onSkip = fn
}

// Remove drops a member and its performance record atomically.
func (a *Aggregator) Remove(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.members, name)
}

// UpdatePerformance folds one observed outcome into a member's record. It is
// the sole mutator of performance state.
func (a *Aggregator) UpdatePerformance(name string, correct bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.members[name]
	if !ok {
		return fmt.Errorf("unknown ensemble member %q", name)
	}
	entry.perf.record(correct)
	return nil
}

// Performances returns value copies of every member's performance record.
func (a *Aggregator) Performances() []Performance {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Performance, 0, len(a.members))
	for _, e := range a.members {
		out = append(out, e.perf.snapshot())
	}
	return out
}

type memberOutcome struct {
	name   string
	result classifier.Result
	err    error
}

// memberSnapshot is a point-in-time view of a member taken under the lock, so
// aggregation never races a concurrent UpdatePerformance.
type memberSnapshot struct {
	member   Member
	weight   float64
	accuracy float64
	total    int
	breaker  *gobreaker.CircuitBreaker
}

// Predict fans out to all members concurrently and aggregates whatever
// completes within the per-member timeout. Aggregation is order-independent.
func (a *Aggregator) Predict(ctx context.Context, fv features.Vector) (Result, error) {
	a.mu.RLock()
	entries := make(map[string]memberSnapshot, len(a.members))
	for name, e := range a.members {
		entries[name] = memberSnapshot{
			member:   e.member,
			weight:   e.weight,
			accuracy: e.perf.Accuracy,
			total:    e.perf.Total,
			breaker:  e.breaker,
		}
	}
	strategy := a.cfg.Strategy
	timeout := a.cfg.MemberTimeout
	dynamic := a.cfg.DynamicWeighting
	onSkip := a.onSkip
	a.mu.RUnlock()

	if len(entries) == 0 {
		return Result{}, fmt.Errorf("ensemble has no registered members")
	}

	outcomes := make(chan memberOutcome, len(entries))
	for name, entry := range entries {
		go func(name string, entry memberSnapshot) {
			mctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			res, err := entry.breaker.Execute(func() (interface{}, error) {
				return predictWithContext(mctx, entry.member, fv)
			})
			if err != nil {
				outcomes <- memberOutcome{name: name, err: err}
				return
			}
			outcomes <- memberOutcome{name: name, result: res.(classifier.Result)}
		}(name, entry)
	}

	results := make(map[string]classifier.Result, len(entries))
	for range entries {
		o := <-outcomes
		if o.err != nil {
			log.Warn().Str("member", o.name).Err(o.err).Msg("ensemble member skipped")
			if onSkip != nil {
				onSkip(o.name)
			}
			continue
		}
		results[o.name] = o.result
	}
	if len(results) == 0 {
		return Result{}, fmt.Errorf("all %d ensemble members failed", len(entries))
	}

	var combined Result
	switch strategy {
	case HardVoting:
		combined = a.hardVote(results)
	case Stacking:
		combined = a.stack(entries, results, dynamic)
	default:
		combined = a.weightedAverage(entries, results, dynamic)
	}

	combined.Strategy = strategy
	combined.MemberResults = results
	combined.Agreement, combined.Entropy = a.diagnostics(results)
	combined.ConsensusStrength = combined.Agreement * (1 - combined.Entropy)
	return combined, nil
}

// predictWithContext runs a prediction in its own goroutine so a stuck member
// cannot hold the fan-out past its deadline.
func predictWithContext(ctx context.Context, m Member, fv features.Vector) (classifier.Result, error) {
	type reply struct {
		res classifier.Result
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		res, err := m.Predict(ctx, fv)
		ch <- reply{res, err}
	}()
	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return classifier.Result{}, fmt.Errorf("member %q: %w", m.Name(), ctx.Err())
	}
}

func (a *Aggregator) hardVote(results map[string]classifier.Result) Result {
	counts := map[classifier.Direction]float64{}
	for _, r := range results {
		counts[r.Direction]++
	}
	total := float64(len(results))
	probs := make(map[classifier.Direction]float64, 3)
	for _, d := range classifier.Directions {
		probs[d] = counts[d] / total
	}
	best, bestP, _ := pickTop(probs)
	return Result{
		Direction:     best,
		Probability:   bestP,
		Confidence:    bestP, // hard voting reports the winning vote share
		Probabilities: probs,
	}
}

func (a *Aggregator) weightedAverage(entries map[string]memberSnapshot, results map[string]classifier.Result, dynamic bool) Result {
	scores := map[classifier.Direction]float64{}
	totalWeight := 0.0
	for name, r := range results {
		w := a.effectiveWeight(entries[name], dynamic)
		if w <= 0 {
			continue
		}
		scores[r.Direction] += r.Confidence * w
		totalWeight += w
	}
	probs := make(map[classifier.Direction]float64, 3)
	if totalWeight > 0 {
		for _, d := range classifier.Directions {
			probs[d] = scores[d] / totalWeight
		}
	} else {
		for _, d := range classifier.Directions {
			probs[d] = 1.0 / 3.0
		}
	}
	best, bestP, second := pickTop(probs)
	return Result{
		Direction:     best,
		Probability:   bestP,
		Confidence:    clamp01(bestP - second),
		Probabilities: probs,
	}
}

// stack starts from the weighted average and nudges confidence up for every
// high-performing member that agrees with the base direction. The adjustment
// is a documented heuristic, not a trained meta-model; it hides behind the
// same Strategy switch so a real meta-learner can replace it later.
func (a *Aggregator) stack(entries map[string]memberSnapshot, results map[string]classifier.Result, dynamic bool) Result {
	base := a.weightedAverage(entries, results, dynamic)
	adjustment := 0.0
	for name, r := range results {
		entry := entries[name]
		if r.Direction == base.Direction && entry.accuracy > 0.5 && entry.total > 0 {
			adjustment += math.Min(0.1*(entry.accuracy-0.5), 0.1)
		}
	}
	base.Confidence = clamp01(base.Confidence + adjustment)
	return base
}

func (a *Aggregator) effectiveWeight(entry memberSnapshot, dynamic bool) float64 {
	if !dynamic || entry.total == 0 {
		return entry.weight
	}
	return entry.weight * entry.accuracy
}

// diagnostics computes agreement (largest same-direction share) and the
// normalized Shannon entropy of the class-vote distribution across the three
// classes (0 = unanimous, 1 = maximally split).
func (a *Aggregator) diagnostics(results map[string]classifier.Result) (agreement, entropy float64) {
	counts := map[classifier.Direction]float64{}
	for _, r := range results {
		counts[r.Direction]++
	}
	total := float64(len(results))
	maxCount := 0.0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	agreement = maxCount / total

	for _, d := range classifier.Directions {
		p := counts[d] / total
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}
	entropy /= math.Log(3) // normalize across 3 classes
	return agreement, entropy
}

func pickTop(probs map[classifier.Direction]float64) (classifier.Direction, float64, float64) {
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
	return best, bestP, second
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
