package learner

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
)

// Trainer receives flushed sample batches. A batch either succeeds atomically
// or the learner retries the same buffered samples on the next flush trigger.
type Trainer interface {
	TrainBatch(samples []classifier.TrainingSample) error
}

// Config controls batching and learning-rate adaptation.
type Config struct {
	BatchSize              int           `yaml:"batch_size"`                // flush threshold (default: 50)
	MinSamplesBeforeUpdate int           `yaml:"min_samples_before_update"` // never train on fewer (default: 10)
	LearningRate           float64       `yaml:"learning_rate"`             // base sample-weight scale (default: 1.0)
	FlushInterval          time.Duration `yaml:"flush_interval"`            // force-flush age via Tick (default: 60s)
	Drift                  DriftConfig   `yaml:"drift"`
}

// DefaultConfig returns production learner settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:              50,
		MinSamplesBeforeUpdate: 10,
		LearningRate:           1.0,
		FlushInterval:          60 * time.Second,
		Drift:                  DefaultDriftConfig(),
	}
}

// Stats is the learner's externally visible state. Counters are monotonic;
// DriftDetected is a level. Returned by value so callers cannot mutate the
// learner through it.
type Stats struct {
	TotalSamples          int64   `json:"total_samples"`
	ProcessedBatches      int64   `json:"processed_batches"`
	DriftCount            int64   `json:"drift_count"`
	DriftDetected         bool    `json:"drift_detected"`
	CurrentAccuracy       float64 `json:"current_accuracy"`
	RecentAccuracy        float64 `json:"recent_accuracy"`
	EffectiveLearningRate float64 `json:"effective_learning_rate"`
	BufferedSamples       int     `json:"buffered_samples"`
}

// Learner buffers labeled samples, trains the classifier in batches, and
// adapts the effective learning rate to observed accuracy. A periodic Tick
// from the orchestrating loop replaces the source's free-running timers.
type Learner struct {
	mu        sync.Mutex
	cfg       Config
	trainer   Trainer
	buffer    []classifier.TrainingSample
	drift     *driftDetector
	lastFlush time.Time

	totalSamples     int64
	processedBatches int64
	effectiveRate    float64
}

// New creates a learner feeding the given trainer.
func New(cfg Config, trainer Trainer) *Learner {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MinSamplesBeforeUpdate <= 0 {
		cfg.MinSamplesBeforeUpdate = def.MinSamplesBeforeUpdate
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	return &Learner{
		cfg:           cfg,
		trainer:       trainer,
		drift:         newDriftDetector(cfg.Drift),
		lastFlush:     time.Now(),
		effectiveRate: cfg.LearningRate,
	}
}

// AddSample buffers one labeled sample, flushing when the batch fills.
func (l *Learner) AddSample(sample classifier.TrainingSample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer = append(l.buffer, sample)
	l.totalSamples++
	if len(l.buffer) >= l.cfg.BatchSize {
		return l.flushLocked()
	}
	return nil
}

// ReportOutcome records whether the last acted-on prediction was correct,
// feeding drift detection.
func (l *Learner) ReportOutcome(correct bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wasDetected := l.drift.detected
	l.drift.record(correct)
	if l.drift.detected && !wasDetected {
		log.Warn().
			Int64("drift_count", l.drift.driftCount).
			Float64("recent_accuracy", l.drift.recentAccuracy()).
			Msg("concept drift detected")
	}
}

// Flush forces a training pass over the buffered samples, subject to the
// minimum-sample floor.
func (l *Learner) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

// Tick is the explicit scheduler hook: it force-flushes a partially filled
// buffer once the configured interval has elapsed, so no sample waits
// indefinitely.
func (l *Learner) Tick(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastFlush) < l.cfg.FlushInterval {
		return nil
	}
	return l.flushLocked()
}

func (l *Learner) flushLocked() error {
	if len(l.buffer) < l.cfg.MinSamplesBeforeUpdate {
		return nil
	}

	rate := l.effectiveRateLocked()
	l.effectiveRate = rate

	batch := make([]classifier.TrainingSample, len(l.buffer))
	copy(batch, l.buffer)
	for i := range batch {
		batch[i].Weight *= rate
	}

	if err := l.trainer.TrainBatch(batch); err != nil {
		// Buffer is kept intact; the same samples retry on the next trigger.
		log.Error().Err(err).Int("batch", len(batch)).Msg("training batch failed, will retry")
		return fmt.Errorf("training batch of %d samples: %w", len(batch), err)
	}

	l.buffer = l.buffer[:0]
	l.processedBatches++
	l.lastFlush = time.Now()
	log.Debug().
		Int("batch", len(batch)).
		Float64("effective_rate", rate).
		Int64("batches", l.processedBatches).
		Msg("training batch flushed")
	return nil
}

// effectiveRateLocked adapts the configured rate to the drift state: double
// under active drift, shrink 20% when recent accuracy comfortably beats the
// baseline, otherwise unchanged.
func (l *Learner) effectiveRateLocked() float64 {
	base := l.cfg.LearningRate
	if l.drift.detected {
		return base * 2
	}
	if l.drift.baselineSet && l.drift.recentAccuracy() > l.drift.baseline+0.1 {
		return base * 0.8
	}
	return base
}

// Stats returns a value copy of the learner's counters and gauges.
func (l *Learner) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		TotalSamples:          l.totalSamples,
		ProcessedBatches:      l.processedBatches,
		DriftCount:            l.drift.driftCount,
		DriftDetected:         l.drift.detected,
		CurrentAccuracy:       l.drift.overallAccuracy(),
		RecentAccuracy:        l.drift.recentAccuracy(),
		EffectiveLearningRate: l.effectiveRate,
		BufferedSamples:       len(l.buffer),
	}
}
