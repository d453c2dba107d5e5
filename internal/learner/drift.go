package learner

// DriftConfig controls concept-drift detection.
type DriftConfig struct {
	Threshold    float64 `yaml:"threshold"`     // accuracy gap that flags drift (default: 0.15)
	MinOutcomes  int     `yaml:"min_outcomes"`  // outcomes required before detection (default: 30)
	RecentWindow int     `yaml:"recent_window"` // outcomes in the recent accuracy (default: 20)
	MaxOutcomes  int     `yaml:"max_outcomes"`  // bounded outcome history (default: 500)
}

// DefaultDriftConfig returns production drift settings.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{Threshold: 0.15, MinOutcomes: 30, RecentWindow: 20, MaxOutcomes: 500}
}

// driftDetector compares recent accuracy against a rolling baseline. Only
// degradations count as drift; improvements never flag. The detected flag is
// a level, not an edge: it clears on its own once recent accuracy recovers
// to the baseline that was reset at detection time.
type driftDetector struct {
	cfg      DriftConfig
	outcomes []bool
	total    int
	correct  int

	baseline    float64
	baselineSet bool
	detected    bool
	driftCount  int64
}

func newDriftDetector(cfg DriftConfig) *driftDetector {
	def := DefaultDriftConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MinOutcomes <= 0 {
		cfg.MinOutcomes = def.MinOutcomes
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.MaxOutcomes <= 0 {
		cfg.MaxOutcomes = def.MaxOutcomes
	}
	return &driftDetector{cfg: cfg}
}

// record folds one outcome in and re-evaluates the drift condition.
func (d *driftDetector) record(correct bool) {
	d.total++
	if correct {
		d.correct++
	}
	d.outcomes = append(d.outcomes, correct)
	if len(d.outcomes) > d.cfg.MaxOutcomes {
		d.outcomes = d.outcomes[len(d.outcomes)-d.cfg.MaxOutcomes:]
	}

	if d.total < d.cfg.MinOutcomes {
		return
	}

	recent := d.recentAccuracy()
	if !d.baselineSet {
		d.baseline = recent
		d.baselineSet = true
		return
	}

	if d.detected {
		// Hysteresis: a sustained slump counts as one drift event. The flag
		// clears only once accuracy recovers to the reset baseline.
		if recent >= d.baseline {
			d.detected = false
		}
		return
	}

	if d.baseline-recent > d.cfg.Threshold {
		d.detected = true
		d.driftCount++
		d.baseline = recent
		return
	}
	// Rolling baseline drifts slowly toward current performance.
	d.baseline = 0.95*d.baseline + 0.05*recent
}

func (d *driftDetector) recentAccuracy() float64 {
	n := d.cfg.RecentWindow
	if len(d.outcomes) < n {
		n = len(d.outcomes)
	}
	if n == 0 {
		return 0
	}
	hits := 0
	for _, c := range d.outcomes[len(d.outcomes)-n:] {
		if c {
			hits++
		}
	}
	return float64(hits) / float64(n)
}

func (d *driftDetector) overallAccuracy() float64 {
	if d.total == 0 {
		return 0
	}
	return float64(d.correct) / float64(d.total)
}
