package ensemble

// Performance tracks a member's running and recent accuracy. It is mutated
// only through UpdatePerformance on the aggregator.
type Performance struct {
	Name           string  `json:"name"`
	Total          int     `json:"total"`
	Correct        int     `json:"correct"`
	Accuracy       float64 `json:"accuracy"`
	RecentAccuracy float64 `json:"recent_accuracy"`

	recent     []bool
	recentSize int
}

func newPerformance(name string, recentSize int) *Performance {
	return &Performance{Name: name, recentSize: recentSize}
}

// record folds one outcome into the running and recent accuracy. The recent
// history is bounded: the oldest outcome drops once the window is full.
func (p *Performance) record(correct bool) {
	p.Total++
	if correct {
		p.Correct++
	}
	p.Accuracy = float64(p.Correct) / float64(p.Total)

	p.recent = append(p.recent, correct)
	if len(p.recent) > p.recentSize {
		p.recent = p.recent[len(p.recent)-p.recentSize:]
	}
	hits := 0
	for _, c := range p.recent {
		if c {
			hits++
		}
	}
	p.RecentAccuracy = float64(hits) / float64(len(p.recent))
}

// snapshot returns a value copy safe to hand to callers.
func (p *Performance) snapshot() Performance {
	cp := *p
	cp.recent = nil
	return cp
}
