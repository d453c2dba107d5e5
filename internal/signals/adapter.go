package signals

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
)

// Action is what a signal asks the caller to do.
type Action string

const (
	Enter Action = "ENTER"
	Exit  Action = "EXIT"
	None  Action = "NONE"
)

// Raw score thresholds. Entries use the +/-0.5 band, exits the +/-1.5 band
// (the upstream encoder emits +/-2 for exit intents).
const (
	enterThreshold = 0.5
	exitThreshold  = 1.5
)

// Config controls signal admission.
type Config struct {
	UseSessionFilter bool          `yaml:"use_session_filter"`
	Sessions         []Session     `yaml:"sessions"`
	StartDate        time.Time     `yaml:"start_date"` // zero means unbounded
	EndDate          time.Time     `yaml:"end_date"`   // zero means unbounded
	Cooldown         time.Duration `yaml:"cooldown"`   // minimum gap between accepted signals
	MinConfidence    float64       `yaml:"min_confidence"`
	MinProbability   float64       `yaml:"min_probability"`
}

// DefaultConfig returns production gating settings.
func DefaultConfig() Config {
	return Config{
		UseSessionFilter: false,
		Sessions:         DefaultSessions(),
		Cooldown:         5 * time.Minute,
		MinConfidence:    0.3,
		MinProbability:   0.5,
	}
}

// Metadata accompanies a raw score into signal processing.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	Price       float64   `json:"price"`
	Confidence  float64   `json:"confidence"`
	Probability float64   `json:"probability"`
	Symbol      string    `json:"symbol"`
}

// FilterResult itemizes why a candidate signal was or was not admitted.
type FilterResult struct {
	Passed  bool     `json:"passed"`
	Reasons []string `json:"reasons"`
}

// Signal is the typed, immutable output of processing one classification
// event. Rejected candidates are still returned so callers can audit them.
type Signal struct {
	ID        string               `json:"id"`
	Direction classifier.Direction `json:"direction"`
	Action    Action               `json:"action"`
	Metadata  Metadata             `json:"metadata"`
	Filters   FilterResult         `json:"filters"`
}

// Position is the adapter's notion of the currently open position.
type Position struct {
	Direction  classifier.Direction `json:"direction"`
	Size       float64              `json:"size"`
	EntryPrice float64              `json:"entry_price"`
}

// Adapter is the gate-and-translate layer between raw classifier scores and
// actionable trading signals. Its only mutable side effects are the tracked
// position state and the last accepted signal time.
type Adapter struct {
	mu         sync.Mutex
	cfg        Config
	position   *Position
	lastSignal time.Time
}

// NewAdapter creates an adapter with the given gating config.
func NewAdapter(cfg Config) *Adapter {
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	return &Adapter{cfg: cfg}
}

// CanTrade checks the date-range, session, and cooldown gates, returning
// every reason that blocks trading at the given time.
func (a *Adapter) CanTrade(t time.Time) (bool, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.canTradeLocked(t)
}

func (a *Adapter) canTradeLocked(t time.Time) (bool, []string) {
	var reasons []string

	if !a.cfg.StartDate.IsZero() && t.Before(a.cfg.StartDate) {
		reasons = append(reasons, fmt.Sprintf("Before configured start date %s", a.cfg.StartDate.Format(time.RFC3339)))
	}
	if !a.cfg.EndDate.IsZero() && t.After(a.cfg.EndDate) {
		reasons = append(reasons, fmt.Sprintf("After configured end date %s", a.cfg.EndDate.Format(time.RFC3339)))
	}

	if a.cfg.UseSessionFilter {
		inSession := false
		for _, s := range a.cfg.Sessions {
			if s.Contains(t) {
				inSession = true
				break
			}
		}
		if !inSession {
			reasons = append(reasons, "Outside trading session hours")
		}
	}

	if !a.lastSignal.IsZero() && t.Sub(a.lastSignal) < a.cfg.Cooldown {
		reasons = append(reasons, "In cooldown period")
	}

	return len(reasons) == 0, reasons
}

// ProcessSignal maps a raw score to a typed signal and applies every gate.
// The signal is always returned, with Filters.Passed=false and itemized
// reasons when any check fails; position state and the cooldown clock only
// advance on a pass.
func (a *Adapter) ProcessSignal(rawScore float64, meta Metadata) Signal {
	a.mu.Lock()
	defer a.mu.Unlock()

	direction, action := decode(rawScore)
	sig := Signal{
		ID:        uuid.NewString(),
		Direction: direction,
		Action:    action,
		Metadata:  meta,
	}

	_, reasons := a.canTradeLocked(meta.Timestamp)

	if action == None {
		reasons = append(reasons, fmt.Sprintf("Raw score %.2f inside neutral band", rawScore))
	}
	if action == Enter {
		if meta.Confidence < a.cfg.MinConfidence {
			reasons = append(reasons, fmt.Sprintf("Confidence %.2f below minimum %.2f", meta.Confidence, a.cfg.MinConfidence))
		}
		if meta.Probability < a.cfg.MinProbability {
			reasons = append(reasons, fmt.Sprintf("Probability %.2f below minimum %.2f", meta.Probability, a.cfg.MinProbability))
		}
	}
	if action == Exit && (a.position == nil || a.position.Direction != direction) {
		reasons = append(reasons, fmt.Sprintf("No open %s position to exit", direction))
	}

	sig.Filters = FilterResult{Passed: len(reasons) == 0, Reasons: reasons}
	if !sig.Filters.Passed {
		log.Debug().
			Str("signal", sig.ID).
			Str("direction", string(direction)).
			Str("action", string(action)).
			Strs("reasons", reasons).
			Msg("signal blocked")
		return sig
	}

	a.lastSignal = meta.Timestamp
	switch action {
	case Enter:
		// Opening replaces any prior opposite position.
		a.position = &Position{Direction: direction, Size: 1, EntryPrice: meta.Price}
	case Exit:
		a.position = nil
	}
	log.Info().
		Str("signal", sig.ID).
		Str("symbol", meta.Symbol).
		Str("direction", string(direction)).
		Str("action", string(action)).
		Float64("price", meta.Price).
		Msg("signal accepted")
	return sig
}

// Position returns a copy of the current position, or nil when flat.
func (a *Adapter) Position() *Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.position == nil {
		return nil
	}
	cp := *a.position
	return &cp
}

// decode maps a raw scalar onto direction and action using the fixed
// thresholds. Exit bands are checked before entry bands.
func decode(rawScore float64) (classifier.Direction, Action) {
	switch {
	case rawScore >= exitThreshold:
		return classifier.Long, Exit
	case rawScore <= -exitThreshold:
		return classifier.Short, Exit
	case rawScore >= enterThreshold:
		return classifier.Long, Enter
	case rawScore <= -enterThreshold:
		return classifier.Short, Enter
	default:
		return classifier.Neutral, None
	}
}
