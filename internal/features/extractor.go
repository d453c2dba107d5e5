package features

import (
	"fmt"
	"math"
	"time"
)

// Config controls indicator lookbacks for feature extraction.
type Config struct {
	MomentumPeriod   int `yaml:"momentum_period"`   // lookback for momentum and velocity (default: 14)
	VolatilityPeriod int `yaml:"volatility_period"` // ATR period; historical ATR uses 2x (default: 14)
	TrendPeriod      int `yaml:"trend_period"`      // bars for trend strength / efficiency (default: 14)
	VolumePeriod     int `yaml:"volume_period"`     // trailing average window for volume ratio (default: 20)
}

// DefaultConfig returns the extraction lookbacks used in production.
func DefaultConfig() Config {
	return Config{
		MomentumPeriod:   14,
		VolatilityPeriod: 14,
		TrendPeriod:      14,
		VolumePeriod:     20,
	}
}

// Extractor turns raw OHLCV windows into normalized feature vectors.
// A fresh Vector is produced per call; the extractor itself is stateless.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an extractor with the given lookbacks. Zero or negative
// periods fall back to defaults.
func NewExtractor(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.MomentumPeriod <= 0 {
		cfg.MomentumPeriod = def.MomentumPeriod
	}
	if cfg.VolatilityPeriod <= 0 {
		cfg.VolatilityPeriod = def.VolatilityPeriod
	}
	if cfg.TrendPeriod <= 0 {
		cfg.TrendPeriod = def.TrendPeriod
	}
	if cfg.VolumePeriod <= 0 {
		cfg.VolumePeriod = def.VolumePeriod
	}
	return &Extractor{cfg: cfg}
}

// Hour-of-day activity factors (UTC). Overlapping London/New York hours score
// highest, the dead zone after the US close lowest.
var hourFactors = [24]float64{
	0.30, 0.25, 0.25, 0.30, 0.35, 0.40, 0.50, 0.70, // 00-07 UTC
	0.85, 0.90, 0.85, 0.80, 0.90, 1.00, 1.00, 0.95, // 08-15 UTC
	0.85, 0.75, 0.65, 0.55, 0.45, 0.40, 0.35, 0.30, // 16-23 UTC
}

// Day-of-week factors, Sunday first. Weekends trade thin.
var dayFactors = [7]float64{0.40, 0.80, 1.00, 1.00, 1.00, 0.90, 0.45}

// Extract computes the full feature vector for one OHLCV window. Histories
// shorter than the indicator lookbacks yield that feature's neutral center
// instead of an error; empty or ragged input is an input error.
func (e *Extractor) Extract(high, low, close, volume []float64, ts time.Time) (Vector, error) {
	if len(close) == 0 {
		return Vector{}, fmt.Errorf("feature extraction: empty price series")
	}
	if len(high) != len(close) || len(low) != len(close) {
		return Vector{}, fmt.Errorf("feature extraction: ragged OHLC arrays (high=%d low=%d close=%d)",
			len(high), len(low), len(close))
	}

	keys := []string{
		KeyMomentum, KeyVolatilityRatio, KeyTrendStrength, KeyVolumeRatio,
		KeyPriceVelocity, KeyEfficiencyRatio, KeySessionFactor, KeyDayFactor,
	}
	values := []float64{
		e.momentum(close),
		e.volatilityRatio(high, low, close),
		e.trendStrength(close),
		e.volumeRatio(volume),
		e.priceVelocity(close),
		e.efficiencyRatio(close),
		hourFactors[ts.UTC().Hour()],
		dayFactors[int(ts.UTC().Weekday())],
	}
	for i := range values {
		values[i] = clamp(values[i], -1, 1)
	}
	return NewVector(keys, values)
}

// momentum is the rate of change over the lookback, squashed into [-1,1].
// Neutral center: 0.
func (e *Extractor) momentum(close []float64) float64 {
	p := e.cfg.MomentumPeriod
	if len(close) < p+1 {
		return 0
	}
	prev := close[len(close)-1-p]
	if prev == 0 {
		return 0
	}
	roc := (close[len(close)-1] - prev) / prev
	return math.Tanh(roc * 10)
}

// volatilityRatio compares current ATR to the ATR over twice the period.
// Values above 0.5 mean expanding volatility. Neutral center: 0.5.
func (e *Extractor) volatilityRatio(high, low, close []float64) float64 {
	p := e.cfg.VolatilityPeriod
	cur := atr(high, low, close, p)
	hist := atr(high, low, close, 2*p)
	if cur <= 0 || hist <= 0 {
		return 0.5
	}
	// Map the ratio into (0,1) with 1.0x at the center.
	return clamp(cur/hist/2, 0, 1)
}

// trendStrength is the fraction of bars moving in the net direction over the
// lookback. 0.5 means no directional preference. Neutral center: 0.5.
func (e *Extractor) trendStrength(close []float64) float64 {
	p := e.cfg.TrendPeriod
	if len(close) < p+1 {
		return 0.5
	}
	window := close[len(close)-1-p:]
	ups := 0
	moves := 0
	for i := 1; i < len(window); i++ {
		if window[i] == window[i-1] {
			continue
		}
		moves++
		if window[i] > window[i-1] {
			ups++
		}
	}
	if moves == 0 {
		return 0.5
	}
	directional := float64(ups) / float64(moves)
	if window[len(window)-1] < window[0] {
		directional = 1 - directional
	}
	return directional
}

// volumeRatio is current volume over the trailing average, capped at 1 after
// scaling so a 2x surge saturates. Neutral center: 0.5 (ratio 1.0).
func (e *Extractor) volumeRatio(volume []float64) float64 {
	p := e.cfg.VolumePeriod
	if len(volume) < p+1 {
		return 0.5
	}
	sum := 0.0
	for _, v := range volume[len(volume)-1-p : len(volume)-1] {
		sum += v
	}
	avg := sum / float64(p)
	if avg <= 0 {
		return 0.5
	}
	return clamp(volume[len(volume)-1]/avg/2, 0, 1)
}

// priceVelocity is a short-horizon normalized rate of change. Center: 0.
func (e *Extractor) priceVelocity(close []float64) float64 {
	p := e.cfg.MomentumPeriod / 2
	if p < 1 {
		p = 1
	}
	if len(close) < p+1 {
		return 0
	}
	prev := close[len(close)-1-p]
	if prev == 0 {
		return 0
	}
	return math.Tanh((close[len(close)-1] - prev) / prev * 20)
}

// efficiencyRatio is Kaufman's ratio of net displacement to total path length
// over the trend lookback. 1 means perfectly directional. Neutral center: 0.5.
func (e *Extractor) efficiencyRatio(close []float64) float64 {
	p := e.cfg.TrendPeriod
	if len(close) < p+1 {
		return 0.5
	}
	window := close[len(close)-1-p:]
	path := 0.0
	for i := 1; i < len(window); i++ {
		path += math.Abs(window[i] - window[i-1])
	}
	if path == 0 {
		return 0.5
	}
	return math.Abs(window[len(window)-1]-window[0]) / path
}

// atr computes the average true range with Wilder smoothing. Returns 0 when
// the history is too short.
func atr(high, low, close []float64, period int) float64 {
	if len(close) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(close)-1)
	for i := 1; i < len(close); i++ {
		tr := high[i] - low[i]
		tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
		tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		trs = append(trs, tr)
	}
	if len(trs) < period {
		return 0
	}
	sum := 0.0
	for _, tr := range trs[:period] {
		sum += tr
	}
	val := sum / float64(period)
	alpha := 1.0 / float64(period)
	for _, tr := range trs[period:] {
		val = val*(1-alpha) + tr*alpha
	}
	return val
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
