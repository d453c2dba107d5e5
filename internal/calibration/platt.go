package calibration

import (
	"math"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	plattMinSamples = 10
	plattMaxIters   = 100
	plattTolerance  = 1e-5
	plattEpsilon    = 1e-7 // clamp against floating-point saturation at 0 or 1
)

// PlattScaler fits a one-dimensional logistic map p = sigmoid(a*s + b) from a
// scalar summary score to a binary LONG/not-LONG target. With too few samples
// or a single-class training set it degenerates to the identity sigmoid.
type PlattScaler struct {
	mu     sync.RWMutex
	a, b   float64
	fitted bool
}

// NewPlattScaler returns an unfitted scaler (identity sigmoid).
func NewPlattScaler() *PlattScaler {
	return &PlattScaler{a: 1, b: 0}
}

// Fit estimates (a, b) by damped Newton iteration on the negative
// log-likelihood. scores and targets must be parallel; targets mark the
// positive (LONG) class. Fit never fails: degenerate inputs reset the scaler
// to the identity sigmoid.
func (p *PlattScaler) Fit(scores []float64, targets []bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(scores) != len(targets) || len(scores) < plattMinSamples {
		p.a, p.b, p.fitted = 1, 0, false
		return
	}
	pos := 0
	for _, t := range targets {
		if t {
			pos++
		}
	}
	if pos == 0 || pos == len(targets) {
		// Single-class set carries no calibration information.
		p.a, p.b, p.fitted = 1, 0, false
		return
	}

	a, b := 1.0, 0.0
	for iter := 0; iter < plattMaxIters; iter++ {
		// Gradient and Hessian of the negative log-likelihood.
		var ga, gb, haa, hab, hbb float64
		for i, s := range scores {
			pr := sigmoid(a*s + b)
			y := 0.0
			if targets[i] {
				y = 1.0
			}
			diff := pr - y
			ga += diff * s
			gb += diff
			w := pr * (1 - pr)
			haa += w * s * s
			hab += w * s
			hbb += w
		}
		// Small ridge keeps the 2x2 solve stable on near-degenerate scores.
		haa += 1e-9
		hbb += 1e-9

		det := haa*hbb - hab*hab
		if det == 0 || math.IsNaN(det) {
			break
		}
		da := (hbb*ga - hab*gb) / det
		db := (haa*gb - hab*ga) / det

		// Damped step.
		a -= 0.5 * da
		b -= 0.5 * db

		if math.Abs(da) < plattTolerance && math.Abs(db) < plattTolerance {
			break
		}
	}

	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		log.Warn().Float64("a", a).Float64("b", b).Msg("platt fit diverged, keeping identity sigmoid")
		p.a, p.b, p.fitted = 1, 0, false
		return
	}
	p.a, p.b, p.fitted = a, b, true
}

// Predict maps a score to a calibrated probability strictly inside (0,1).
func (p *PlattScaler) Predict(score float64) float64 {
	p.mu.RLock()
	a, b := p.a, p.b
	p.mu.RUnlock()
	pr := sigmoid(a*score + b)
	if pr < plattEpsilon {
		return plattEpsilon
	}
	if pr > 1-plattEpsilon {
		return 1 - plattEpsilon
	}
	return pr
}

// Fitted reports whether a real fit is active (false means identity sigmoid).
func (p *PlattScaler) Fitted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fitted
}

// Params returns the current (a, b) coefficients for snapshot export.
func (p *PlattScaler) Params() (a, b float64, fitted bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.a, p.b, p.fitted
}

// SetParams restores coefficients from a snapshot.
func (p *PlattScaler) SetParams(a, b float64, fitted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.a, p.b, p.fitted = a, b, fitted
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
