package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nix0283/CITARION-dev-sub004/internal/calibration"
	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
	"github.com/nix0283/CITARION-dev-sub004/internal/ensemble"
	"github.com/nix0283/CITARION-dev-sub004/internal/features"
	"github.com/nix0283/CITARION-dev-sub004/internal/learner"
	"github.com/nix0283/CITARION-dev-sub004/internal/signals"
)

// Snapshot selects where learned state is persisted.
type Snapshot struct {
	Dir       string `yaml:"dir"`        // file store directory (default: ./artifacts/snapshots)
	RedisAddr string `yaml:"redis_addr"` // non-empty switches to the redis store
	RedisDB   int    `yaml:"redis_db"`
}

// Config is the full pipeline configuration for one symbol.
type Config struct {
	Symbol      string                       `yaml:"symbol"`
	Features    features.Config              `yaml:"features"`
	Classifier  classifier.Config            `yaml:"classifier"`
	Smoother    calibration.SmootherConfig   `yaml:"smoother"`
	Ensemble    ensemble.Config              `yaml:"ensemble"`
	Learner     learner.Config               `yaml:"learner"`
	Signals     signals.Config               `yaml:"signals"`
	Snapshot    Snapshot                     `yaml:"snapshot"`
	UsePlatt    bool                         `yaml:"use_platt"`    // apply Platt calibration to LONG probability
	UseSmoother bool                         `yaml:"use_smoother"` // apply kernel regression smoothing
}

// Default returns the production defaults for every component.
func Default() Config {
	return Config{
		Symbol:      "BTCUSD",
		Features:    features.DefaultConfig(),
		Classifier:  classifier.DefaultConfig(),
		Smoother:    calibration.DefaultSmootherConfig(),
		Ensemble:    ensemble.DefaultConfig(),
		Learner:     learner.DefaultConfig(),
		Signals:     signals.DefaultConfig(),
		Snapshot:    Snapshot{Dir: "artifacts/snapshots"},
		UsePlatt:    true,
		UseSmoother: true,
	}
}

// Load reads a YAML file over the defaults. A missing path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
